package mongodb

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestBookingIndexesEnforceUniqueIdempotencyKey(t *testing.T) {
	for _, index := range bookingIndexes() {
		keys, ok := index.Keys.(bson.D)
		if !ok || len(keys) == 0 {
			t.Fatalf("unexpected index keys %v", index.Keys)
		}
		if keys[0].Key != "idempotency_key" {
			continue
		}
		if index.Options == nil || index.Options.Unique == nil || !*index.Options.Unique {
			t.Fatal("idempotency_key index must be unique")
		}
		return
	}
	t.Fatal("no index on idempotency_key")
}
