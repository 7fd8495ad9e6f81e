package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

type User struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	FullName      string             `json:"full_name" bson:"full_name" validate:"required"`
	Email         string             `json:"email,omitempty" bson:"email"`
	Phone         string             `json:"phone,omitempty" bson:"phone"`
	PhoneVerified bool               `json:"phone_verified" bson:"phone_verified"`
	AvatarURL     string             `json:"avatar_url,omitempty" bson:"avatar_url"`
	Rating        float64            `json:"rating" bson:"rating"`
	TotalRatings  int                `json:"total_ratings" bson:"total_ratings"`
	IsDriver      bool               `json:"is_driver" bson:"is_driver"`
	Status        UserStatus         `json:"status" bson:"status" default:"active"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" bson:"updated_at"`
}
