package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ridepool/internal/services"
	"ridepool/internal/utils"

	"github.com/gin-gonic/gin"
)

func TestWriteServiceErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{services.ErrRideNotFound, http.StatusNotFound, utils.CodeRideNotFound},
		{services.ErrBookingNotFound, http.StatusNotFound, utils.CodeBookingNotFound},
		{services.ErrRideNotActive, http.StatusBadRequest, utils.CodeRideNotActive},
		{services.ErrSelfBooking, http.StatusBadRequest, utils.CodeSelfBooking},
		{services.ErrInvalidSeats, http.StatusBadRequest, utils.CodeValidation},
		{services.ErrInvalidPrice, http.StatusBadRequest, utils.CodeValidation},
		{services.ErrInvalidTransition, http.StatusBadRequest, utils.CodeInvalidTransition},
		{services.ErrInsufficientSeats, http.StatusConflict, utils.CodeInsufficientSeats},
		{services.ErrBookingConflict, http.StatusConflict, utils.CodeBookingConflict},
		{services.ErrNotAllowed, http.StatusForbidden, utils.CodeForbidden},
		{errors.New("disk on fire"), http.StatusInternalServerError, utils.CodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.wantCode+"/"+tc.err.Error(), func(t *testing.T) {
			recorder := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(recorder)

			writeServiceError(c, tc.err)

			if recorder.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", recorder.Code, tc.wantStatus)
			}

			var body utils.APIResponse
			if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal body: %v", err)
			}
			if body.Success {
				t.Fatal("success = true on error response")
			}
			if body.Error == nil || body.Error.Code != tc.wantCode {
				t.Fatalf("error = %+v, want code %s", body.Error, tc.wantCode)
			}
		})
	}
}

func TestWrappedServiceErrorsStillMap(t *testing.T) {
	gin.SetMode(gin.TestMode)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	writeServiceError(c, errors.Join(errors.New("reserve transaction"), services.ErrInsufficientSeats))

	if recorder.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusConflict)
	}
}
