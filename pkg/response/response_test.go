package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fatflowers/repairdesk/pkg/apperr"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperr.Invalid("bad"), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", apperr.NotFound("service", "1")), http.StatusNotFound},
		{apperr.Conflict("race"), http.StatusConflict},
		{apperr.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("%w: staff", apperr.ErrForbidden), http.StatusForbidden},
		{errors.New("db down"), http.StatusInternalServerError},
		{apperr.Internal("load service", errors.New("disk I/O error")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := Classify(tc.err)
		require.Equal(t, tc.status, status, tc.err.Error())
	}
}

func TestAbort_HidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Abort(c, errors.New("pq: connection refused"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "unexpected error", body.Error)
	require.Equal(t, APIResponseCodeError, body.Code)
	require.True(t, c.IsAborted())
}

func TestAbort_EchoesValidationMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Abort(c, apperr.Invalid("deviceType is required"))

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "deviceType is required")
}

func TestAbort_InternalKeepsCauseOffTheWire(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Abort(c, apperr.Internal("update service", errors.New("database is locked")))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "locked")
	require.Len(t, c.Errors, 1)
	require.ErrorIs(t, c.Errors[0].Err, apperr.ErrInternal)
}
