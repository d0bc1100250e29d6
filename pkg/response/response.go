package response

import (
	"errors"
	"net/http"

	"github.com/fatflowers/repairdesk/pkg/apperr"
	"github.com/gin-gonic/gin"
)

type APIResponseCode int

const (
	APIResponseCodeOK           APIResponseCode = 0
	APIResponseCodeBadRequest   APIResponseCode = 40000
	APIResponseCodeUnauthorized APIResponseCode = 40100
	APIResponseCodeForbidden    APIResponseCode = 40300
	APIResponseCodeNotFound     APIResponseCode = 40400
	APIResponseCodeConflict     APIResponseCode = 40900
	APIResponseCodeError        APIResponseCode = 50000
)

var codeToMsg = map[APIResponseCode]string{
	APIResponseCodeOK:           "ok",
	APIResponseCodeBadRequest:   "bad request",
	APIResponseCodeUnauthorized: "unauthorized",
	APIResponseCodeForbidden:    "forbidden",
	APIResponseCodeNotFound:     "not found",
	APIResponseCodeConflict:     "conflict",
	APIResponseCodeError:        "unexpected error",
}

// ErrorBody is the JSON body written for every failed request.
type ErrorBody struct {
	Error string          `json:"error"`
	Code  APIResponseCode `json:"code"`
}

// Classify maps an error to its HTTP status and API code.
func Classify(err error) (int, APIResponseCode) {
	switch {
	case errors.Is(err, apperr.ErrInvalidArgument):
		return http.StatusBadRequest, APIResponseCodeBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, APIResponseCodeNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, APIResponseCodeConflict
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized, APIResponseCodeUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden, APIResponseCodeForbidden
	case errors.Is(err, apperr.ErrInternal):
		return http.StatusInternalServerError, APIResponseCodeError
	default:
		return http.StatusInternalServerError, APIResponseCodeError
	}
}

// Abort writes the error body for err and stops the handler chain. Internal
// errors are not echoed to the client.
func Abort(c *gin.Context, err error) {
	status, code := Classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = codeToMsg[code]
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorBody{Error: msg, Code: code})
}

// BadRequest aborts with a 400 for request binding failures.
func BadRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorBody{Error: err.Error(), Code: APIResponseCodeBadRequest})
}
