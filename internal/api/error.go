package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"firewall-simulator/internal/model"
	"firewall-simulator/internal/scan"

	"github.com/gin-gonic/gin"
)

const (
	ErrCodeInvalid    = 40001
	ErrCodeNotFound   = 40004
	ErrCodeInternal   = 50000
	ErrCodeScanFailed = 50001
)

// Error is an api error.
type Error struct {
	statusCode int
	Code       int    `json:"code"`
	Msg        string `json:"msg"`
}

func NewError(status, code int, msg string) error {
	return &Error{
		statusCode: status,
		Code:       code,
		Msg:        msg,
	}
}

func (e *Error) Error() string {
	b, _ := json.Marshal(e)
	return string(b)
}

func writeError(c *gin.Context, err error) {
	c.JSON(getStatusCode(err), err)
}

func getStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if e, ok := err.(*Error); ok {
		if e.statusCode >= http.StatusOK && e.statusCode < 600 {
			return e.statusCode
		}
	}
	return http.StatusInternalServerError
}

// toAPIError maps domain errors onto the response envelope.
func toAPIError(err error) error {
	var apiErr *Error
	var vErr *model.ValidationError
	var nfErr *model.NotFoundError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &vErr):
		return NewError(http.StatusBadRequest, ErrCodeInvalid, err.Error())
	case errors.As(err, &nfErr):
		return NewError(http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, scan.ErrUnsupportedScanType), errors.Is(err, scan.ErrInvalidRequest):
		return NewError(http.StatusBadRequest, ErrCodeInvalid, err.Error())
	default:
		return NewError(http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// toScanError is toAPIError for scanner failures, which get their own code.
func toScanError(err error) error {
	apiErr := toAPIError(err).(*Error)
	if apiErr.Code != ErrCodeInternal {
		return apiErr
	}
	return NewError(apiErr.statusCode, ErrCodeScanFailed, apiErr.Msg)
}
