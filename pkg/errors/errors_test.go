package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorUnwraps(t *testing.T) {
	cause := errors.New("socket closed")
	err := TransportError("publish failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "publish failed")
	assert.Contains(t, err.Error(), "socket closed")
}

func TestHasCode(t *testing.T) {
	err := DisconnectedError()
	assert.True(t, HasCode(err, ErrCodeDisconnected))
	assert.False(t, HasCode(err, ErrCodeValidation))
	assert.False(t, HasCode(nil, ErrCodeDisconnected))
	assert.False(t, HasCode(errors.New("plain"), ErrCodeDisconnected))

	wrapped := fmt.Errorf("outer: %w", CallInProgressError())
	assert.True(t, HasCode(wrapped, ErrCodeCallInProgress))
}

func TestGetAppErrorWrapsForeignErrors(t *testing.T) {
	app := GetAppError(errors.New("boom"))
	assert.Equal(t, ErrCodeInternal, app.Code)

	same := ValidationError("bad input")
	assert.Equal(t, same, GetAppError(same))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ValidationError("x")))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(InvalidTokenError("x")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(RoomNotFoundError("r")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(CallInProgressError()))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}
