// Package handlers provides the HTTP handlers for the relay gateway.
package handlers

import (
	"net/http"

	sdkerrors "cosmossdk.io/errors"
	"github.com/labstack/echo/v4"

	"github.com/Vibecoders-Team/dfsp-sub000/pow"
	"github.com/Vibecoders-Team/dfsp-sub000/relay"
)

// ErrorBody is the structured error payload shared with clients.
type ErrorBody struct {
	Codespace string `json:"codespace"`
	Code      uint32 `json:"code"`
	Message   string `json:"message"`
}

// writeError serializes a registered error condition with an appropriate
// HTTP status.
func writeError(c echo.Context, err error) error {
	codespace, code, log := sdkerrors.ABCIInfo(err, false)
	return c.JSON(statusFor(err), ErrorBody{Codespace: codespace, Code: code, Message: log})
}

// statusFor maps registered conditions to HTTP statuses. Unknown errors are
// an internal failure.
func statusFor(err error) int {
	switch {
	case relay.ErrInvalidSignature.Is(err):
		return http.StatusUnauthorized
	case relay.ErrNonceMismatch.Is(err):
		return http.StatusConflict
	case relay.ErrBadRequest.Is(err), relay.ErrBadCalldata.Is(err):
		return http.StatusBadRequest
	case pow.ErrStaleProof.Is(err):
		return http.StatusTooManyRequests
	case pow.ErrBadToken.Is(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
