package response

import (
	"net/http"

	pkgerrors "github.com/pkg/errors"
	"s7link/pkg/plc"
	"s7link/pkg/session"
)

var classes = []struct {
	target error
	code   ErrCode
	status int
}{
	{plc.ErrInvalidAddress, ErrCodeInvalidAddress, http.StatusBadRequest},
	{plc.ErrTypeMismatch, ErrCodeTypeMismatch, http.StatusBadRequest},
	{plc.ErrEmptyRequest, ErrCodeRequestBody, http.StatusBadRequest},
	{session.ErrTimeout, ErrCodeTimeout, http.StatusGatewayTimeout},
	{plc.ErrUnreachable, ErrCodeUnreachable, http.StatusServiceUnavailable},
	{plc.ErrConnectionReset, ErrCodeNotConnected, http.StatusServiceUnavailable},
	{plc.ErrNotConnected, ErrCodeNotConnected, http.StatusServiceUnavailable},
	{plc.ErrProtocolViolation, ErrCodeProtocol, http.StatusBadGateway},
	{plc.ErrMalformedResponse, ErrCodeProtocol, http.StatusBadGateway},
}

// FromError maps an error of the PLC stack to a response error and the HTTP
// status that goes with it.
func FromError(err error) (*responseError, int) {
	if re, ok := err.(*responseError); ok {
		return re, http.StatusBadRequest
	}
	for _, c := range classes {
		if pkgerrors.Is(err, c.target) {
			return newError(c.code, err, err.Error()), c.status
		}
	}
	return newError(ErrCodeInternal, err, err.Error()), http.StatusInternalServerError
}
