package response

var errors = map[ErrCode]string{
	ErrCodeMalformedJSON:  "The JSON you provided was not well-formed or did not validate against our published format.",
	ErrCodeRequestBody:    "Request body error: %s",
	ErrCodeInvalidAddress: "Invalid tag address: %s",
	ErrCodeTypeMismatch:   "Value does not fit the tag: %s",
	ErrCodeNotConnected:   "PLC not connected: %s",
	ErrCodeUnreachable:    "PLC unreachable: %s",
	ErrCodeTimeout:        "Timed out waiting for the PLC: %s",
	ErrCodeItemFailed:     "Item %s failed: %s",
	ErrCodeProtocol:       "PLC protocol error: %s",
	ErrCodeInternal:       "Internal error: %s",
}

var ErrMalformedJSON = &responseError{
	Code:    ErrCodeMalformedJSON,
	Message: errors[ErrCodeMalformedJSON],
}

func ErrRequestBody(err error) *responseError {
	return newError(ErrCodeRequestBody, err, err.Error())
}

func ErrItemFailed(name string, err error) *responseError {
	return newError(ErrCodeItemFailed, err, name, err.Error())
}
