package response

type ErrCode int

const (
	_                       ErrCode = 10000 + iota
	ErrCodeMalformedJSON            // 10001
	ErrCodeRequestBody              // 10002
	ErrCodeInvalidAddress           // 10003
	ErrCodeTypeMismatch             // 10004
	ErrCodeNotConnected             // 10005
	ErrCodeUnreachable              // 10006
	ErrCodeTimeout                  // 10007
	ErrCodeItemFailed               // 10008
	ErrCodeProtocol                 // 10009
	ErrCodeInternal                 // 10010
)

// Codes are part of the API. New codes go at the end with a message in errors.go.
