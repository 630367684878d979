package response

import (
	"encoding/json"
	"fmt"
	"strings"
)

// responseError is one entry of the "errors" list in a response body.
type responseError struct {
	Code    ErrCode `json:"code"`
	Message string  `json:"message"`
	Err     error   `json:"-"`
}

func newError(code ErrCode, err error, args ...interface{}) *responseError {
	return &responseError{
		Code:    code,
		Message: fmt.Sprintf(errors[code], args...),
		Err:     err,
	}
}

func (re *responseError) Error() string {
	if re == nil {
		return ""
	}
	return fmt.Sprintf("%d: %s", re.Code, re.Message)
}

func (re *responseError) Unwrap() error {
	return re.Err
}

// MultiError collects the errors of one request. Its zero value is ready to
// use. It is not safe for concurrent use.
type MultiError struct {
	errors []*responseError
}

func NewMultiError(errs ...*responseError) *MultiError {
	return &MultiError{errors: errs}
}

func (e *MultiError) Add(errs ...*responseError) {
	e.errors = append(e.errors, errs...)
}

func (e *MultiError) Len() int {
	if e == nil {
		return 0
	}
	return len(e.errors)
}

// List returns a copy of the collected errors.
func (e *MultiError) List() []error {
	list := make([]error, 0, e.Len())
	for _, err := range e.errors {
		list = append(list, err)
	}
	return list
}

func (e *MultiError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Errors []*responseError `json:"errors"`
	}{
		Errors: e.errors,
	})
}

func (e *MultiError) Error() string {
	es := make([]string, 0, len(e.errors))
	for _, err := range e.errors {
		es = append(es, err.Error())
	}
	return strings.Join(es, "; ")
}
