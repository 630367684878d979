package plc

import (
	"github.com/pkg/errors"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

type ExecutionStatus int

const (
	Pending ExecutionStatus = iota
	Succeeded
	Failed
)

var ExecutionStatusToString = map[ExecutionStatus]string{
	Pending:   "pending",
	Succeeded: "succeeded",
	Failed:    "failed",
}

func (s ExecutionStatus) String() string {
	return ExecutionStatusToString[s]
}

// Execution tracks one submitted request while its connection services it.
type Execution struct {
	request   *request
	exchanges []Exchange
	next      int
	sent      bool

	status    ExecutionStatus
	response  *Response
	err       error
	destroyed bool
}

func (e *Execution) Status() ExecutionStatus {
	return e.status
}

// Done reports whether the execution left Pending.
func (e *Execution) Done() bool {
	return e.status != Pending
}

// Response is set once the execution is done. A failed execution holds the
// items answered before the failure.
func (e *Execution) Response() *Response {
	return e.response
}

// Err describes why the execution failed. Item failures are aggregated.
func (e *Execution) Err() error {
	return e.err
}

// Destroy releases the execution. It is rejected while pending.
func (e *Execution) Destroy() error {
	if e.status == Pending {
		return ErrExecutionInProgress
	}
	if e.destroyed {
		return errors.Wrap(ErrDestroyed, "execution")
	}
	e.destroyed = true
	e.response = nil
	e.exchanges = nil
	return nil
}

// finish settles the execution. Without err it fails only when an item did.
func (e *Execution) finish(err error) {
	e.response = newResponse(e.request.kind, e.request.items)
	if err == nil {
		var errs []error
		for _, item := range e.response.Items {
			if item.Err != nil {
				errs = append(errs, errors.Wrapf(item.Err, "%s", item.Name))
			}
		}
		err = utilerrors.NewAggregate(errs)
	}
	if err != nil {
		e.status = Failed
		e.err = err
		return
	}
	e.status = Succeeded
}
