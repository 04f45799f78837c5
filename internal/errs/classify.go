package errs

import (
	"context"
	"errors"
)

// timeouter is implemented by transport errors that know whether they were
// caused by a deadline (net.Error, llm.ErrTimeout, embedding.ErrTimeout).
type timeouter interface {
	Timeout() bool
}

// FromService classifies a failed call to an external service (embedding
// service, vector store, generation model). Deadline expiry becomes
// ServiceTimeout; every other failure becomes ServiceUnavailable. An err
// that is already classified is returned unchanged.
func FromService(stage Stage, err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	kind := KindServiceUnavailable
	if isTimeout(err) {
		kind = KindServiceTimeout
	}
	return Wrap(kind, stage, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t timeouter
	if errors.As(err, &t) && t.Timeout() {
		return true
	}
	return false
}
