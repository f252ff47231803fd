package errs

import "fmt"

// ErrPanic converts a recovered value into an internal CodeError.
func ErrPanic(r any) error {
	if r == nil {
		return nil
	}
	return ErrInternal.WithDetail(fmt.Sprintf("panic: %v", r))
}
