package routine

import (
	"errors"
	"fmt"
)

// ErrPanicRecovered is wrapped by errors produced from a recovered panic
var ErrPanicRecovered = fmt.Errorf("routine: panic recovered")

// ErrPanic returns an error wrapping the recovered panic value
func ErrPanic(recovered any) error {
	return fmt.Errorf("%w: %v", ErrPanicRecovered, recovered)
}

// IsPanic reports whether err came from a recovered panic
func IsPanic(err error) bool {
	return errors.Is(err, ErrPanicRecovered)
}
