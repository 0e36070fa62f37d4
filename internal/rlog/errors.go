package rlog

import "fmt"

// NewError creates a new error carrying a plain message.
func NewError(msg string) error {
	return fmt.Errorf("%s", msg)
}
