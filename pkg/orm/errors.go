package orm

import (
	"errors"
	"fmt"
)

// Common ORM error types
var (
	// ErrInvalidOperation is returned when a lifecycle method is called in the
	// wrong persistence state, e.g. Create on a persisted model
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrUnknownProperty is returned when reading a name that is neither a
	// declared property nor backed by an accessor
	ErrUnknownProperty = errors.New("unknown property")

	// ErrUnknownRelation is returned when loading a relation that was not declared
	ErrUnknownRelation = errors.New("unknown relation")

	// ErrUnknownType is returned when a model type name is not defined
	ErrUnknownType = errors.New("unknown model type")

	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDriver matches every error raised by the storage driver
	ErrDriver = errors.New("driver error")
)

// DriverError wraps an error raised by the storage driver, preserving the cause
type DriverError struct {
	Op    string
	Model string
	Err   error
}

// Error implements the error interface
func (e *DriverError) Error() string {
	return fmt.Sprintf("driver %s %s: %v", e.Op, e.Model, e.Err)
}

// Unwrap returns the driver's error
func (e *DriverError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrDriver) hold for every DriverError
func (e *DriverError) Is(target error) bool {
	return target == ErrDriver
}

func driverError(op, model string, err error) error {
	if err == nil {
		return nil
	}
	var de *DriverError
	if errors.As(err, &de) {
		return err
	}
	return &DriverError{Op: op, Model: model, Err: err}
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidOperation returns true if the error is ErrInvalidOperation
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// IsUnknownProperty returns true if the error is ErrUnknownProperty
func IsUnknownProperty(err error) bool {
	return errors.Is(err, ErrUnknownProperty)
}

// IsDriverError returns true if the error was raised by the storage driver
func IsDriverError(err error) bool {
	return errors.Is(err, ErrDriver)
}
