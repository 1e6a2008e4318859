package jobshop

import (
	"fmt"

	"github.com/noah-isme/jobshop-api/pkg/cpmodel"
	appErrors "github.com/noah-isme/jobshop-api/pkg/errors"
)

// SchemaError describes a malformed or missing input field.
type SchemaError struct {
	Row    int
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("row %d: %s %s", e.Row, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// NoSolutionError carries the solver status when no schedule was produced.
type NoSolutionError struct {
	Status cpmodel.Status
}

func (e *NoSolutionError) Error() string {
	return fmt.Sprintf("solver status %s", e.Status)
}

func schemaError(row int, field, reason string) error {
	return appErrors.Wrap(&SchemaError{Row: row, Field: field, Reason: reason},
		appErrors.ErrSchema.Code, appErrors.ErrSchema.Status, appErrors.ErrSchema.Message)
}

func emptyInstanceError() error {
	return appErrors.Clone(appErrors.ErrEmptyInstance, "")
}

func encodingError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrEncoding.Code, appErrors.ErrEncoding.Status, appErrors.ErrEncoding.Message)
}

func noSolutionError(status cpmodel.Status) error {
	return appErrors.Wrap(&NoSolutionError{Status: status},
		appErrors.ErrNoSolution.Code, appErrors.ErrNoSolution.Status, appErrors.ErrNoSolution.Message)
}
