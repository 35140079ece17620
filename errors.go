package pgutils

import "errors"

// Sentinel errors returned by this package. Callers match them with errors.Is;
// wrapped messages carry the offending values.
var (
	// ErrCredentials indicates that one or more of username, password,
	// hostname, and database could not be resolved from explicit values or
	// the environment.
	ErrCredentials = errors.New("missing connection credentials")

	// ErrTableDoesNotExist indicates that a Table was opened with existence
	// checking enabled and no matching table was found in the catalog.
	ErrTableDoesNotExist = errors.New("table does not exist")

	// ErrNoSuchColumn indicates a column selection that references a column
	// absent from the table's catalog metadata.
	ErrNoSuchColumn = errors.New("no such column")

	// ErrValidation indicates an invalid argument (bins, percentiles, kind,
	// sort flags, row shape, non-numeric column for a numeric-only
	// operation). Validation always happens before any SQL is issued.
	ErrValidation = errors.New("invalid argument")
)
