package schedule

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation marks malformed user input. The caller fixes the input
// and resubmits; no partial record is ever created.
var ErrValidation = errors.New("validation failed")

// ValidateInput checks the user-entered fields of a new experiment.
// The method name is resolved against the catalog separately by Compute.
func ValidateInput(in Input) error {
	if in.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrValidation)
	}
	if strings.TrimSpace(in.SampleBatch) == "" {
		return fmt.Errorf("%w: sample batch must not be empty", ErrValidation)
	}
	return nil
}

// ValidateExpID checks an experiment sequence number against the live
// list. With allowDuplicate set, only the numeric range is checked; the
// duplicate form is how several sample batches share one logical
// experiment number.
func ValidateExpID(expID int, existing []Record, allowDuplicate bool) error {
	if expID <= 0 {
		return fmt.Errorf("%w: experiment id must be positive", ErrValidation)
	}
	if allowDuplicate {
		return nil
	}
	for _, rec := range existing {
		if rec.ExpID == expID {
			return fmt.Errorf("%w: experiment id %d already exists", ErrValidation, expID)
		}
	}
	return nil
}
