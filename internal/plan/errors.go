package plan

import "errors"

var (
	// ErrGenerationFailure: the model could not be reached, or kept returning
	// output that does not parse as the expected structure. Transient by
	// nature; surfaced after the retry budget is exhausted.
	ErrGenerationFailure = errors.New("plan generation failed")

	// ErrContractViolation: the model's output parsed but broke a structural
	// invariant (dangling dependency, missing field, cycle). Indicates a
	// prompt/schema mismatch, so it is surfaced immediately and never retried.
	ErrContractViolation = errors.New("plan contract violation")
)
