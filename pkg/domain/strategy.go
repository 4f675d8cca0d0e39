package domain

import dErrors "veridata/pkg/domain-errors"

// ResolutionStrategy identifies how a discrepancy was closed.
type ResolutionStrategy string

const (
	// ResolutionFirstCorrect keeps the first entrant's transcription.
	ResolutionFirstCorrect ResolutionStrategy = "first_correct"
	// ResolutionSecondCorrect adopts the second entrant's transcription.
	ResolutionSecondCorrect ResolutionStrategy = "second_correct"
	// ResolutionNewValue replaces both with a value supplied at resolution time.
	ResolutionNewValue ResolutionStrategy = "new_value"
	// ResolutionAdjudicated is a new value supplied by a supervising reviewer
	// consulting the source document.
	ResolutionAdjudicated ResolutionStrategy = "adjudicated"
)

var validStrategies = map[ResolutionStrategy]bool{
	ResolutionFirstCorrect:  true,
	ResolutionSecondCorrect: true,
	ResolutionNewValue:      true,
	ResolutionAdjudicated:   true,
}

// ParseResolutionStrategy constructs a ResolutionStrategy from external input.
func ParseResolutionStrategy(s string) (ResolutionStrategy, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "resolution strategy cannot be empty")
	}
	st := ResolutionStrategy(s)
	if !validStrategies[st] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown resolution strategy: "+s)
	}
	return st, nil
}

func (s ResolutionStrategy) IsValid() bool { return validStrategies[s] }

func (s ResolutionStrategy) String() string { return string(s) }

// RequiresValue reports whether the strategy needs a caller-supplied value.
func (s ResolutionStrategy) RequiresValue() bool {
	return s == ResolutionNewValue || s == ResolutionAdjudicated
}
