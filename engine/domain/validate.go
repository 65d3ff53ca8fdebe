package domain

import (
	"fmt"
	"strings"
)

// ValidateQuestion checks a user question before it enters the answer pipeline.
func ValidateQuestion(question string) error {
	if strings.TrimSpace(question) == "" {
		return E(ErrInvalidArgument, "validate", fmt.Errorf("question is empty"))
	}
	return nil
}

// ValidateThreshold checks an optional similarity threshold. A nil threshold
// means no filtering and is always valid.
func ValidateThreshold(threshold *float64) error {
	if threshold == nil {
		return nil
	}
	if *threshold < 0 || *threshold > 1 {
		return E(ErrInvalidArgument, "validate", fmt.Errorf("similarity threshold %v outside [0,1]", *threshold))
	}
	return nil
}

// ValidateK checks a retrieval depth.
func ValidateK(k int) error {
	if k <= 0 {
		return E(ErrInvalidArgument, "validate", fmt.Errorf("k must be positive, got %d", k))
	}
	return nil
}
