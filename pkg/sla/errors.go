package sla

import (
	"errors"
	"fmt"
)

var (
	// ErrNoApplicableRule means no rule matched and no system default exists.
	ErrNoApplicableRule = errors.New("no applicable SLA rule")

	// ErrInvalidCaseState is returned for cases that cannot be evaluated (terminal or never submitted).
	ErrInvalidCaseState = errors.New("invalid case state for SLA evaluation")

	// ErrVersionConflict is returned by a CaseRepository when the stored case version moved on.
	ErrVersionConflict = errors.New("case version conflict")
)

// ConfigurationError reports malformed rule data. It is never worth retrying.
type ConfigurationError struct {
	RuleID string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.RuleID == "" {
		return fmt.Sprintf("sla configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("sla configuration error in rule %s: %s", e.RuleID, e.Reason)
}

func configErr(r *Rule, format string, args ...interface{}) error {
	ref := ""
	if r != nil {
		ref = r.RuleRef()
	}
	return &ConfigurationError{RuleID: ref, Reason: fmt.Sprintf(format, args...)}
}

// IsConfigurationError reports whether err wraps a *ConfigurationError
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
