package domain

import (
	"fmt"
	"time"
)

const unknownValue = "unknown"

// BudgetPeriod is a rolling usage window.
type BudgetPeriod uint8

const (
	// BudgetDaily covers the trailing 24 hours.
	BudgetDaily BudgetPeriod = iota

	// BudgetMonthly covers the trailing 30 days.
	BudgetMonthly
)

// String returns the string representation of a BudgetPeriod.
func (p BudgetPeriod) String() string {
	switch p {
	case BudgetDaily:
		return "daily"
	case BudgetMonthly:
		return "monthly"
	default:
		return unknownValue
	}
}

// Window returns the length of the rolling window.
func (p BudgetPeriod) Window() time.Duration {
	if p == BudgetMonthly {
		return 30 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// BudgetScope identifies which ceiling a usage check was measured against.
type BudgetScope uint8

const (
	// ScopeGlobal is the ceiling shared by every workspace.
	ScopeGlobal BudgetScope = iota

	// ScopeWorkspace is the per-workspace ceiling.
	ScopeWorkspace
)

// String returns the string representation of a BudgetScope.
func (s BudgetScope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeWorkspace:
		return "workspace"
	default:
		return unknownValue
	}
}

// BudgetLimits defines token ceilings enforced by the budget guard.
type BudgetLimits struct {
	// GlobalDailyTokens caps usage across all workspaces in a 24 hour window.
	GlobalDailyTokens int64 `json:"global_daily_tokens" yaml:"global_daily_tokens" validate:"min=1"`

	// WorkspaceDailyTokens caps usage per workspace in a 24 hour window.
	WorkspaceDailyTokens int64 `json:"workspace_daily_tokens" yaml:"workspace_daily_tokens" validate:"min=1"`

	// WorkspaceMonthlyTokens caps usage per workspace in a 30 day window. Zero disables it.
	WorkspaceMonthlyTokens int64 `json:"workspace_monthly_tokens" yaml:"workspace_monthly_tokens" validate:"min=0"`
}

// Validate checks if the budget limits meet all requirements.
func (b *BudgetLimits) Validate() error { return validate.Struct(b) }

// BudgetExceededError indicates that a call would push usage past a ceiling.
// Callers must not proceed with the call.
type BudgetExceededError struct {
	// Scope indicates which ceiling was hit.
	Scope BudgetScope

	// Period is the rolling window the ceiling applies to.
	Period BudgetPeriod

	// WorkspaceID is empty for global ceilings.
	WorkspaceID string

	// Limit is the configured ceiling in tokens.
	Limit int64

	// Current is the usage already recorded in the window.
	Current int64

	// Required is the estimate for the attempted call.
	Required int64
}

// Error returns a formatted error message describing the budget violation.
func (e BudgetExceededError) Error() string {
	if e.WorkspaceID != "" {
		return fmt.Sprintf("%s %s token budget exceeded for workspace %s: limit=%d, current=%d, required=%d",
			e.Period, e.Scope, e.WorkspaceID, e.Limit, e.Current, e.Required)
	}
	return fmt.Sprintf("%s %s token budget exceeded: limit=%d, current=%d, required=%d",
		e.Period, e.Scope, e.Limit, e.Current, e.Required)
}

// OverBy returns how many tokens the operation would exceed the limit by.
func (e BudgetExceededError) OverBy() int64 { return e.Current + e.Required - e.Limit }

// NewBudgetExceededError creates a budget exceeded error with detailed context.
func NewBudgetExceededError(scope BudgetScope, period BudgetPeriod, workspaceID string, limit, current, required int64) BudgetExceededError {
	return BudgetExceededError{
		Scope:       scope,
		Period:      period,
		WorkspaceID: workspaceID,
		Limit:       limit,
		Current:     current,
		Required:    required,
	}
}
