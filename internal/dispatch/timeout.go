package dispatch

import (
	"fmt"
	"time"
)

// TimeoutPolicy returns the acknowledgment budget for a target.
type TimeoutPolicy interface {
	Budget(flags TargetFlags) time.Duration
}

// TimeoutPolicyFunc is a function adapter for TimeoutPolicy.
type TimeoutPolicyFunc func(flags TargetFlags) time.Duration

// Budget implements TimeoutPolicy.
func (f TimeoutPolicyFunc) Budget(flags TargetFlags) time.Duration {
	return f(flags)
}

// Budgets is the default TimeoutPolicy: foreground targets get a larger
// budget than background ones.
type Budgets struct {
	Foreground time.Duration
	Background time.Duration
}

// DefaultBudgets returns the budgets used when none are configured.
func DefaultBudgets() Budgets {
	return Budgets{
		Foreground: 5 * time.Second,
		Background: 2 * time.Second,
	}
}

// Budget implements TimeoutPolicy.
func (b Budgets) Budget(flags TargetFlags) time.Duration {
	if flags.Has(TargetForeground) {
		return b.Foreground
	}
	return b.Background
}

// Validate checks that both budgets are positive and the foreground one is
// the larger.
func (b Budgets) Validate() error {
	if b.Background <= 0 {
		return fmt.Errorf("%w: background budget %v must be positive", ErrInvalidBudget, b.Background)
	}
	if b.Foreground <= b.Background {
		return fmt.Errorf("%w: foreground budget %v must exceed background budget %v",
			ErrInvalidBudget, b.Foreground, b.Background)
	}
	return nil
}
