package enums

import "fmt"

// PlanStatus tracks whether a plan accepts new subscriptions.
type PlanStatus int

const (
	PlanStatusActive   PlanStatus = 1
	PlanStatusInactive PlanStatus = 2
)

// String implements fmt.Stringer.
func (p PlanStatus) String() string {
	switch p {
	case PlanStatusActive:
		return "active"
	case PlanStatusInactive:
		return "inactive"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// IsValid reports whether the value is a known PlanStatus.
func (p PlanStatus) IsValid() bool {
	return p == PlanStatusActive || p == PlanStatusInactive
}

// ParsePlanStatus converts the gateway's numeric plan status.
func ParsePlanStatus(value int) (PlanStatus, error) {
	p := PlanStatus(value)
	if !p.IsValid() {
		return 0, fmt.Errorf("invalid plan status %d", value)
	}
	return p, nil
}
