package enums

import "fmt"

// SubscriptionStatus mirrors the gateway's numeric subscription state.
type SubscriptionStatus int

const (
	SubscriptionStatusCreated   SubscriptionStatus = 1
	SubscriptionStatusTrial     SubscriptionStatus = 2
	SubscriptionStatusActive    SubscriptionStatus = 3
	SubscriptionStatusCancelled SubscriptionStatus = 4
	SubscriptionStatusQueued    SubscriptionStatus = 5
	SubscriptionStatusFinished  SubscriptionStatus = 6
)

var validSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusCreated,
	SubscriptionStatusTrial,
	SubscriptionStatusActive,
	SubscriptionStatusCancelled,
	SubscriptionStatusQueued,
	SubscriptionStatusFinished,
}

var subscriptionStatusNames = map[SubscriptionStatus]string{
	SubscriptionStatusCreated:   "created",
	SubscriptionStatusTrial:     "trial",
	SubscriptionStatusActive:    "active",
	SubscriptionStatusCancelled: "cancelled",
	SubscriptionStatusQueued:    "queued",
	SubscriptionStatusFinished:  "finished",
}

// String implements fmt.Stringer.
func (s SubscriptionStatus) String() string {
	if name, ok := subscriptionStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// IsValid reports whether the value is known.
func (s SubscriptionStatus) IsValid() bool {
	for _, candidate := range validSubscriptionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Cancellable reports whether a subscription in this state may still be
// cancelled or updated. Cancelled and Finished are terminal.
func (s SubscriptionStatus) Cancellable() bool {
	switch s {
	case SubscriptionStatusCreated, SubscriptionStatusTrial, SubscriptionStatusActive, SubscriptionStatusQueued:
		return true
	default:
		return false
	}
}

// SubscriptionStatuses lists every known status in numeric order.
func SubscriptionStatuses() []SubscriptionStatus {
	out := make([]SubscriptionStatus, len(validSubscriptionStatuses))
	copy(out, validSubscriptionStatuses)
	return out
}

// ParseSubscriptionStatus converts the gateway's numeric status.
func ParseSubscriptionStatus(value int) (SubscriptionStatus, error) {
	s := SubscriptionStatus(value)
	if !s.IsValid() {
		return 0, fmt.Errorf("invalid subscription status %d", value)
	}
	return s, nil
}
