package enums

import "fmt"

// IntervalUnit is the gateway's billing cadence unit for plans.
type IntervalUnit int

const (
	IntervalUnitDay   IntervalUnit = 1
	IntervalUnitWeek  IntervalUnit = 2
	IntervalUnitMonth IntervalUnit = 3
	IntervalUnitYear  IntervalUnit = 4
)

var validIntervalUnits = []IntervalUnit{
	IntervalUnitDay,
	IntervalUnitWeek,
	IntervalUnitMonth,
	IntervalUnitYear,
}

// String implements fmt.Stringer.
func (u IntervalUnit) String() string {
	switch u {
	case IntervalUnitDay:
		return "day"
	case IntervalUnitWeek:
		return "week"
	case IntervalUnitMonth:
		return "month"
	case IntervalUnitYear:
		return "year"
	default:
		return fmt.Sprintf("unknown(%d)", int(u))
	}
}

// IsValid reports whether the value is a known IntervalUnit.
func (u IntervalUnit) IsValid() bool {
	for _, candidate := range validIntervalUnits {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseIntervalUnit converts the gateway's numeric interval unit.
func ParseIntervalUnit(value int) (IntervalUnit, error) {
	u := IntervalUnit(value)
	if !u.IsValid() {
		return 0, fmt.Errorf("invalid interval unit %d", value)
	}
	return u, nil
}
