package enums

import (
	"fmt"
	"strings"
)

// SourceKind identifies what a charge is drawn against, derived from the
// gateway id prefix.
type SourceKind string

const (
	SourceKindToken SourceKind = "token"
	SourceKindCard  SourceKind = "card"
)

const (
	TokenIDPrefix = "tkn_"
	CardIDPrefix  = "crd_"
)

// String implements fmt.Stringer.
func (s SourceKind) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s SourceKind) IsValid() bool {
	return s == SourceKindToken || s == SourceKindCard
}

// SourceKindOf classifies a charge source id.
func SourceKindOf(sourceID string) (SourceKind, error) {
	switch {
	case strings.HasPrefix(sourceID, TokenIDPrefix):
		return SourceKindToken, nil
	case strings.HasPrefix(sourceID, CardIDPrefix):
		return SourceKindCard, nil
	default:
		return "", fmt.Errorf("invalid charge source %q", sourceID)
	}
}
