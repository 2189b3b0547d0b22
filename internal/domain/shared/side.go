package shared

import "fmt"

// Side identifies which half of the rail a bridge instance serves
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

// ParseSide validates a configured side name
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideDebit, SideCredit:
		return Side(s), nil
	default:
		return "", fmt.Errorf("unknown bridge side %q", s)
	}
}

// Resource returns the plural path segment used by the HTTP surface.
func (s Side) Resource() string {
	return string(s) + "s"
}

func (s Side) String() string {
	return string(s)
}
