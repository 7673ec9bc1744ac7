package period

import (
	"fmt"
	"strings"
)

// Kind is one of the calendar periods tracked by the dashboard.
type Kind int

const (
	Day Kind = iota
	Week
	Month
	Quarter
	Year
)

// Kinds lists every period in display order.
var Kinds = []Kind{Day, Week, Month, Quarter, Year}

var kindNames = [...]string{"day", "week", "month", "quarter", "year"}

func (k Kind) valid() bool { return k >= Day && k <= Year }

func (k Kind) String() string {
	if !k.valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Title is the capitalised display label ("Day", "Week", ...).
func (k Kind) Title() string {
	s := k.String()
	if !k.valid() {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown period kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.valid() {
		return nil, fmt.Errorf("invalid period kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
