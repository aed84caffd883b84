package event

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of an event.
type Status uint8

const (
	Pending Status = iota
	Processing
	Completed
	Failed
)

var statusNames = [...]string{
	Pending:    "pending",
	Processing: "processing",
	Completed:  "completed",
	Failed:     "failed",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", s)
}

// IsTerminal reports whether no further transition can happen.
func (s Status) IsTerminal() bool {
	return s == Completed || s == Failed
}

func (s Status) MarshalText() ([]byte, error) {
	if int(s) >= len(statusNames) {
		return nil, fmt.Errorf("unknown status %d", s)
	}
	return []byte(statusNames[s]), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	for i, n := range statusNames {
		if n == name {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// HasStatus returns a predicate matching events in any of the given states.
func HasStatus[E Event](statuses ...Status) func(E) bool {
	return func(ev E) bool {
		current := ev.Status()
		for _, s := range statuses {
			if current == s {
				return true
			}
		}
		return false
	}
}
