package domain

import (
	"strings"

	"github.com/pkg/errors"
)

// Priority orders jobs for scheduling, higher values first.
type Priority int

const (
	PriorityIdle Priority = iota
	PriorityLowest
	PriorityLow
	PriorityNormal
	// HIGH and HIGHEST may only be set by an administrator.
	PriorityHigh
	PriorityHighest
)

var priorityNames = [...]string{"IDLE", "LOWEST", "LOW", "NORMAL", "HIGH", "HIGHEST"}

func (p Priority) String() string {
	if p < 0 || int(p) >= len(priorityNames) {
		return "UNKNOWN"
	}
	return priorityNames[p]
}

func (p Priority) AdminOnly() bool {
	return p >= PriorityHigh
}

func (p Priority) Valid() bool {
	return p >= PriorityIdle && p <= PriorityHighest
}

func ParsePriority(s string) (Priority, error) {
	for i, n := range priorityNames {
		if strings.EqualFold(n, s) {
			return Priority(i), nil
		}
	}
	return PriorityNormal, errors.Errorf("unknown priority %q", s)
}
