package domain

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending           Status = "pending"
	StatusSucceeded         Status = "succeeded"
	StatusFailed            Status = "failed"
	StatusRefunded          Status = "refunded"
	StatusPartiallyRefunded Status = "partially_refunded"
)

func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPending, StatusSucceeded, StatusFailed, StatusRefunded, StatusPartiallyRefunded:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

func (s Status) String() string { return string(s) }

func (s Status) CanConfirm() bool { return s == StatusPending }

func (s Status) CanRefund() bool { return s == StatusSucceeded }

func (s Status) IsComplete() bool {
	switch s {
	case StatusSucceeded, StatusRefunded, StatusPartiallyRefunded:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is legal from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFailed, StatusRefunded, StatusPartiallyRefunded:
		return true
	default:
		return false
	}
}
