package core

import (
	"fmt"
	"strings"
)

const (
	LevelNone AllowanceLevel = "none"
	LevelLow  AllowanceLevel = "low"
	LevelHigh AllowanceLevel = "high"
)

type (
	AllowanceLevel string

	// AttendanceAllowanceState is a client's attendance allowance claim.
	// Status is the confirmed level; it stays LevelNone until a level is
	// confirmed, at which point ConfirmationDate is set.
	AttendanceAllowanceState struct {
		ClientID         string
		RequestedLevel   AllowanceLevel
		RequestedDate    Date
		Status           AllowanceLevel
		ConfirmationDate Date
		TimeSpentHours   Hours
	}
)

// ParseAllowanceLevel maps stored values onto a level; blank is LevelNone.
func ParseAllowanceLevel(s string) (AllowanceLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return LevelNone, nil
	case "low":
		return LevelLow, nil
	case "high":
		return LevelHigh, nil
	default:
		return "", fmt.Errorf("invalid allowance level %q", s)
	}
}

// InReceipt reports whether the client currently receives a confirmed level.
func (s AttendanceAllowanceState) InReceipt() bool {
	return s.Status == LevelLow || s.Status == LevelHigh
}

// Confirmed reports whether a confirmation event exists.
func (s AttendanceAllowanceState) Confirmed() bool {
	return s.InReceipt() && !s.ConfirmationDate.IsEmpty()
}

func (s AttendanceAllowanceState) ConfirmedHigh() bool {
	return s.Status == LevelHigh
}

func (s AttendanceAllowanceState) RequestedHigh() bool {
	return s.RequestedLevel == LevelHigh
}
