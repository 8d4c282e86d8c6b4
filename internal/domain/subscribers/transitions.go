package subscribers

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid status transition")

type transition struct {
	From Status
	To   Status
}

// Administrative transitions. Payment events bypass this table: a confirmed
// payment always activates.
var validTransitions = map[transition]bool{
	{StatusPending, StatusActive}:     true, // approval
	{StatusPending, StatusRejected}:   true,
	{StatusActive, StatusSuspended}:   true,
	{StatusActive, StatusRejected}:    true,
	{StatusSuspended, StatusActive}:   true, // reactivation
	{StatusSuspended, StatusRejected}: true,
	{StatusRejected, StatusActive}:    true, // admin override
}

// CanTransition allows same-status updates so a note can be edited in place.
func CanTransition(from, to Status) bool {
	if !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	return validTransitions[transition{from, to}]
}

func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// DefaultNote is stored when an admin blocks a subscriber without writing a note.
func DefaultNote(to Status) string {
	return "Status alterado para " + string(to)
}
