package engine

import (
	"errors"
	"fmt"
)

// Precondition errors returned by Engine operations. None of them change
// engine or player state.
var (
	ErrNoNPC            = errors.New("no NPC given")
	ErrUnknownNPC       = errors.New("unknown NPC")
	ErrNoDialogueID     = errors.New("no dialogue given")
	ErrUnknownDialogue  = errors.New("unknown dialogue")
	ErrEmptyDialogue    = errors.New("dialogue has no lines")
	ErrAlreadyActive    = errors.New("a conversation is already active")
	ErrNoDialogue       = errors.New("no eligible dialogue")
	ErrNotActive        = errors.New("no conversation is active")
	ErrAwaitingChoice   = errors.New("current line has choices; make a choice instead")
	ErrNoChoices        = errors.New("current line has no choices")
	ErrChoiceOutOfRange = errors.New("choice index out of range")
	ErrDialogueGone     = errors.New("active dialogue is no longer available")

	// ErrReentrant marks an operation called from an event handler while
	// the engine was publishing. It always wraps ErrAlreadyActive or
	// ErrNotActive as well.
	ErrReentrant = errors.New("called from an event handler")
)

var reasonCodes = map[error]string{
	ErrNoNPC:            "no_npc",
	ErrUnknownNPC:       "unknown_npc",
	ErrNoDialogueID:     "no_dialogue_id",
	ErrUnknownDialogue:  "unknown_dialogue",
	ErrEmptyDialogue:    "empty_dialogue",
	ErrAlreadyActive:    "already_active",
	ErrNoDialogue:       "no_eligible_dialogue",
	ErrNotActive:        "not_active",
	ErrAwaitingChoice:   "awaiting_choice",
	ErrNoChoices:        "no_choices",
	ErrChoiceOutOfRange: "choice_out_of_range",
	ErrDialogueGone:     "dialogue_gone",
}

func reentrant(err error) error {
	return fmt.Errorf("%w: %w", ErrReentrant, err)
}

// reasonCode returns a short metric label for a precondition error.
func reasonCode(err error) string {
	if errors.Is(err, ErrReentrant) {
		return "reentrant"
	}
	for sentinel, code := range reasonCodes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return "other"
}
