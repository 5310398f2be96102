package tickets

import (
	"strings"
	"unicode/utf8"

	"github.com/imrishuroy/go-helpdesk-tickets/internal/apperrors"
)

// Field bounds, counted in characters after trimming surrounding whitespace.
const (
	TitleMinLen       = 3
	TitleMaxLen       = 120
	DescriptionMinLen = 5
	DescriptionMaxLen = 2000
)

// allowedTransitions is the whole state machine: forward only, one step at a
// time, RESOLVED is terminal.
var allowedTransitions = map[Status]Status{
	StatusOpen:       StatusInProgress,
	StatusInProgress: StatusResolved,
}

// ValidateTitle checks the title length bounds.
func ValidateTitle(text string) error {
	return checkLength("title", text, TitleMinLen, TitleMaxLen)
}

// ValidateDescription checks the description length bounds.
func ValidateDescription(text string) error {
	return checkLength("description", text, DescriptionMinLen, DescriptionMaxLen)
}

func checkLength(field, text string, min, max int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	if n < min {
		return apperrors.Newf(apperrors.KindInvalidInput, "%s is required and must be at least %d characters", field, min)
	}
	if n > max {
		return apperrors.Newf(apperrors.KindInvalidInput, "%s must be at most %d characters", field, max)
	}
	return nil
}

// IsValidStatus reports whether value names one of the ticket statuses.
func IsValidStatus(value string) bool {
	switch Status(value) {
	case StatusOpen, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	_, ok := allowedTransitions[s]
	return !ok
}

// CheckTransition fails with IllegalTransition unless next is the single
// forward step from current.
func CheckTransition(current, next Status) error {
	if to, ok := allowedTransitions[current]; ok && to == next {
		return nil
	}
	return apperrors.Newf(apperrors.KindIllegalTransition, "invalid transition %s -> %s", current, next)
}
