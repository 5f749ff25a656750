package votes

import (
	"errors"
	"net/http"
)

// Domain errors. The message of each is the machine-readable code sent to clients.
var (
	ErrQuestionRequired   = errors.New("question_required")
	ErrOptionsRequired    = errors.New("options_required")
	ErrOptionRequired     = errors.New("option_required")
	ErrInvalidQuestionID  = errors.New("invalid_question_id")
	ErrInvalidOptionID    = errors.New("invalid_option_id")
	ErrInvalidAccountIDs  = errors.New("invalid_account_ids")
	ErrInvalidClosesAt    = errors.New("invalid_closes_at")
	ErrNotEligible        = errors.New("not_eligible")
	ErrQuestionNotFound   = errors.New("question_not_found")
	ErrQuestionInactive   = errors.New("question_inactive")
	ErrQuestionClosed     = errors.New("question_closed")
	ErrOptionNotFound     = errors.New("option_not_found")
	ErrActivationConflict = errors.New("activation_conflict")
)

var statusByErr = map[error]int{
	ErrQuestionRequired:   http.StatusBadRequest,
	ErrOptionsRequired:    http.StatusBadRequest,
	ErrOptionRequired:     http.StatusBadRequest,
	ErrInvalidQuestionID:  http.StatusBadRequest,
	ErrInvalidOptionID:    http.StatusBadRequest,
	ErrInvalidAccountIDs:  http.StatusBadRequest,
	ErrInvalidClosesAt:    http.StatusBadRequest,
	ErrNotEligible:        http.StatusForbidden,
	ErrQuestionNotFound:   http.StatusNotFound,
	ErrOptionNotFound:     http.StatusNotFound,
	ErrQuestionInactive:   http.StatusConflict,
	ErrQuestionClosed:     http.StatusConflict,
	ErrActivationConflict: http.StatusConflict,
}

// Classify maps err to an HTTP status and wire code. ok is false for errors
// that are not domain errors and must be reported as internal.
func Classify(err error) (status int, code string, ok bool) {
	for target, st := range statusByErr {
		if errors.Is(err, target) {
			return st, target.Error(), true
		}
	}
	return http.StatusInternalServerError, "", false
}
