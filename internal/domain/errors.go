package domain

import "errors"

var (
	// ErrContestNotFound is returned when a contest id resolves to nothing.
	ErrContestNotFound = errors.New("contest not found")
	// ErrQuestionNotFound indicates a submitted question id is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrUserNotFound indicates the referenced user record does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrSessionNotFound indicates the referenced session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrAnswerNotFound is returned when a student submits without ever saving.
	ErrAnswerNotFound = errors.New("answer sheet not found")
	// ErrInvalidState means the operation is illegal for the contest's status.
	ErrInvalidState = errors.New("operation not allowed in current contest state")
	// ErrInvalidInput flags a malformed creation or mutation payload.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadySubmitted guards the one-way isSubmitted transition.
	ErrAlreadySubmitted = errors.New("answers already submitted")
	// ErrAlreadyPending is returned for a duplicate rejoin request.
	ErrAlreadyPending = errors.New("rejoin request already pending")
	// ErrUnauthenticated covers missing, expired, or superseded credentials.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden covers role violations on authenticated requests.
	ErrForbidden = errors.New("forbidden")
)
