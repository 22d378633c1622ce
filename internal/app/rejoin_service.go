package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mcq-contest-service/internal/docstore"
	"mcq-contest-service/internal/domain"
)

// SessionRevoker ends every active session of a user. Implemented by
// AuthService; rejoin approval uses it to force a fresh login.
type SessionRevoker interface {
	RevokeUserSessions(ctx context.Context, userID string) error
}

// RejoinService runs the per-(student, contest) request/approval state
// machine: none -> pending -> approved | rejected.
type RejoinService struct {
	store   docstore.Store
	revoker SessionRevoker
	now     func() time.Time
}

func NewRejoinService(store docstore.Store, revoker SessionRevoker) *RejoinService {
	return NewRejoinServiceWithClock(store, revoker, time.Now)
}

// NewRejoinServiceWithClock injects a deterministic clock for tests.
func NewRejoinServiceWithClock(store docstore.Store, revoker SessionRevoker, now func() time.Time) *RejoinService {
	return &RejoinService{store: store, revoker: revoker, now: now}
}

// RequestRejoin files a pending request for the student. The contest must be
// running; a still-pending prior request is rejected, while a resolved one
// is overwritten.
func (s *RejoinService) RequestRejoin(ctx context.Context, studentID, contestID, reason string) error {
	var contest domain.Contest
	err := s.store.Get(ctx, colContests, contestID, &contest)
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.ErrContestNotFound
	}
	if err != nil {
		return err
	}
	if contest.Status != domain.StatusRunning {
		return fmt.Errorf("%w: contest is not running", domain.ErrInvalidState)
	}

	var existing domain.RejoinRequest
	err = s.store.Get(ctx, rejoinCol(contestID), studentID, &existing)
	if err == nil && existing.Status == domain.RejoinPending {
		return domain.ErrAlreadyPending
	}
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return err
	}

	if reason == "" {
		reason = "No reason provided"
	}
	return s.store.Set(ctx, rejoinCol(contestID), studentID, domain.RejoinRequest{
		StudentID:   studentID,
		ContestID:   contestID,
		Reason:      reason,
		Status:      domain.RejoinPending,
		RequestedAt: s.now().Unix(),
	})
}

// ApproveRejoin resolves the request and revokes all of the student's
// sessions so their next authentication is treated as a fresh login.
func (s *RejoinService) ApproveRejoin(ctx context.Context, contestID, studentID, approvedBy string) error {
	if err := s.resolve(ctx, contestID, studentID, approvedBy, domain.RejoinApproved); err != nil {
		return err
	}
	return s.revoker.RevokeUserSessions(ctx, studentID)
}

// RejectRejoin resolves the request with no session side effect.
func (s *RejoinService) RejectRejoin(ctx context.Context, contestID, studentID, rejectedBy string) error {
	return s.resolve(ctx, contestID, studentID, rejectedBy, domain.RejoinRejected)
}

func (s *RejoinService) resolve(ctx context.Context, contestID, studentID, adminID string, status domain.RejoinStatus) error {
	var request domain.RejoinRequest
	err := s.store.Get(ctx, rejoinCol(contestID), studentID, &request)
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%w: no rejoin request for student", domain.ErrInvalidInput)
	}
	if err != nil {
		return err
	}
	if request.Status != domain.RejoinPending {
		return fmt.Errorf("%w: request already %s", domain.ErrInvalidState, request.Status)
	}
	return s.store.Update(ctx, rejoinCol(contestID), studentID, map[string]any{
		"status":     status,
		"approvedAt": s.now().Unix(),
		"approvedBy": adminID,
	})
}

// GetRejoinStatus returns the student's request for the contest, if any.
func (s *RejoinService) GetRejoinStatus(ctx context.Context, contestID, studentID string) (domain.RejoinRequest, error) {
	var request domain.RejoinRequest
	err := s.store.Get(ctx, rejoinCol(contestID), studentID, &request)
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.RejoinRequest{}, docstore.ErrNotFound
	}
	return request, err
}

// ListContestRequests returns a contest's rejoin requests newest first,
// optionally filtered by status.
func (s *RejoinService) ListContestRequests(ctx context.Context, contestID string, status domain.RejoinStatus) ([]domain.RejoinRequest, error) {
	q := docstore.Query{}.OrderBy("requestedAt", true)
	if status != "" {
		q = q.Where("status", docstore.OpEq, status)
	}
	var requests []domain.RejoinRequest
	if err := s.store.Query(ctx, rejoinCol(contestID), q, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// ListPendingRequests spans every contest via a collection-group query, for
// the admin review queue.
func (s *RejoinService) ListPendingRequests(ctx context.Context) ([]domain.RejoinRequest, error) {
	q := docstore.Query{}.
		Where("status", docstore.OpEq, domain.RejoinPending).
		OrderBy("requestedAt", true)
	var requests []domain.RejoinRequest
	if err := s.store.QueryGroup(ctx, leafRejoin, q, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}
