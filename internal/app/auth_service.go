package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"mcq-contest-service/internal/docstore"
	"mcq-contest-service/internal/domain"
)

// AuthCache is an optional read-through cache for verified sessions.
// Entries must expire well inside the inactivity window so deactivations
// propagate. Implementations: in-memory map, Redis.
type AuthCache interface {
	Get(ctx context.Context, sessionID string) (domain.AuthContext, bool)
	Put(ctx context.Context, actx domain.AuthContext)
	Drop(ctx context.Context, sessionID string)
}

// AuthService is the session registry: login, logout, request verification,
// the single-session invariant, and the inactivity sweep.
type AuthService struct {
	store            docstore.Store
	cache            AuthCache
	now              func() time.Time
	inactivityWindow time.Duration
}

func NewAuthService(store docstore.Store, cache AuthCache, inactivityWindow time.Duration) *AuthService {
	return NewAuthServiceWithClock(store, cache, inactivityWindow, time.Now)
}

// NewAuthServiceWithClock injects a deterministic clock for tests.
func NewAuthServiceWithClock(store docstore.Store, cache AuthCache, inactivityWindow time.Duration, now func() time.Time) *AuthService {
	if inactivityWindow <= 0 {
		inactivityWindow = time.Hour
	}
	return &AuthService{store: store, cache: cache, now: now, inactivityWindow: inactivityWindow}
}

// RegisterInput is the account creation payload.
type RegisterInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Email    string `json:"email,omitempty"`
}

// Register creates a user with a bcrypt password hash. Usernames are unique
// per role.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	if in.Username == "" || in.Password == "" {
		return domain.User{}, fmt.Errorf("%w: username and password are required", domain.ErrInvalidInput)
	}
	if in.Role != domain.RoleAdmin && in.Role != domain.RoleStudent {
		return domain.User{}, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, in.Role)
	}
	if len(in.Password) < 8 {
		return domain.User{}, fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidInput)
	}

	var existing []domain.User
	q := docstore.Query{}.
		Where("username", docstore.OpEq, in.Username).
		Where("role", docstore.OpEq, in.Role).
		WithLimit(1)
	if err := s.store.Query(ctx, colUsers, q, &existing); err != nil {
		return domain.User{}, err
	}
	if len(existing) > 0 {
		return domain.User{}, fmt.Errorf("%w: username already taken", domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}
	user := domain.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Role:         in.Role,
		Email:        in.Email,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    s.now().Unix(),
	}
	if err := s.store.Set(ctx, colUsers, user.ID, user); err != nil {
		return domain.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}

// LoginInput carries the credentials plus request metadata recorded on the
// session.
type LoginInput struct {
	Username  string
	Password  string
	Role      string
	IPAddress string
	UserAgent string
}

// Login verifies the credentials and rotates the user's session: a new
// session becomes the only active one, and any prior session is deactivated.
// A second login from another device silently evicts the first.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (domain.User, string, error) {
	var matches []domain.User
	q := docstore.Query{}.
		Where("username", docstore.OpEq, in.Username).
		Where("role", docstore.OpEq, in.Role).
		Where("isActive", docstore.OpEq, true).
		WithLimit(1)
	if err := s.store.Query(ctx, colUsers, q, &matches); err != nil {
		return domain.User{}, "", err
	}
	if len(matches) == 0 {
		return domain.User{}, "", domain.ErrUnauthenticated
	}
	user := matches[0]
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		return domain.User{}, "", domain.ErrUnauthenticated
	}

	now := s.now().Unix()
	sessionID := uuid.NewString()
	session := domain.Session{
		SessionID:    sessionID,
		UserID:       user.ID,
		Role:         user.Role,
		CreatedAt:    now,
		LastActivity: now,
		IsActive:     true,
		IPAddress:    in.IPAddress,
		UserAgent:    in.UserAgent,
	}

	err := s.store.RunBatch(ctx, func(b docstore.Batch) error {
		b.Set(colSessions, sessionID, session)
		b.Update(colUsers, user.ID, map[string]any{
			"sessionId":   sessionID,
			"lastLoginAt": now,
		})
		return nil
	})
	if err != nil {
		return domain.User{}, "", fmt.Errorf("persist session: %w", err)
	}

	if prior := user.SessionID; prior != "" && prior != sessionID {
		s.deactivateSession(ctx, prior)
	}

	user.SessionID = sessionID
	user.LastLoginAt = now
	user.PasswordHash = ""
	return user, sessionID, nil
}

// VerifySession resolves a bearer session id to an AuthContext. It is the
// enforcement point that kicks out a device whose session was superseded,
// expired, or force-ended.
func (s *AuthService) VerifySession(ctx context.Context, sessionID string) (domain.AuthContext, error) {
	if sessionID == "" {
		return domain.AuthContext{}, domain.ErrUnauthenticated
	}

	if s.cache != nil {
		if actx, ok := s.cache.Get(ctx, sessionID); ok {
			s.touch(ctx, sessionID)
			return actx, nil
		}
	}

	var session domain.Session
	err := s.store.Get(ctx, colSessions, sessionID, &session)
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.AuthContext{}, domain.ErrUnauthenticated
	}
	if err != nil {
		return domain.AuthContext{}, err
	}
	if !session.IsActive {
		return domain.AuthContext{}, domain.ErrUnauthenticated
	}

	var user domain.User
	err = s.store.Get(ctx, colUsers, session.UserID, &user)
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.AuthContext{}, domain.ErrUnauthenticated
	}
	if err != nil {
		return domain.AuthContext{}, err
	}
	if !user.IsActive || user.SessionID != sessionID {
		return domain.AuthContext{}, domain.ErrUnauthenticated
	}

	s.touch(ctx, sessionID)
	actx := domain.AuthContext{UserID: user.ID, Role: user.Role, SessionID: sessionID}
	if s.cache != nil {
		s.cache.Put(ctx, actx)
	}
	return actx, nil
}

// TouchActivity refreshes the session's lastActivity stamp (heartbeat path).
func (s *AuthService) TouchActivity(ctx context.Context, sessionID string) error {
	err := s.store.Update(ctx, colSessions, sessionID, map[string]any{
		"lastActivity": s.now().Unix(),
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.ErrSessionNotFound
	}
	return err
}

func (s *AuthService) touch(ctx context.Context, sessionID string) {
	// best-effort; a lost touch only shortens the inactivity window
	_ = s.store.Update(ctx, colSessions, sessionID, map[string]any{
		"lastActivity": s.now().Unix(),
	})
}

// Logout deactivates the session and clears the user's back-reference.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	var session domain.Session
	err := s.store.Get(ctx, colSessions, sessionID, &session)
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return err
	}

	s.deactivateSession(ctx, sessionID)

	var user domain.User
	if err := s.store.Get(ctx, colUsers, session.UserID, &user); err == nil && user.SessionID == sessionID {
		_ = s.store.Update(ctx, colUsers, user.ID, map[string]any{
			"sessionId": docstore.DeleteField,
		})
	}
	return nil
}

// RevokeUserSessions deactivates every active session belonging to the user
// in one batch and clears the user's back-reference. The student's next
// authentication attempt is then treated as a fresh login.
func (s *AuthService) RevokeUserSessions(ctx context.Context, userID string) error {
	var sessions []domain.Session
	q := docstore.Query{}.
		Where("userId", docstore.OpEq, userID).
		Where("isActive", docstore.OpEq, true)
	if err := s.store.Query(ctx, colSessions, q, &sessions); err != nil {
		return err
	}

	now := s.now().Unix()
	err := s.store.RunBatch(ctx, func(b docstore.Batch) error {
		for _, session := range sessions {
			b.Update(colSessions, session.SessionID, map[string]any{
				"isActive": false,
				"endedAt":  now,
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("revoke sessions for user %s: %w", userID, err)
	}

	var user domain.User
	if err := s.store.Get(ctx, colUsers, userID, &user); err == nil && user.SessionID != "" {
		_ = s.store.Update(ctx, colUsers, userID, map[string]any{
			"sessionId": docstore.DeleteField,
		})
	}

	if s.cache != nil {
		for _, session := range sessions {
			s.cache.Drop(ctx, session.SessionID)
		}
	}
	return nil
}

// CleanupExpiredSessions deactivates every active session idle past the
// inactivity window and clears the matching user back-references in one
// batch. Returns the number of sessions swept.
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.inactivityWindow).Unix()
	var stale []domain.Session
	q := docstore.Query{}.
		Where("isActive", docstore.OpEq, true).
		Where("lastActivity", docstore.OpLt, cutoff)
	if err := s.store.Query(ctx, colSessions, q, &stale); err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	now := s.now().Unix()
	swept := make(map[string]string, len(stale)) // userID -> sessionID
	err := s.store.RunBatch(ctx, func(b docstore.Batch) error {
		for _, session := range stale {
			b.Update(colSessions, session.SessionID, map[string]any{
				"isActive": false,
				"endedAt":  now,
			})
			swept[session.UserID] = session.SessionID
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cleanup sessions: %w", err)
	}

	// Clear back-references only where the user still points at a swept
	// session; a superseding login must not lose its newer session id.
	for userID, sessionID := range swept {
		var user domain.User
		if err := s.store.Get(ctx, colUsers, userID, &user); err != nil {
			continue
		}
		if user.SessionID == sessionID {
			_ = s.store.Update(ctx, colUsers, userID, map[string]any{
				"sessionId": docstore.DeleteField,
			})
		}
	}

	if s.cache != nil {
		for _, session := range stale {
			s.cache.Drop(ctx, session.SessionID)
		}
	}
	return len(stale), nil
}

// GetUser returns the identity record without the password hash.
func (s *AuthService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	var user domain.User
	err := s.store.Get(ctx, colUsers, userID, &user)
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *AuthService) deactivateSession(ctx context.Context, sessionID string) {
	err := s.store.Update(ctx, colSessions, sessionID, map[string]any{
		"isActive": false,
		"endedAt":  s.now().Unix(),
	})
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return
	}
	if s.cache != nil {
		s.cache.Drop(ctx, sessionID)
	}
}
