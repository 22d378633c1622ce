package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"mcq-contest-service/internal/app"
	"mcq-contest-service/internal/docstore"
	"mcq-contest-service/internal/domain"
)

// API is the thin route layer: request/response mapping over the core
// services, a uniform {success, data|error} envelope, and the session and
// role gates.
type API struct {
	auth      *app.AuthService
	contests  *app.ContestService
	rejoin    *app.RejoinService
	heartbeat *Heartbeat
}

func NewAPI(auth *app.AuthService, contests *app.ContestService, rejoin *app.RejoinService) *API {
	return &API{
		auth:      auth,
		contests:  contests,
		rejoin:    rejoin,
		heartbeat: NewHeartbeat(auth),
	}
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws/session", a.heartbeat.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)

			r.Post("/auth/logout", a.handleLogout)
			r.Get("/auth/me", a.handleMe)
			r.Get("/contests", a.handleListContests)
			r.Get("/contests/{contestID}", a.handleGetContest)
			r.Get("/contests/{contestID}/results", a.handleResults)

			r.Group(func(r chi.Router) {
				r.Use(a.requireRole(domain.RoleStudent))
				r.Get("/contests/{contestID}/questions", a.handleStudentQuestions)
				r.Post("/contests/{contestID}/answers", a.handleSaveAnswer)
				r.Post("/contests/{contestID}/submit", a.handleSubmit)
				r.Get("/me/results", a.handleMyResults)
				r.Post("/rejoin/{contestID}", a.handleRequestRejoin)
				r.Get("/rejoin/{contestID}", a.handleRejoinStatus)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(a.requireRole(domain.RoleAdmin))
				r.Post("/users", a.handleRegister)
				r.Post("/contests", a.handleCreateContest)
				r.Post("/contests/{contestID}/start", a.handleStartContest)
				r.Post("/contests/{contestID}/stop", a.handleStopContest)
				r.Post("/contests/{contestID}/cancel", a.handleCancelContest)
				r.Post("/contests/{contestID}/finalize", a.handleFinalizeContest)
				r.Get("/contests/{contestID}/questions", a.handleAdminQuestions)
				r.Get("/contests/{contestID}/stats", a.handleStats)
				r.Get("/rejoin/pending", a.handlePendingRejoin)
				r.Get("/rejoin/{contestID}", a.handleListRejoin)
				r.Put("/rejoin/{contestID}/{studentID}/approve", a.handleApproveRejoin)
				r.Put("/rejoin/{contestID}/{studentID}/reject", a.handleRejectRejoin)
			})
		})
	})
	return r
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	status, message := statusFor(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: message})
}

// statusFor maps core errors onto status codes. Unexpected errors collapse
// to a generic 500 so no internal detail leaks.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrContestNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrAnswerNotFound),
		errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrAlreadySubmitted),
		errors.Is(err, domain.ErrAlreadyPending):
		return http.StatusBadRequest, err.Error()
	default:
		log.Printf("internal error: %v", err)
		return http.StatusInternalServerError, "internal error"
	}
}

type ctxKey int

const authCtxKey ctxKey = iota

func authFrom(r *http.Request) domain.AuthContext {
	actx, _ := r.Context().Value(authCtxKey).(domain.AuthContext)
	return actx
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actx, err := a.auth.VerifySession(r.Context(), bearerToken(r))
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), authCtxKey, actx)))
	})
}

func (a *API) requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authFrom(r).Role != role {
				writeError(w, domain.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.ErrInvalidInput
	}
	return nil
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	user, sessionID, err := a.auth.Login(r.Context(), app.LoginInput{
		Username:  body.Username,
		Password:  body.Password,
		Role:      body.Role,
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"user": user, "sessionId": sessionID})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.auth.Logout(r.Context(), authFrom(r).SessionID); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"message": "logged out"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := a.auth.GetUser(r.Context(), authFrom(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, user)
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body app.RegisterInput
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	user, err := a.auth.Register(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, user)
}

func (a *API) handleCreateContest(w http.ResponseWriter, r *http.Request) {
	var body app.CreateContestInput
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	body.CreatedBy = authFrom(r).UserID
	contestID, err := a.contests.CreateContest(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]string{"contestId": contestID})
}

func (a *API) handleStartContest(w http.ResponseWriter, r *http.Request) {
	a.contestAction(w, r, a.contests.StartContest)
}

func (a *API) handleStopContest(w http.ResponseWriter, r *http.Request) {
	a.contestAction(w, r, a.contests.StopContest)
}

func (a *API) handleCancelContest(w http.ResponseWriter, r *http.Request) {
	a.contestAction(w, r, a.contests.CancelContest)
}

func (a *API) handleFinalizeContest(w http.ResponseWriter, r *http.Request) {
	a.contestAction(w, r, a.contests.FinalizeContest)
}

func (a *API) contestAction(w http.ResponseWriter, r *http.Request, action func(context.Context, string) error) {
	if err := action(r.Context(), chi.URLParam(r, "contestID")); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"message": "ok"})
}

func (a *API) handleListContests(w http.ResponseWriter, r *http.Request) {
	status := domain.ContestStatus(r.URL.Query().Get("status"))
	contests, err := a.contests.ListContests(r.Context(), status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, contests)
}

func (a *API) handleGetContest(w http.ResponseWriter, r *http.Request) {
	contest, err := a.contests.GetContest(r.Context(), chi.URLParam(r, "contestID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, contest)
}

func (a *API) handleAdminQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := a.contests.GetContestQuestions(r.Context(), chi.URLParam(r, "contestID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, questions)
}

// studentQuestion is the student-facing view: the answer key never crosses
// this boundary while a contest is running.
type studentQuestion struct {
	ID       string   `json:"id"`
	Order    int      `json:"order"`
	Text     string   `json:"text"`
	ImageURL string   `json:"imageUrl,omitempty"`
	Options  []string `json:"options"`
	Points   int      `json:"points"`
}

func (a *API) handleStudentQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := a.contests.GetContestQuestions(r.Context(), chi.URLParam(r, "contestID"))
	if err != nil {
		writeError(w, err)
		return
	}
	view := make([]studentQuestion, len(questions))
	for i, q := range questions {
		view[i] = studentQuestion{
			ID:       q.ID,
			Order:    q.Order,
			Text:     q.Text,
			ImageURL: q.ImageURL,
			Options:  q.Options,
			Points:   q.Points,
		}
	}
	writeData(w, http.StatusOK, view)
}

func (a *API) handleSaveAnswer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		QuestionID string `json:"questionId"`
		Selected   int    `json:"selected"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	err := a.contests.SaveAnswer(r.Context(), authFrom(r).UserID, chi.URLParam(r, "contestID"), body.QuestionID, body.Selected)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"message": "saved"})
}

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request) {
	err := a.contests.SubmitAnswers(r.Context(), authFrom(r).UserID, chi.URLParam(r, "contestID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"message": "submitted"})
}

func (a *API) handleResults(w http.ResponseWriter, r *http.Request) {
	results, err := a.contests.GetContestResults(r.Context(), chi.URLParam(r, "contestID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, results)
}

func (a *API) handleMyResults(w http.ResponseWriter, r *http.Request) {
	results, err := a.contests.GetStudentResults(r.Context(), authFrom(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, results)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.contests.GetContestStats(r.Context(), chi.URLParam(r, "contestID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

func (a *API) handleRequestRejoin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	err := a.rejoin.RequestRejoin(r.Context(), authFrom(r).UserID, chi.URLParam(r, "contestID"), body.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"message": "rejoin request submitted"})
}

func (a *API) handleRejoinStatus(w http.ResponseWriter, r *http.Request) {
	request, err := a.rejoin.GetRejoinStatus(r.Context(), chi.URLParam(r, "contestID"), authFrom(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, request)
}

func (a *API) handleListRejoin(w http.ResponseWriter, r *http.Request) {
	status := domain.RejoinStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.RejoinPending
	}
	requests, err := a.rejoin.ListContestRequests(r.Context(), chi.URLParam(r, "contestID"), status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, requests)
}

func (a *API) handlePendingRejoin(w http.ResponseWriter, r *http.Request) {
	requests, err := a.rejoin.ListPendingRequests(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, requests)
}

func (a *API) handleApproveRejoin(w http.ResponseWriter, r *http.Request) {
	err := a.rejoin.ApproveRejoin(r.Context(), chi.URLParam(r, "contestID"), chi.URLParam(r, "studentID"), authFrom(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"message": "rejoin request approved"})
}

func (a *API) handleRejectRejoin(w http.ResponseWriter, r *http.Request) {
	err := a.rejoin.RejectRejoin(r.Context(), chi.URLParam(r, "contestID"), chi.URLParam(r, "studentID"), authFrom(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"message": "rejoin request rejected"})
}
