package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mcq-contest-service/internal/app"
	"mcq-contest-service/internal/domain"
	"mcq-contest-service/internal/infra/memory"
)

type apiFixture struct {
	server  *httptest.Server
	auth    *app.AuthService
	store   *memory.DocStore
	adminID string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := memory.NewDocStore()
	auth := app.NewAuthService(store, memory.NewAuthCache(30*time.Second), time.Hour)
	contests := app.NewContestService(store, app.NewStoreQuestionLoader(store))
	rejoin := app.NewRejoinService(store, auth)

	admin, err := auth.Register(context.Background(), app.RegisterInput{
		Username: "admin",
		Password: "admin-pass-1",
		Role:     domain.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("register admin: %v", err)
	}
	if _, err := auth.Register(context.Background(), app.RegisterInput{
		Username: "alice",
		Password: "student-pass-1",
		Role:     domain.RoleStudent,
	}); err != nil {
		t.Fatalf("register student: %v", err)
	}

	server := httptest.NewServer(NewAPI(auth, contests, rejoin).Router())
	t.Cleanup(server.Close)
	return &apiFixture{server: server, auth: auth, store: store, adminID: admin.ID}
}

func (f *apiFixture) request(t *testing.T, method, path, token string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var envelope map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp, envelope
}

func (f *apiFixture) login(t *testing.T, username, password, role string) string {
	t.Helper()
	resp, envelope := f.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": password,
		"role":     role,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d", username, resp.StatusCode)
	}
	var data struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(envelope["data"], &data); err != nil {
		t.Fatalf("decode login data: %v", err)
	}
	return data.SessionID
}

func TestLoginAndAuthGates(t *testing.T) {
	f := newAPIFixture(t)

	resp, envelope := f.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "admin", "password": "wrong", "role": domain.RoleAdmin,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	var success bool
	if err := json.Unmarshal(envelope["success"], &success); err != nil || success {
		t.Fatalf("expected success=false envelope, got %s", envelope["success"])
	}

	resp, _ = f.request(t, http.MethodGet, "/api/contests", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token must 401, got %d", resp.StatusCode)
	}

	token := f.login(t, "admin", "admin-pass-1", domain.RoleAdmin)
	resp, _ = f.request(t, http.MethodGet, "/api/contests", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRoleGates(t *testing.T) {
	f := newAPIFixture(t)
	student := f.login(t, "alice", "student-pass-1", domain.RoleStudent)
	admin := f.login(t, "admin", "admin-pass-1", domain.RoleAdmin)

	resp, _ := f.request(t, http.MethodPost, "/api/admin/contests", student, map[string]any{"title": "x"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("student on admin route must 403, got %d", resp.StatusCode)
	}
	resp, _ = f.request(t, http.MethodGet, "/api/me/results", admin, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("admin on student route must 403, got %d", resp.StatusCode)
	}
}

func createRunningContest(t *testing.T, f *apiFixture, admin string) string {
	t.Helper()
	resp, envelope := f.request(t, http.MethodPost, "/api/admin/contests", admin, map[string]any{
		"title":    "API Contest",
		"duration": 3600,
		"questions": []map[string]any{
			{"text": "first", "options": []string{"a", "b"}, "correctAnswer": 1, "points": 10},
			{"text": "second", "options": []string{"x", "y"}, "correctAnswer": 0, "points": 5},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create contest: status %d", resp.StatusCode)
	}
	var data struct {
		ContestID string `json:"contestId"`
	}
	if err := json.Unmarshal(envelope["data"], &data); err != nil {
		t.Fatalf("decode contest id: %v", err)
	}
	resp, _ = f.request(t, http.MethodPost, "/api/admin/contests/"+data.ContestID+"/start", admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start contest: status %d", resp.StatusCode)
	}
	return data.ContestID
}

func TestStudentQuestionViewHidesAnswerKey(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.login(t, "admin", "admin-pass-1", domain.RoleAdmin)
	student := f.login(t, "alice", "student-pass-1", domain.RoleStudent)
	contestID := createRunningContest(t, f, admin)

	resp, envelope := f.request(t, http.MethodGet, "/api/contests/"+contestID+"/questions", student, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("questions: status %d", resp.StatusCode)
	}
	var view []map[string]json.RawMessage
	if err := json.Unmarshal(envelope["data"], &view); err != nil {
		t.Fatalf("decode questions: %v", err)
	}
	if len(view) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(view))
	}
	for _, q := range view {
		if _, ok := q["correctAnswer"]; ok {
			t.Fatalf("student view must not carry correctAnswer: %v", q)
		}
	}

	// the admin view keeps the key
	resp, envelope = f.request(t, http.MethodGet, "/api/admin/contests/"+contestID+"/questions", admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin questions: status %d", resp.StatusCode)
	}
	var full []domain.Question
	if err := json.Unmarshal(envelope["data"], &full); err != nil {
		t.Fatalf("decode admin questions: %v", err)
	}
	if full[0].CorrectAnswer != 1 {
		t.Fatalf("admin view must keep the answer key, got %+v", full[0])
	}
}

func TestAnswerSubmitResultFlow(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.login(t, "admin", "admin-pass-1", domain.RoleAdmin)
	student := f.login(t, "alice", "student-pass-1", domain.RoleStudent)
	contestID := createRunningContest(t, f, admin)

	_, envelope := f.request(t, http.MethodGet, "/api/contests/"+contestID+"/questions", student, nil)
	var questions []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(envelope["data"], &questions); err != nil {
		t.Fatalf("decode questions: %v", err)
	}

	resp, _ := f.request(t, http.MethodPost, "/api/contests/"+contestID+"/answers", student, map[string]any{
		"questionId": questions[0].ID, "selected": 1,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save answer: status %d", resp.StatusCode)
	}
	resp, _ = f.request(t, http.MethodPost, "/api/contests/"+contestID+"/submit", student, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: status %d", resp.StatusCode)
	}
	resp, _ = f.request(t, http.MethodPost, "/api/contests/"+contestID+"/submit", student, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("double submit must 400, got %d", resp.StatusCode)
	}

	resp, _ = f.request(t, http.MethodPost, "/api/admin/contests/"+contestID+"/stop", admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop: status %d", resp.StatusCode)
	}

	resp, envelope = f.request(t, http.MethodGet, "/api/me/results", student, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("my results: status %d", resp.StatusCode)
	}
	var results []domain.Result
	if err := json.Unmarshal(envelope["data"], &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(results) != 1 || results[0].Score != 10 || results[0].Rank != 1 {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestUnknownContestMapsTo404(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.login(t, "admin", "admin-pass-1", domain.RoleAdmin)

	resp, _ := f.request(t, http.MethodGet, "/api/contests/no-such-contest", admin, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp, _ = f.request(t, http.MethodPost, "/api/admin/contests/no-such-contest/start", admin, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestRejoinEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.login(t, "admin", "admin-pass-1", domain.RoleAdmin)
	student := f.login(t, "alice", "student-pass-1", domain.RoleStudent)
	contestID := createRunningContest(t, f, admin)

	resp, _ := f.request(t, http.MethodPost, "/api/rejoin/"+contestID, student, map[string]string{"reason": "laptop died"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("request rejoin: status %d", resp.StatusCode)
	}

	resp, envelope := f.request(t, http.MethodGet, "/api/admin/rejoin/pending", admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pending list: status %d", resp.StatusCode)
	}
	var pending []domain.RejoinRequest
	if err := json.Unmarshal(envelope["data"], &pending); err != nil {
		t.Fatalf("decode pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ContestID != contestID {
		t.Fatalf("unexpected pending list: %+v", pending)
	}
	studentID := pending[0].StudentID

	resp, _ = f.request(t, http.MethodPut, "/api/admin/rejoin/"+contestID+"/"+studentID+"/approve", admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: status %d", resp.StatusCode)
	}

	// approval revoked the student's session
	resp, _ = f.request(t, http.MethodGet, "/api/contests", student, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked session must 401, got %d", resp.StatusCode)
	}
}
