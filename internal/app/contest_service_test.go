package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"mcq-contest-service/internal/app"
	"mcq-contest-service/internal/domain"
	"mcq-contest-service/internal/infra/memory"
)

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newContestFixture() (*memory.DocStore, *app.ContestService, *testClock) {
	store := memory.NewDocStore()
	clock := &testClock{t: time.Unix(1_700_000_000, 0)}
	svc := app.NewContestService(store, app.NewStoreQuestionLoader(store), app.WithClock(clock.Now))
	return store, svc, clock
}

func seedStudent(t *testing.T, store *memory.DocStore, id, username string) {
	t.Helper()
	err := store.Set(context.Background(), "users", id, domain.User{
		ID:       id,
		Username: username,
		Role:     domain.RoleStudent,
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func twoQuestionInput() app.CreateContestInput {
	return app.CreateContestInput{
		Title:    "Weekly Contest",
		Duration: 3600,
		Questions: []app.QuestionInput{
			{Text: "first", Options: []string{"a", "b", "c"}, CorrectAnswer: 1, Points: 10},
			{Text: "second", Options: []string{"x", "y"}, CorrectAnswer: 0, Points: 10},
		},
	}
}

func TestCreateContestValidation(t *testing.T) {
	_, svc, _ := newContestFixture()
	ctx := context.Background()

	cases := []struct {
		name  string
		input app.CreateContestInput
	}{
		{"missing title", app.CreateContestInput{Duration: 3600, Questions: twoQuestionInput().Questions}},
		{"bad duration", app.CreateContestInput{Title: "t", Duration: 1800, Questions: twoQuestionInput().Questions}},
		{"no questions", app.CreateContestInput{Title: "t", Duration: 3600}},
		{"one option", app.CreateContestInput{Title: "t", Duration: 3600, Questions: []app.QuestionInput{
			{Text: "q", Options: []string{"only"}, CorrectAnswer: 0, Points: 5},
		}}},
		{"answer out of range", app.CreateContestInput{Title: "t", Duration: 3600, Questions: []app.QuestionInput{
			{Text: "q", Options: []string{"a", "b"}, CorrectAnswer: 2, Points: 5},
		}}},
		{"zero points", app.CreateContestInput{Title: "t", Duration: 3600, Questions: []app.QuestionInput{
			{Text: "q", Options: []string{"a", "b"}, CorrectAnswer: 0, Points: 0},
		}}},
	}
	for _, tc := range cases {
		if _, err := svc.CreateContest(ctx, tc.input); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
}

func TestCreateContestRoundTrip(t *testing.T) {
	_, svc, _ := newContestFixture()
	ctx := context.Background()

	contestID, err := svc.CreateContest(ctx, twoQuestionInput())
	if err != nil {
		t.Fatalf("create contest: %v", err)
	}

	contest, err := svc.GetContest(ctx, contestID)
	if err != nil {
		t.Fatalf("get contest: %v", err)
	}
	if contest.Status != domain.StatusDraft {
		t.Fatalf("new contest must be draft, got %s", contest.Status)
	}
	if contest.MaxScore != 20 || contest.TotalQuestions != 2 {
		t.Fatalf("unexpected contest: %+v", contest)
	}

	questions, err := svc.GetContestQuestions(ctx, contestID)
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if len(questions) != 2 || questions[0].Order != 1 || questions[1].Order != 2 {
		t.Fatalf("expected dense order, got %+v", questions)
	}
}

func TestContestLifecycle(t *testing.T) {
	_, svc, clock := newContestFixture()
	ctx := context.Background()

	contestID, err := svc.CreateContest(ctx, twoQuestionInput())
	if err != nil {
		t.Fatalf("create contest: %v", err)
	}

	start := clock.Now().Unix()
	if err := svc.StartContest(ctx, contestID); err != nil {
		t.Fatalf("start contest: %v", err)
	}
	contest, err := svc.GetContest(ctx, contestID)
	if err != nil {
		t.Fatalf("get contest: %v", err)
	}
	if contest.Status != domain.StatusRunning {
		t.Fatalf("expected running, got %s", contest.Status)
	}
	if contest.StartTime != start || contest.EndTime != start+3600 {
		t.Fatalf("unexpected window: start=%d end=%d", contest.StartTime, contest.EndTime)
	}

	if err := svc.StartContest(ctx, contestID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("starting a running contest must fail, got %v", err)
	}
	if err := svc.CancelContest(ctx, contestID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("cancelling a running contest must fail, got %v", err)
	}

	if err := svc.StopContest(ctx, contestID); err != nil {
		t.Fatalf("stop contest: %v", err)
	}
	contest, _ = svc.GetContest(ctx, contestID)
	if contest.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", contest.Status)
	}
}

func TestCancelDraftContest(t *testing.T) {
	_, svc, _ := newContestFixture()
	ctx := context.Background()

	contestID, err := svc.CreateContest(ctx, twoQuestionInput())
	if err != nil {
		t.Fatalf("create contest: %v", err)
	}
	if err := svc.CancelContest(ctx, contestID); err != nil {
		t.Fatalf("cancel contest: %v", err)
	}
	contest, _ := svc.GetContest(ctx, contestID)
	if contest.Status != domain.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", contest.Status)
	}
	if err := svc.StartContest(ctx, contestID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("a cancelled contest must not start, got %v", err)
	}
}

func TestSaveAnswerUpserts(t *testing.T) {
	store, svc, _ := newContestFixture()
	ctx := context.Background()
	seedStudent(t, store, "u1", "alice")

	contestID, _ := svc.CreateContest(ctx, twoQuestionInput())

	questionsBefore := listQuestions(t, svc, ctx, contestID)
	if err := svc.SaveAnswer(ctx, "u1", contestID, questionsBefore[0].ID, 0); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("saving into a draft contest must fail, got %v", err)
	}

	if err := svc.StartContest(ctx, contestID); err != nil {
		t.Fatalf("start contest: %v", err)
	}
	questions := listQuestions(t, svc, ctx, contestID)

	if err := svc.SaveAnswer(ctx, "u1", contestID, questions[0].ID, 0); err != nil {
		t.Fatalf("save answer: %v", err)
	}
	// re-save overwrites the same question
	if err := svc.SaveAnswer(ctx, "u1", contestID, questions[0].ID, 1); err != nil {
		t.Fatalf("re-save answer: %v", err)
	}
	if err := svc.SaveAnswer(ctx, "u1", contestID, questions[1].ID, 0); err != nil {
		t.Fatalf("save second answer: %v", err)
	}

	var sheet domain.Answer
	if err := store.Get(ctx, "contests/"+contestID+"/answers", "u1", &sheet); err != nil {
		t.Fatalf("get sheet: %v", err)
	}
	if len(sheet.Answers) != 2 {
		t.Fatalf("expected 2 entries, got %+v", sheet.Answers)
	}
	if sheet.Answers[questions[0].ID] != 1 {
		t.Fatalf("last save must win, got %d", sheet.Answers[questions[0].ID])
	}

	if err := svc.SaveAnswer(ctx, "u1", contestID, "nope", 0); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
	if err := svc.SaveAnswer(ctx, "u1", contestID, questions[0].ID, 9); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for out-of-range option, got %v", err)
	}
}

func TestSubmitAnswersOnce(t *testing.T) {
	store, svc, clock := newContestFixture()
	ctx := context.Background()
	seedStudent(t, store, "u1", "alice")

	contestID, _ := svc.CreateContest(ctx, twoQuestionInput())
	if err := svc.StartContest(ctx, contestID); err != nil {
		t.Fatalf("start contest: %v", err)
	}
	questions := listQuestions(t, svc, ctx, contestID)

	if err := svc.SubmitAnswers(ctx, "u1", contestID); !errors.Is(err, domain.ErrAnswerNotFound) {
		t.Fatalf("submit without a sheet must fail, got %v", err)
	}

	if err := svc.SaveAnswer(ctx, "u1", contestID, questions[0].ID, 1); err != nil {
		t.Fatalf("save answer: %v", err)
	}
	clock.Advance(10 * time.Minute)
	if err := svc.SubmitAnswers(ctx, "u1", contestID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	var sheet domain.Answer
	if err := store.Get(ctx, "contests/"+contestID+"/answers", "u1", &sheet); err != nil {
		t.Fatalf("get sheet: %v", err)
	}
	if !sheet.IsSubmitted || sheet.TimeSpent != 600 {
		t.Fatalf("unexpected sheet after submit: %+v", sheet)
	}

	if err := svc.SubmitAnswers(ctx, "u1", contestID); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("second submit must fail, got %v", err)
	}
	if err := svc.SaveAnswer(ctx, "u1", contestID, questions[0].ID, 0); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("save after submit must fail, got %v", err)
	}
}

func TestAutoSubmitPending(t *testing.T) {
	store, svc, _ := newContestFixture()
	ctx := context.Background()
	seedStudent(t, store, "u1", "alice")
	seedStudent(t, store, "u2", "bob")

	contestID, _ := svc.CreateContest(ctx, twoQuestionInput())
	if err := svc.StartContest(ctx, contestID); err != nil {
		t.Fatalf("start contest: %v", err)
	}
	questions := listQuestions(t, svc, ctx, contestID)

	if err := svc.SaveAnswer(ctx, "u1", contestID, questions[0].ID, 1); err != nil {
		t.Fatalf("save answer: %v", err)
	}
	if err := svc.SubmitAnswers(ctx, "u1", contestID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.SaveAnswer(ctx, "u2", contestID, questions[0].ID, 0); err != nil {
		t.Fatalf("save answer: %v", err)
	}

	count, err := svc.AutoSubmitPending(ctx, contestID)
	if err != nil {
		t.Fatalf("auto-submit: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 auto-submitted sheet, got %d", count)
	}

	var sheet domain.Answer
	if err := store.Get(ctx, "contests/"+contestID+"/answers", "u2", &sheet); err != nil {
		t.Fatalf("get sheet: %v", err)
	}
	if !sheet.IsSubmitted || !sheet.AutoSubmitted {
		t.Fatalf("expected auto-submitted sheet, got %+v", sheet)
	}

	// second pass finds nothing pending
	count, err = svc.AutoSubmitPending(ctx, contestID)
	if err != nil || count != 0 {
		t.Fatalf("expected idempotent auto-submit, got count=%d err=%v", count, err)
	}
}

func TestAutoSubmitChargesFullWindow(t *testing.T) {
	store, svc, clock := newContestFixture()
	ctx := context.Background()
	seedStudent(t, store, "u1", "alice")
	seedStudent(t, store, "u2", "bob")

	contestID, _ := svc.CreateContest(ctx, twoQuestionInput())
	if err := svc.StartContest(ctx, contestID); err != nil {
		t.Fatalf("start contest: %v", err)
	}
	questions := listQuestions(t, svc, ctx, contestID)

	// alice and bob answer identically; alice submits after 10 minutes,
	// bob never submits
	for _, userID := range []string{"u1", "u2"} {
		if err := svc.SaveAnswer(ctx, userID, contestID, questions[0].ID, 1); err != nil {
			t.Fatalf("save: %v", err)
		}
		if err := svc.SaveAnswer(ctx, userID, contestID, questions[1].ID, 0); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	clock.Advance(10 * time.Minute)
	if err := svc.SubmitAnswers(ctx, "u1", contestID); err != nil {
		t.Fatalf("submit alice: %v", err)
	}

	clock.Advance(50 * time.Minute)
	if err := svc.FinalizeContest(ctx, contestID); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	var sheet domain.Answer
	if err := store.Get(ctx, "contests/"+contestID+"/answers", "u2", &sheet); err != nil {
		t.Fatalf("get sheet: %v", err)
	}
	if !sheet.AutoSubmitted || sheet.TimeSpent != 3600 {
		t.Fatalf("auto-submit must charge the full window, got %+v", sheet)
	}

	// equal scores: the manual submitter was faster and must win the tie
	results, err := svc.GetContestResults(ctx, contestID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if results[0].UserID != "u1" || results[0].TimeTaken != 600 {
		t.Fatalf("unexpected winner: %+v", results[0])
	}
	if results[1].UserID != "u2" || results[1].TimeTaken != 3600 {
		t.Fatalf("unexpected runner-up: %+v", results[1])
	}
}

func TestFinalizeAutoSubmitsPendingSheets(t *testing.T) {
	store, svc, _ := newContestFixture()
	ctx := context.Background()
	seedStudent(t, store, "u1", "alice")

	contestID, _ := svc.CreateContest(ctx, twoQuestionInput())
	if err := svc.StartContest(ctx, contestID); err != nil {
		t.Fatalf("start contest: %v", err)
	}
	questions := listQuestions(t, svc, ctx, contestID)
	if err := svc.SaveAnswer(ctx, "u1", contestID, questions[0].ID, 1); err != nil {
		t.Fatalf("save: %v", err)
	}

	// direct finalize, without stopping or sweeping first
	if err := svc.FinalizeContest(ctx, contestID); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	var sheet domain.Answer
	if err := store.Get(ctx, "contests/"+contestID+"/answers", "u1", &sheet); err != nil {
		t.Fatalf("get sheet: %v", err)
	}
	if !sheet.IsSubmitted || !sheet.AutoSubmitted {
		t.Fatalf("finalize must leave no pending sheets, got %+v", sheet)
	}
}

func TestFinalizeScoresRanksAndTieBreaks(t *testing.T) {
	store, svc, clock := newContestFixture()
	ctx := context.Background()
	seedStudent(t, store, "u1", "alice")
	seedStudent(t, store, "u2", "bob")
	seedStudent(t, store, "u3", "carol")

	contestID, _ := svc.CreateContest(ctx, twoQuestionInput())
	if err := svc.StartContest(ctx, contestID); err != nil {
		t.Fatalf("start contest: %v", err)
	}
	questions := listQuestions(t, svc, ctx, contestID)

	// alice: both correct, slower
	if err := svc.SaveAnswer(ctx, "u1", contestID, questions[0].ID, 1); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := svc.SaveAnswer(ctx, "u1", contestID, questions[1].ID, 0); err != nil {
		t.Fatalf("save: %v", err)
	}
	// bob: both correct, faster
	if err := svc.SaveAnswer(ctx, "u2", contestID, questions[0].ID, 1); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := svc.SaveAnswer(ctx, "u2", contestID, questions[1].ID, 0); err != nil {
		t.Fatalf("save: %v", err)
	}
	// carol: one wrong, one unanswered
	if err := svc.SaveAnswer(ctx, "u3", contestID, questions[0].ID, 0); err != nil {
		t.Fatalf("save: %v", err)
	}

	clock.Advance(5 * time.Minute)
	if err := svc.SubmitAnswers(ctx, "u2", contestID); err != nil {
		t.Fatalf("submit bob: %v", err)
	}
	clock.Advance(5 * time.Minute)
	if err := svc.SubmitAnswers(ctx, "u1", contestID); err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	if err := svc.SubmitAnswers(ctx, "u3", contestID); err != nil {
		t.Fatalf("submit carol: %v", err)
	}

	if err := svc.FinalizeContest(ctx, contestID); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	results, err := svc.GetContestResults(ctx, contestID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	// bob and alice tie on 20 points, bob was faster
	if results[0].UserID != "u2" || results[0].Rank != 1 || results[0].Score != 20 {
		t.Fatalf("unexpected winner: %+v", results[0])
	}
	if results[1].UserID != "u1" || results[1].Rank != 2 {
		t.Fatalf("unexpected runner-up: %+v", results[1])
	}
	if results[2].UserID != "u3" || results[2].Score != 0 {
		t.Fatalf("unexpected third: %+v", results[2])
	}

	carol := results[2]
	if carol.Percentage != 0 {
		t.Fatalf("expected 0%%, got %v", carol.Percentage)
	}
	unanswered := carol.Answers[questions[1].ID]
	if unanswered.SelectedAnswer != -1 || unanswered.IsCorrect {
		t.Fatalf("unanswered question must score as -1, got %+v", unanswered)
	}
	if results[0].Percentage != 100 {
		t.Fatalf("expected 100%%, got %v", results[0].Percentage)
	}

	contest, _ := svc.GetContest(ctx, contestID)
	if contest.Status != domain.StatusCompleted {
		t.Fatalf("finalize must complete the contest, got %s", contest.Status)
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	store, svc, _ := newContestFixture()
	ctx := context.Background()
	seedStudent(t, store, "u1", "alice")

	contestID, _ := svc.CreateContest(ctx, twoQuestionInput())
	if err := svc.StartContest(ctx, contestID); err != nil {
		t.Fatalf("start contest: %v", err)
	}
	questions := listQuestions(t, svc, ctx, contestID)
	if err := svc.SaveAnswer(ctx, "u1", contestID, questions[0].ID, 1); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := svc.FinalizeContest(ctx, contestID); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := svc.FinalizeContest(ctx, contestID); err != nil {
		t.Fatalf("re-finalize: %v", err)
	}

	results, err := svc.GetContestResults(ctx, contestID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(results) != 1 || results[0].Score != 10 || results[0].Rank != 1 {
		t.Fatalf("re-finalize must not duplicate or drift results: %+v", results)
	}
}

func TestFinalizeSkipsOrphanSheets(t *testing.T) {
	store, svc, _ := newContestFixture()
	ctx := context.Background()
	seedStudent(t, store, "u1", "alice")

	contestID, _ := svc.CreateContest(ctx, twoQuestionInput())
	if err := svc.StartContest(ctx, contestID); err != nil {
		t.Fatalf("start contest: %v", err)
	}
	questions := listQuestions(t, svc, ctx, contestID)
	if err := svc.SaveAnswer(ctx, "u1", contestID, questions[0].ID, 1); err != nil {
		t.Fatalf("save: %v", err)
	}

	// a sheet whose user was deleted afterwards
	err := store.Set(ctx, "contests/"+contestID+"/answers", "ghost", domain.Answer{
		UserID:    "ghost",
		ContestID: contestID,
		Answers:   map[string]int{questions[0].ID: 1},
	})
	if err != nil {
		t.Fatalf("seed orphan sheet: %v", err)
	}

	if err := svc.FinalizeContest(ctx, contestID); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	results, _ := svc.GetContestResults(ctx, contestID)
	if len(results) != 1 || results[0].UserID != "u1" {
		t.Fatalf("orphan sheet must be skipped, got %+v", results)
	}
}

func TestGetStudentResultsSpansContests(t *testing.T) {
	store, svc, clock := newContestFixture()
	ctx := context.Background()
	seedStudent(t, store, "u1", "alice")

	for i := 0; i < 2; i++ {
		contestID, _ := svc.CreateContest(ctx, twoQuestionInput())
		if err := svc.StartContest(ctx, contestID); err != nil {
			t.Fatalf("start contest: %v", err)
		}
		questions := listQuestions(t, svc, ctx, contestID)
		if err := svc.SaveAnswer(ctx, "u1", contestID, questions[0].ID, 1); err != nil {
			t.Fatalf("save: %v", err)
		}
		if err := svc.SubmitAnswers(ctx, "u1", contestID); err != nil {
			t.Fatalf("submit: %v", err)
		}
		if err := svc.FinalizeContest(ctx, contestID); err != nil {
			t.Fatalf("finalize: %v", err)
		}
		clock.Advance(time.Hour)
	}

	results, err := svc.GetStudentResults(ctx, "u1")
	if err != nil {
		t.Fatalf("student results: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected results from both contests, got %d", len(results))
	}
	if results[0].SubmittedAt < results[1].SubmittedAt {
		t.Fatalf("expected newest first, got %+v", results)
	}
}

func TestGetContestStats(t *testing.T) {
	store, svc, _ := newContestFixture()
	ctx := context.Background()
	seedStudent(t, store, "u1", "alice")
	seedStudent(t, store, "u2", "bob")

	contestID, _ := svc.CreateContest(ctx, twoQuestionInput())
	if err := svc.StartContest(ctx, contestID); err != nil {
		t.Fatalf("start contest: %v", err)
	}

	stats, err := svc.GetContestStats(ctx, contestID)
	if err != nil {
		t.Fatalf("stats before finalize: %v", err)
	}
	if stats != (domain.ContestStats{}) {
		t.Fatalf("expected zero stats with no results, got %+v", stats)
	}

	questions := listQuestions(t, svc, ctx, contestID)
	if err := svc.SaveAnswer(ctx, "u1", contestID, questions[0].ID, 1); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := svc.SaveAnswer(ctx, "u2", contestID, questions[0].ID, 0); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := svc.FinalizeContest(ctx, contestID); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	stats, err = svc.GetContestStats(ctx, contestID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalParticipants != 2 || stats.HighestScore != 10 || stats.LowestScore != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.AverageScore != 5 {
		t.Fatalf("expected average 5, got %v", stats.AverageScore)
	}
	// legacy denominator: participants / totalQuestions
	if stats.CompletionRate != 100 {
		t.Fatalf("expected completion 100, got %v", stats.CompletionRate)
	}
}

func TestGetContestStatsStudentDenominator(t *testing.T) {
	store := memory.NewDocStore()
	clock := &testClock{t: time.Unix(1_700_000_000, 0)}
	svc := app.NewContestService(store, app.NewStoreQuestionLoader(store),
		app.WithClock(clock.Now),
		app.WithStatsDenominator(app.DenominatorStudents),
	)
	ctx := context.Background()
	seedStudent(t, store, "u1", "alice")
	seedStudent(t, store, "u2", "bob")
	seedStudent(t, store, "u3", "carol")
	seedStudent(t, store, "u4", "dave")

	contestID, _ := svc.CreateContest(ctx, twoQuestionInput())
	if err := svc.StartContest(ctx, contestID); err != nil {
		t.Fatalf("start contest: %v", err)
	}
	questions := listQuestions(t, svc, ctx, contestID)
	if err := svc.SaveAnswer(ctx, "u1", contestID, questions[0].ID, 1); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := svc.FinalizeContest(ctx, contestID); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	stats, err := svc.GetContestStats(ctx, contestID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	// 1 participant out of 4 active students
	if stats.CompletionRate != 25 {
		t.Fatalf("expected completion 25, got %v", stats.CompletionRate)
	}
}

func TestListContestsFiltersByStatus(t *testing.T) {
	_, svc, clock := newContestFixture()
	ctx := context.Background()

	first, _ := svc.CreateContest(ctx, twoQuestionInput())
	clock.Advance(time.Minute)
	second, _ := svc.CreateContest(ctx, twoQuestionInput())
	if err := svc.StartContest(ctx, second); err != nil {
		t.Fatalf("start contest: %v", err)
	}

	all, err := svc.ListContests(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != second {
		t.Fatalf("expected newest first, got %+v", all)
	}

	drafts, err := svc.ListContests(ctx, domain.StatusDraft)
	if err != nil {
		t.Fatalf("list drafts: %v", err)
	}
	if len(drafts) != 1 || drafts[0].ID != first {
		t.Fatalf("unexpected drafts: %+v", drafts)
	}
}

func listQuestions(t *testing.T, svc *app.ContestService, ctx context.Context, contestID string) []domain.Question {
	t.Helper()
	questions, err := svc.GetContestQuestions(ctx, contestID)
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	return questions
}
