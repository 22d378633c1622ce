package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"mcq-contest-service/internal/docstore"
	"mcq-contest-service/internal/domain"
)

// QuestionSource loads a contest's full question set (with answer keys).
// Implementations may cache; questions are immutable after creation.
type QuestionSource interface {
	ContestQuestions(ctx context.Context, contestID string) ([]domain.Question, error)
}

// Denominator modes for ContestStats.CompletionRate. "questions" preserves
// the legacy semantics (participants / totalQuestions); "students" divides
// participants by the number of active registered students.
const (
	DenominatorQuestions = "questions"
	DenominatorStudents  = "students"
)

// ContestService owns the contest lifecycle: creation, the status state
// machine, the answer ledger, and the scoring and ranking engine.
type ContestService struct {
	store            docstore.Store
	questions        QuestionSource
	now              func() time.Time
	statsDenominator string
}

// ContestOption configures a ContestService.
type ContestOption func(*ContestService)

// WithClock injects a deterministic clock, used by tests.
func WithClock(now func() time.Time) ContestOption {
	return func(s *ContestService) { s.now = now }
}

// WithStatsDenominator selects the CompletionRate denominator mode.
func WithStatsDenominator(mode string) ContestOption {
	return func(s *ContestService) {
		if mode != "" {
			s.statsDenominator = mode
		}
	}
}

func NewContestService(store docstore.Store, questions QuestionSource, opts ...ContestOption) *ContestService {
	s := &ContestService{
		store:            store,
		questions:        questions,
		now:              time.Now,
		statsDenominator: DenominatorQuestions,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QuestionInput is one question in a contest creation payload.
type QuestionInput struct {
	Text          string   `json:"text"`
	ImageURL      string   `json:"imageUrl,omitempty"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Points        int      `json:"points"`
}

// CreateContestInput is the contest creation payload.
type CreateContestInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Duration    int64           `json:"duration"`
	CreatedBy   string          `json:"createdBy,omitempty"`
	Questions   []QuestionInput `json:"questions"`
}

// CreateContest validates the payload, computes the immutable maxScore, and
// writes the draft contest plus all questions in one atomic batch. Readers
// never observe a partial question set.
func (s *ContestService) CreateContest(ctx context.Context, in CreateContestInput) (string, error) {
	if in.Title == "" {
		return "", fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	if !domain.DurationAllowed(in.Duration) {
		return "", fmt.Errorf("%w: duration must be one of %v seconds", domain.ErrInvalidInput, domain.AllowedDurations)
	}
	if len(in.Questions) == 0 {
		return "", fmt.Errorf("%w: contest needs at least one question", domain.ErrInvalidInput)
	}

	maxScore := 0
	for i, q := range in.Questions {
		if len(q.Options) < 2 {
			return "", fmt.Errorf("%w: question %d needs at least two options", domain.ErrInvalidInput, i+1)
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
			return "", fmt.Errorf("%w: question %d correct answer out of range", domain.ErrInvalidInput, i+1)
		}
		if q.Points <= 0 {
			return "", fmt.Errorf("%w: question %d points must be positive", domain.ErrInvalidInput, i+1)
		}
		maxScore += q.Points
	}

	contestID := uuid.NewString()
	now := s.now().Unix()
	contest := domain.Contest{
		ID:             contestID,
		Title:          in.Title,
		Description:    in.Description,
		Duration:       in.Duration,
		Status:         domain.StatusDraft,
		CreatedAt:      now,
		CreatedBy:      in.CreatedBy,
		TotalQuestions: len(in.Questions),
		MaxScore:       maxScore,
	}

	err := s.store.RunBatch(ctx, func(b docstore.Batch) error {
		b.Set(colContests, contestID, contest)
		for i, q := range in.Questions {
			questionID := uuid.NewString()
			b.Set(questionsCol(contestID), questionID, domain.Question{
				ID:            questionID,
				ContestID:     contestID,
				Order:         i + 1,
				Text:          q.Text,
				ImageURL:      q.ImageURL,
				Options:       q.Options,
				CorrectAnswer: q.CorrectAnswer,
				Points:        q.Points,
				CreatedAt:     now,
			})
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("create contest: %w", err)
	}
	return contestID, nil
}

// StartContest moves a draft or scheduled contest to running and stamps
// startTime and endTime. The periodic sweep finalizes the contest once
// endTime passes; no in-process timer is registered.
func (s *ContestService) StartContest(ctx context.Context, contestID string) error {
	contest, err := s.GetContest(ctx, contestID)
	if err != nil {
		return err
	}
	if contest.Status != domain.StatusDraft && contest.Status != domain.StatusScheduled {
		return fmt.Errorf("%w: cannot start %s contest", domain.ErrInvalidState, contest.Status)
	}

	start := s.now().Unix()
	return s.store.Update(ctx, colContests, contestID, map[string]any{
		"status":    domain.StatusRunning,
		"startTime": start,
		"endTime":   start + contest.Duration,
	})
}

// StopContest is the administrative override: it completes the contest at
// the current instant regardless of prior status and finalizes synchronously.
func (s *ContestService) StopContest(ctx context.Context, contestID string) error {
	if _, err := s.GetContest(ctx, contestID); err != nil {
		return err
	}
	err := s.store.Update(ctx, colContests, contestID, map[string]any{
		"status":  domain.StatusCompleted,
		"endTime": s.now().Unix(),
	})
	if err != nil {
		return err
	}
	return s.FinalizeContest(ctx, contestID)
}

// CancelContest terminates a contest that never ran.
func (s *ContestService) CancelContest(ctx context.Context, contestID string) error {
	contest, err := s.GetContest(ctx, contestID)
	if err != nil {
		return err
	}
	if contest.Status != domain.StatusDraft && contest.Status != domain.StatusScheduled {
		return fmt.Errorf("%w: cannot cancel %s contest", domain.ErrInvalidState, contest.Status)
	}
	return s.store.Update(ctx, colContests, contestID, map[string]any{
		"status": domain.StatusCancelled,
	})
}

func (s *ContestService) GetContest(ctx context.Context, contestID string) (domain.Contest, error) {
	var contest domain.Contest
	err := s.store.Get(ctx, colContests, contestID, &contest)
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.Contest{}, domain.ErrContestNotFound
	}
	if err != nil {
		return domain.Contest{}, err
	}
	return contest, nil
}

// ListContests returns contests newest first, optionally filtered by status.
func (s *ContestService) ListContests(ctx context.Context, status domain.ContestStatus) ([]domain.Contest, error) {
	q := docstore.Query{}.OrderBy("createdAt", true)
	if status != "" {
		q = q.Where("status", docstore.OpEq, status)
	}
	var contests []domain.Contest
	if err := s.store.Query(ctx, colContests, q, &contests); err != nil {
		return nil, err
	}
	return contests, nil
}

// GetContestQuestions returns the full question set in order, including
// answer keys. Stripping CorrectAnswer for student-facing callers is the
// responsibility of the boundary layer.
func (s *ContestService) GetContestQuestions(ctx context.Context, contestID string) ([]domain.Question, error) {
	if _, err := s.GetContest(ctx, contestID); err != nil {
		return nil, err
	}
	return s.questions.ContestQuestions(ctx, contestID)
}

// SaveAnswer upserts a single questionID -> selectedIndex pair into the
// student's answer sheet. Last write per question wins; there is no bound on
// re-saves before submission.
func (s *ContestService) SaveAnswer(ctx context.Context, userID, contestID, questionID string, selected int) error {
	contest, err := s.GetContest(ctx, contestID)
	if err != nil {
		return err
	}
	if contest.Status != domain.StatusRunning {
		return fmt.Errorf("%w: contest is not running", domain.ErrInvalidState)
	}

	questions, err := s.questions.ContestQuestions(ctx, contestID)
	if err != nil {
		return err
	}
	var question *domain.Question
	for i := range questions {
		if questions[i].ID == questionID {
			question = &questions[i]
			break
		}
	}
	if question == nil {
		return domain.ErrQuestionNotFound
	}
	if selected < 0 || selected >= len(question.Options) {
		return fmt.Errorf("%w: selected option out of range", domain.ErrInvalidInput)
	}

	now := s.now().Unix()
	var sheet domain.Answer
	err = s.store.Get(ctx, answersCol(contestID), userID, &sheet)
	if errors.Is(err, docstore.ErrNotFound) {
		return s.store.Set(ctx, answersCol(contestID), userID, domain.Answer{
			UserID:      userID,
			ContestID:   contestID,
			Answers:     map[string]int{questionID: selected},
			LastSaved:   now,
			IsSubmitted: false,
			TimeSpent:   0,
		})
	}
	if err != nil {
		return err
	}
	if sheet.IsSubmitted {
		return domain.ErrAlreadySubmitted
	}

	merged := make(map[string]int, len(sheet.Answers)+1)
	for k, v := range sheet.Answers {
		merged[k] = v
	}
	merged[questionID] = selected
	return s.store.Update(ctx, answersCol(contestID), userID, map[string]any{
		"answers":   merged,
		"lastSaved": now,
	})
}

// SubmitAnswers flips the sheet's isSubmitted flag exactly once and derives
// timeSpent from the contest start. A second submit is an error.
func (s *ContestService) SubmitAnswers(ctx context.Context, userID, contestID string) error {
	contest, err := s.GetContest(ctx, contestID)
	if err != nil {
		return err
	}

	var sheet domain.Answer
	err = s.store.Get(ctx, answersCol(contestID), userID, &sheet)
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.ErrAnswerNotFound
	}
	if err != nil {
		return err
	}
	if sheet.IsSubmitted {
		return domain.ErrAlreadySubmitted
	}

	now := s.now().Unix()
	var timeSpent int64
	if contest.StartTime > 0 && now > contest.StartTime {
		timeSpent = now - contest.StartTime
	}
	return s.store.Update(ctx, answersCol(contestID), userID, map[string]any{
		"isSubmitted": true,
		"submittedAt": now,
		"timeSpent":   timeSpent,
	})
}

// AutoSubmitPending marks every unsubmitted answer sheet under the contest
// as submitted in one batch. It returns the number of sheets flipped.
// Auto-submitted sheets are charged the full contest window as timeSpent, so
// a non-submitter never out-ranks an equal-score manual submitter on the
// faster-wins tie-break.
func (s *ContestService) AutoSubmitPending(ctx context.Context, contestID string) (int, error) {
	contest, err := s.GetContest(ctx, contestID)
	if err != nil {
		return 0, err
	}

	var pending []domain.Answer
	q := docstore.Query{}.Where("isSubmitted", docstore.OpEq, false)
	if err := s.store.Query(ctx, answersCol(contestID), q, &pending); err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	var timeSpent int64
	if contest.StartTime > 0 && contest.EndTime > contest.StartTime {
		timeSpent = contest.EndTime - contest.StartTime
	}
	now := s.now().Unix()
	err = s.store.RunBatch(ctx, func(b docstore.Batch) error {
		for _, sheet := range pending {
			b.Update(answersCol(contestID), sheet.UserID, map[string]any{
				"isSubmitted":   true,
				"submittedAt":   now,
				"timeSpent":     timeSpent,
				"autoSubmitted": true,
			})
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("auto-submit contest %s: %w", contestID, err)
	}
	return len(pending), nil
}

// FinalizeContest auto-submits any pending sheets, scores every answer sheet
// under the contest, ranks the results, persists them in one atomic batch,
// and completes the contest. Every path into completed goes through here, so
// no sheet is left unsubmitted after finalization. Sheets whose owning user
// no longer exists are skipped.
func (s *ContestService) FinalizeContest(ctx context.Context, contestID string) error {
	contest, err := s.GetContest(ctx, contestID)
	if err != nil {
		return err
	}
	questions, err := s.questions.ContestQuestions(ctx, contestID)
	if err != nil {
		return err
	}
	if _, err := s.AutoSubmitPending(ctx, contestID); err != nil {
		return err
	}

	var sheets []domain.Answer
	if err := s.store.Query(ctx, answersCol(contestID), docstore.Query{}, &sheets); err != nil {
		return err
	}

	now := s.now().Unix()
	results := make([]domain.Result, 0, len(sheets))
	for _, sheet := range sheets {
		var user domain.User
		err := s.store.Get(ctx, colUsers, sheet.UserID, &user)
		if errors.Is(err, docstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}

		score := 0
		details := make(map[string]domain.AnswerDetail, len(questions))
		for _, question := range questions {
			selected, answered := sheet.Answers[question.ID]
			if !answered {
				selected = -1
			}
			isCorrect := selected == question.CorrectAnswer
			points := 0
			if isCorrect {
				points = question.Points
			}
			score += points
			details[question.ID] = domain.AnswerDetail{
				QuestionID:     question.ID,
				SelectedAnswer: selected,
				CorrectAnswer:  question.CorrectAnswer,
				IsCorrect:      isCorrect,
				Points:         points,
			}
		}

		percentage := 0.0
		if contest.MaxScore > 0 {
			percentage = float64(score) / float64(contest.MaxScore) * 100
		}
		submittedAt := sheet.SubmittedAt
		if submittedAt == 0 {
			submittedAt = now
		}
		results = append(results, domain.Result{
			UserID:         sheet.UserID,
			ContestID:      contestID,
			Username:       user.Username,
			Score:          score,
			TotalQuestions: len(questions),
			Percentage:     percentage,
			TimeTaken:      sheet.TimeSpent,
			SubmittedAt:    submittedAt,
			Answers:        details,
		})
	}

	sortResults(results)
	for i := range results {
		results[i].Rank = i + 1
	}

	err = s.store.RunBatch(ctx, func(b docstore.Batch) error {
		for _, r := range results {
			b.Set(resultsCol(contestID), r.UserID, r)
		}
		// rank is only known after the full sort, hence the second pass
		for _, r := range results {
			b.Update(resultsCol(contestID), r.UserID, map[string]any{"rank": r.Rank})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist results for contest %s: %w", contestID, err)
	}

	return s.store.Update(ctx, colContests, contestID, map[string]any{
		"status": domain.StatusCompleted,
	})
}

func sortResults(results []domain.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		// faster completion wins ties
		return results[i].TimeTaken < results[j].TimeTaken
	})
}

// GetContestResults reads the ranked leaderboard. Rank is re-derived from
// the read order rather than trusted from the stored field.
func (s *ContestService) GetContestResults(ctx context.Context, contestID string) ([]domain.Result, error) {
	if _, err := s.GetContest(ctx, contestID); err != nil {
		return nil, err
	}
	q := docstore.Query{}.OrderBy("score", true).OrderBy("timeTaken", false)
	var results []domain.Result
	if err := s.store.Query(ctx, resultsCol(contestID), q, &results); err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

// GetStudentResults returns one student's results across all contests,
// newest first, via a collection-group query.
func (s *ContestService) GetStudentResults(ctx context.Context, userID string) ([]domain.Result, error) {
	q := docstore.Query{}.
		Where("userId", docstore.OpEq, userID).
		OrderBy("submittedAt", true)
	var results []domain.Result
	if err := s.store.QueryGroup(ctx, leafResults, q, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// GetContestStats aggregates the results list. With no results every field
// is zero.
func (s *ContestService) GetContestStats(ctx context.Context, contestID string) (domain.ContestStats, error) {
	results, err := s.GetContestResults(ctx, contestID)
	if err != nil {
		return domain.ContestStats{}, err
	}
	if len(results) == 0 {
		return domain.ContestStats{}, nil
	}

	contest, err := s.GetContest(ctx, contestID)
	if err != nil {
		return domain.ContestStats{}, err
	}

	total := 0
	highest := results[0].Score
	lowest := results[0].Score
	for _, r := range results {
		total += r.Score
		if r.Score > highest {
			highest = r.Score
		}
		if r.Score < lowest {
			lowest = r.Score
		}
	}

	stats := domain.ContestStats{
		TotalParticipants: len(results),
		AverageScore:      float64(total) / float64(len(results)),
		HighestScore:      highest,
		LowestScore:       lowest,
	}

	switch s.statsDenominator {
	case DenominatorStudents:
		var students []domain.User
		q := docstore.Query{}.
			Where("role", docstore.OpEq, domain.RoleStudent).
			Where("isActive", docstore.OpEq, true)
		if err := s.store.Query(ctx, colUsers, q, &students); err != nil {
			return domain.ContestStats{}, err
		}
		if len(students) > 0 {
			stats.CompletionRate = float64(len(results)) / float64(len(students)) * 100
		}
	default:
		// legacy denominator, kept for parity with the original reports
		denominator := contest.TotalQuestions
		if denominator == 0 {
			denominator = 1
		}
		stats.CompletionRate = float64(len(results)) / float64(denominator) * 100
	}
	return stats, nil
}

// StoreQuestionLoader reads a contest's questions straight from the
// document store, ordered densely. Wrap it in a caching QuestionSource for
// the hot paths.
type StoreQuestionLoader struct {
	store docstore.Store
}

func NewStoreQuestionLoader(store docstore.Store) *StoreQuestionLoader {
	return &StoreQuestionLoader{store: store}
}

func (l *StoreQuestionLoader) LoadQuestions(ctx context.Context, contestID string) ([]domain.Question, error) {
	q := docstore.Query{}.OrderBy("order", false)
	var questions []domain.Question
	if err := l.store.Query(ctx, questionsCol(contestID), q, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// ContestQuestions lets the loader serve directly as a QuestionSource when
// no cache is wired.
func (l *StoreQuestionLoader) ContestQuestions(ctx context.Context, contestID string) ([]domain.Question, error) {
	return l.LoadQuestions(ctx, contestID)
}
