package domain

// User roles.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// ContestStatus enumerates the lifecycle states of a contest.
// A contest only moves forward: draft/scheduled -> running -> completed.
// Cancelled is a terminal escape reachable from draft/scheduled only.
type ContestStatus string

const (
	StatusDraft     ContestStatus = "draft"
	StatusScheduled ContestStatus = "scheduled"
	StatusRunning   ContestStatus = "running"
	StatusCompleted ContestStatus = "completed"
	StatusCancelled ContestStatus = "cancelled"
)

// AllowedDurations are the selectable contest durations in seconds.
var AllowedDurations = []int64{3600, 7200}

// User is an identity record. PasswordHash is a bcrypt hash and never
// leaves the service layer.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Role         string `json:"role"`
	Email        string `json:"email,omitempty"`
	PasswordHash string `json:"passwordHash,omitempty"`
	IsActive     bool   `json:"isActive"`
	SessionID    string `json:"sessionId,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
	LastLoginAt  int64  `json:"lastLoginAt,omitempty"`
}

// Session records one authenticated device. At most one session per user
// has IsActive=true at any time.
type Session struct {
	SessionID    string `json:"sessionId"`
	UserID       string `json:"userId"`
	Role         string `json:"role"`
	CreatedAt    int64  `json:"createdAt"`
	LastActivity int64  `json:"lastActivity"`
	IsActive     bool   `json:"isActive"`
	IPAddress    string `json:"ipAddress,omitempty"`
	UserAgent    string `json:"userAgent,omitempty"`
	EndedAt      int64  `json:"endedAt,omitempty"`
}

// Contest is a time-boxed set of MCQ questions. MaxScore is fixed at
// creation; EndTime is stamped exactly once when the contest starts.
// All timestamps are unix seconds.
type Contest struct {
	ID                string        `json:"id"`
	Title             string        `json:"title"`
	Description       string        `json:"description,omitempty"`
	Duration          int64         `json:"duration"`
	Status            ContestStatus `json:"status"`
	StartTime         int64         `json:"startTime,omitempty"`
	EndTime           int64         `json:"endTime,omitempty"`
	CreatedAt         int64         `json:"createdAt"`
	CreatedBy         string        `json:"createdBy,omitempty"`
	TotalQuestions    int           `json:"totalQuestions"`
	MaxScore          int           `json:"maxScore"`
	FinalizationError string        `json:"finalizationError,omitempty"`
}

// Question is immutable after creation. CorrectAnswer is a 0-based index
// into Options and must be stripped before a student-facing response.
type Question struct {
	ID            string   `json:"id"`
	ContestID     string   `json:"contestId"`
	Order         int      `json:"order"`
	Text          string   `json:"text"`
	ImageURL      string   `json:"imageUrl,omitempty"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Points        int      `json:"points"`
	CreatedAt     int64    `json:"createdAt"`
}

// Answer is the per-student scratchpad for one contest. Answers maps
// question id to the selected option index. Once IsSubmitted flips true
// the document is immutable except for system auto-submission.
type Answer struct {
	UserID        string         `json:"userId"`
	ContestID     string         `json:"contestId"`
	Answers       map[string]int `json:"answers"`
	LastSaved     int64          `json:"lastSaved"`
	SubmittedAt   int64          `json:"submittedAt,omitempty"`
	IsSubmitted   bool           `json:"isSubmitted"`
	TimeSpent     int64          `json:"timeSpent"`
	AutoSubmitted bool           `json:"autoSubmitted,omitempty"`
}

// AnswerDetail is the per-question breakdown stored with a result.
type AnswerDetail struct {
	QuestionID     string `json:"questionId"`
	SelectedAnswer int    `json:"selectedAnswer"`
	CorrectAnswer  int    `json:"correctAnswer"`
	IsCorrect      bool   `json:"isCorrect"`
	Points         int    `json:"points"`
}

// Result is the scored outcome for one student in one contest, written once
// by finalization. Rank is dense 1..N, ties broken by lower TimeTaken.
type Result struct {
	UserID         string                  `json:"userId"`
	ContestID      string                  `json:"contestId"`
	Username       string                  `json:"username"`
	Score          int                     `json:"score"`
	TotalQuestions int                     `json:"totalQuestions"`
	Percentage     float64                 `json:"percentage"`
	Rank           int                     `json:"rank,omitempty"`
	TimeTaken      int64                   `json:"timeTaken"`
	SubmittedAt    int64                   `json:"submittedAt"`
	Answers        map[string]AnswerDetail `json:"answers"`
}

// RejoinStatus enumerates the states of a rejoin request.
type RejoinStatus string

const (
	RejoinPending  RejoinStatus = "pending"
	RejoinApproved RejoinStatus = "approved"
	RejoinRejected RejoinStatus = "rejected"
)

// RejoinRequest tracks a student's request to re-enter a running contest
// after their session was forcibly ended. Keyed by student id per contest.
type RejoinRequest struct {
	StudentID   string       `json:"studentId"`
	ContestID   string       `json:"contestId"`
	Reason      string       `json:"reason"`
	Status      RejoinStatus `json:"status"`
	RequestedAt int64        `json:"requestedAt"`
	ApprovedAt  int64        `json:"approvedAt,omitempty"`
	ApprovedBy  string       `json:"approvedBy,omitempty"`
}

// ContestStats is an aggregate view over a contest's results.
type ContestStats struct {
	TotalParticipants int     `json:"totalParticipants"`
	AverageScore      float64 `json:"averageScore"`
	HighestScore      int     `json:"highestScore"`
	LowestScore       int     `json:"lowestScore"`
	CompletionRate    float64 `json:"completionRate"`
}

// AuthContext identifies the caller of an authenticated request.
type AuthContext struct {
	UserID    string `json:"userId"`
	Role      string `json:"role"`
	SessionID string `json:"sessionId"`
}

// DurationAllowed reports whether d is one of the fixed contest durations.
func DurationAllowed(d int64) bool {
	for _, allowed := range AllowedDurations {
		if d == allowed {
			return true
		}
	}
	return false
}
