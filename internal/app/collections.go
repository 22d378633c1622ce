package app

// Collection layout mirrors the document hierarchy: contest-owned documents
// live in sub-collections under their contest so collection-group queries
// can span them.
const (
	colContests = "contests"
	colUsers    = "users"
	colSessions = "sessions"

	leafQuestions = "questions"
	leafAnswers   = "answers"
	leafResults   = "results"
	leafRejoin    = "rejoin_requests"
)

func questionsCol(contestID string) string {
	return colContests + "/" + contestID + "/" + leafQuestions
}

func answersCol(contestID string) string {
	return colContests + "/" + contestID + "/" + leafAnswers
}

func resultsCol(contestID string) string {
	return colContests + "/" + contestID + "/" + leafResults
}

func rejoinCol(contestID string) string {
	return colContests + "/" + contestID + "/" + leafRejoin
}
