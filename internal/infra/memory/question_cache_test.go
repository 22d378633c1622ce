package memory

import (
	"context"
	"testing"
	"time"

	"mcq-contest-service/internal/domain"
)

type countingLoader struct {
	calls     int
	questions []domain.Question
}

func (l *countingLoader) LoadQuestions(_ context.Context, contestID string) ([]domain.Question, error) {
	l.calls++
	return l.questions, nil
}

func TestQuestionCacheCaches(t *testing.T) {
	loader := &countingLoader{questions: []domain.Question{
		{ID: "q1", ContestID: "c1", Order: 1, Text: "pick one", Options: []string{"a", "b"}, CorrectAnswer: 0, Points: 5},
	}}
	cache := NewQuestionCache(loader, time.Minute)

	first, err := cache.ContestQuestions(context.Background(), "c1")
	if err != nil {
		t.Fatalf("load questions: %v", err)
	}
	if len(first) != 1 || first[0].ID != "q1" {
		t.Fatalf("unexpected questions: %+v", first)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := cache.ContestQuestions(context.Background(), "c1"); err != nil {
		t.Fatalf("load questions again: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestQuestionCacheExpires(t *testing.T) {
	loader := &countingLoader{questions: []domain.Question{{ID: "q1"}}}
	cache := NewQuestionCache(loader, time.Nanosecond)

	if _, err := cache.ContestQuestions(context.Background(), "c1"); err != nil {
		t.Fatalf("load questions: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := cache.ContestQuestions(context.Background(), "c1"); err != nil {
		t.Fatalf("load questions after expiry: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after expiry, loader calls %d", loader.calls)
	}
}
