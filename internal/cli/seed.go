package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"mcq-contest-service/internal/app"
	"mcq-contest-service/internal/config"
	"mcq-contest-service/internal/domain"
)

// NewSeedCmd loads a demo admin, a handful of students, and one draft
// contest into the configured store.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed demo users and a demo contest",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath)
		},
	}
}

func runSeed(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("seed needs a postgres url, the in-memory store does not outlive the process")
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}
	deps, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}

	admin, err := deps.auth.Register(ctx, app.RegisterInput{
		Username: "admin",
		Password: "admin-pass-1",
		Email:    "admin@example.com",
		Role:     domain.RoleAdmin,
	})
	if err != nil {
		return err
	}
	for i := 1; i <= 3; i++ {
		username := fmt.Sprintf("student%d", i)
		if _, err := deps.auth.Register(ctx, app.RegisterInput{
			Username: username,
			Password: fmt.Sprintf("student-pass-%d", i),
			Email:    fmt.Sprintf("%s@example.com", username),
			Role:     domain.RoleStudent,
		}); err != nil {
			return err
		}
	}

	contestID, err := deps.contests.CreateContest(ctx, app.CreateContestInput{
		Title:       "General Knowledge Demo",
		Description: "Seeded contest for local development",
		Duration:    3600,
		CreatedBy:   admin.ID,
		Questions: []app.QuestionInput{
			{
				Text:          "Which planet is known as the red planet?",
				Options:       []string{"Venus", "Mars", "Jupiter", "Mercury"},
				CorrectAnswer: 1,
				Points:        10,
			},
			{
				Text:          "What is the chemical symbol for gold?",
				Options:       []string{"Ag", "Gd", "Au", "Go"},
				CorrectAnswer: 2,
				Points:        10,
			},
			{
				Text:          "How many continents are there?",
				Options:       []string{"five", "six", "seven", "eight"},
				CorrectAnswer: 2,
				Points:        5,
			},
		},
	})
	if err != nil {
		return err
	}
	log.Printf("seeded admin, 3 students, and draft contest %s", contestID)
	return nil
}
