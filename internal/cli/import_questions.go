package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	pgstore "github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/infra/postgres"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/questions"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/scoring"
)

// NewImportQuestionsCmd loads YAML question sets into Postgres. With no
// files it imports the embedded default set.
func NewImportQuestionsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import-questions [file.yaml...]",
		Short: "Validate question sets and upsert them into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
				return err
			}

			// "" stands for the embedded default set.
			paths := args
			if len(paths) == 0 {
				paths = []string{""}
			}

			db := pgstore.OpenBun(cfg.Postgres.URL)
			defer db.Close()
			writer := pgstore.NewQuestionWriter(db)

			for _, path := range paths {
				set := questions.Default()
				if path != "" {
					if set, err = questions.LoadFile(path); err != nil {
						return err
					}
				}
				if err := scoring.ValidateQuestions(set); err != nil {
					return fmt.Errorf("%s: %w", set.ID, err)
				}
				if err := writer.Upsert(ctx, set); err != nil {
					return err
				}
				logger.Info("question set imported",
					slog.String("question_set_id", set.ID),
					slog.Int("questions", len(set.Questions)),
				)
			}
			return nil
		},
	}
}
