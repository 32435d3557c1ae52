package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/domain"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/export"
)

// NewRecalculateCmd rescores a league from its stored results.
func NewRecalculateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "recalculate <league-id>",
		Short: "Rescore every participant of a league and print the leaderboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			d, err := buildDeps(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer d.Close()

			lb, err := d.service.Recalculate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printLeaderboard(cmd.OutOrStdout(), lb)
		},
	}
}

// NewExportCmd writes a league leaderboard as an XLSX workbook.
func NewExportCmd(configPath *string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <league-id>",
		Short: "Export a league leaderboard to XLSX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			d, err := buildDeps(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer d.Close()

			lb, err := d.service.Leaderboard(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := export.WriteLeaderboardXLSX(f, lb); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "leaderboard.xlsx", "output file")
	return cmd
}

func printLeaderboard(w io.Writer, lb domain.Leaderboard) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tTEAM\tSCORE\tTIEBREAK")
	for _, e := range lb.Entries {
		diff := "-"
		if e.TiebreakDiff != nil {
			diff = fmt.Sprint(*e.TiebreakDiff)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", e.Rank, e.TeamName, e.Score, diff)
	}
	return tw.Flush()
}
