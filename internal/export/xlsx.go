// Package export writes leaderboards to spreadsheet files.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/domain"
)

const sheetName = "Leaderboard"

var header = []interface{}{"Rank", "Team", "Score", "Tiebreak diff"}

// WriteLeaderboardXLSX writes lb as a single-sheet workbook. Unresolved
// tiebreak distances are left blank.
func WriteLeaderboardXLSX(w io.Writer, lb domain.Leaderboard) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, e := range lb.Entries {
		row := []interface{}{e.Rank, e.TeamName, e.Score}
		if e.TiebreakDiff != nil {
			row = append(row, *e.TiebreakDiff)
		}
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, axis, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
