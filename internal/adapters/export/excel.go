// Package export renders leaderboards as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/okian/headhunt/internal/domain/leaderboard"
)

// Sheet names of the exported workbook.
const (
	LeaderboardSheet = "Leaderboard"
	SummarySheet     = "Summary"
)

// ContentType is the media type of the exported workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headers = []string{
	"Rank", "Recruiter", "Total Points", "Level", "Proposals",
	"Accepted", "Acceptance Rate", "Current Streak", "Best Streak",
}

// WriteLeaderboard writes entries as an xlsx workbook to w.
func WriteLeaderboard(w io.Writer, entries []leaderboard.Entry, generated time.Time) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", LeaderboardSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeEntries(f, entries); err != nil {
		return err
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	if err := writeSummary(f, entries, generated); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeEntries(f *excelize.File, entries []leaderboard.Entry) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	rateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 10}) // 0.00%
	if err != nil {
		return fmt.Errorf("create rate style: %w", err)
	}

	_ = f.SetColWidth(LeaderboardSheet, "B", "B", 32)
	_ = f.SetColWidth(LeaderboardSheet, "C", "I", 15)

	if err := f.SetSheetRow(LeaderboardSheet, "A1", &headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	_ = f.SetCellStyle(LeaderboardSheet, "A1", "I1", headerStyle)

	for i, e := range entries {
		row := []interface{}{
			e.Rank, e.Email, e.TotalPoints, e.Level, e.TotalProposals,
			e.AcceptedProposals, e.AcceptanceRate, e.CurrentStreak, e.BestStreak,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(LeaderboardSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if len(entries) > 0 {
		_ = f.SetCellStyle(LeaderboardSheet, "G2", fmt.Sprintf("G%d", len(entries)+1), rateStyle)
	}
	return f.SetPanes(LeaderboardSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeSummary(f *excelize.File, entries []leaderboard.Entry, generated time.Time) error {
	var points int64
	var proposals int
	for _, e := range entries {
		points += e.TotalPoints
		proposals += e.TotalProposals
	}
	rows := [][]interface{}{
		{"Generated", generated.UTC().Format(time.RFC3339)},
		{"Ranked recruiters", len(entries)},
		{"Total proposals", proposals},
		{"Total points", points},
	}
	_ = f.SetColWidth(SummarySheet, "A", "A", 22)
	_ = f.SetColWidth(SummarySheet, "B", "B", 28)
	for i, r := range rows {
		if err := f.SetSheetRow(SummarySheet, fmt.Sprintf("A%d", i+1), &r); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	return nil
}
