package export_test

import (
	"bytes"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/xuri/excelize/v2"

	"github.com/okian/headhunt/internal/adapters/export"
	"github.com/okian/headhunt/internal/domain/leaderboard"
)

func TestWriteLeaderboard(t *testing.T) {
	Convey("Given a ranked leaderboard", t, func() {
		entries := []leaderboard.Entry{
			{Rank: 1, Email: "ada@x.io", TotalPoints: 260, Level: 2, TotalProposals: 4, AcceptedProposals: 2, AcceptanceRate: 0.5, CurrentStreak: 2, BestStreak: 3},
			{Rank: 2, Email: "bob@x.io", TotalPoints: 10, Level: 1, TotalProposals: 1},
		}
		at := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)

		Convey("When it is exported", func() {
			var buf bytes.Buffer
			So(export.WriteLeaderboard(&buf, entries, at), ShouldBeNil)

			f, err := excelize.OpenReader(&buf)
			So(err, ShouldBeNil)
			defer f.Close()

			Convey("Then the leaderboard sheet has a header and one row per recruiter", func() {
				rows, err := f.GetRows(export.LeaderboardSheet)
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 3)
				So(rows[0][1], ShouldEqual, "Recruiter")
				So(rows[1][1], ShouldEqual, "ada@x.io")
				So(rows[2][0], ShouldEqual, "2")

				points, _ := f.GetCellValue(export.LeaderboardSheet, "C2")
				So(points, ShouldEqual, "260")
			})

			Convey("Then the summary totals the board", func() {
				v, _ := f.GetCellValue(export.SummarySheet, "B1")
				So(v, ShouldEqual, "2025-06-01T08:30:00Z")
				v, _ = f.GetCellValue(export.SummarySheet, "B2")
				So(v, ShouldEqual, "2")
				v, _ = f.GetCellValue(export.SummarySheet, "B4")
				So(v, ShouldEqual, "270")
			})
		})

		Convey("When an empty board is exported", func() {
			var buf bytes.Buffer
			So(export.WriteLeaderboard(&buf, nil, at), ShouldBeNil)
			f, err := excelize.OpenReader(&buf)
			So(err, ShouldBeNil)
			rows, _ := f.GetRows(export.LeaderboardSheet)
			So(rows, ShouldHaveLength, 1)
		})
	})
}
