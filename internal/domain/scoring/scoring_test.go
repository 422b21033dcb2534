package scoring_test

import (
	"math"
	"testing"

	model "github.com/Avasam/Global-speedrunning-leaderboard/internal/domain/model"
	scoring "github.com/Avasam/Global-speedrunning-leaderboard/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func board(metrics ...float64) model.Leaderboard {
	entries := make([]model.RankedEntry, 0, len(metrics))
	for i, m := range metrics {
		entries = append(entries, model.RankedEntry{Place: i + 1, Metric: m, PlayerIDs: []string{"p" + string(rune('a'+i))}})
	}
	return model.NewLeaderboard(entries)
}

func TestDeviationModel_Points(t *testing.T) {
	Convey("Given the default deviation model", t, func() {
		m := scoring.NewDeviationModel()

		Convey("When the leaderboard is empty or below the minimum size", func() {
			Convey("Then no points are awarded", func() {
				So(m.Points(model.Leaderboard{}, 10), ShouldEqual, 0)
				So(m.Points(board(10, 20), 10), ShouldEqual, 0)
			})
		})

		Convey("When every metric is identical", func() {
			Convey("Then there is no spread and no points", func() {
				So(m.Points(board(42, 42, 42, 42), 42), ShouldEqual, 0)
				So(m.Points(board(42, 42, 42, 42), 1), ShouldEqual, 0)
			})
		})

		Convey("When the leaderboard ranks higher scores first", func() {
			Convey("Then it is treated as a score board", func() {
				So(m.Points(board(30, 20, 10), 5), ShouldEqual, 0)
				So(m.Points(board(30, 30, 20, 20), 5), ShouldEqual, 0)
				So(m.Points(board(10, 10, 5, 50), 1), ShouldEqual, 0)
			})
		})

		Convey("When the leaderboard is a timed ranking", func() {
			lb := board(10, 20, 30)

			Convey("Then points follow the adjusted deviation formula", func() {
				// mean 20, population std-dev sqrt(200/3), trailing edge 30.
				want := math.Pow(20/(math.Sqrt(200.0/3)+10), 1.5) * 10
				So(m.Points(lb, 10), ShouldAlmostEqual, want, 1e-9)
			})

			Convey("Then repeated calls yield identical points", func() {
				So(m.Points(lb, 12.5), ShouldEqual, m.Points(lb, 12.5))
			})

			Convey("Then a better metric never earns fewer points", func() {
				prev := math.Inf(1)
				for _, metric := range []float64{5, 10, 15, 20, 25, 30, 35} {
					p := m.Points(lb, metric)
					So(p, ShouldBeLessThanOrEqualTo, prev)
					So(p, ShouldBeGreaterThanOrEqualTo, 0)
					prev = p
				}
			})

			Convey("Then an entry at the mean still earns points", func() {
				So(m.Points(lb, 20), ShouldBeGreaterThan, 0)
				So(m.Points(lb, 20), ShouldBeLessThan, m.Points(lb, 10))
			})

			Convey("Then the trailing entry earns nothing", func() {
				So(m.Points(lb, 30), ShouldEqual, 0)
			})
		})

		Convey("When a banned or unranked entry is on the board", func() {
			ranked := []model.RankedEntry{
				{Place: 1, Metric: 10, PlayerIDs: []string{"a"}},
				{Place: 2, Metric: 20, PlayerIDs: []string{"b"}},
				{Place: 3, Metric: 30, PlayerIDs: []string{"c"}},
			}
			withBanned := model.NewLeaderboard(append(append([]model.RankedEntry{}, ranked...),
				model.RankedEntry{Place: 4, Metric: 1000, PlayerIDs: []string{"d", "cheater"}}), "cheater")
			withUnranked := model.NewLeaderboard(append(append([]model.RankedEntry{}, ranked...),
				model.RankedEntry{Place: 0, Metric: 1000, PlayerIDs: []string{"d"}}))

			Convey("Then both are left out of the population alike", func() {
				So(m.Points(withBanned, 10), ShouldBeGreaterThan, 0)
				So(m.Points(withBanned, 10), ShouldEqual, m.Points(withUnranked, 10))
			})
		})

		Convey("When nobody on the board is ranked", func() {
			lb := model.NewLeaderboard([]model.RankedEntry{
				{Place: 0, Metric: 10},
				{Place: 0, Metric: 20},
				{Place: 0, Metric: 30},
			})

			Convey("Then no points are awarded", func() {
				So(m.Points(lb, 1), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a model with custom options", t, func() {
		Convey("When the minimum size is raised", func() {
			m := scoring.NewDeviationModel(scoring.WithMinLeaderboardSize(4))
			So(m.Points(board(10, 20, 30), 10), ShouldEqual, 0)
			So(m.Points(board(10, 20, 30, 40), 10), ShouldBeGreaterThan, 0)
		})

		Convey("When the multiplier is changed", func() {
			lb := board(10, 20, 30)
			base := scoring.NewDeviationModel().Points(lb, 10)
			steep := scoring.NewDeviationModel(scoring.WithDeviationMultiplier(3)).Points(lb, 10)
			So(steep, ShouldBeGreaterThan, base)
		})

		Convey("When invalid values are given", func() {
			m := scoring.NewDeviationModel(scoring.WithMinLeaderboardSize(0), scoring.WithDeviationMultiplier(0.5))
			def := scoring.NewDeviationModel()
			lb := board(10, 20, 30)
			So(m.Points(lb, 10), ShouldEqual, def.Points(lb, 10))
		})
	})
}
