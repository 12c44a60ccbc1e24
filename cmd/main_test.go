package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	app "github.com/okian/tiebreak/internal/app"
	"github.com/okian/tiebreak/internal/config"
	"github.com/okian/tiebreak/internal/domain/tiebreak"
	"github.com/okian/tiebreak/internal/domain/types"
	"github.com/okian/tiebreak/pkg/logger"
)

const clubFile = `
name = "Club"
pairing_system = "berger"

[[players]]
id = 1
name = "Alice"
  [[players.rounds]]
  opponent = 2
  result = "win"
  color = "white"

[[players]]
id = 2
name = "Bob"
  [[players.rounds]]
  opponent = 1
  result = "loss"
  color = "black"
`

const swissFile = `
name = "Rapid"
pairing_system = "swiss"

[[players]]
id = 1
name = "Alice"
  [[players.rounds]]
  opponent = 2
  result = "draw"
  color = "black"

[[players]]
id = 2
name = "Bob"
  [[players.rounds]]
  opponent = 1
  result = "draw"
  color = "white"

[[tie_breaks]]
name = "games_played_with_black"
lower_is_better = true
`

func TestBuildEvaluator(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		cfg := config.New()

		convey.Convey("Then the evaluator follows the configured order", func() {
			e, err := buildEvaluator(tiebreak.NewRegistry(), cfg)
			convey.So(err, convey.ShouldBeNil)
			convey.So(e.Names(), convey.ShouldResemble, []string{"buchholz", "wins", "games_won_with_black", "progressive_scores"})
		})

		convey.Convey("When a tie-break name is unknown", func() {
			cfg.TieBreaks = []config.TieBreak{{Name: "sonneborn"}}
			_, err := buildEvaluator(tiebreak.NewRegistry(), cfg)

			convey.Convey("Then compilation fails", func() {
				convey.So(errors.Is(err, tiebreak.ErrUnknownCriterion), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a Buchholz cut is configured", func() {
			cfg.TieBreaks = []config.TieBreak{{Name: "buchholz", Cut: 1}}
			_, err := buildEvaluator(tiebreak.NewRegistry(), cfg)

			convey.Convey("Then startup is refused before any standings are read", func() {
				convey.So(errors.Is(err, tiebreak.ErrUnsupportedVariant), convey.ShouldBeTrue)
			})
		})
	})
}

func TestWiring(t *testing.T) {
	convey.Convey("Given a directory with a round robin and a Swiss event", t, func() {
		convey.So(logger.Init(logger.WithWriter(io.Discard)), convey.ShouldBeNil)
		dir := t.TempDir()
		convey.So(os.WriteFile(filepath.Join(dir, "club.toml"), []byte(clubFile), 0o600), convey.ShouldBeNil)
		convey.So(os.WriteFile(filepath.Join(dir, "rapid.toml"), []byte(swissFile), 0o600), convey.ShouldBeNil)

		ctx := context.Background()
		cfg := config.New()
		cfg.TournamentsDir = dir
		cfg.WorkerCount = 2

		registry := tiebreak.NewRegistry()
		e, err := buildEvaluator(registry, cfg)
		convey.So(err, convey.ShouldBeNil)
		svc := app.New(app.WithRegistry(registry), app.WithEvaluator(e), app.WithWorkerCount(cfg.WorkerCount))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() {
			sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			svc.Stop(sctx)
		}()

		convey.So(loadTournaments(ctx, svc, dir), convey.ShouldBeNil)
		srv := httptest.NewServer(newHandler(ctx, svc, cfg))
		defer srv.Close()

		convey.Convey("When the standings are requested over HTTP", func() {
			resp, err := http.Get(srv.URL + "/tournaments/club/standings")
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()

			var entries []types.Entry
			convey.So(json.NewDecoder(resp.Body).Decode(&entries), convey.ShouldBeNil)

			convey.Convey("Then the loaded tournament is ranked", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				convey.So(len(entries), convey.ShouldEqual, 2)
				convey.So(entries[0].Name, convey.ShouldEqual, "Alice")
				convey.So(entries[0].MaxRound, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the Swiss standings are requested", func() {
			resp, err := http.Get(srv.URL + "/tournaments/rapid/standings")
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()

			var entries []types.Entry
			convey.So(json.NewDecoder(resp.Body).Decode(&entries), convey.ShouldBeNil)

			convey.Convey("Then the file's own order ranks Bob, who played white, first", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				convey.So(len(entries), convey.ShouldEqual, 2)
				convey.So(entries[0].Name, convey.ShouldEqual, "Bob")
				convey.So(entries[0].TieBreaks, convey.ShouldResemble, []float64{0})
				convey.So(entries[1].Rank, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the directory is missing tournaments", func() {
			convey.So(loadTournaments(ctx, svc, ""), convey.ShouldBeNil)
		})
	})
}
