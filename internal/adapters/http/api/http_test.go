package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tiebreak/internal/adapters/http/api"
	"github.com/okian/tiebreak/internal/adapters/repository"
	service "github.com/okian/tiebreak/internal/app"
	"github.com/okian/tiebreak/internal/domain/tiebreak"
	"github.com/okian/tiebreak/internal/domain/types"
)

type call struct {
	tournamentID string
	maxRound     int
	limit        int
	playerID     int
	requestID    string
}

type mockDeps struct {
	entries []types.Entry
	err     error
	last    call
}

func (m *mockDeps) Tournaments(context.Context) []types.TournamentSummary {
	return []types.TournamentSummary{{ID: "club", Name: "Club", PairingSystem: "berger", CurrentRound: 3, Players: 4}}
}

func (m *mockDeps) Standings(_ context.Context, id string, maxRound, limit int) ([]types.Entry, error) {
	m.last = call{tournamentID: id, maxRound: maxRound, limit: limit}
	if m.err != nil {
		return nil, m.err
	}
	if limit < len(m.entries) {
		return m.entries[:limit], nil
	}
	return m.entries, nil
}

func (m *mockDeps) Rank(_ context.Context, id string, maxRound, playerID int) (types.Entry, error) {
	m.last = call{tournamentID: id, maxRound: maxRound, playerID: playerID}
	if m.err != nil {
		return types.Entry{}, m.err
	}
	return m.entries[0], nil
}

func (m *mockDeps) Refresh(_ context.Context, id string, maxRound int, requestID string) (types.RefreshTicket, error) {
	m.last = call{tournamentID: id, maxRound: maxRound, requestID: requestID}
	if m.err != nil {
		return types.RefreshTicket{}, m.err
	}
	return types.RefreshTicket{RequestID: requestID, TournamentID: id, MaxRound: maxRound, Jobs: 4}, nil
}

type mockStatsProvider struct{}

func (mockStatsProvider) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "boards": 1}
}

func newMux(deps *mockDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, mockStatsProvider{}, 3).Register(context.Background(), mux)
	return mux
}

func serve(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func sampleEntries() []types.Entry {
	out := make([]types.Entry, 4)
	for i := range out {
		out[i] = types.Entry{Rank: i + 1, Standing: types.Standing{
			PlayerID: i + 1, Name: fmt.Sprintf("p%d", i+1), MaxRound: 3, Points: float64(4 - i), TieBreaks: []float64{1},
		}}
	}
	return out
}

func TestServer_Routes(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDeps{entries: sampleEntries()}
		mux := newMux(deps)

		Convey("Then /healthz serves Prometheus metrics", func() {
			w := serve(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then /stats serves JSON", func() {
			w := serve(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var body map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body["started"], ShouldEqual, true)
		})

		Convey("Then /tournaments lists summaries", func() {
			w := serve(mux, http.MethodGet, "/tournaments", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"pairing_system":"berger"`)
		})

		Convey("Then unknown paths are 404 and wrong methods 405", func() {
			So(serve(mux, http.MethodGet, "/unknown", "").Code, ShouldEqual, http.StatusNotFound)
			So(serve(mux, http.MethodPost, "/stats", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestStandingsHandler(t *testing.T) {
	Convey("Given the standings endpoint", t, func() {
		deps := &mockDeps{entries: sampleEntries()}
		mux := newMux(deps)

		Convey("When no query is given", func() {
			w := serve(mux, http.MethodGet, "/tournaments/club/standings", "")

			Convey("Then the max limit and the current round are used", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.last, ShouldResemble, call{tournamentID: "club", maxRound: 0, limit: 3})
				var got []types.Entry
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(len(got), ShouldEqual, 3)
				So(got[0].PlayerID, ShouldEqual, 1)
			})
		})

		Convey("When round and limit are given", func() {
			w := serve(mux, http.MethodGet, "/tournaments/club/standings?round=2&limit=1", "")

			Convey("Then they are passed through", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.last, ShouldResemble, call{tournamentID: "club", maxRound: 2, limit: 1})
			})
		})

		Convey("When the query is invalid", func() {
			cases := map[string]int{
				"?limit=0":   http.StatusBadRequest,
				"?limit=abc": http.StatusBadRequest,
				"?limit=4":   http.StatusBadRequest,
				"?round=-1":  http.StatusBadRequest,
			}
			for q, want := range cases {
				w := serve(mux, http.MethodGet, "/tournaments/club/standings"+q, "")
				So(w.Code, ShouldEqual, want)
			}
			So(serve(mux, http.MethodGet, "/tournaments/club/standings?limit=4", "").Body.String(),
				ShouldContainSubstring, "limit_exceeded")
		})
	})
}

func TestErrorMapping(t *testing.T) {
	Convey("Given upstream errors", t, func() {
		cases := []struct {
			err  error
			want int
			code string
		}{
			{fmt.Errorf("x: %w", service.ErrUnknownTournament), http.StatusNotFound, "not_found"},
			{service.ErrUnknownPlayer, http.StatusNotFound, "not_found"},
			{repository.ErrNotFound, http.StatusNotFound, "not_found"},
			{fmt.Errorf("buchholz: %w", tiebreak.ErrInvalidParameter), http.StatusBadRequest, "bad_request"},
			{fmt.Errorf("buchholz: %w", tiebreak.ErrUnsupportedVariant), http.StatusUnprocessableEntity, "unsupported_variant"},
			{fmt.Errorf("%w: %q", service.ErrRefreshInProgress, "req-1"), http.StatusConflict, "conflict"},
			{service.ErrBackpressure, http.StatusTooManyRequests, "backpressure"},
			{service.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
			{errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
		}

		for _, c := range cases {
			deps := &mockDeps{entries: sampleEntries(), err: c.err}
			mux := newMux(deps)

			for _, target := range []string{"/tournaments/club/standings", "/tournaments/club/players/1"} {
				w := serve(mux, http.MethodGet, target, "")
				So(w.Code, ShouldEqual, c.want)
				var body map[string]string
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["code"], ShouldEqual, c.code)
			}
		}
	})
}

func TestRankHandler(t *testing.T) {
	Convey("Given the player endpoint", t, func() {
		deps := &mockDeps{entries: sampleEntries()}
		mux := newMux(deps)

		Convey("When a player is requested for a round", func() {
			w := serve(mux, http.MethodGet, "/tournaments/club/players/2?round=3", "")

			Convey("Then the path values reach the service", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.last, ShouldResemble, call{tournamentID: "club", maxRound: 3, playerID: 2})
			})
		})

		Convey("When the player id is not a number", func() {
			w := serve(mux, http.MethodGet, "/tournaments/club/players/alice", "")

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestRefreshHandler(t *testing.T) {
	Convey("Given the refresh endpoint", t, func() {
		deps := &mockDeps{entries: sampleEntries()}
		mux := newMux(deps)

		Convey("When posted with a body", func() {
			w := serve(mux, http.MethodPost, "/tournaments/club/refresh", `{"request_id":"req-9","max_round":2}`)

			Convey("Then it is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(deps.last, ShouldResemble, call{tournamentID: "club", maxRound: 2, requestID: "req-9"})
				var ticket types.RefreshTicket
				So(json.Unmarshal(w.Body.Bytes(), &ticket), ShouldBeNil)
				So(ticket.Jobs, ShouldEqual, 4)
			})
		})

		Convey("When posted without a body", func() {
			w := serve(mux, http.MethodPost, "/tournaments/club/refresh", "")

			Convey("Then defaults are used", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(deps.last, ShouldResemble, call{tournamentID: "club"})
			})
		})

		Convey("When the body is malformed or out of range", func() {
			So(serve(mux, http.MethodPost, "/tournaments/club/refresh", `{`).Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodPost, "/tournaments/club/refresh", `{"max_round":-2}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the queue is full", func() {
			deps.err = service.ErrBackpressure
			w := serve(mux, http.MethodPost, "/tournaments/club/refresh", "")

			Convey("Then 429 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			})
		})
	})
}
