package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/sports-bet-settlement/pkg/contracts/events"
	"github.com/radieske/sports-bet-settlement/pkg/wager"
)

var now = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

// fakeStore implementa WagerStore, GameStore e GameReader em memória
type fakeStore struct {
	mu          sync.Mutex
	games       map[string]wager.Game
	wagers      []wager.Wager
	seq         int
	invalidated []string
	listErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{games: map[string]wager.Game{
		"g1": {ID: "g1", HomeTeam: "DUKE", AwayTeam: "UNC", StartsAt: now.Add(2 * time.Hour)},
		"g2": {ID: "g2", HomeTeam: "KU", AwayTeam: "BAY", StartsAt: now.Add(-24 * time.Hour),
			Status: wager.GameStatus{State: wager.StateFinal, HomeScore: 80, AwayScore: 75}},
	}}
}

func (s *fakeStore) GetGame(_ context.Context, id string) (wager.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return wager.Game{}, wager.ErrNotFound
	}
	return g, nil
}

func (s *fakeStore) Invalidate(_ context.Context, id string) error {
	s.invalidated = append(s.invalidated, id)
	return nil
}

func (s *fakeStore) ListWagers(_ context.Context, userID string) ([]wager.Wager, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []wager.Wager
	// mais recentes primeiro, como o Postgres
	for i := len(s.wagers) - 1; i >= 0; i-- {
		if s.wagers[i].UserID == userID {
			out = append(out, s.wagers[i])
		}
	}
	return out, nil
}

func (s *fakeStore) AddWager(_ context.Context, w wager.Wager) (wager.Wager, error) {
	s.seq++
	w.ID = fmt.Sprintf("w%d", s.seq)
	w.Result = wager.ResultPending
	s.wagers = append(s.wagers, w)
	return w, nil
}

func (s *fakeStore) DeleteWager(_ context.Context, userID, wagerID string) error {
	for i, w := range s.wagers {
		if w.UserID == userID && w.ID == wagerID {
			s.wagers = append(s.wagers[:i], s.wagers[i+1:]...)
			return nil
		}
	}
	return wager.ErrNotFound
}

func (s *fakeStore) UpsertGame(_ context.Context, g wager.Game) error {
	s.games[g.ID] = g
	return nil
}

func (s *fakeStore) FinalizeGame(_ context.Context, id string, home, away int) (wager.Game, bool, error) {
	g, ok := s.games[id]
	if !ok {
		return wager.Game{}, false, wager.ErrNotFound
	}
	if h, a, final := g.Status.Score(); final {
		if h == home && a == away {
			return g, false, nil
		}
		return g, false, wager.ErrScoreConflict
	}
	g.Status = wager.GameStatus{State: wager.StateFinal, HomeScore: home, AwayScore: away}
	s.games[id] = g
	return g, true, nil
}

func (s *fakeStore) ListGames(_ context.Context, openOnly bool) ([]wager.Game, error) {
	var out []wager.Game
	for _, id := range []string{"g1", "g2", "g3"} {
		g, ok := s.games[id]
		if !ok || (openOnly && g.Status.IsFinal()) {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func newAPI(s *fakeStore, w *captureWriter) (*API, http.Handler) {
	a := &API{
		Wagers:    s,
		Games:     s,
		GameInfo:  s,
		Finalized: w,
		Now:       func() time.Time { return now },
	}
	return a, a.Router()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCreateWager_StoresParsedCondition(t *testing.T) {
	s := newFakeStore()
	_, h := newAPI(s, &captureWriter{})

	rec := do(t, h, http.MethodPost, "/v1/users/alice/wagers",
		`{"gameId":"g1","type":"spread","selection":"UNC +3.5","odds":-110,"amount":110}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	v := decode[WagerView](t, rec)
	assert.Equal(t, "w1", v.ID)
	assert.Equal(t, "DUKE", v.HomeTeam)
	assert.Equal(t, wager.ResultPending, v.Result)
	assert.InDelta(t, 1.9091, v.DecimalOdds, 1e-9)

	require.Len(t, s.wagers, 1)
	require.NotNil(t, s.wagers[0].Condition)
	assert.Equal(t, wager.Condition{Kind: wager.KindSpread, Team: "UNC", Line: 3.5}, *s.wagers[0].Condition)
	assert.Equal(t, now, s.wagers[0].PlacedAt)
}

func TestCreateWager_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"zero odds", `{"gameId":"g1","type":"moneyline","selection":"DUKE ML","odds":0,"amount":10}`, http.StatusBadRequest},
		{"negative amount", `{"gameId":"g1","type":"moneyline","selection":"DUKE ML","odds":-110,"amount":-5}`, http.StatusBadRequest},
		{"unknown type", `{"gameId":"g1","type":"parlay","selection":"DUKE ML","odds":-110,"amount":10}`, http.StatusBadRequest},
		{"malformed selection", `{"gameId":"g1","type":"spread","selection":"UNC","odds":-110,"amount":10}`, http.StatusBadRequest},
		{"NaN spread line", `{"gameId":"g1","type":"spread","selection":"UNC NaN","odds":-110,"amount":10}`, http.StatusBadRequest},
		{"infinite total", `{"gameId":"g1","type":"total","selection":"Under Inf","odds":-110,"amount":10}`, http.StatusBadRequest},
		{"team not in game", `{"gameId":"g1","type":"moneyline","selection":"KU ML","odds":-110,"amount":10}`, http.StatusBadRequest},
		{"unknown game", `{"gameId":"nope","type":"total","selection":"Over 140","odds":-110,"amount":10}`, http.StatusNotFound},
		{"final game", `{"gameId":"g2","type":"total","selection":"Over 140","odds":-110,"amount":10}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFakeStore()
			_, h := newAPI(s, &captureWriter{})
			rec := do(t, h, http.MethodPost, "/v1/users/alice/wagers", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.Empty(t, s.wagers)
		})
	}
}

func TestListWagers_ViewsAndUnknownGame(t *testing.T) {
	s := newFakeStore()
	s.wagers = []wager.Wager{
		{ID: "a", UserID: "alice", GameID: "g2", Kind: wager.KindMoneyline, Selection: "KU ML", Odds: 150, Stake: 100, Result: wager.ResultWon, PlacedAt: now.Add(-48 * time.Hour)},
		{ID: "b", UserID: "alice", GameID: "gone", Kind: wager.KindTotal, Selection: "Over 140", Odds: -110, Stake: 10, Result: wager.ResultPending, PlacedAt: now.Add(-time.Hour)},
		{ID: "c", UserID: "bob", GameID: "g1", Kind: wager.KindMoneyline, Selection: "DUKE ML", Odds: -110, Stake: 10, Result: wager.ResultPending, PlacedAt: now},
	}
	_, h := newAPI(s, &captureWriter{})

	rec := do(t, h, http.MethodGet, "/v1/users/alice/wagers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]WagerView](t, rec)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].ID)
	assert.Equal(t, unknownTeam, all[0].HomeTeam)
	assert.Nil(t, all[0].GameDate)
	assert.Equal(t, "KU", all[1].HomeTeam)
	assert.Equal(t, "80 - 75", all[1].Score)
	assert.InDelta(t, 150, all[1].PnL, 1e-9)

	tracked := decode[[]WagerView](t, do(t, h, http.MethodGet, "/v1/users/alice/wagers?view=tracked", ""))
	require.Len(t, tracked, 1)
	assert.Equal(t, "b", tracked[0].ID)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/users/alice/wagers?view=everything", "").Code)
}

func TestListWagers_RecentIsCapped(t *testing.T) {
	s := newFakeStore()
	for i := 0; i < 15; i++ {
		s.wagers = append(s.wagers, wager.Wager{ID: fmt.Sprintf("w%02d", i), UserID: "alice", GameID: "g1",
			Kind: wager.KindMoneyline, Selection: "DUKE ML", Odds: -110, Stake: 1, Result: wager.ResultPending,
			PlacedAt: now.Add(time.Duration(i) * time.Minute)})
	}
	_, h := newAPI(s, &captureWriter{})

	recent := decode[[]WagerView](t, do(t, h, http.MethodGet, "/v1/users/alice/wagers?view=recent", ""))
	require.Len(t, recent, recentLimit)
	assert.Equal(t, "w14", recent[0].ID)
}

func TestDeleteWager(t *testing.T) {
	s := newFakeStore()
	s.wagers = []wager.Wager{{ID: "a", UserID: "alice", GameID: "g1"}}
	_, h := newAPI(s, &captureWriter{})

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/v1/users/bob/wagers/a", "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/v1/users/alice/wagers/a", "").Code)
	assert.Empty(t, s.wagers)
}

func TestGetPortfolio(t *testing.T) {
	s := newFakeStore()
	s.wagers = []wager.Wager{
		{ID: "a", UserID: "alice", GameID: "g2", Kind: wager.KindMoneyline, Odds: 150, Stake: 100, Result: wager.ResultWon, PlacedAt: now.Add(-3 * time.Hour)},
		{ID: "b", UserID: "alice", GameID: "g2", Kind: wager.KindSpread, Odds: -110, Stake: 33.333, Result: wager.ResultLost, PlacedAt: now.Add(-2 * time.Hour)},
		{ID: "old", UserID: "alice", GameID: "g2", Kind: wager.KindTotal, Odds: -110, Stake: 50, Result: wager.ResultLost, PlacedAt: now.AddDate(0, -2, 0)},
	}
	_, h := newAPI(s, &captureWriter{})

	rec := do(t, h, http.MethodGet, "/v1/users/alice/portfolio?timeframe=1D", "")
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[PortfolioResponse](t, rec)
	assert.Equal(t, "1D", p.Timeframe)
	assert.Equal(t, 2, p.Settled)
	assert.Equal(t, 133.33, p.TotalStaked)
	assert.Equal(t, 116.67, p.TotalPnL)
	assert.Equal(t, 0.875, p.ROI)
	require.Len(t, p.Equity, 4)
	assert.Equal(t, 150.0, p.Equity[1].PnL)
	assert.Equal(t, now, p.Equity[3].Date)

	def := decode[PortfolioResponse](t, do(t, h, http.MethodGet, "/v1/users/alice/portfolio", ""))
	assert.Equal(t, "1W", def.Timeframe)

	all := decode[PortfolioResponse](t, do(t, h, http.MethodGet, "/v1/users/alice/portfolio?timeframe=All", ""))
	assert.Equal(t, 3, all.Settled)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/users/alice/portfolio?timeframe=10Y", "").Code)

	s.listErr = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, do(t, h, http.MethodGet, "/v1/users/alice/portfolio", "").Code)
}

func TestFinalizeGame(t *testing.T) {
	s := newFakeStore()
	w := &captureWriter{}
	_, h := newAPI(s, w)

	rec := do(t, h, http.MethodPost, "/v1/admin/games/g1/final", `{"homeScore":70,"awayScore":68}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	resp := decode[FinalizeGameResponse](t, rec)
	assert.True(t, resp.Changed)
	assert.True(t, resp.Published)
	assert.Equal(t, []string{"g1"}, s.invalidated)

	require.Len(t, w.msgs, 1)
	var ev events.GameFinalized
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, events.GameFinalized{GameID: "g1", HomeScore: 70, AwayScore: 68, FinalizedAt: now, Source: "admin"}, ev)

	// mesmo placar: no-op, sem novo evento
	rec = do(t, h, http.MethodPost, "/v1/admin/games/g1/final", `{"homeScore":70,"awayScore":68}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[FinalizeGameResponse](t, rec).Changed)
	assert.Len(t, w.msgs, 1)

	// placar diferente: conflito
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/v1/admin/games/g1/final", `{"homeScore":71,"awayScore":68}`).Code)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/v1/admin/games/nope/final", `{"homeScore":1,"awayScore":0}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/admin/games/g1/final", `{"homeScore":1}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/admin/games/g1/final", `{"homeScore":-1,"awayScore":0}`).Code)
}

func TestFinalizeGame_PublishFailureStillFinalizes(t *testing.T) {
	s := newFakeStore()
	_, h := newAPI(s, &captureWriter{err: errors.New("broker down")})

	rec := do(t, h, http.MethodPost, "/v1/admin/games/g1/final", `{"homeScore":60,"awayScore":61}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.False(t, decode[FinalizeGameResponse](t, rec).Published)
	assert.True(t, s.games["g1"].Status.IsFinal())
}

func TestAdminGames(t *testing.T) {
	s := newFakeStore()
	_, h := newAPI(s, &captureWriter{})

	rec := do(t, h, http.MethodPut, "/v1/admin/games/g3",
		`{"homeTeam":"ARIZ","awayTeam":"GONZ","date":"2025-03-20T02:00:00Z","neutralSite":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, s.games["g3"].NeutralSite)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, "/v1/admin/games/g4", `{"homeTeam":"A","awayTeam":"A","date":"2025-03-20T02:00:00Z"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, "/v1/admin/games/g4", `{"homeTeam":"A","awayTeam":"B","date":"2025-03-20T02:00:00Z","state":"FINAL"}`).Code)

	open := decode[[]wager.Game](t, do(t, h, http.MethodGet, "/v1/admin/games?open=true", ""))
	ids := []string{}
	for _, g := range open {
		ids = append(ids, g.ID)
	}
	assert.Equal(t, []string{"g1", "g3"}, ids)

	all := decode[[]wager.Game](t, do(t, h, http.MethodGet, "/v1/admin/games", ""))
	assert.Len(t, all, 3)
}

func TestRouter_ReportsRoutePattern(t *testing.T) {
	s := newFakeStore()
	a, _ := newAPI(s, &captureWriter{})
	var routes []string
	a.OnRequest = func(route string) { routes = append(routes, route) }

	do(t, a.Router(), http.MethodGet, "/v1/users/alice/portfolio", "")
	assert.Equal(t, []string{"/v1/users/{userId}/portfolio"}, routes)
}
