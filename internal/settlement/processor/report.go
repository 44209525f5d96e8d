package processor

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/radieske/sports-bet-settlement/pkg/wager"
)

// Estágios em que uma aposta pode falhar
const (
	StageParse   = "parse"
	StageGrade   = "grade"
	StagePersist = "persist"
)

// GradingError registra a falha de uma aposta sem abortar o lote
type GradingError struct {
	UserID  string
	WagerID string
	Stage   string
	Err     error
}

func (e *GradingError) Error() string {
	return fmt.Sprintf("wager %s/%s: %s: %v", e.UserID, e.WagerID, e.Stage, e.Err)
}

func (e *GradingError) Unwrap() error { return e.Err }

func (e *GradingError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		UserID  string `json:"userId"`
		WagerID string `json:"wagerId"`
		Stage   string `json:"stage"`
		Reason  string `json:"reason"`
	}{e.UserID, e.WagerID, e.Stage, e.Err.Error()})
}

// Outcome é uma aposta liquidada com sucesso neste lote
type Outcome struct {
	UserID    string          `json:"userId"`
	WagerID   string          `json:"wagerId"`
	GameID    string          `json:"gameId"`
	Condition wager.Condition `json:"condition"`
	Result    wager.Result    `json:"result"`
	Stake     float64         `json:"stake"`
	Odds      float64         `json:"odds"`
	PnL       float64         `json:"pnl"`
}

// Report agrega sucessos e falhas de um SettleGame
type Report struct {
	GameID    string `json:"gameId"`
	HomeTeam  string `json:"homeTeam"`
	AwayTeam  string `json:"awayTeam"`
	HomeScore int    `json:"homeScore"`
	AwayScore int    `json:"awayScore"`

	Candidates int             `json:"candidates"`
	Settled    []Outcome       `json:"settled"`
	Failures   []*GradingError `json:"failures"`
	// Skipped conta apostas que já não estavam pending no momento da escrita
	Skipped int `json:"skipped"`

	Won  int `json:"won"`
	Lost int `json:"lost"`
	Push int `json:"push"`
}

// Succeeded / Failed são os contadores exibidos ao admin
func (r *Report) Succeeded() int { return len(r.Settled) }
func (r *Report) Failed() int    { return len(r.Failures) }

func (r *Report) add(o Outcome) {
	r.Settled = append(r.Settled, o)
	switch o.Result {
	case wager.ResultWon:
		r.Won++
	case wager.ResultLost:
		r.Lost++
	case wager.ResultPush:
		r.Push++
	}
}

// sortEntries deixa o relatório determinístico independente da ordem dos workers
func (r *Report) sortEntries() {
	sort.Slice(r.Settled, func(i, j int) bool {
		a, b := r.Settled[i], r.Settled[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		return a.WagerID < b.WagerID
	})
	sort.Slice(r.Failures, func(i, j int) bool {
		a, b := r.Failures[i], r.Failures[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		return a.WagerID < b.WagerID
	})
}
