package wager

import (
	"fmt"
	"time"
)

// Kind é o tipo de mercado da aposta
type Kind string

const (
	KindMoneyline Kind = "moneyline"
	KindSpread    Kind = "spread"
	KindTotal     Kind = "total"
)

// Valid retorna true para os três mercados suportados
func (k Kind) Valid() bool {
	switch k {
	case KindMoneyline, KindSpread, KindTotal:
		return true
	}
	return false
}

// Result é o estado de liquidação da aposta.
// Só transita pending -> {won, lost, push}.
type Result string

const (
	ResultPending Result = "pending"
	ResultWon     Result = "won"
	ResultLost    Result = "lost"
	ResultPush    Result = "push"
)

// Settled retorna true para qualquer resultado diferente de pending
func (r Result) Settled() bool {
	return r == ResultWon || r == ResultLost || r == ResultPush
}

// GameState segue os códigos usados no documento de jogo: NP | IP | FINAL
type GameState string

const (
	StateNotPlayed  GameState = "NP"
	StateInProgress GameState = "IP"
	StateFinal      GameState = "FINAL"
)

// GameStatus só carrega placar quando State == FINAL
type GameStatus struct {
	State     GameState `json:"state"`
	HomeScore int       `json:"homeScore,omitempty"`
	AwayScore int       `json:"awayScore,omitempty"`
}

func (s GameStatus) IsFinal() bool { return s.State == StateFinal }

// Score retorna o placar final; ok=false se o jogo ainda não terminou
func (s GameStatus) Score() (home, away int, ok bool) {
	if !s.IsFinal() {
		return 0, 0, false
	}
	return s.HomeScore, s.AwayScore, true
}

// String é o texto exibido no placar ("NP", "IP" ou "72 - 68")
func (s GameStatus) String() string {
	if s.IsFinal() {
		return fmt.Sprintf("%d - %d", s.HomeScore, s.AwayScore)
	}
	return string(s.State)
}

// Game representa uma partida; HomeTeam/AwayTeam são identificadores curtos (ex: "DUKE")
type Game struct {
	ID          string     `json:"id"`
	HomeTeam    string     `json:"homeTeam"`
	AwayTeam    string     `json:"awayTeam"`
	StartsAt    time.Time  `json:"date"`
	NeutralSite bool       `json:"neutralSite"`
	Status      GameStatus `json:"status"`
}

// Matchup no formato "AWAY @ HOME"
func (g Game) Matchup() string { return g.AwayTeam + " @ " + g.HomeTeam }

// Direction de uma aposta de total
type Direction string

const (
	DirectionOver  Direction = "over"
	DirectionUnder Direction = "under"
)

// Condition é a decodificação estruturada da seleção de uma aposta.
// moneyline: Team; spread: Team + Line; total: Direction + Threshold.
type Condition struct {
	Kind      Kind      `json:"kind"`
	Team      string    `json:"team,omitempty"`
	Line      float64   `json:"line,omitempty"`
	Direction Direction `json:"direction,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
}

func (c Condition) String() string {
	switch c.Kind {
	case KindMoneyline:
		return c.Team + " ML"
	case KindSpread:
		return fmt.Sprintf("%s %+g", c.Team, c.Line)
	case KindTotal:
		return fmt.Sprintf("%s %g", c.Direction, c.Threshold)
	}
	return string(c.Kind)
}

// Wager é a aposta de um usuário; chave (UserID, ID)
type Wager struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	GameID    string     `json:"gameId"`
	Kind      Kind       `json:"type"`
	Selection string     `json:"selection"`
	Condition *Condition `json:"condition,omitempty"` // nil em registros antigos
	Odds      float64    `json:"odds"`
	Stake     float64    `json:"amount"`
	Result    Result     `json:"result"`
	PlacedAt  time.Time  `json:"placedAt"`
}
