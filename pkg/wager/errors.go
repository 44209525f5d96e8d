package wager

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrNotPending    = errors.New("wager already settled")
	ErrScoreConflict = errors.New("game already final with a different score")
	ErrGameNotFinal  = errors.New("game is not final")
)
