package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/pkg/wager"
)

// GameSource é a fonte de verdade dos jogos (Postgres)
type GameSource interface {
	GetGame(ctx context.Context, gameID string) (wager.Game, error)
}

// GameCache é um cache read-through de jogos no Redis.
// Falhas do Redis viram miss; o erro da fonte é sempre propagado.
type GameCache struct {
	Client redis.Cmdable
	Source GameSource
	TTL    time.Duration
	Log    *zap.Logger
}

func NewGameCache(c redis.Cmdable, src GameSource, ttl time.Duration, log *zap.Logger) *GameCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &GameCache{Client: c, Source: src, TTL: ttl, Log: log}
}

func gameKey(gameID string) string { return "game:" + gameID }

// GetGame tenta o Redis e cai para a fonte, populando o cache
func (c *GameCache) GetGame(ctx context.Context, gameID string) (wager.Game, error) {
	raw, err := c.Client.Get(ctx, gameKey(gameID)).Bytes()
	if err == nil {
		var g wager.Game
		if jerr := json.Unmarshal(raw, &g); jerr == nil {
			return g, nil
		}
		c.Log.Warn("game cache entry corrupt", zap.String("game_id", gameID))
	} else if !errors.Is(err, redis.Nil) {
		c.Log.Warn("game cache get failed", zap.String("game_id", gameID), zap.Error(err))
	}

	g, err := c.Source.GetGame(ctx, gameID)
	if err != nil {
		return wager.Game{}, err
	}

	if b, err := json.Marshal(g); err == nil {
		if err := c.Client.Set(ctx, gameKey(gameID), b, c.TTL).Err(); err != nil {
			c.Log.Warn("game cache set failed", zap.String("game_id", gameID), zap.Error(err))
		}
	}
	return g, nil
}

// Invalidate remove o jogo do cache (ex.: após finalizar o placar)
func (c *GameCache) Invalidate(ctx context.Context, gameID string) error {
	return c.Client.Del(ctx, gameKey(gameID)).Err()
}
