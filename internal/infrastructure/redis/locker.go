// Package redis cliente Redis y cerrojo distribuido (redislock) para el cron cuando hay varias réplicas.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jhoicas/lokario-api/internal/application/ports"
	"github.com/jhoicas/lokario-api/pkg/config"
)

var _ ports.Locker = (*Locker)(nil)

// Connect abre el cliente y comprueba la conexión con reintentos exponenciales (máx. 30 s entre intentos).
func Connect(ctx context.Context, cfg config.RedisConfig, attempts int, log zerolog.Logger) (*goredis.Client, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       0,
			PoolSize: 20,
		})
		if lastErr = rdb.Ping(ctx).Err(); lastErr == nil {
			log.Info().Int("attempt", attempt).Str("addr", cfg.Address).Msg("redis: conectado")
			return rdb, nil
		}
		_ = rdb.Close()
		if attempt == attempts {
			break
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Warn().Err(lastErr).Int("attempt", attempt).Dur("retry_in", sleep).Msg("redis: conexión fallida")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, fmt.Errorf("redis %s: %w", cfg.Address, lastErr)
}

// Locker ports.Locker sobre redislock. El cerrojo expira solo al pasar el ttl.
type Locker struct {
	client *redislock.Client
}

func NewLocker(rdb *goredis.Client) *Locker {
	return &Locker{client: redislock.New(rdb)}
}

// TryLock ok=false si otra réplica tiene el cerrojo; no reintenta.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redislock %s: %w", key, err)
	}
	release := func(ctx context.Context) error {
		err := lock.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			return nil
		}
		return err
	}
	return release, true, nil
}
