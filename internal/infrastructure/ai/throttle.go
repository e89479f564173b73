package ai

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jhoicas/lokario-api/internal/application/ports"
	"github.com/jhoicas/lokario-api/internal/domain"
)

var _ ports.LLMService = (*Throttled)(nil)

// Throttled limita las llamadas al LLM con un token bucket de proceso. Una llamada espera
// como mucho maxWait a que haya token; después falla con rate_limited.
type Throttled struct {
	next    ports.LLMService
	limiter *rate.Limiter
	maxWait time.Duration
	log     zerolog.Logger
}

// NewThrottled perMinute llamadas por minuto con ráfaga igual a perMinute/6 (mínimo 1).
func NewThrottled(next ports.LLMService, perMinute int, maxWait time.Duration, log zerolog.Logger) *Throttled {
	if perMinute <= 0 {
		perMinute = 30
	}
	burst := perMinute / 6
	if burst < 1 {
		burst = 1
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60), burst),
		maxWait: maxWait,
		log:     log,
	}
}

func (t *Throttled) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	waitCtx, cancel := context.WithTimeout(ctx, t.maxWait)
	defer cancel()
	if err := t.limiter.Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		t.log.Warn().Str("model", req.Model).Msg("ai: límite de llamadas alcanzado")
		return "", domain.NewError(domain.ErrRateLimited, domain.CodeRateLimited, "trop de requêtes vers le service IA, réessayez plus tard")
	}
	out, err := t.next.Complete(ctx, req)
	if err != nil && !errors.Is(err, context.Canceled) {
		t.log.Warn().Err(err).Str("model", req.Model).Msg("ai: llamada fallida")
	}
	return out, err
}
