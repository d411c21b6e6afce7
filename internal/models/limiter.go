package models

import (
	"context"
	"fmt"
	"iter"

	"golang.org/x/time/rate"
	"google.golang.org/adk/model"
)

// rateLimited throttles outbound model calls with a shared token bucket.
type rateLimited struct {
	model.LLM
	limiter *rate.Limiter
}

// WithRateLimit wraps llm so that every GenerateContent call first waits for
// the limiter. perSecond <= 0 disables limiting.
func WithRateLimit(llm model.LLM, perSecond float64, burst int) model.LLM {
	if perSecond <= 0 {
		return llm
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimited{
		LLM:     llm,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (r *rateLimited) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		if err := r.limiter.Wait(ctx); err != nil {
			yield(nil, fmt.Errorf("rate limiter error: %w", err))
			return
		}
		for resp, err := range r.LLM.GenerateContent(ctx, req, stream) {
			if !yield(resp, err) {
				return
			}
		}
	}
}
