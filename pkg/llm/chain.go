package llm

import (
	"context"
	"math/rand"
	"time"

	"reclassroom/pkg/logx"
)

// Middleware wraps a Client with additional behavior. Middlewares are
// composed with Chain to build a processing pipeline.
type Middleware func(next Client) Client

// clientFunc adapts plain functions to the Client interface.
type clientFunc struct {
	complete  func(context.Context, CompletionRequest) (CompletionResponse, error)
	modelName func() string
}

func (f clientFunc) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	return f.complete(ctx, in)
}

func (f clientFunc) GetModelName() string {
	return f.modelName()
}

// Chain composes middlewares around a base client. Earlier middlewares are
// outermost: Chain(client, mw1, mw2) produces the call stack mw1 -> mw2 -> client.
func Chain(base Client, middlewares ...Middleware) Client {
	client := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		client = middlewares[i](client)
	}
	return client
}

// RetryPolicy defines exponential backoff for retryable completion failures.
type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy is a conservative backoff suitable for interactive turns.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      8 * time.Second,
		BackoffFactor: 2.0,
	}
}

// WithRetry retries retryable failures with exponential backoff and jitter.
// Non-retryable errors (auth, bad prompt, malformed JSON) pass through immediately.
func WithRetry(policy RetryPolicy, logger *logx.Logger) Middleware {
	return func(next Client) Client {
		return clientFunc{
			modelName: next.GetModelName,
			complete: func(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
				var lastErr error
				delay := policy.InitialDelay

				for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
					resp, err := next.Complete(ctx, in)
					if err == nil {
						return resp, nil
					}
					lastErr = err

					if !IsRetryable(err) || attempt == policy.MaxAttempts {
						break
					}

					jittered := delay + time.Duration(rand.Int63n(int64(delay)/2+1))
					logger.Warn("completion attempt %d/%d failed (%s), retrying in %v",
						attempt, policy.MaxAttempts, TypeOf(err), jittered)

					select {
					case <-ctx.Done():
						return CompletionResponse{}, WrapError(ErrorTypeTransient, "retry cancelled", ctx.Err())
					case <-time.After(jittered):
					}

					delay = time.Duration(float64(delay) * policy.BackoffFactor)
					if delay > policy.MaxDelay {
						delay = policy.MaxDelay
					}
				}

				return CompletionResponse{}, lastErr
			},
		}
	}
}

// WithLogging logs each completion call's shape, duration, and outcome.
func WithLogging(logger *logx.Logger) Middleware {
	return func(next Client) Client {
		return clientFunc{
			modelName: next.GetModelName,
			complete: func(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
				start := time.Now()
				resp, err := next.Complete(ctx, in)
				elapsed := time.Since(start)

				if err != nil {
					logger.Warn("completion failed: model=%s messages=%d format=%s elapsed=%v err=%v",
						next.GetModelName(), len(in.Messages), in.ResponseFormat, elapsed, err)
					return resp, err
				}

				logger.Debug("completion ok: model=%s messages=%d format=%s elapsed=%v chars=%d",
					next.GetModelName(), len(in.Messages), in.ResponseFormat, elapsed, len(resp.Content))
				return resp, nil
			},
		}
	}
}
