package router

import (
	"context"
	"time"

	"github.com/resumekit/airouter/internal/llm"
)

// sleeper is injectable so tests can observe the backoff schedule without
// waiting on real clocks.
type sleeper func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffDelay returns the pause before retry n (1-based): 1s, 2s, 4s, ...
func backoffDelay(retry int) time.Duration {
	return time.Duration(1<<(retry-1)) * time.Second
}

// callWithRetry invokes the adapter up to its retry budget. Every failed
// attempt is reported through onFailure. The final error is returned exactly
// as the adapter produced it so callers can still inspect its type.
func callWithRetry(ctx context.Context, a llm.Adapter, req *llm.Request, sleep sleeper, onFailure func()) (*llm.Response, error) {
	budget := a.RetryBudget()
	if budget < 1 {
		budget = 1
	}

	var lastErr error
	for attempt := 1; attempt <= budget; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, backoffDelay(attempt-1)); err != nil {
				return nil, lastErr
			}
		}

		resp, err := a.Call(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if onFailure != nil {
			onFailure()
		}
		if !llm.Retryable(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// streamWithRetry retries the stream establishment phase only. Once a
// channel is handed back the stream belongs to the consumer and mid-stream
// errors are delivered in-band, not retried.
func streamWithRetry(ctx context.Context, a llm.Adapter, req *llm.Request, sleep sleeper, onFailure func()) (<-chan llm.Chunk, error) {
	budget := a.RetryBudget()
	if budget < 1 {
		budget = 1
	}

	var lastErr error
	for attempt := 1; attempt <= budget; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, backoffDelay(attempt-1)); err != nil {
				return nil, lastErr
			}
		}

		ch, err := a.CallStream(ctx, req)
		if err == nil {
			return ch, nil
		}
		lastErr = err
		if onFailure != nil {
			onFailure()
		}
		if !llm.Retryable(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}
