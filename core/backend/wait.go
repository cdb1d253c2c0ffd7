package backend

import (
	"context"
	"fmt"
	"time"
)

// WaitForResults polls jobID every interval until it is ready, the timeout elapses or ctx
// is cancelled. Errors from PollStatus end the wait immediately.
func WaitForResults(ctx context.Context, c Client, jobID string, interval, timeout time.Duration) (*SearchStatus, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.PollStatus(ctx, jobID)
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return nil, fmt.Errorf("%w: job %s", ErrPollTimeout, jobID)
			}
			return nil, err
		}
		if status.Ready {
			return status, nil
		}

		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return nil, fmt.Errorf("%w: job %s after %s", ErrPollTimeout, jobID, timeout)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
