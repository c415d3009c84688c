// Package recovery implements RecoveryAgent (spec §7's ToolCallError row
// and the tool-call-timeout chain): retries a failing tool call with
// backoff and, on exhaustion, degrades gracefully instead of propagating
// the error, so one flaky tool never aborts a task.
package recovery

import (
	"context"
	"fmt"
	"time"
)

// maxAttempts bounds the retry chain; the first attempt plus two retries.
const maxAttempts = 3

// backoffBase is the delay before the first retry, doubling each attempt.
const backoffBase = 200 * time.Millisecond

// ToolCaller is the minimal shape Call wraps.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, params map[string]any) (string, error)
}

// Call invokes name via caller, retrying failed calls up to
// maxAttempts times with exponential backoff. On exhaustion it does not
// return the last error: it returns a soft-failure explanation string and a
// nil error, matching §7's "on exhaustion, treat as soft failure, answer
// with explanation" contract — callers should fold the returned text into
// the answer rather than aborting the task.
func Call(ctx context.Context, caller ToolCaller, name string, params map[string]any) (string, error) {
	var lastErr error
	delay := backoffBase
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := caller.CallTool(ctx, name, params)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return degrade(name, ctx.Err()), nil
		}
		delay *= 2
	}
	return degrade(name, lastErr), nil
}

func degrade(name string, err error) string {
	return fmt.Sprintf("(tool %q unavailable after retries: %v — proceeding without this result)", name, err)
}
