// Copyright 2025 Worklens
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package indexing

import (
	"context"
	"log/slog"
	"time"

	"github.com/worklens/recall/core"
)

// BatchRunner processes a set of jobs and reports per-item outcomes.
type BatchRunner func(ctx context.Context, jobs []*core.EmbedJob) *BatchResult

// RetryBatch wraps a batch runner with bounded exponential-backoff retry.
// After each attempt, the next attempt's input is narrowed to exactly the
// items that failed; successful items are never re-run. The backoff delay
// starts at baseDelay and doubles per attempt.
//
// The returned result aggregates successes across all attempts and carries
// the final attempt's residual error list.
func RetryBatch(ctx context.Context, run BatchRunner, jobs []*core.EmbedJob, maxAttempts int, baseDelay time.Duration) (*BatchResult, error) {
	if maxAttempts <= 0 {
		return nil, ErrInvalidMaxAttempts
	}

	total := &BatchResult{}
	remaining := jobs

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if len(remaining) == 0 {
			return total, nil
		}

		// Check context before attempting
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		result := run(ctx, remaining)
		total.Processed += result.Processed
		total.Errors = result.Errors

		if len(result.Errors) == 0 {
			if attempt > 1 {
				slog.Debug("batch succeeded after retry", "attempt", attempt)
			}
			return total, nil
		}

		slog.Debug("batch attempt left failures",
			"attempt", attempt, "maxAttempts", maxAttempts, "failed", len(result.Errors))

		// Don't sleep after the last attempt
		if attempt == maxAttempts {
			break
		}

		remaining = filterFailed(remaining, result.Errors)

		// Exponential backoff: baseDelay * 2^(attempt-1)
		delay := baseDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return total, ctx.Err()
		case <-timer.C:
		}
	}

	return total, nil
}

// filterFailed returns the subset of jobs whose IDs appear in the error list,
// preserving the original order.
func filterFailed(jobs []*core.EmbedJob, errs []ItemError) []*core.EmbedJob {
	failed := make(map[core.ID]struct{}, len(errs))
	for _, e := range errs {
		failed[e.JobID] = struct{}{}
	}

	out := make([]*core.EmbedJob, 0, len(errs))
	for _, job := range jobs {
		if _, ok := failed[job.Id]; ok {
			out = append(out, job)
		}
	}
	return out
}
