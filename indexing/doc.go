// Package indexing turns work-tracking records into stored embeddings.
//
// Job construction derives field, cycle and session level embed jobs from
// business records; the Enqueuer persists them; the Dispatcher drains the
// pending queue in bounded, rate-limited chunks with per-item failure
// isolation; RetryBatch wraps a run with exponential backoff, narrowing each
// attempt to the items that failed.
//
// Session texts are summarized before embedding. A summarization failure
// degrades to embedding the raw text rather than failing the job.
package indexing
