// Package sink delivers encoded event records to a streaming destination.
package sink

import "context"

// Sink accepts batches of already-encoded records.
//
// A non-nil error means the batch as a whole could not be delivered. Records
// the destination refused individually are reported in BatchResult.Failed.
type Sink interface {
	PutRecordBatch(ctx context.Context, records [][]byte) (*BatchResult, error)
	Close() error
}

// BatchResult is the outcome of one PutRecordBatch call.
type BatchResult struct {
	Submitted int
	Failed    int
	Errors    []string
}

// maxErrors caps how many per-record error strings a result keeps.
const maxErrors = 10

func (r *BatchResult) addError(msg string) {
	r.Failed++
	if len(r.Errors) < maxErrors {
		r.Errors = append(r.Errors, msg)
	}
}
