// Package relay splits event records into sink-sized batches and delivers
// them in order.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeffbryner/meraki-activity/common/logging"
	"github.com/jeffbryner/meraki-activity/internal/meraki"
	"github.com/jeffbryner/meraki-activity/internal/metrics"
	"github.com/jeffbryner/meraki-activity/internal/sink"
)

const DefaultBatchSize = 100

var (
	// ErrRecordsRejected is returned when the sink refused records and the
	// relay was configured to treat that as fatal.
	ErrRecordsRejected = errors.New("sink rejected records")

	ErrEncode = errors.New("encode record")
)

// Result totals one Send call.
type Result struct {
	Records  int
	Batches  int
	Rejected int
	Errors   []string
}

// Relay encodes records as newline-terminated JSON and writes them to a
// sink in batches of at most batchSize.
type Relay struct {
	sink           sink.Sink
	batchSize      int
	failOnRejected bool
	logger         *logging.Logger
}

type Option func(*Relay)

// WithFailOnRejected makes any per-record rejection abort Send.
func WithFailOnRejected(fail bool) Option {
	return func(r *Relay) { r.failOnRejected = fail }
}

func WithLogger(l *logging.Logger) Option {
	return func(r *Relay) { r.logger = l }
}

func New(s sink.Sink, batchSize int, opts ...Option) *Relay {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	r := &Relay{
		sink:      s,
		batchSize: batchSize,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Send delivers events in order. Every record is encoded before the first
// batch goes out, so an unencodable record sends nothing. A sink transport
// error stops at the failing batch; earlier batches stay delivered.
func (r *Relay) Send(ctx context.Context, events []meraki.Event) (*Result, error) {
	res := &Result{}
	if len(events) == 0 {
		return res, nil
	}

	encoded := make([][]byte, len(events))
	for i, ev := range events {
		b, err := Encode(ev)
		if err != nil {
			return res, fmt.Errorf("record %d: %w", i, err)
		}
		encoded[i] = b
	}

	for _, batch := range Chunk(encoded, r.batchSize) {
		r.logger.InfoContext(ctx, "sending records", logging.Count(len(batch)))

		br, err := r.sink.PutRecordBatch(ctx, batch)
		if err != nil {
			metrics.BatchesTotal.WithLabelValues(metrics.StatusError).Inc()
			return res, fmt.Errorf("deliver batch %d: %w", res.Batches+1, err)
		}
		res.Batches++
		res.Records += len(batch)

		r.logger.DebugContext(ctx, "sink response",
			"submitted", br.Submitted,
			"failed", br.Failed,
		)

		if br.Failed == 0 {
			metrics.BatchesTotal.WithLabelValues(metrics.StatusSuccess).Inc()
			continue
		}

		metrics.BatchesTotal.WithLabelValues(metrics.StatusPartial).Inc()
		metrics.RecordsRejected.Add(float64(br.Failed))
		res.Rejected += br.Failed
		res.Errors = append(res.Errors, br.Errors...)

		r.logger.WarnContext(ctx, "sink rejected records",
			logging.Count(br.Failed),
			"errors", br.Errors,
		)

		if r.failOnRejected {
			return res, fmt.Errorf("%d of %d records: %w", br.Failed, len(batch), ErrRecordsRejected)
		}
	}

	return res, nil
}

// Encode renders one record as a JSON line. Insignificant whitespace is
// dropped; everything else is copied byte for byte.
func Encode(ev meraki.Event) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(ev) + 1)
	if err := json.Compact(&buf, ev); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Chunk splits items into contiguous slices of at most size elements. The
// last chunk may be shorter. Chunks share the backing array of items.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}
