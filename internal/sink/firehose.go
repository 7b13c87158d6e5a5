package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/firehose"
	"github.com/aws/aws-sdk-go-v2/service/firehose/types"
)

// FirehoseMaxRecords is the per-call record limit of PutRecordBatch.
const FirehoseMaxRecords = 500

var ErrBatchTooLarge = errors.New("batch exceeds firehose record limit")

type firehoseAPI interface {
	PutRecordBatch(ctx context.Context, params *firehose.PutRecordBatchInput, optFns ...func(*firehose.Options)) (*firehose.PutRecordBatchOutput, error)
}

// Firehose writes batches to a Kinesis Data Firehose delivery stream.
type Firehose struct {
	api    firehoseAPI
	stream string
}

func NewFirehose(cfg aws.Config, stream string) *Firehose {
	return newFirehoseWithAPI(firehose.NewFromConfig(cfg), stream)
}

func newFirehoseWithAPI(api firehoseAPI, stream string) *Firehose {
	return &Firehose{api: api, stream: stream}
}

func (f *Firehose) PutRecordBatch(ctx context.Context, records [][]byte) (*BatchResult, error) {
	if len(records) > FirehoseMaxRecords {
		return nil, fmt.Errorf("%d records: %w", len(records), ErrBatchTooLarge)
	}

	entries := make([]types.Record, len(records))
	for i, rec := range records {
		entries[i] = types.Record{Data: rec}
	}

	out, err := f.api.PutRecordBatch(ctx, &firehose.PutRecordBatchInput{
		DeliveryStreamName: aws.String(f.stream),
		Records:            entries,
	})
	if err != nil {
		return nil, fmt.Errorf("put record batch to %s: %w", f.stream, err)
	}

	res := &BatchResult{Submitted: len(records)}
	for _, r := range out.RequestResponses {
		if r.ErrorCode != nil {
			res.addError(fmt.Sprintf("%s: %s", aws.ToString(r.ErrorCode), aws.ToString(r.ErrorMessage)))
		}
	}
	// FailedPutCount is authoritative when responses are missing.
	if n := int(aws.ToInt32(out.FailedPutCount)); n > res.Failed {
		res.Failed = n
	}
	return res, nil
}

func (f *Firehose) Close() error { return nil }
