package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/firehose"
	"github.com/aws/aws-sdk-go-v2/service/firehose/types"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Sink = (*Firehose)(nil)
	_ Sink = (*JetStream)(nil)
	_ Sink = (*OpenSearch)(nil)
)

func records(lines ...string) [][]byte {
	out := make([][]byte, len(lines))
	for i, l := range lines {
		out[i] = []byte(l + "\n")
	}
	return out
}

type fakeFirehose struct {
	inputs []*firehose.PutRecordBatchInput
	out    *firehose.PutRecordBatchOutput
	err    error
}

func (f *fakeFirehose) PutRecordBatch(_ context.Context, in *firehose.PutRecordBatchInput, _ ...func(*firehose.Options)) (*firehose.PutRecordBatchOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	if f.out != nil {
		return f.out, nil
	}
	return &firehose.PutRecordBatchOutput{FailedPutCount: aws.Int32(0)}, nil
}

func TestFirehose_PutRecordBatch(t *testing.T) {
	api := &fakeFirehose{}
	f := newFirehoseWithAPI(api, "meraki-stream")

	res, err := f.PutRecordBatch(context.Background(), records(`{"a":1}`, `{"a":2}`))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Submitted)
	assert.Zero(t, res.Failed)

	require.Len(t, api.inputs, 1)
	in := api.inputs[0]
	assert.Equal(t, "meraki-stream", aws.ToString(in.DeliveryStreamName))
	require.Len(t, in.Records, 2)
	assert.Equal(t, "{\"a\":1}\n", string(in.Records[0].Data))
	assert.Equal(t, "{\"a\":2}\n", string(in.Records[1].Data))
}

func TestFirehose_PartialFailure(t *testing.T) {
	api := &fakeFirehose{out: &firehose.PutRecordBatchOutput{
		FailedPutCount: aws.Int32(1),
		RequestResponses: []types.PutRecordBatchResponseEntry{
			{RecordId: aws.String("r1")},
			{ErrorCode: aws.String("ServiceUnavailableException"), ErrorMessage: aws.String("slow down")},
		},
	}}

	res, err := newFirehoseWithAPI(api, "s").PutRecordBatch(context.Background(), records(`{}`, `{}`))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"ServiceUnavailableException: slow down"}, res.Errors)
}

func TestFirehose_FailedCountWithoutResponses(t *testing.T) {
	api := &fakeFirehose{out: &firehose.PutRecordBatchOutput{FailedPutCount: aws.Int32(3)}}

	res, err := newFirehoseWithAPI(api, "s").PutRecordBatch(context.Background(), records(`{}`, `{}`, `{}`))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Failed)
}

func TestFirehose_TransportError(t *testing.T) {
	boom := errors.New("no route")
	_, err := newFirehoseWithAPI(&fakeFirehose{err: boom}, "s").PutRecordBatch(context.Background(), records(`{}`))
	assert.ErrorIs(t, err, boom)
}

func TestFirehose_TooLarge(t *testing.T) {
	api := &fakeFirehose{}
	_, err := newFirehoseWithAPI(api, "s").PutRecordBatch(context.Background(), make([][]byte, FirehoseMaxRecords+1))
	assert.ErrorIs(t, err, ErrBatchTooLarge)
	assert.Empty(t, api.inputs)
}

type fakePublisher struct {
	subjects []string
	data     []string
	failOn   string
}

func (p *fakePublisher) Publish(_ context.Context, subject string, data []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if p.failOn != "" && strings.Contains(string(data), p.failOn) {
		return nil, errors.New("nats: no response from stream")
	}
	p.subjects = append(p.subjects, subject)
	p.data = append(p.data, string(data))
	return &jetstream.PubAck{Stream: "MERAKI_EVENTS", Sequence: uint64(len(p.data))}, nil
}

func TestJetStream_PutRecordBatch(t *testing.T) {
	pub := &fakePublisher{}
	s := newJetStreamWithPublisher(pub, "meraki.events")

	res, err := s.PutRecordBatch(context.Background(), records(`{"n":1}`, `{"n":2}`, `{"n":3}`))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Submitted)
	assert.Zero(t, res.Failed)
	assert.Equal(t, []string{"meraki.events", "meraki.events", "meraki.events"}, pub.subjects)
	assert.Equal(t, []string{"{\"n\":1}\n", "{\"n\":2}\n", "{\"n\":3}\n"}, pub.data)
	assert.NoError(t, s.Close())
}

func TestJetStream_PublishFailuresCounted(t *testing.T) {
	pub := &fakePublisher{failOn: "bad"}

	res, err := newJetStreamWithPublisher(pub, "meraki.events").PutRecordBatch(context.Background(), records(`{"ok":1}`, `{"bad":1}`))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, res.Errors, 1)
	assert.Len(t, pub.data, 1)
}

func TestJetStream_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newJetStreamWithPublisher(&fakePublisher{}, "s").PutRecordBatch(ctx, records(`{}`))
	assert.ErrorIs(t, err, context.Canceled)
}

// newBulkServer answers _bulk requests, failing documents that contain "poison".
func newBulkServer(t *testing.T, docs *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !strings.Contains(r.URL.Path, "/_bulk") {
			_, _ = w.Write([]byte(`{"version":{"number":"2.11.0"}}`))
			return
		}

		body, _ := io.ReadAll(r.Body)
		sc := bufio.NewScanner(bytes.NewReader(body))
		var lines []string
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				lines = append(lines, line)
			}
		}

		var items []map[string]any
		hasErrors := false
		for i := 1; i < len(lines); i += 2 {
			*docs = append(*docs, lines[i])
			item := map[string]any{"_index": "meraki-events", "status": 201, "result": "created"}
			if strings.Contains(lines[i], "poison") {
				hasErrors = true
				item["status"] = 400
				item["error"] = map[string]any{"type": "mapper_parsing_exception", "reason": "failed to parse"}
			}
			items = append(items, map[string]any{"index": item})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"took": 1, "errors": hasErrors, "items": items})
	}))
}

func TestOpenSearch_PutRecordBatch(t *testing.T) {
	var docs []string
	server := newBulkServer(t, &docs)
	defer server.Close()

	s, err := NewOpenSearch(OpenSearchConfig{URL: server.URL, Index: "meraki-events"})
	require.NoError(t, err)

	res, err := s.PutRecordBatch(context.Background(), records(`{"type":"association"}`, `{"type":"poison"}`, `{"type":"roam"}`))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Submitted)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "mapper_parsing_exception")

	assert.Equal(t, []string{`{"type":"association"}`, `{"type":"poison"}`, `{"type":"roam"}`}, docs)
	assert.NoError(t, s.Close())
}

func TestBatchResult_ErrorCap(t *testing.T) {
	res := &BatchResult{}
	for i := 0; i < maxErrors+5; i++ {
		res.addError("x")
	}
	assert.Equal(t, maxErrors+5, res.Failed)
	assert.Len(t, res.Errors, maxErrors)
}
