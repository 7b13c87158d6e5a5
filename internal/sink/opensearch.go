package sink

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchutil"
)

// OpenSearchConfig holds cluster connection settings.
type OpenSearchConfig struct {
	URL           string
	Username      string
	Password      string
	TLSSkipVerify bool
	Index         string
}

// OpenSearch indexes each record as a document through the bulk API.
type OpenSearch struct {
	client *opensearch.Client
	index  string
}

func NewOpenSearch(cfg OpenSearchConfig) (*OpenSearch, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.TLSSkipVerify,
		},
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	return &OpenSearch{client: client, index: cfg.Index}, nil
}

func (s *OpenSearch) PutRecordBatch(ctx context.Context, records [][]byte) (*BatchResult, error) {
	bi, err := opensearchutil.NewBulkIndexer(opensearchutil.BulkIndexerConfig{
		Client:     s.client,
		Index:      s.index,
		NumWorkers: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create bulk indexer: %w", err)
	}

	var mu sync.Mutex
	res := &BatchResult{Submitted: len(records)}

	for _, rec := range records {
		err := bi.Add(ctx, opensearchutil.BulkIndexerItem{
			Action: "index",
			Body:   bytes.NewReader(bytes.TrimRight(rec, "\n")),
			OnFailure: func(_ context.Context, _ opensearchutil.BulkIndexerItem, item opensearchutil.BulkIndexerResponseItem, err error) {
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					res.addError(err.Error())
				} else {
					res.addError(fmt.Sprintf("%s: %s", item.Error.Type, item.Error.Reason))
				}
			},
		})
		if err != nil {
			_ = bi.Close(ctx)
			return nil, fmt.Errorf("add to bulk indexer: %w", err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return nil, fmt.Errorf("flush bulk indexer: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	return res, nil
}

func (s *OpenSearch) Close() error { return nil }
