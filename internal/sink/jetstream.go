package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/jeffbryner/meraki-activity/common/logging"
)

// JetStreamConfig holds NATS connection and stream settings.
type JetStreamConfig struct {
	URL           string
	Name          string
	StreamName    string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

type publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// JetStream publishes every record as one message on a subject captured by
// a durable stream.
type JetStream struct {
	conn    *nats.Conn
	js      publisher
	subject string
}

// NewJetStream connects to NATS and creates or updates the stream that
// captures cfg.Subject.
func NewJetStream(ctx context.Context, cfg JetStreamConfig, logger *logging.Logger) (*JetStream, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", logging.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.StreamName,
		Subjects:  []string{cfg.Subject},
		MaxAge:    7 * 24 * time.Hour,
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create/update stream %s: %w", cfg.StreamName, err)
	}

	return &JetStream{conn: conn, js: js, subject: cfg.Subject}, nil
}

func newJetStreamWithPublisher(js publisher, subject string) *JetStream {
	return &JetStream{js: js, subject: subject}
}

// PutRecordBatch publishes records in order and waits for each ack. A
// cancelled context fails the whole batch; other publish errors are counted
// per record.
func (s *JetStream) PutRecordBatch(ctx context.Context, records [][]byte) (*BatchResult, error) {
	res := &BatchResult{Submitted: len(records)}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := s.js.Publish(ctx, s.subject, rec); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("publish to %s: %w", s.subject, ctxErr)
			}
			res.addError(err.Error())
		}
	}
	return res, nil
}

func (s *JetStream) Close() error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
		return err
	}
	return nil
}
