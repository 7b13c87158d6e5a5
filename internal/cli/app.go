package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/jeffbryner/meraki-activity/common/logging"
	"github.com/jeffbryner/meraki-activity/internal/awsclient"
	"github.com/jeffbryner/meraki-activity/internal/config"
	"github.com/jeffbryner/meraki-activity/internal/meraki"
	"github.com/jeffbryner/meraki-activity/internal/poller"
	"github.com/jeffbryner/meraki-activity/internal/relay"
	"github.com/jeffbryner/meraki-activity/internal/secrets"
	"github.com/jeffbryner/meraki-activity/internal/sink"
	"github.com/jeffbryner/meraki-activity/internal/watermark"
)

// app is a fully wired poller plus whatever needs closing on exit.
type app struct {
	poller  *poller.Poller
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// newApp validates cfg and builds every backend it selects.
func newApp(ctx context.Context, cfg *config.Config, logger *logging.Logger) (_ *app, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		c, err := awsclient.Load(ctx, cfg.AWS)
		if err != nil {
			return aws.Config{}, err
		}
		awsCfg = &c
		return c, nil
	}

	resolver, err := newResolver(cfg, loadAWS)
	if err != nil {
		return nil, err
	}

	store, err := newStore(ctx, cfg, loadAWS, a)
	if err != nil {
		return nil, err
	}

	dst, err := newSink(ctx, cfg, loadAWS, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, dst.Close)

	logger.Info("backends configured",
		"sink", cfg.Sink.Backend,
		"watermark", cfg.Watermark.Backend,
		"secrets", cfg.Secrets.Backend,
		logging.Stream(cfg.Sink.Stream),
	)

	sender := relay.New(dst, cfg.Sink.BatchSize,
		relay.WithFailOnRejected(cfg.Sink.FailOnRejected),
		relay.WithLogger(logger),
	)

	newClient := func(apiKey string) poller.VendorAPI {
		return meraki.NewClient(cfg.Meraki.BaseURL, apiKey, meraki.WithTimeout(cfg.Meraki.Timeout))
	}

	a.poller = poller.New(poller.Config{
		APIKeySecret:   cfg.Meraki.APIKeySecret,
		OrganizationID: cfg.Meraki.OrganizationID,
		ProductTypes:   meraki.NewProductTypes(cfg.Meraki.ProductTypes...),
		PerPage:        cfg.Meraki.PerPage,
		MaxPages:       cfg.Meraki.MaxPages,
		WatermarkKey:   cfg.Watermark.Key,
		Lookback:       cfg.Watermark.Lookback,
	}, resolver, newClient, store, sender, poller.WithLogger(logger))

	return a, nil
}

func newResolver(cfg *config.Config, loadAWS func() (aws.Config, error)) (secrets.Resolver, error) {
	switch cfg.Secrets.Backend {
	case config.SecretsEnv:
		return secrets.NewEnv(), nil
	default:
		awsCfg, err := loadAWS()
		if err != nil {
			return nil, err
		}
		return secrets.NewSecretsManager(awsCfg), nil
	}
}

func newStore(ctx context.Context, cfg *config.Config, loadAWS func() (aws.Config, error), a *app) (watermark.Store, error) {
	switch cfg.Watermark.Backend {
	case config.WatermarkMemory:
		return watermark.NewMemoryStore(), nil
	case config.WatermarkRedis:
		s, err := watermark.NewRedisStore(ctx, cfg.Watermark.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case config.WatermarkPostgres:
		if err := watermark.Migrate(cfg.Watermark.PostgresURL); err != nil {
			return nil, err
		}
		s, err := watermark.NewPostgresStore(ctx, cfg.Watermark.PostgresURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			s.Close()
			return nil
		})
		return s, nil
	default:
		awsCfg, err := loadAWS()
		if err != nil {
			return nil, err
		}
		return watermark.NewSSMStore(awsCfg), nil
	}
}

func newSink(ctx context.Context, cfg *config.Config, loadAWS func() (aws.Config, error), logger *logging.Logger) (sink.Sink, error) {
	switch cfg.Sink.Backend {
	case config.SinkJetStream:
		return sink.NewJetStream(ctx, sink.JetStreamConfig{
			URL:           cfg.NATS.URL,
			Name:          serviceName,
			StreamName:    cfg.NATS.StreamName,
			Subject:       cfg.Sink.Subject,
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: cfg.NATS.ReconnectWait,
		}, logger)
	case config.SinkOpenSearch:
		return sink.NewOpenSearch(sink.OpenSearchConfig{
			URL:           cfg.OpenSearch.URL,
			Username:      cfg.OpenSearch.Username,
			Password:      cfg.OpenSearch.Password,
			TLSSkipVerify: cfg.OpenSearch.TLSSkipVerify,
			Index:         cfg.Sink.Index,
		})
	default:
		awsCfg, err := loadAWS()
		if err != nil {
			return nil, err
		}
		return sink.NewFirehose(awsCfg, cfg.Sink.Stream), nil
	}
}
