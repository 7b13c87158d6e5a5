// Package poller runs one pass over an organization's network event logs,
// relaying new events and advancing the watermark when any were found.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jeffbryner/meraki-activity/common/logging"
	"github.com/jeffbryner/meraki-activity/internal/meraki"
	"github.com/jeffbryner/meraki-activity/internal/metrics"
	"github.com/jeffbryner/meraki-activity/internal/relay"
	"github.com/jeffbryner/meraki-activity/internal/secrets"
	"github.com/jeffbryner/meraki-activity/internal/watermark"
)

// ErrOrganizationNotFound is returned when a configured organization id is
// not visible to the API key.
var ErrOrganizationNotFound = errors.New("organization not found")

// VendorAPI is the part of the Meraki dashboard API a run needs.
type VendorAPI interface {
	Organizations(ctx context.Context) ([]meraki.Organization, error)
	Networks(ctx context.Context, organizationID string) ([]meraki.Network, error)
	meraki.EventSource
}

// ClientFactory builds a VendorAPI for the resolved API key.
type ClientFactory func(apiKey string) VendorAPI

// Sender delivers one page of events.
type Sender interface {
	Send(ctx context.Context, events []meraki.Event) (*relay.Result, error)
}

// Config holds per-run settings.
type Config struct {
	APIKeySecret   string
	OrganizationID string
	ProductTypes   meraki.ProductTypes
	PerPage        int
	MaxPages       int
	WatermarkKey   string
	Lookback       time.Duration
}

// RunSummary reports what one run did.
type RunSummary struct {
	RunID             string        `json:"run_id" yaml:"run_id"`
	StartedAt         time.Time     `json:"started_at" yaml:"started_at"`
	Duration          time.Duration `json:"duration" yaml:"duration"`
	OrganizationID    string        `json:"organization_id" yaml:"organization_id"`
	Networks          int           `json:"networks" yaml:"networks"`
	Pairs             int           `json:"pairs" yaml:"pairs"`
	Requests          int           `json:"requests" yaml:"requests"`
	Pages             int           `json:"pages" yaml:"pages"`
	Events            int           `json:"events" yaml:"events"`
	Batches           int           `json:"batches" yaml:"batches"`
	Rejected          int           `json:"rejected" yaml:"rejected"`
	Truncated         int           `json:"truncated" yaml:"truncated"`
	WatermarkAdvanced bool          `json:"watermark_advanced" yaml:"watermark_advanced"`
	Watermark         string        `json:"watermark,omitempty" yaml:"watermark,omitempty"`
}

// Poller composes the secret resolver, vendor client, watermark store and
// relay. It holds no state between runs; the watermark is the only carry-over.
type Poller struct {
	cfg       Config
	secrets   secrets.Resolver
	newClient ClientFactory
	store     watermark.Store
	sender    Sender
	logger    *logging.Logger
	now       func() time.Time
}

type Option func(*Poller)

func WithLogger(l *logging.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// WithClock overrides time.Now, which fixes the candidate watermark in tests.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

func New(cfg Config, resolver secrets.Resolver, newClient ClientFactory, store watermark.Store, sender Sender, opts ...Option) *Poller {
	if cfg.WatermarkKey == "" {
		cfg.WatermarkKey = watermark.DefaultKey
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = watermark.DefaultLookback
	}
	p := &Poller{
		cfg:       cfg,
		secrets:   resolver,
		newClient: newClient,
		store:     store,
		sender:    sender,
		logger:    logging.Discard(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run performs one poll. The watermark moves to the run's start time only
// when at least one event was relayed, nothing failed and no event log was
// cut short by the page limit. Otherwise it stays where it was so the next
// run refetches the same window.
func (p *Poller) Run(ctx context.Context) (*RunSummary, error) {
	runStart := p.now().UTC()
	sum := &RunSummary{RunID: newRunID(), StartedAt: runStart}
	ctx = logging.ContextWithRunID(ctx, sum.RunID)

	err := p.run(ctx, runStart, sum)
	sum.Duration = p.now().Sub(runStart)

	metrics.RunDuration.Observe(sum.Duration.Seconds())
	switch {
	case err != nil:
		metrics.RunsTotal.WithLabelValues(metrics.StatusError).Inc()
		p.logger.ErrorContext(ctx, "poll run failed", logging.Error(err), logging.Duration(sum.Duration))
		return sum, err
	case sum.Rejected > 0 || sum.Truncated > 0:
		metrics.RunsTotal.WithLabelValues(metrics.StatusPartial).Inc()
	default:
		metrics.RunsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
	}
	metrics.LastSuccessTimestamp.SetToCurrentTime()

	p.logger.InfoContext(ctx, "poll run complete",
		logging.OrgID(sum.OrganizationID),
		"networks", sum.Networks,
		"events", sum.Events,
		"rejected", sum.Rejected,
		"watermark_advanced", sum.WatermarkAdvanced,
		logging.Duration(sum.Duration),
	)
	return sum, nil
}

func (p *Poller) run(ctx context.Context, runStart time.Time, sum *RunSummary) error {
	apiKey, err := p.secrets.Resolve(ctx, p.cfg.APIKeySecret)
	if err != nil {
		return fmt.Errorf("resolve api key: %w", err)
	}
	client := p.newClient(apiKey)

	org, err := p.organization(ctx, client)
	if err != nil {
		return err
	}
	sum.OrganizationID = org.ID

	networks, err := client.Networks(ctx, org.ID)
	if err != nil {
		return fmt.Errorf("list networks for organization %s: %w", org.ID, err)
	}
	sum.Networks = len(networks)
	p.logger.InfoContext(ctx, "polling networks", logging.OrgID(org.ID), logging.Count(len(networks)))

	pager := meraki.NewPager(client, p.cfg.PerPage, p.cfg.MaxPages)
	defaultStart := watermark.DefaultStart(runStart, p.cfg.Lookback)
	recordsRetrieved := false

	for _, network := range networks {
		for _, productType := range p.cfg.ProductTypes.Intersect(network.ProductTypes) {
			sum.Pairs++

			// Re-read per pair; the stored value only changes at the end of the run.
			mark, err := p.store.Get(ctx, p.cfg.WatermarkKey, defaultStart)
			if err != nil {
				return fmt.Errorf("read watermark %s: %w", p.cfg.WatermarkKey, err)
			}

			log := p.logger.With(logging.NetworkID(network.ID), logging.ProductType(productType))
			log.DebugContext(ctx, "fetching events", logging.Watermark(mark))

			ps, err := pager.Fetch(ctx, network.ID, productType, watermark.VendorTimestamp(mark),
				func(ctx context.Context, page *meraki.EventPage) error {
					metrics.PagesTotal.WithLabelValues(productType).Inc()
					metrics.EventsTotal.WithLabelValues(productType).Add(float64(len(page.Events)))

					res, err := p.sender.Send(ctx, page.Events)
					if res != nil {
						sum.Batches += res.Batches
						sum.Rejected += res.Rejected
					}
					if err != nil {
						return fmt.Errorf("relay %s events for network %s: %w", productType, network.ID, err)
					}
					recordsRetrieved = true
					return nil
				})
			sum.Requests += ps.Requests
			sum.Pages += ps.Pages
			sum.Events += ps.Events
			if err != nil {
				return err
			}
			if ps.Truncated {
				sum.Truncated++
				metrics.PairsTruncated.WithLabelValues(productType).Inc()
				log.WarnContext(ctx, "page limit reached, remaining events wait for the next run",
					logging.Cursor(ps.Cursor), "max_pages", p.cfg.MaxPages)
			}
		}
	}

	if !recordsRetrieved {
		p.logger.InfoContext(ctx, "no new events, watermark unchanged")
		return nil
	}
	if sum.Truncated > 0 {
		metrics.WatermarkHeld.Inc()
		p.logger.WarnContext(ctx, "watermark held, page limit reached",
			"truncated", sum.Truncated, "max_pages", p.cfg.MaxPages)
		return nil
	}

	next := watermark.Format(runStart)
	if err := p.store.Set(ctx, p.cfg.WatermarkKey, next); err != nil {
		return fmt.Errorf("write watermark %s: %w", p.cfg.WatermarkKey, err)
	}
	sum.WatermarkAdvanced = true
	sum.Watermark = next
	metrics.WatermarkAdvanced.Inc()
	p.logger.InfoContext(ctx, "watermark advanced", logging.Watermark(next))
	return nil
}

func (p *Poller) organization(ctx context.Context, client VendorAPI) (meraki.Organization, error) {
	orgs, err := client.Organizations(ctx)
	if err != nil {
		return meraki.Organization{}, fmt.Errorf("list organizations: %w", err)
	}
	if len(orgs) == 0 {
		return meraki.Organization{}, meraki.ErrNoOrganizations
	}
	if p.cfg.OrganizationID == "" {
		return orgs[0], nil
	}
	for _, o := range orgs {
		if o.ID == p.cfg.OrganizationID {
			return o, nil
		}
	}
	return meraki.Organization{}, fmt.Errorf("%s: %w", p.cfg.OrganizationID, ErrOrganizationNotFound)
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
