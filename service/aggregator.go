// Package service wires configuration, transport, state and components into
// the running aggregator.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/citytwin/component"
	"github.com/c360/citytwin/config"
	"github.com/c360/citytwin/errors"
	"github.com/c360/citytwin/input/telemetry"
	"github.com/c360/citytwin/metric"
	"github.com/c360/citytwin/natsclient"
	"github.com/c360/citytwin/output/twin"
	"github.com/c360/citytwin/output/websocket"
	"github.com/c360/citytwin/pkg/retry"
	"github.com/c360/citytwin/snapshot"
	"github.com/c360/citytwin/state"
)

// Status represents the current status of the aggregator
type Status int

// Possible aggregator statuses
const (
	StatusStopped Status = iota
	StatusStarting
	StatusRunning
	StatusStopping
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

const defaultStopTimeout = 10 * time.Second

// Aggregator owns the full pipeline: telemetry consumers feeding the state
// store, the snapshot publisher draining it, and the optional metrics and
// websocket surfaces around them.
type Aggregator struct {
	cfg    *config.Config
	logger *slog.Logger

	registry      *metric.MetricsRegistry
	metricsServer *metric.Server
	natsClient    *natsclient.Client
	store         *state.Store
	consumer      *telemetry.Consumer
	publisher     *twin.Publisher
	feed          *websocket.Feed

	status      atomic.Value // Status
	startTime   time.Time
	stopTimeout time.Duration
}

// Option is a functional option for configuring the aggregator
type Option func(*Aggregator)

// WithStopTimeout overrides the per-component shutdown budget
func WithStopTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.stopTimeout = d }
}

// New builds the aggregator from validated configuration
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Aggregator, error) {
	if cfg == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("nil config"),
			"Aggregator", "New", "config validation")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Aggregator", "New", "config validation")
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &Aggregator{
		cfg:         cfg,
		logger:      logger.With("service", "citytwin-aggregator"),
		stopTimeout: defaultStopTimeout,
	}
	a.status.Store(StatusStopped)
	for _, opt := range opts {
		opt(a)
	}

	var registry *metric.MetricsRegistry
	if cfg.Metrics.Enabled {
		registry = metric.NewMetricsRegistry()
		a.registry = registry
		a.metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
	}

	clientOpts := []natsclient.ClientOption{
		natsclient.WithName(clientName(cfg)),
	}
	if registry != nil {
		clientOpts = append(clientOpts, natsclient.WithMetrics(registry))
	}
	if cfg.NATS.Username != "" {
		clientOpts = append(clientOpts,
			natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		clientOpts = append(clientOpts, natsclient.WithToken(cfg.NATS.Token))
	}
	if cfg.NATS.MaxReconnects != 0 {
		clientOpts = append(clientOpts, natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects))
	}
	if cfg.NATS.ReconnectWait > 0 {
		clientOpts = append(clientOpts, natsclient.WithReconnectWait(cfg.NATS.ReconnectWait))
	}

	client, err := natsclient.NewClient(cfg.NATS.URLs[0], clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Aggregator", "New", "NATS client construction")
	}
	a.natsClient = client

	var storeOpts []state.StoreOption
	if cfg.State.EvictStaleData {
		storeOpts = append(storeOpts, state.WithStaleDataEviction())
	}
	a.store = state.NewStore(cfg.State.TTL(), storeOpts...)

	if cfg.WebSocket.Enabled {
		a.feed = websocket.NewFeed(websocket.FeedDeps{
			Name:            "websocket-feed",
			Host:            cfg.WebSocket.Host,
			Port:            cfg.WebSocket.Port,
			Path:            cfg.WebSocket.Path,
			MetricsRegistry: registry,
			Logger:          logger.With("component", "websocket-feed"),
		})
	}

	var broadcast func(*snapshot.Document)
	if a.feed != nil {
		broadcast = a.feed.Broadcast
	}

	a.publisher = twin.NewPublisher(twin.PublisherDeps{
		Name:            "twin-publisher",
		Store:           a.store,
		Builder:         snapshot.NewBuilder(cfg.City),
		Subject:         cfg.Streams.OutputSubject,
		Stream:          cfg.Streams.OutputStream,
		Interval:        cfg.Scheduler.Interval(),
		PublishTimeout:  cfg.Scheduler.PublishTimeout,
		NATSClient:      client,
		MetricsRegistry: registry,
		Logger:          logger.With("component", "twin-publisher"),
		Broadcast:       broadcast,
	})

	a.consumer = telemetry.NewConsumer(telemetry.ConsumerDeps{
		Name:             "telemetry-consumer",
		Store:            a.store,
		Subjects:         cfg.Streams.InputSubjects(),
		Group:            cfg.Streams.ConsumerGroup,
		SubscribeRetries: cfg.Streams.SubscribeRetries,
		SubscribeDelay:   cfg.Streams.SubscribeDelay,
		NATSClient:       client,
		MetricsRegistry:  registry,
		Logger:           logger.With("component", "telemetry-consumer"),
	})

	return a, nil
}

// Status returns the current aggregator status
func (a *Aggregator) Status() Status {
	return a.status.Load().(Status)
}

// Store exposes the state store, mainly for tests and diagnostics
func (a *Aggregator) Store() *state.Store {
	return a.store
}

// Run starts every component, blocks until ctx is cancelled, then shuts the
// pipeline down in reverse dependency order. The returned error is the
// startup failure if one occurred, otherwise nil.
func (a *Aggregator) Run(ctx context.Context) error {
	a.status.Store(StatusStarting)
	a.startTime = time.Now()
	a.logger.Info("starting aggregator", "city", a.cfg.City.CityID)

	g, gctx := errgroup.WithContext(ctx)

	if a.metricsServer != nil {
		g.Go(func() error {
			if err := a.metricsServer.Start(); err != nil {
				return errors.Wrap(err, "Aggregator", "Run", "metrics server")
			}
			return nil
		})
		a.logger.Info("metrics server starting", "address", a.metricsServer.Address())
	}

	if err := a.connect(gctx); err != nil {
		a.shutdown()
		return err
	}

	if err := a.startComponents(gctx); err != nil {
		a.shutdown()
		return err
	}

	a.status.Store(StatusRunning)
	a.logger.Info("aggregator running",
		"streams", len(a.cfg.Streams.InputSubjects()),
		"interval", a.cfg.Scheduler.Interval(),
		"ttl", a.cfg.State.TTL())

	g.Go(func() error {
		<-gctx.Done()
		if a.metricsServer != nil {
			_ = a.metricsServer.Stop()
		}
		return nil
	})
	_ = g.Wait()

	a.shutdown()
	return nil
}

// connect establishes the NATS connection within a fixed retry budget.
// Exhausting it is fatal: without the producer path the service is useless.
func (a *Aggregator) connect(ctx context.Context) error {
	attempts := a.cfg.Scheduler.ConnectAttempts
	if attempts <= 0 {
		attempts = 10
	}
	delay := a.cfg.Scheduler.ConnectDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}

	err := retry.Do(ctx, retry.Fixed(attempts, delay), func() error {
		return a.natsClient.Connect(ctx)
	})
	if err != nil {
		return errors.WrapFatal(errors.ErrMaxRetriesExceeded,
			"Aggregator", "connect",
			fmt.Sprintf("NATS unreachable after %d attempts: %v", attempts, err))
	}

	a.logger.Info("connected to NATS", "url", a.natsClient.URL())
	return nil
}

// startComponents initializes and starts the pipeline, outputs before
// inputs so no consumed record can arrive before the publisher exists
func (a *Aggregator) startComponents(ctx context.Context) error {
	components := a.lifecycleComponents()

	for _, c := range components {
		if err := c.Initialize(); err != nil {
			return errors.Wrap(err, "Aggregator", "startComponents", "component initialization")
		}
	}
	for _, c := range components {
		if err := c.Start(ctx); err != nil {
			return errors.Wrap(err, "Aggregator", "startComponents", "component start")
		}
	}
	return nil
}

// lifecycleComponents returns the pipeline in start order; shutdown walks
// it in reverse
func (a *Aggregator) lifecycleComponents() []component.LifecycleComponent {
	components := make([]component.LifecycleComponent, 0, 3)
	if a.feed != nil {
		components = append(components, a.feed)
	}
	components = append(components, a.publisher, a.consumer)
	return components
}

// shutdown stops inputs first so the store goes quiet, then the publisher
// and feed, then the transport
func (a *Aggregator) shutdown() {
	a.status.Store(StatusStopping)
	a.logger.Info("shutting down aggregator")

	components := a.lifecycleComponents()
	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		if err := c.Stop(a.stopTimeout); err != nil {
			a.logger.Warn("component stop failed", "component", c.Meta().Name, "error", err)
		}
	}

	if a.metricsServer != nil {
		if err := a.metricsServer.Stop(); err != nil {
			a.logger.Warn("metrics server stop failed", "error", err)
		}
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), a.stopTimeout)
	defer cancel()
	if err := a.natsClient.Close(closeCtx); err != nil {
		a.logger.Warn("NATS close failed", "error", err)
	}

	a.logger.Info("aggregator stopped",
		"uptime", time.Since(a.startTime).Round(time.Second),
		"records_consumed", a.consumer.Consumed(),
		"records_dropped", a.consumer.Dropped(),
		"snapshots_published", a.publisher.Published(),
		"cycles_skipped", a.publisher.Skipped(),
		"cycles_failed", a.publisher.Failed(),
		"state", a.store.Stats())

	a.status.Store(StatusStopped)
}

func clientName(cfg *config.Config) string {
	if cfg.NATS.ClientName != "" {
		return cfg.NATS.ClientName
	}
	return "citytwin-aggregator"
}
