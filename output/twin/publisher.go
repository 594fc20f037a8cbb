// Package twin publishes periodic digital-twin snapshots to JetStream.
package twin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/citytwin/component"
	"github.com/c360/citytwin/errors"
	"github.com/c360/citytwin/metric"
	"github.com/c360/citytwin/natsclient"
	"github.com/c360/citytwin/snapshot"
	"github.com/c360/citytwin/state"
)

const defaultPublishTimeout = 5 * time.Second

// PublisherDeps holds runtime dependencies for the snapshot publisher
type PublisherDeps struct {
	Name            string
	Store           *state.Store
	Builder         *snapshot.Builder
	Subject         string
	Stream          string
	Interval        time.Duration
	PublishTimeout  time.Duration
	NATSClient      *natsclient.Client
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger

	// Broadcast receives every successfully published document. Used by the
	// websocket feed; nil disables it.
	Broadcast func(*snapshot.Document)
}

// Publisher runs the snapshot cycle: on every tick it freezes the state
// store, builds the document and publishes it to JetStream with a bounded
// ack wait. Cycles are single-flight; a tick arriving while the previous
// cycle still runs is counted and skipped, never queued. A failed publish
// abandons that cycle without retry, the next tick starts fresh.
type Publisher struct {
	name           string
	store          *state.Store
	builder        *snapshot.Builder
	subject        string
	stream         string
	interval       time.Duration
	publishTimeout time.Duration
	natsClient     *natsclient.Client
	logger         *slog.Logger
	broadcast      func(*snapshot.Document)

	cycleActive atomic.Bool
	shutdown    chan struct{}
	running     atomic.Bool
	startTime   time.Time
	wg          sync.WaitGroup

	snapshotNumber atomic.Int64
	published      atomic.Int64
	skipped        atomic.Int64
	failed         atomic.Int64
	lastPublish    atomic.Value // stores time.Time

	metrics *Metrics
}

var _ component.Discoverable = (*Publisher)(nil)
var _ component.LifecycleComponent = (*Publisher)(nil)

// NewPublisher creates a snapshot publisher
func NewPublisher(deps PublisherDeps) *Publisher {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "twin-publisher")
	}

	timeout := deps.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}

	p := &Publisher{
		name:           deps.Name,
		store:          deps.Store,
		builder:        deps.Builder,
		subject:        deps.Subject,
		stream:         deps.Stream,
		interval:       deps.Interval,
		publishTimeout: timeout,
		natsClient:     deps.NATSClient,
		logger:         logger,
		broadcast:      deps.Broadcast,
		startTime:      time.Now(),
		metrics:        newMetrics(deps.MetricsRegistry),
	}
	p.lastPublish.Store(time.Time{})
	return p
}

// Meta returns the component metadata
func (p *Publisher) Meta() component.Metadata {
	name := p.name
	if name == "" {
		name = "twin-publisher"
	}
	return component.Metadata{
		Name:        name,
		Type:        "output",
		Description: fmt.Sprintf("snapshot publisher to %s every %s", p.subject, p.interval),
		Version:     "1.0.0",
	}
}

// InputPorts returns no ports; the publisher reads the state store directly
func (p *Publisher) InputPorts() []component.Port {
	return nil
}

// OutputPorts returns the JetStream output port
func (p *Publisher) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "snapshot",
			Direction:   component.DirectionOutput,
			Required:    true,
			Description: "digital-twin snapshot documents",
			Config: component.NATSPort{
				Subject: p.subject,
				Stream:  p.stream,
			},
		},
	}
}

// ConfigSchema returns the configuration schema for this component
func (p *Publisher) ConfigSchema() component.ConfigSchema {
	return component.ConfigSchema{}
}

// Health reports whether the publish loop is running
func (p *Publisher) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:    p.running.Load() && p.natsClient != nil && p.natsClient.IsHealthy(),
		LastCheck:  time.Now(),
		ErrorCount: int(p.failed.Load()),
		Uptime:     time.Since(p.startTime),
	}
}

// DataFlow returns publish rates since start
func (p *Publisher) DataFlow() component.FlowMetrics {
	published := p.published.Load()
	failed := p.failed.Load()
	lastPublish, _ := p.lastPublish.Load().(time.Time)

	var perSecond, errorRate float64
	if uptime := time.Since(p.startTime).Seconds(); uptime > 0 {
		perSecond = float64(published) / uptime
	}
	if total := published + failed; total > 0 {
		errorRate = float64(failed) / float64(total)
	}

	return component.FlowMetrics{
		MessagesPerSecond: perSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastPublish,
	}
}

// Initialize validates the publisher's wiring
func (p *Publisher) Initialize() error {
	if p.store == nil {
		return errors.WrapInvalid(fmt.Errorf("nil state store"),
			"TwinPublisher", "Initialize", "store validation")
	}
	if p.builder == nil {
		return errors.WrapInvalid(fmt.Errorf("nil snapshot builder"),
			"TwinPublisher", "Initialize", "builder validation")
	}
	if p.natsClient == nil {
		return errors.WrapInvalid(fmt.Errorf("nil NATS client"),
			"TwinPublisher", "Initialize", "NATS client validation")
	}
	if p.subject == "" || p.stream == "" {
		return errors.WrapInvalid(fmt.Errorf("subject and stream are required"),
			"TwinPublisher", "Initialize", "output validation")
	}
	if p.interval <= 0 {
		return errors.WrapInvalid(fmt.Errorf("interval %v must be positive", p.interval),
			"TwinPublisher", "Initialize", "interval validation")
	}
	return nil
}

// Start ensures the output stream exists and launches the publish loop
func (p *Publisher) Start(ctx context.Context) error {
	if p.running.Load() {
		return nil
	}

	if _, err := p.natsClient.EnsureStream(ctx, jetstream.StreamConfig{
		Name:     p.stream,
		Subjects: []string{p.subject},
	}); err != nil {
		return errors.Wrap(err, "TwinPublisher", "Start", "stream provisioning")
	}

	p.shutdown = make(chan struct{})
	p.running.Store(true)
	p.startTime = time.Now()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.publishLoop(ctx)
	}()

	return nil
}

// Stop halts the publish loop. An in-flight cycle is left to its bounded
// publish timeout rather than interrupted.
func (p *Publisher) Stop(timeout time.Duration) error {
	if !p.running.Load() {
		return nil
	}
	p.running.Store(false)
	close(p.shutdown)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"TwinPublisher", "Stop", "graceful shutdown")
	}
}

func (p *Publisher) publishLoop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("publish loop started",
		"subject", p.subject, "stream", p.stream, "interval", p.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			if !p.cycleActive.CompareAndSwap(false, true) {
				p.skipped.Add(1)
				if p.metrics != nil {
					p.metrics.cyclesSkipped.Inc()
				}
				p.logger.Warn("skipping cycle, previous cycle still in flight")
				continue
			}
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				defer p.cycleActive.Store(false)
				p.runCycle(ctx)
			}()
		}
	}
}

// runCycle executes one snapshot cycle end to end. Any failure logs,
// counts and abandons the cycle; there is no publish retry.
func (p *Publisher) runCycle(ctx context.Context) {
	buildStart := time.Now()
	snap := p.store.Snapshot(buildStart)
	doc := p.builder.Build(snap, buildStart, snapshot.RunStats{
		SnapshotNumber: p.snapshotNumber.Add(1),
		Uptime:         time.Since(p.startTime),
	})

	data, err := json.Marshal(doc)
	if err != nil {
		p.abandonCycle(err, "document encoding")
		return
	}

	if p.metrics != nil {
		p.metrics.buildDuration.Observe(time.Since(buildStart).Seconds())
		p.metrics.snapshotEntities.Set(float64(
			snap.Counts.Districts + snap.Counts.Edges + snap.Counts.Vehicles + snap.Counts.Buildings))
		p.metrics.snapshotBytes.Observe(float64(len(data)))
	}

	msg := &nats.Msg{
		Subject: p.subject,
		Data:    data,
		Header:  nats.Header{"Nats-Msg-Id": []string{uuid.NewString()}},
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()

	publishStart := time.Now()
	if err := p.natsClient.PublishMsgToStream(publishCtx, msg); err != nil {
		p.abandonCycle(err, "stream publish")
		return
	}

	now := time.Now()
	p.published.Add(1)
	p.lastPublish.Store(now)
	if p.metrics != nil {
		p.metrics.publishDuration.Observe(now.Sub(publishStart).Seconds())
		p.metrics.snapshotsPublished.Inc()
	}
	p.logger.Debug("snapshot published",
		"snapshot_number", doc.InternalStats.SnapshotNumber,
		"bytes", len(data),
		"entities", snap.Counts)

	if p.broadcast != nil {
		p.broadcast(doc)
	}
}

func (p *Publisher) abandonCycle(err error, action string) {
	p.failed.Add(1)
	if p.metrics != nil {
		p.metrics.publishFailures.Inc()
	}
	p.logger.Error("abandoning publish cycle", "action", action, "error", err)
}

// Published returns the number of snapshots acknowledged since start
func (p *Publisher) Published() int64 { return p.published.Load() }

// Skipped returns the number of ticks skipped due to an in-flight cycle
func (p *Publisher) Skipped() int64 { return p.skipped.Load() }

// Failed returns the number of abandoned cycles
func (p *Publisher) Failed() int64 { return p.failed.Load() }
