// Package telemetry consumes city telemetry streams from NATS and applies
// them to the state store.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/citytwin/component"
	"github.com/c360/citytwin/errors"
	"github.com/c360/citytwin/metric"
	"github.com/c360/citytwin/natsclient"
	"github.com/c360/citytwin/pkg/retry"
	"github.com/c360/citytwin/state"
)

// Stream names understood by the consumer. Each maps to a configured NATS
// subject and a record codec.
const (
	StreamSpeed    = "speed"
	StreamWeather  = "weather"
	StreamCamera   = "camera"
	StreamVehicle  = "vehicle"
	StreamBuilding = "building"
)

const msgChanCapacity = 1024

// ConsumerDeps holds runtime dependencies for the telemetry consumer
type ConsumerDeps struct {
	Name             string
	Store            *state.Store
	Subjects         map[string]string // stream name -> NATS subject
	Group            string            // queue group shared across instances
	SubscribeRetries int
	SubscribeDelay   time.Duration
	NATSClient       *natsclient.Client
	MetricsRegistry  *metric.MetricsRegistry
	Logger           *slog.Logger
}

// Consumer subscribes one goroutine per telemetry stream, decodes each
// record and upserts it into the state store. Malformed records are dropped
// and counted, never fatal. A stream whose subscription cannot be
// established within the retry budget is abandoned; the others keep running.
type Consumer struct {
	name       string
	store      *state.Store
	subjects   map[string]string
	group      string
	natsClient *natsclient.Client
	logger     *slog.Logger

	subscribeRetry retry.Config

	shutdown  chan struct{}
	running   atomic.Bool
	startTime time.Time
	wg        sync.WaitGroup
	mu        sync.Mutex
	subs      []*nats.Subscription

	consumed     atomic.Int64
	dropped      atomic.Int64
	lastActivity atomic.Value // stores time.Time

	metrics *Metrics
}

var _ component.Discoverable = (*Consumer)(nil)
var _ component.LifecycleComponent = (*Consumer)(nil)

// NewConsumer creates a telemetry consumer
func NewConsumer(deps ConsumerDeps) *Consumer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "telemetry-consumer")
	}

	attempts := deps.SubscribeRetries
	if attempts <= 0 {
		attempts = 5
	}
	delay := deps.SubscribeDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}

	c := &Consumer{
		name:           deps.Name,
		store:          deps.Store,
		subjects:       deps.Subjects,
		group:          deps.Group,
		natsClient:     deps.NATSClient,
		logger:         logger,
		subscribeRetry: retry.Fixed(attempts, delay),
		startTime:      time.Now(),
		metrics:        newMetrics(deps.MetricsRegistry),
	}
	c.lastActivity.Store(time.Time{})
	return c
}

// Meta returns the component metadata
func (c *Consumer) Meta() component.Metadata {
	name := c.name
	if name == "" {
		name = "telemetry-consumer"
	}
	return component.Metadata{
		Name:        name,
		Type:        "input",
		Description: fmt.Sprintf("telemetry consumer for %d streams", len(c.subjects)),
		Version:     "1.0.0",
	}
}

// InputPorts returns one NATS port per configured stream
func (c *Consumer) InputPorts() []component.Port {
	ports := make([]component.Port, 0, len(c.subjects))
	for _, stream := range c.streamNames() {
		ports = append(ports, component.Port{
			Name:        stream,
			Direction:   component.DirectionInput,
			Required:    true,
			Description: fmt.Sprintf("%s telemetry stream", stream),
			Config: component.NATSPort{
				Subject: c.subjects[stream],
				Queue:   c.group,
			},
		})
	}
	return ports
}

// OutputPorts returns no ports; the consumer writes to the state store
func (c *Consumer) OutputPorts() []component.Port {
	return nil
}

// ConfigSchema returns the configuration schema for this component
func (c *Consumer) ConfigSchema() component.ConfigSchema {
	return component.ConfigSchema{}
}

// Health reports whether the consumer is running with a live connection
func (c *Consumer) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:    c.running.Load() && c.natsClient != nil && c.natsClient.IsHealthy(),
		LastCheck:  time.Now(),
		ErrorCount: int(c.dropped.Load()),
		Uptime:     time.Since(c.startTime),
	}
}

// DataFlow returns consumption rates since start
func (c *Consumer) DataFlow() component.FlowMetrics {
	consumed := c.consumed.Load()
	dropped := c.dropped.Load()
	lastActivity, _ := c.lastActivity.Load().(time.Time)

	var perSecond, errorRate float64
	if uptime := time.Since(c.startTime).Seconds(); uptime > 0 {
		perSecond = float64(consumed) / uptime
	}
	if total := consumed + dropped; total > 0 {
		errorRate = float64(dropped) / float64(total)
	}

	return component.FlowMetrics{
		MessagesPerSecond: perSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Initialize validates the consumer's wiring
func (c *Consumer) Initialize() error {
	if c.store == nil {
		return errors.WrapInvalid(fmt.Errorf("nil state store"),
			"TelemetryConsumer", "Initialize", "store validation")
	}
	if c.natsClient == nil {
		return errors.WrapInvalid(fmt.Errorf("nil NATS client"),
			"TelemetryConsumer", "Initialize", "NATS client validation")
	}
	if len(c.subjects) == 0 {
		return errors.WrapInvalid(fmt.Errorf("no input subjects configured"),
			"TelemetryConsumer", "Initialize", "subject validation")
	}
	for stream := range c.subjects {
		if applierFor(stream) == nil {
			return errors.WrapInvalid(fmt.Errorf("unknown stream %q", stream),
				"TelemetryConsumer", "Initialize", "stream validation")
		}
	}
	return nil
}

// Start launches one consume goroutine per configured stream
func (c *Consumer) Start(ctx context.Context) error {
	if c.running.Load() {
		return nil
	}

	c.shutdown = make(chan struct{})
	c.running.Store(true)
	c.startTime = time.Now()

	for _, stream := range c.streamNames() {
		c.wg.Add(1)
		go func(stream, subject string) {
			defer c.wg.Done()
			c.consumeStream(ctx, stream, subject)
		}(stream, c.subjects[stream])
	}

	return nil
}

// Stop signals all consume goroutines and waits up to timeout
func (c *Consumer) Stop(timeout time.Duration) error {
	if !c.running.Load() {
		return nil
	}
	c.running.Store(false)

	close(c.shutdown)

	c.mu.Lock()
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.subs = nil
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"TelemetryConsumer", "Stop", "graceful shutdown")
	}
}

// consumeStream subscribes to one stream and processes records until
// shutdown. Subscription failures burn through a fixed retry budget; when
// it is exhausted this stream is abandoned and the rest of the service
// keeps running.
func (c *Consumer) consumeStream(ctx context.Context, stream, subject string) {
	ch := make(chan *nats.Msg, msgChanCapacity)

	var sub *nats.Subscription
	err := retry.Do(ctx, c.subscribeRetry, func() error {
		s, err := c.natsClient.ChanQueueSubscribe(subject, c.group, ch)
		if err != nil {
			if c.metrics != nil {
				c.metrics.subscribeRetries.WithLabelValues(stream).Inc()
			}
			return err
		}
		sub = s
		return nil
	})
	if err != nil {
		c.logger.Error("abandoning stream, subscribe retries exhausted",
			"stream", stream, "subject", subject, "error", err)
		return
	}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.streamsActive.Inc()
		defer c.metrics.streamsActive.Dec()
	}
	c.logger.Info("consuming stream", "stream", stream, "subject", subject, "group", c.group)

	apply := applierFor(stream)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			c.handleRecord(stream, apply, msg.Data)
		}
	}
}

// applier decodes one record and upserts it into a store
type applier func(*state.Store, []byte) error

func applierFor(stream string) applier {
	switch stream {
	case StreamSpeed:
		return func(s *state.Store, data []byte) error {
			u, err := parseSpeed(data)
			if err != nil {
				return err
			}
			return s.UpsertSpeed(u)
		}
	case StreamWeather:
		return func(s *state.Store, data []byte) error {
			u, err := parseWeather(data)
			if err != nil {
				return err
			}
			return s.UpsertWeather(u)
		}
	case StreamCamera:
		return func(s *state.Store, data []byte) error {
			u, err := parseCamera(data)
			if err != nil {
				return err
			}
			return s.UpsertCamera(u)
		}
	case StreamVehicle:
		return func(s *state.Store, data []byte) error {
			v, err := parseVehicle(data)
			if err != nil {
				return err
			}
			return s.UpsertVehicle(v)
		}
	case StreamBuilding:
		return func(s *state.Store, data []byte) error {
			u, err := parseBuilding(data)
			if err != nil {
				return err
			}
			return s.UpsertBuildingSensor(u)
		}
	default:
		return nil
	}
}

func (c *Consumer) handleRecord(stream string, apply applier, data []byte) {
	if err := apply(c.store, data); err != nil {
		c.dropped.Add(1)
		reason := "apply"
		if errors.IsInvalid(err) {
			reason = "invalid"
		}
		if c.metrics != nil {
			c.metrics.recordsDropped.WithLabelValues(stream, reason).Inc()
		}
		c.logger.Warn("dropping record", "stream", stream, "reason", reason, "error", err)
		return
	}

	c.consumed.Add(1)
	now := time.Now()
	c.lastActivity.Store(now)
	if c.metrics != nil {
		c.metrics.recordsConsumed.WithLabelValues(stream).Inc()
		c.metrics.lastActivity.Set(float64(now.Unix()))
	}
}

// streamNames returns the configured stream names in stable order
func (c *Consumer) streamNames() []string {
	names := make([]string, 0, len(c.subjects))
	for name := range c.subjects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Consumed returns the number of records applied since start
func (c *Consumer) Consumed() int64 { return c.consumed.Load() }

// Dropped returns the number of records rejected since start
func (c *Consumer) Dropped() int64 { return c.dropped.Load() }
