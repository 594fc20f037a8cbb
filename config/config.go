package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Config represents the complete aggregator configuration
type Config struct {
	Version   string          `json:"version"` // Semantic version (e.g., "1.0.0")
	City      CityConfig      `json:"city"`
	NATS      NATSConfig      `json:"nats"`
	Streams   StreamsConfig   `json:"streams"`
	State     StateConfig     `json:"state"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Metrics   MetricsConfig   `json:"metrics"`
	WebSocket WebSocketConfig `json:"websocket"`
}

// CityConfig identifies the city instance stamped onto every snapshot
type CityConfig struct {
	CityID  string `json:"city_id"`
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URLs          []string      `json:"urls,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
	ClientName    string        `json:"client_name,omitempty"`
}

// StreamsConfig names the telemetry input subjects and the outbound snapshot
// stream. ConsumerGroup is the queue group shared by horizontally scaled
// aggregator instances. SubscribeRetries and SubscribeDelay bound the
// per-stream subscription retry budget.
type StreamsConfig struct {
	Speed            string        `json:"speed"`
	Weather          string        `json:"weather"`
	Camera           string        `json:"camera"`
	Vehicle          string        `json:"vehicle"`
	Building         string        `json:"building"`
	OutputSubject    string        `json:"output_subject"`
	OutputStream     string        `json:"output_stream"`
	ConsumerGroup    string        `json:"consumer_group,omitempty"`
	SubscribeRetries int           `json:"subscribe_retries,omitempty"`
	SubscribeDelay   time.Duration `json:"subscribe_delay,omitempty"`
}

// InputSubjects returns the input stream names mapped to their subjects.
// Empty subjects are omitted, which disables that consumer.
func (s StreamsConfig) InputSubjects() map[string]string {
	all := map[string]string{
		"speed":    s.Speed,
		"weather":  s.Weather,
		"camera":   s.Camera,
		"vehicle":  s.Vehicle,
		"building": s.Building,
	}
	out := make(map[string]string, len(all))
	for name, subject := range all {
		if subject != "" {
			out[name] = subject
		}
	}
	return out
}

// StateConfig controls staleness handling in the state store
type StateConfig struct {
	TTLSeconds     int  `json:"ttl_seconds"`
	EvictStaleData bool `json:"evict_stale_data"`
}

// TTL returns the staleness TTL as a duration
func (s StateConfig) TTL() time.Duration {
	return time.Duration(s.TTLSeconds) * time.Second
}

// SchedulerConfig controls the snapshot publish cycle
type SchedulerConfig struct {
	IntervalSeconds int           `json:"interval_seconds"`
	PublishTimeout  time.Duration `json:"publish_timeout,omitempty"`
	ConnectAttempts int           `json:"connect_attempts,omitempty"`
	ConnectDelay    time.Duration `json:"connect_delay,omitempty"`
}

// Interval returns the snapshot cadence as a duration
func (s SchedulerConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// MetricsConfig controls the Prometheus HTTP endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port,omitempty"`
	Path    string `json:"path,omitempty"`
}

// WebSocketConfig controls the live snapshot feed
type WebSocketConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host,omitempty"`
	Port    int    `json:"port,omitempty"`
	Path    string `json:"path,omitempty"`
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}

	return &clone
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.City.CityID == "" {
		return errors.New("city.city_id is required")
	}

	if len(c.NATS.URLs) == 0 {
		return errors.New("nats.urls is required")
	}

	if len(c.Streams.InputSubjects()) == 0 {
		return errors.New("streams: at least one input subject is required")
	}
	if c.Streams.OutputSubject == "" {
		return errors.New("streams.output_subject is required")
	}
	if c.Streams.OutputStream == "" {
		return errors.New("streams.output_stream is required")
	}
	if c.Streams.ConsumerGroup != "" && !isValidNATSSubjectPart(c.Streams.ConsumerGroup) {
		return fmt.Errorf(
			"streams.consumer_group %q is not valid for NATS (must be alphanumeric with dots, dashes, underscores)",
			c.Streams.ConsumerGroup,
		)
	}
	for name, subject := range c.Streams.InputSubjects() {
		if strings.ContainsAny(subject, " \t") {
			return fmt.Errorf("streams.%s: subject %q contains whitespace", name, subject)
		}
	}
	if c.Streams.SubscribeRetries < 0 {
		return errors.New("streams.subscribe_retries cannot be negative")
	}
	if c.Streams.SubscribeDelay < 0 {
		return errors.New("streams.subscribe_delay cannot be negative")
	}

	if c.State.TTLSeconds <= 0 {
		return errors.New("state.ttl_seconds must be positive")
	}

	if c.Scheduler.IntervalSeconds <= 0 {
		return errors.New("scheduler.interval_seconds must be positive")
	}
	if c.Scheduler.PublishTimeout < 0 {
		return errors.New("scheduler.publish_timeout cannot be negative")
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port %d out of range", c.Metrics.Port)
	}
	if c.WebSocket.Enabled && (c.WebSocket.Port <= 0 || c.WebSocket.Port > 65535) {
		return fmt.Errorf("websocket.port %d out of range", c.WebSocket.Port)
	}

	return nil
}

// isValidNATSSubjectPart checks if a string is valid for use in NATS subjects.
// Valid characters are alphanumeric, dots, dashes, and underscores.
func isValidNATSSubjectPart(s string) bool {
	if len(s) == 0 {
		return false
	}

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) &&
			r != '-' && r != '_' && r != '.' {
			return false
		}
	}
	return true
}

// String returns a JSON representation of the config with credentials redacted
func (c *Config) String() string {
	clone := c.Clone()
	if clone.NATS.Password != "" {
		clone.NATS.Password = "[redacted]"
	}
	if clone.NATS.Token != "" {
		clone.NATS.Token = "[redacted]"
	}
	data, _ := json.MarshalIndent(clone, "", "  ")
	return string(data)
}
