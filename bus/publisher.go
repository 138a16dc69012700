package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

var (
	ErrNotConnected = errors.New("not connected to broker")
	ErrNoTopic      = errors.New("message has no topic")
)

// Status is the connection state reported to the presentation layer.
type Status struct {
	Connected bool
	URL       string
}

// Config describes the broker connection and subject naming.
type Config struct {
	URL      string
	Role     string
	ID       string
	Username string
	Password string

	// Stream backs the at-least-once topics. Empty disables JetStream.
	Stream         string
	ReconnectWait  time.Duration
	PublishTimeout time.Duration
}

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
	IsConnected() bool
	ConnectedUrl() string
	Drain() error
}

// AckPublisher publishes and waits for the broker to acknowledge.
type AckPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher sends messages to NATS. Best-effort topics use core publish,
// at-least-once topics go through JetStream when a stream is available.
type Publisher struct {
	cfg     Config
	log     *zap.Logger
	conn    Conn
	js      AckPublisher
	metrics *Metrics

	connected atomic.Bool
}

// Connect dials the broker. The connection keeps retrying in the background
// so the bridge can start before the broker is up.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger, metrics *Metrics) (*Publisher, error) {
	p := &Publisher{cfg: withDefaults(cfg), log: logger.Named("bus"), metrics: metrics}

	opts := []nats.Option{
		nats.Name("midi-bridge/" + p.cfg.Role),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(p.cfg.ReconnectWait),
		nats.RetryOnFailedConnect(true),
		nats.ConnectHandler(func(c *nats.Conn) { p.setConnected(true, c.ConnectedUrl()) }),
		nats.ReconnectHandler(func(c *nats.Conn) { p.setConnected(true, c.ConnectedUrl()) }),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			p.setConnected(false, "")
			if err != nil {
				p.log.Warn("disconnected from broker", zap.Error(err))
			}
		}),
	}
	if p.cfg.Username != "" {
		opts = append(opts, nats.UserInfo(p.cfg.Username, p.cfg.Password))
	}

	nc, err := nats.Connect(p.cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", p.cfg.URL, err)
	}
	p.conn = nc
	p.setConnected(nc.IsConnected(), nc.ConnectedUrl())

	if p.cfg.Stream != "" {
		p.js = p.setupStream(ctx, nc)
	}
	return p, nil
}

// NewPublisher wraps an existing connection.
func NewPublisher(conn Conn, js AckPublisher, cfg Config, logger *zap.Logger, metrics *Metrics) *Publisher {
	p := &Publisher{cfg: withDefaults(cfg), log: logger.Named("bus"), conn: conn, js: js, metrics: metrics}
	p.setConnected(conn.IsConnected(), conn.ConnectedUrl())
	return p
}

func withDefaults(cfg Config) Config {
	if cfg.Role == "" {
		cfg.Role = "midi"
	}
	if cfg.ID == "" {
		cfg.ID = "any"
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	return cfg
}

func (p *Publisher) setupStream(ctx context.Context, nc *nats.Conn) AckPublisher {
	js, err := jetstream.New(nc)
	if err != nil {
		p.log.Warn("JetStream unavailable, note topics fall back to core publish", zap.Error(err))
		return nil
	}

	subjects := []string{p.Subject(TopicNotesOn), p.Subject(TopicNotesOff)}
	sctx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
	defer cancel()
	_, err = js.CreateOrUpdateStream(sctx, jetstream.StreamConfig{
		Name:     p.cfg.Stream,
		Subjects: subjects,
		Storage:  jetstream.MemoryStorage,
		MaxMsgs:  10000,
	})
	if err != nil {
		p.log.Warn("could not create stream, note topics fall back to core publish",
			zap.String("stream", p.cfg.Stream), zap.Error(err))
		return nil
	}
	p.log.Info("stream ready", zap.String("stream", p.cfg.Stream), zap.Strings("subjects", subjects))
	return js
}

func (p *Publisher) setConnected(ok bool, url string) {
	p.connected.Store(ok)
	p.metrics.connected(ok)
	if ok {
		p.log.Info("connected to broker", zap.String("url", url))
	}
}

// Subject is the full subject for a topic: <role>.<id>.<topic>.
func (p *Publisher) Subject(t Topic) string {
	return strings.Join([]string{p.cfg.Role, p.cfg.ID, string(t)}, ".")
}

// Status reports connection state and broker address.
func (p *Publisher) Status() Status {
	s := Status{Connected: p.connected.Load() && p.conn.IsConnected()}
	if s.Connected {
		s.URL = p.conn.ConnectedUrl()
	} else {
		s.URL = p.cfg.URL
	}
	return s
}

// Publish encodes and sends one message.
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	topic := msg.Topic()
	if topic == "" {
		return ErrNoTopic
	}
	data, err := msg.Payload()
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	if !p.conn.IsConnected() {
		return ErrNotConnected
	}

	subject := p.Subject(topic)
	if msg.QoS() == AtLeastOnce && p.js != nil {
		pctx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
		defer cancel()
		if _, err := p.js.Publish(pctx, subject, data); err != nil {
			return fmt.Errorf("publish %s: %w", subject, err)
		}
		return nil
	}

	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Run publishes everything received on in until it is closed. Failed
// messages are logged and dropped.
func (p *Publisher) Run(ctx context.Context, in <-chan Message) {
	for msg := range in {
		if err := p.Publish(ctx, msg); err != nil {
			p.metrics.failed(msg.Topic())
			p.log.Error("publish failed, message dropped",
				zap.String("topic", string(msg.Topic())), zap.Error(err))
			continue
		}
		p.metrics.published(msg.Topic())
	}
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	p.connected.Store(false)
	p.metrics.connected(false)
	return p.conn.Drain()
}

// Discard stands in for the broker when the bus is disabled.
type Discard struct {
	Log *zap.Logger
}

func (d Discard) Run(_ context.Context, in <-chan Message) {
	for msg := range in {
		d.Log.Debug("bus disabled, discarding", zap.String("topic", string(msg.Topic())))
	}
}

func (Discard) Status() Status { return Status{} }

func (Discard) Close() error { return nil }
