package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"treasury/infrastructure/observability"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const (
	clientName       = "treasury"
	eventStreamName  = "treasury_events"
	inflowStreamName = "treasury_inflows"

	maxDeliveries = 3
	ackWait       = 30 * time.Second
	streamMaxAge  = 7 * 24 * time.Hour
)

var errNotConnected = errors.New("not connected to NATS JetStream")

// NATSClient wraps a NATS connection with JetStream for durable publish and subscribe
type NATSClient struct {
	servers              string
	nc                   *nats.Conn
	js                   nats.JetStreamContext
	subscriptions        map[string]*nats.Subscription
	mu                   sync.RWMutex
	reconnectDelay       time.Duration
	maxReconnectAttempts int
}

// NewNATSClient creates a new NATS client
func NewNATSClient(servers string) *NATSClient {
	return &NATSClient{
		servers:              servers,
		subscriptions:        make(map[string]*nats.Subscription),
		reconnectDelay:       2 * time.Second,
		maxReconnectAttempts: 10,
	}
}

// Connect establishes a connection to the NATS server with JetStream
func (c *NATSClient) Connect(ctx context.Context) error {
	opts := []nats.Option{
		nats.Name(clientName),
		nats.MaxReconnects(c.maxReconnectAttempts),
		nats.ReconnectWait(c.reconnectDelay),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Error("NATS disconnected with error")
			} else {
				log.Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			fields := log.Fields{"error": err}
			if sub != nil {
				fields["subject"] = sub.Subject
			}
			log.WithFields(fields).Error("NATS async error")
		}),
	}

	nc, err := nats.Connect(c.servers, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	c.mu.Lock()
	c.nc = nc
	c.js = js
	c.mu.Unlock()

	log.WithField("servers", c.servers).Info("Connected to NATS with JetStream")
	return nil
}

// consumerName derives a durable consumer name from a subject
func consumerName(subject string) string {
	replacer := strings.NewReplacer(".", "_", "*", "wildcard", ">", "all")
	return clientName + "-" + replacer.Replace(subject)
}

// jetStream returns the current JetStream context or errNotConnected
func (c *NATSClient) jetStream() (nats.JetStreamContext, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.js == nil {
		return nil, errNotConnected
	}
	return c.js, nil
}

// Subscribe registers a durable JetStream handler for the subject. Messages are
// acked when the handler returns nil and nak'ed for redelivery otherwise, up to
// maxDeliveries attempts.
func (c *NATSClient) Subscribe(subject string, handler func([]byte) error) error {
	js, err := c.jetStream()
	if err != nil {
		return err
	}

	sub, err := js.Subscribe(subject, func(msg *nats.Msg) {
		observability.GetMetrics().RecordNATSMessageReceived(subject)

		handleErr := handler(msg.Data)
		if handleErr == nil {
			if ackErr := msg.Ack(); ackErr != nil {
				log.WithError(ackErr).Error("Failed to ACK message")
			}
			return
		}

		fields := log.Fields{"subject": subject, "error": handleErr}
		if meta, metaErr := msg.Metadata(); metaErr == nil {
			fields["delivery"] = meta.NumDelivered
			if meta.NumDelivered >= maxDeliveries {
				log.WithFields(fields).Error("Message failed on final delivery, dropping")
			}
		}
		log.WithFields(fields).Warn("Failed to process message")

		if nakErr := msg.Nak(); nakErr != nil {
			log.WithError(nakErr).Error("Failed to NAK message")
		}
	},
		nats.Durable(consumerName(subject)),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.MaxDeliver(maxDeliveries),
		nats.AckWait(ackWait),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subscriptions[subject] = sub
	c.mu.Unlock()

	log.WithFields(log.Fields{
		"subject":  subject,
		"consumer": consumerName(subject),
	}).Info("Subscribed to NATS subject")
	return nil
}

// Close drains the connection. Draining keeps the durable consumers so
// unacknowledged messages are redelivered after a restart.
func (c *NATSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subscriptions = make(map[string]*nats.Subscription)
	if c.nc == nil {
		return nil
	}
	if err := c.nc.Drain(); err != nil {
		log.WithError(err).Warn("Failed to drain NATS connection, closing")
		c.nc.Close()
	}
	c.nc = nil
	c.js = nil
	log.Info("NATS connection closed")
	return nil
}

// IsConnected returns true if the client is connected to NATS
func (c *NATSClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nc != nil && c.nc.IsConnected()
}

// ensureStream creates the stream when it does not exist yet
func (c *NATSClient) ensureStream(streamName, description string, subjects []string) error {
	js, err := c.jetStream()
	if err != nil {
		return err
	}

	if _, err := js.StreamInfo(streamName); err == nil {
		log.WithField("stream", streamName).Debug("JetStream stream already exists")
		return nil
	} else if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", streamName, err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:        streamName,
		Description: description,
		Subjects:    subjects,
		Retention:   nats.LimitsPolicy,
		MaxAge:      streamMaxAge,
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", streamName, err)
	}

	log.WithFields(log.Fields{
		"stream":   streamName,
		"subjects": subjects,
	}).Info("Created JetStream stream")
	return nil
}

// EnsureInflowStream ensures the stream carrying detected on-chain inflows exists
func (c *NATSClient) EnsureInflowStream() error {
	return c.ensureStream(inflowStreamName, "Detected treasury inflows", []string{SubjectInflowsDetected})
}

// Publish publishes a message to the specified subject using JetStream
func (c *NATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	js, err := c.jetStream()
	if err != nil {
		return err
	}

	ack, err := js.Publish(subject, data, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to publish message to subject %s: %w", subject, err)
	}

	log.WithFields(log.Fields{
		"subject":  subject,
		"stream":   ack.Stream,
		"sequence": ack.Sequence,
		"size":     len(data),
	}).Debug("Published message to NATS")
	return nil
}
