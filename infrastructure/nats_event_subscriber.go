package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"treasury/domain"

	log "github.com/sirupsen/logrus"
)

const messageHandlerTimeout = 25 * time.Second

// messageSubscriber is the part of NATSClient the subscriber needs
type messageSubscriber interface {
	Subscribe(subject string, handler func([]byte) error) error
}

// NATSEventSubscriber routes messages from NATS subjects to domain message handlers.
// Enveloped messages are unwrapped so handlers only see the payload.
type NATSEventSubscriber struct {
	natsClient messageSubscriber
	handlers   map[string]domain.MessageHandler
}

// NewNATSEventSubscriber creates a new NATS event subscriber
func NewNATSEventSubscriber(natsClient messageSubscriber) *NATSEventSubscriber {
	return &NATSEventSubscriber{
		natsClient: natsClient,
		handlers:   make(map[string]domain.MessageHandler),
	}
}

// Subscribe registers a handler for a subject
func (s *NATSEventSubscriber) Subscribe(subject string, handler domain.MessageHandler) error {
	s.handlers[subject] = handler

	log.WithFields(log.Fields{
		"subject": subject,
		"handler": fmt.Sprintf("%T", handler),
	}).Info("Registering message handler for subject")

	return s.natsClient.Subscribe(subject, func(data []byte) error {
		return s.handleMessage(subject, data)
	})
}

// handleMessage unwraps the envelope, if any, and calls the subject's handler
func (s *NATSEventSubscriber) handleMessage(subject string, data []byte) error {
	handler, exists := s.handlers[subject]
	if !exists {
		log.WithField("subject", subject).Warn("No handler registered for subject")
		return fmt.Errorf("no handler registered for subject %s", subject)
	}

	payload, eventID := unwrapEnvelope(data)

	ctx, cancel := context.WithTimeout(context.Background(), messageHandlerTimeout)
	defer cancel()

	if err := handler.HandleMessage(ctx, subject, payload); err != nil {
		log.WithFields(log.Fields{
			"subject": subject,
			"eventId": eventID,
			"error":   err,
		}).Error("Message handler failed")
		return err
	}

	log.WithFields(log.Fields{
		"subject": subject,
		"eventId": eventID,
	}).Debug("Successfully processed NATS message")
	return nil
}

// unwrapEnvelope returns the envelope payload, or data unchanged when it is not an envelope
func unwrapEnvelope(data []byte) ([]byte, string) {
	var envelope EventEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return data, ""
	}
	if envelope.EventType == "" || len(envelope.Payload) == 0 {
		return data, ""
	}
	return envelope.Payload, envelope.EventID
}
