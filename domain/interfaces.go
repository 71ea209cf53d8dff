package domain

import "context"

// MessageHandler defines the interface for handling raw messages from infrastructure
// This allows infrastructure to process messages without knowing about application specifics
type MessageHandler interface {
	HandleMessage(ctx context.Context, subject string, data []byte) error
}
