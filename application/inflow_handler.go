package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"treasury/domain"
	"treasury/domain/entities"
	"treasury/domain/interfaces"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// InflowMessage is an externally detected token inflow
type InflowMessage struct {
	TokenAmount decimal.Decimal `json:"token_amount"`
	CashValue   decimal.Decimal `json:"cash_value"`
	Description string          `json:"description"`
	ExternalRef string          `json:"external_ref"`
}

// ReserveCreditor credits inflows to the reserve
type ReserveCreditor interface {
	AddToReserve(ctx context.Context, credit interfaces.ReserveCredit) (*entities.ReserveTransaction, error)
}

// InflowHandler credits detected inflows. Returning nil acknowledges the message,
// so only failures worth redelivering are returned.
type InflowHandler struct {
	creditor ReserveCreditor
}

// NewInflowHandler creates a new inflow handler
func NewInflowHandler(creditor ReserveCreditor) *InflowHandler {
	return &InflowHandler{creditor: creditor}
}

// HandleMessage implements domain.MessageHandler
func (h *InflowHandler) HandleMessage(ctx context.Context, subject string, data []byte) error {
	var msg InflowMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.WithFields(log.Fields{
			"subject": subject,
			"error":   err,
		}).Error("Dropping malformed inflow message")
		return nil
	}

	ref := strings.TrimSpace(msg.ExternalRef)
	if ref == "" {
		// Without a reference a redelivery would credit twice
		log.WithField("subject", subject).Error("Dropping inflow without external_ref")
		return nil
	}

	description := strings.TrimSpace(msg.Description)
	if description == "" {
		description = fmt.Sprintf("On-chain inflow %s", ref)
	}

	record, err := h.creditor.AddToReserve(ctx, interfaces.ReserveCredit{
		TokenAmount: msg.TokenAmount,
		CashValue:   msg.CashValue,
		Description: description,
		ExternalRef: &ref,
	})
	switch {
	case err == nil:
		log.WithFields(log.Fields{
			"externalRef":   ref,
			"transactionId": record.ID,
		}).Info("Inflow credited")
		return nil
	case errors.Is(err, domain.ErrDuplicateInflow):
		log.WithField("externalRef", ref).Info("Inflow already credited, acknowledging")
		return nil
	case errors.Is(err, domain.ErrInvalidAmount):
		log.WithFields(log.Fields{
			"externalRef": ref,
			"error":       err,
		}).Error("Dropping inflow with invalid amount")
		return nil
	default:
		return fmt.Errorf("failed to credit inflow %s: %w", ref, err)
	}
}
