package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/naruebet/tmwatch/internal/metrics"
	"github.com/naruebet/tmwatch/internal/models"
	"github.com/naruebet/tmwatch/internal/store"
	"github.com/naruebet/tmwatch/internal/webhook"
	"github.com/naruebet/tmwatch/internal/worker"
	"github.com/naruebet/tmwatch/internal/workflow"
)

// ErrConfirmationRequired means a restricted-role actor asked for a status
// change without the explicit confirmation step.
var ErrConfirmationRequired = errors.New("confirmation required for this role")

// TransactionService ties the ingestion pipeline together: decode, normalize,
// store via the selector, and audit off the request path.
type TransactionService struct {
	dec   *webhook.Decoder
	gw    *store.Selector
	audit store.AuditLogs // nil when no durable backend is configured
	wp    *worker.Pool
	log   *slog.Logger
}

func NewTransactionService(dec *webhook.Decoder, gw *store.Selector, audit store.AuditLogs, wp *worker.Pool, log *slog.Logger) *TransactionService {
	return &TransactionService{dec: dec, gw: gw, audit: audit, wp: wp, log: log}
}

func (s *TransactionService) auditAsync(entityID, action, details string) {
	if s.audit == nil {
		return
	}
	id := entityID
	s.wp.Submit(func() {
		var det map[string]any
		if details != "" {
			det = map[string]any{"message": details}
		}
		err := s.audit.Create(context.Background(), models.AuditLog{
			EntityType: "transaction",
			EntityID:   &id,
			Action:     action,
			Details:    det,
		})
		if err != nil {
			s.log.Warn("audit write failed", "action", action, "err", err)
		}
	})
}

// Ingest records one webhook delivery. unitDivisor is explicit per entry
// point: the live provider path divides satang by 100, the manual path does
// not. Storage failures never reach the caller; decode and validation
// failures do.
func (s *TransactionService) Ingest(ctx context.Context, body []byte, unitDivisor int64) (models.Transaction, error) {
	payload, err := s.dec.Decode(body)
	if err != nil {
		metrics.WebhooksTotal.WithLabelValues("failed").Inc()
		return models.Transaction{}, err
	}

	tx, err := webhook.Normalize(payload, unitDivisor)
	if err != nil {
		metrics.WebhooksTotal.WithLabelValues("rejected").Inc()
		return models.Transaction{}, err
	}

	tx, err = s.gw.Put(ctx, tx)
	if err != nil {
		// the ephemeral fallback cannot fail; reaching this is a bug
		metrics.WebhooksTotal.WithLabelValues("failed").Inc()
		return models.Transaction{}, fmt.Errorf("store put: %w", err)
	}

	metrics.WebhooksTotal.WithLabelValues("recorded").Inc()
	s.log.Info("transaction recorded", "id", tx.ID, "sender", tx.Sender, "amount", tx.Amount)
	s.auditAsync(tx.ID, "recorded", "webhook ingested")
	return tx, nil
}

func (s *TransactionService) List(ctx context.Context, limit int) ([]models.Transaction, error) {
	return s.gw.List(ctx, limit)
}

// UpdateStatus applies the role-gated status workflow. confirmed carries the
// caller's explicit confirmation, required for restricted roles.
func (s *TransactionService) UpdateStatus(ctx context.Context, id string, next models.TransactionStatus, role models.Role, confirmed bool) (models.Transaction, error) {
	current, err := s.gw.Get(ctx, id)
	if err != nil {
		return models.Transaction{}, err
	}
	if err := workflow.Authorize(role, current.Status, next); err != nil {
		return models.Transaction{}, err
	}
	if workflow.Restricted(role) && !confirmed {
		return models.Transaction{}, ErrConfirmationRequired
	}

	tx, err := s.gw.UpdateStatus(ctx, id, next)
	if err != nil {
		return models.Transaction{}, err
	}
	s.auditAsync(id, "status_change", fmt.Sprintf("%s -> %s by %s", current.Status, next, role))
	return tx, nil
}

func (s *TransactionService) Delete(ctx context.Context, id string) error {
	if err := s.gw.DeleteOne(ctx, id); err != nil {
		return err
	}
	s.auditAsync(id, "deleted", "")
	return nil
}

func (s *TransactionService) Clear(ctx context.Context) error {
	if err := s.gw.DeleteAll(ctx); err != nil {
		return err
	}
	s.auditAsync("", "cleared", "all transactions removed")
	return nil
}

// Connected reports durable-backend reachability for the status probe.
func (s *TransactionService) Connected() bool { return s.gw.Connected() }
