package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions the settlement path relies on. A transfer attempt is
// always logged before the terminal status write so operators can
// reconcile payouts that failed to broadcast.
const (
	AuditSettlementTransferAttempt = "settlement_transfer_attempt"
	AuditRefundTransferAttempt     = "refund_transfer_attempt"
)

type AuditLog struct {
	ID          uuid.UUID      `json:"id"`
	ActorUserID *uuid.UUID     `json:"actor_user_id,omitempty"`
	ActorType   string         `json:"actor_type"` // user / system / admin
	Action      string         `json:"action"`
	EntityType  string         `json:"entity_type"`
	EntityID    *uuid.UUID     `json:"entity_id,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
