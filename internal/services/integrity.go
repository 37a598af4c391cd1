package services

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/adplace/backend/internal/events"
	"github.com/adplace/backend/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// IntegrityMonitor re-checks that published posts are still live for
// the whole paid placement window. A deleted post voids the deal: the
// advertiser is refunded and the deal is cancelled with post_deleted.
type IntegrityMonitor struct {
	deals       DealStore
	channels    ChannelRegistry
	wallet      EscrowWallet
	msgr        Messenger
	prober      PostProber
	audit       AuditSink
	notify      *Notifier
	pub         events.Publisher
	log         *zap.Logger
	probeChatID int64
	staleAfter  time.Duration
	concurrency int
}

func NewIntegrityMonitor(
	deals DealStore,
	channels ChannelRegistry,
	wallet EscrowWallet,
	msgr Messenger,
	prober PostProber,
	audit AuditSink,
	notify *Notifier,
	pub events.Publisher,
	probeChatID int64,
	staleAfter time.Duration,
	concurrency int,
	log *zap.Logger,
) *IntegrityMonitor {
	return &IntegrityMonitor{
		deals:       deals,
		channels:    channels,
		wallet:      wallet,
		msgr:        msgr,
		prober:      prober,
		audit:       audit,
		notify:      notify,
		pub:         pub,
		probeChatID: probeChatID,
		staleAfter:  staleAfter,
		concurrency: concurrency,
		log:         log,
	}
}

func (m *IntegrityMonitor) Run(ctx context.Context) error {
	deals, err := m.deals.ListDueForIntegrityCheck(ctx, m.staleAfter, jobBatchSize)
	if err != nil {
		return fmt.Errorf("list deals due for check: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i := range deals {
		deal := deals[i]
		g.Go(func() error {
			if err := m.checkDeal(gctx, &deal); err != nil {
				m.log.Warn("integrity check failed",
					zap.String("deal_id", deal.ID.String()), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

func (m *IntegrityMonitor) checkDeal(ctx context.Context, deal *models.Deal) error {
	channel, err := m.channels.GetByID(ctx, deal.ChannelID)
	if err != nil {
		return fmt.Errorf("channel lookup: %w", err)
	}
	msgs, err := m.deals.ListMessages(ctx, deal.ID)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	if len(msgs) == 0 {
		return fmt.Errorf("in_progress deal %s has no recorded messages", deal.ID)
	}

	for _, msg := range msgs {
		exists, err := m.messageExists(ctx, channel, msg)
		if err != nil {
			// Inconclusive probe: leave last_check_at stale so the next
			// pass retries. Never cancel on a probe error.
			return fmt.Errorf("probe message %d: %w", msg.MessageID, err)
		}
		if !exists {
			m.log.Warn("published post missing",
				zap.String("deal_id", deal.ID.String()),
				zap.Int64("message_id", msg.MessageID))
			return m.voidDeal(ctx, deal)
		}
	}

	return m.deals.TouchIntegrityCheck(ctx, deal.ID)
}

// messageExists tries the copy-then-delete probe first and falls back
// to the public t.me embed when no probe chat is configured.
func (m *IntegrityMonitor) messageExists(ctx context.Context, channel *models.Channel, msg models.DealMessage) (bool, error) {
	if m.probeChatID != 0 {
		return m.msgr.ProbeMessage(ctx, m.probeChatID, msg.ChatID, msg.MessageID)
	}
	if channel.Username == "" {
		return false, fmt.Errorf("no probe chat and channel %s has no public username", channel.ID)
	}
	return m.prober.PostExists(ctx, channel.Username, msg.MessageID)
}

// voidDeal refunds the advertiser and cancels. Cancellation proceeds
// even when the refund fails: the deal is already in breach, and the
// audit trail plus the retained encrypted seed let operators replay
// the refund by hand.
func (m *IntegrityMonitor) voidDeal(ctx context.Context, deal *models.Deal) error {
	refundErr := m.refundAdvertiser(ctx, deal)

	won, err := m.deals.MarkCancelled(ctx, deal.ID, models.DealStatusInProgress, models.CancelReasonPostDeleted)
	if err != nil {
		return fmt.Errorf("cancel deal: %w", err)
	}
	if !won {
		return nil
	}

	if err := m.pub.Publish(ctx, events.DealStream, events.Event{
		Type: events.EventDealCancelled,
		Payload: map[string]any{
			"deal_id": deal.ID.String(),
			"status":  models.DealStatusCancelled,
			"reason":  models.CancelReasonPostDeleted,
		},
	}); err != nil {
		m.log.Warn("event publish failed", zap.Error(err))
	}
	m.notify.PostDeleted(ctx, deal)

	if refundErr != nil {
		m.log.Error("refund failed for voided deal, manual payout required",
			zap.String("deal_id", deal.ID.String()), zap.Error(refundErr))
	}
	return nil
}

func (m *IntegrityMonitor) refundAdvertiser(ctx context.Context, deal *models.Deal) error {
	if deal.RefundWalletAddress == nil {
		return fmt.Errorf("no refund address on deal %s", deal.ID)
	}
	balance, err := m.wallet.Balance(ctx, deal.EscrowSeedEnc)
	if err != nil {
		return fmt.Errorf("escrow balance: %w", err)
	}
	refundable := new(big.Int).Sub(balance, m.wallet.NetworkFee())
	if refundable.Sign() <= 0 {
		return fmt.Errorf("escrow balance %s below fee reserve", balance)
	}

	entry := models.AuditLog{
		ActorType:  "system",
		Action:     models.AuditRefundTransferAttempt,
		EntityType: "deal",
		EntityID:   &deal.ID,
		Meta: map[string]any{
			"destination": *deal.RefundWalletAddress,
			"amount_nano": refundable.String(),
			"reason":      models.CancelReasonPostDeleted,
		},
	}
	if err := m.audit.Log(ctx, entry); err != nil {
		m.log.Error("audit write failed before refund",
			zap.String("deal_id", deal.ID.String()), zap.Error(err))
	}
	return m.wallet.Transfer(ctx, deal.EscrowSeedEnc, *deal.RefundWalletAddress, refundable, "refund "+shortRef(deal))
}
