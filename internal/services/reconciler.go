package services

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/adplace/backend/internal/events"
	"github.com/adplace/backend/internal/models"
	"github.com/adplace/backend/internal/ton"
	"go.uber.org/zap"
)

// Reconciler enforces the negotiation deadlines of funded prompt deals
// and parks the background jobs when nothing is active. Unlike
// settlement, every branch here returns money before the terminal
// write: a refund that fails leaves the deal in escrow for the next
// pass instead of cancelling with stranded funds.
type Reconciler struct {
	deals    DealStore
	channels ChannelRegistry
	wallet   EscrowWallet
	audit    AuditSink
	notify   *Notifier
	pub      events.Publisher
	gate     JobGate
	log      *zap.Logger

	ownerWindow  time.Duration
	reviewWindow time.Duration
}

func NewReconciler(
	deals DealStore,
	channels ChannelRegistry,
	wallet EscrowWallet,
	audit AuditSink,
	notify *Notifier,
	pub events.Publisher,
	gate JobGate,
	ownerWindow, reviewWindow time.Duration,
	log *zap.Logger,
) *Reconciler {
	return &Reconciler{
		deals:        deals,
		channels:     channels,
		wallet:       wallet,
		audit:        audit,
		notify:       notify,
		pub:          pub,
		gate:         gate,
		log:          log,
		ownerWindow:  ownerWindow,
		reviewWindow: reviewWindow,
	}
}

func (r *Reconciler) Run(ctx context.Context) error {
	r.ownerTimeouts(ctx)
	r.reviewTimeouts(ctx)
	r.scheduleExpiries(ctx)
	return r.maybeDeactivate(ctx)
}

// ownerTimeouts: the channel never submitted a draft within the
// response window. Full refund, then owner_timeout_24h.
func (r *Reconciler) ownerTimeouts(ctx context.Context) {
	deals, err := r.deals.ListOwnerResponseTimeouts(ctx, r.ownerWindow, jobBatchSize)
	if err != nil {
		r.log.Error("list owner timeouts failed", zap.Error(err))
		return
	}
	for i := range deals {
		deal := deals[i]
		if err := r.refundAndCancel(ctx, &deal, models.CancelReasonOwnerTimeout); err != nil {
			r.log.Warn("owner timeout handling failed",
				zap.String("deal_id", deal.ID.String()), zap.Error(err))
			continue
		}
		r.notify.OwnerTimeout(ctx, &deal)
	}
}

// reviewTimeouts: a draft sat unreviewed past the review window. The
// channel did its work, so the pot splits 70/30 in the advertiser's
// favor after the fee reserve.
func (r *Reconciler) reviewTimeouts(ctx context.Context) {
	deals, err := r.deals.ListReviewTimeouts(ctx, r.reviewWindow, jobBatchSize)
	if err != nil {
		r.log.Error("list review timeouts failed", zap.Error(err))
		return
	}
	for i := range deals {
		deal := deals[i]
		if err := r.splitAndCancel(ctx, &deal); err != nil {
			r.log.Warn("review timeout handling failed",
				zap.String("deal_id", deal.ID.String()), zap.Error(err))
			continue
		}
		r.notify.AdvertiserTimeout(ctx, &deal)
	}
}

// scheduleExpiries: the scheduled publish time passed with no approved
// creative, so the placement can no longer happen. Full refund.
func (r *Reconciler) scheduleExpiries(ctx context.Context) {
	deals, err := r.deals.ListUnapprovedPastSchedule(ctx, jobBatchSize)
	if err != nil {
		r.log.Error("list schedule expiries failed", zap.Error(err))
		return
	}
	for i := range deals {
		deal := deals[i]
		if err := r.refundAndCancel(ctx, &deal, models.CancelReasonAutoExpired); err != nil {
			r.log.Warn("schedule expiry handling failed",
				zap.String("deal_id", deal.ID.String()), zap.Error(err))
			continue
		}
		r.notify.AutoExpired(ctx, &deal)
	}
}

func (r *Reconciler) refundAndCancel(ctx context.Context, deal *models.Deal, reason string) error {
	if deal.RefundWalletAddress == nil {
		// Nothing sane to do automatically; operators resolve by hand.
		return fmt.Errorf("deal holds funds but has no refund address")
	}
	balance, err := r.wallet.Balance(ctx, deal.EscrowSeedEnc)
	if err != nil {
		return fmt.Errorf("escrow balance: %w", err)
	}
	refundable := new(big.Int).Sub(balance, r.wallet.NetworkFee())
	if refundable.Sign() > 0 {
		r.auditAttempt(ctx, deal, models.AuditRefundTransferAttempt, map[string]any{
			"destination": *deal.RefundWalletAddress,
			"amount_nano": refundable.String(),
			"reason":      reason,
		})
		if err := r.wallet.Transfer(ctx, deal.EscrowSeedEnc, *deal.RefundWalletAddress, refundable, "refund "+shortRef(deal)); err != nil {
			return fmt.Errorf("refund transfer: %w", err)
		}
	}
	return r.cancel(ctx, deal, reason)
}

func (r *Reconciler) splitAndCancel(ctx context.Context, deal *models.Deal) error {
	if deal.RefundWalletAddress == nil {
		return fmt.Errorf("deal holds funds but has no refund address")
	}
	channel, err := r.channels.GetByID(ctx, deal.ChannelID)
	if err != nil {
		return fmt.Errorf("channel lookup: %w", err)
	}
	if channel.PayoutWalletAddress == nil {
		return fmt.Errorf("channel %s has no payout wallet", channel.ID)
	}

	balance, err := r.wallet.Balance(ctx, deal.EscrowSeedEnc)
	if err != nil {
		return fmt.Errorf("escrow balance: %w", err)
	}
	// Two outgoing messages share one fee budget, so the split is
	// computed over balance minus a double reserve.
	fee := r.wallet.NetworkFee()
	pot := new(big.Int).Sub(balance, new(big.Int).Mul(fee, big.NewInt(2)))
	if pot.Sign() <= 0 {
		// Drained wallet: an earlier run already moved the money but
		// died before the status write. Finish the bookkeeping.
		r.log.Info("escrow already drained, finishing cancellation",
			zap.String("deal_id", deal.ID.String()),
			zap.String("balance_nano", balance.String()))
		return r.cancel(ctx, deal, models.CancelReasonAdvertiserTimeout)
	}
	advertiserShare, channelShare := ton.SplitNano(pot, 70)

	r.auditAttempt(ctx, deal, models.AuditRefundTransferAttempt, map[string]any{
		"destination": *deal.RefundWalletAddress,
		"amount_nano": advertiserShare.String(),
		"reason":      models.CancelReasonAdvertiserTimeout,
		"split":       "70",
	})
	if err := r.wallet.Transfer(ctx, deal.EscrowSeedEnc, *deal.RefundWalletAddress, advertiserShare, "refund "+shortRef(deal)); err != nil {
		return fmt.Errorf("advertiser share transfer: %w", err)
	}

	r.auditAttempt(ctx, deal, models.AuditSettlementTransferAttempt, map[string]any{
		"destination": *channel.PayoutWalletAddress,
		"amount_nano": channelShare.String(),
		"reason":      models.CancelReasonAdvertiserTimeout,
		"split":       "30",
	})
	if err := r.wallet.Transfer(ctx, deal.EscrowSeedEnc, *channel.PayoutWalletAddress, channelShare, "compensation "+shortRef(deal)); err != nil {
		return fmt.Errorf("channel share transfer: %w", err)
	}

	return r.cancel(ctx, deal, models.CancelReasonAdvertiserTimeout)
}

func (r *Reconciler) cancel(ctx context.Context, deal *models.Deal, reason string) error {
	won, err := r.deals.MarkCancelled(ctx, deal.ID, models.DealStatusEscrow, reason)
	if err != nil {
		return fmt.Errorf("cancel deal: %w", err)
	}
	if !won {
		return nil
	}
	r.log.Info("deal cancelled by deadline",
		zap.String("deal_id", deal.ID.String()), zap.String("reason", reason))
	if err := r.pub.Publish(ctx, events.DealStream, events.Event{
		Type: events.EventDealCancelled,
		Payload: map[string]any{
			"deal_id": deal.ID.String(),
			"status":  models.DealStatusCancelled,
			"reason":  reason,
		},
	}); err != nil {
		r.log.Warn("event publish failed", zap.Error(err))
	}
	return nil
}

func (r *Reconciler) auditAttempt(ctx context.Context, deal *models.Deal, action string, meta map[string]any) {
	entry := models.AuditLog{
		ActorType:  "system",
		Action:     action,
		EntityType: "deal",
		EntityID:   &deal.ID,
		Meta:       meta,
	}
	if err := r.audit.Log(ctx, entry); err != nil {
		r.log.Error("audit write failed before transfer",
			zap.String("deal_id", deal.ID.String()), zap.Error(err))
	}
}

// maybeDeactivate parks the worker's recurring checks once every deal
// has reached a terminal status. Order placement re-activates the gate.
func (r *Reconciler) maybeDeactivate(ctx context.Context) error {
	n, err := r.deals.CountActive(ctx)
	if err != nil {
		return fmt.Errorf("count active deals: %w", err)
	}
	if n > 0 {
		return nil
	}
	if err := r.gate.Deactivate(ctx); err != nil {
		return fmt.Errorf("deactivate job gate: %w", err)
	}
	r.log.Info("no active deals, background checks parked")
	return nil
}
