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

// Settlement closes out deals whose paid placement window has elapsed:
// one final existence probe, payout to the channel, then completion.
// The transfer is audited before it is attempted and a failed payout
// never blocks the terminal write, so a broken lite server cannot
// wedge a finished deal; operators replay the payout from the audit
// log and the retained seed.
type Settlement struct {
	deals       DealStore
	channels    ChannelRegistry
	wallet      EscrowWallet
	audit       AuditSink
	notify      *Notifier
	pub         events.Publisher
	monitor     *IntegrityMonitor
	log         *zap.Logger
	buffer      time.Duration
	concurrency int
}

func NewSettlement(
	deals DealStore,
	channels ChannelRegistry,
	wallet EscrowWallet,
	audit AuditSink,
	notify *Notifier,
	pub events.Publisher,
	monitor *IntegrityMonitor,
	buffer time.Duration,
	concurrency int,
	log *zap.Logger,
) *Settlement {
	return &Settlement{
		deals:       deals,
		channels:    channels,
		wallet:      wallet,
		audit:       audit,
		notify:      notify,
		pub:         pub,
		monitor:     monitor,
		buffer:      buffer,
		concurrency: concurrency,
		log:         log,
	}
}

func (s *Settlement) Run(ctx context.Context) error {
	deals, err := s.deals.ListDueForCompletion(ctx, s.buffer, jobBatchSize)
	if err != nil {
		return fmt.Errorf("list deals due for completion: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range deals {
		deal := deals[i]
		g.Go(func() error {
			if err := s.settleDeal(gctx, &deal); err != nil {
				s.log.Warn("settlement failed",
					zap.String("deal_id", deal.ID.String()), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Settlement) settleDeal(ctx context.Context, deal *models.Deal) error {
	channel, err := s.channels.GetByID(ctx, deal.ChannelID)
	if err != nil {
		return fmt.Errorf("channel lookup: %w", err)
	}

	// Last look before money moves: a post deleted between monitor
	// passes voids the deal instead of paying it out.
	msgs, err := s.deals.ListMessages(ctx, deal.ID)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	for _, msg := range msgs {
		exists, err := s.monitor.messageExists(ctx, channel, msg)
		if err != nil {
			return fmt.Errorf("final probe of message %d: %w", msg.MessageID, err)
		}
		if !exists {
			s.log.Warn("post missing at settlement",
				zap.String("deal_id", deal.ID.String()),
				zap.Int64("message_id", msg.MessageID))
			return s.monitor.voidDeal(ctx, deal)
		}
	}

	payoutErr := s.payout(ctx, deal, channel)

	won, err := s.deals.MarkCompleted(ctx, deal.ID)
	if err != nil {
		return fmt.Errorf("complete deal: %w", err)
	}
	if !won {
		return nil
	}
	if err := s.channels.IncrementCompletedDeals(ctx, deal.ChannelID); err != nil {
		s.log.Warn("completed deals counter update failed",
			zap.String("channel_id", deal.ChannelID.String()), zap.Error(err))
	}

	s.log.Info("deal settled", zap.String("deal_id", deal.ID.String()))
	if err := s.pub.Publish(ctx, events.DealStream, events.Event{
		Type: events.EventDealCompleted,
		Payload: map[string]any{
			"deal_id": deal.ID.String(),
			"status":  models.DealStatusCompleted,
		},
	}); err != nil {
		s.log.Warn("event publish failed", zap.Error(err))
	}
	s.notify.DealCompleted(ctx, deal)

	if payoutErr != nil {
		s.log.Error("payout failed, deal completed anyway",
			zap.String("deal_id", deal.ID.String()), zap.Error(payoutErr))
	}
	return nil
}

// payout audits the transfer attempt even when it dies before a
// transfer can be tried. The deal completes regardless, so the audit
// entry is the only trail operators have to reconcile an unpaid
// payout from.
func (s *Settlement) payout(ctx context.Context, deal *models.Deal, channel *models.Channel) error {
	meta := map[string]any{"amount_nano": "unknown"}
	payable, prepErr := preparePayout(ctx, s.wallet, deal, channel, meta)
	if prepErr != nil {
		meta["error"] = prepErr.Error()
	}
	entry := models.AuditLog{
		ActorType:  "system",
		Action:     models.AuditSettlementTransferAttempt,
		EntityType: "deal",
		EntityID:   &deal.ID,
		Meta:       meta,
	}
	if err := s.audit.Log(ctx, entry); err != nil {
		s.log.Error("audit write failed before payout",
			zap.String("deal_id", deal.ID.String()), zap.Error(err))
	}
	if prepErr != nil {
		return prepErr
	}
	return s.wallet.Transfer(ctx, deal.EscrowSeedEnc, *channel.PayoutWalletAddress, payable, "payout "+shortRef(deal))
}

// preparePayout resolves how much of the escrow can go to the channel,
// filling meta with each fact as it becomes known.
func preparePayout(ctx context.Context, wallet EscrowWallet, deal *models.Deal, channel *models.Channel, meta map[string]any) (*big.Int, error) {
	if channel.PayoutWalletAddress == nil {
		return nil, fmt.Errorf("channel %s has no payout wallet", channel.ID)
	}
	meta["destination"] = *channel.PayoutWalletAddress
	balance, err := wallet.Balance(ctx, deal.EscrowSeedEnc)
	if err != nil {
		return nil, fmt.Errorf("escrow balance: %w", err)
	}
	payable := new(big.Int).Sub(balance, wallet.NetworkFee())
	if payable.Sign() <= 0 {
		return nil, fmt.Errorf("escrow balance %s below fee reserve", balance)
	}
	meta["amount_nano"] = payable.String()
	return payable, nil
}
