package services

import (
	"context"
	"fmt"

	"github.com/adplace/backend/internal/events"
	"github.com/adplace/backend/internal/models"
	"github.com/adplace/backend/internal/ton"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const jobBatchSize = 100

// PaymentVerifier polls the escrow wallets of pending deals. A balance
// at or above the fixed total (overpayment included) flips the deal to
// escrow; a pending deal past its payment window expires.
type PaymentVerifier struct {
	deals       DealStore
	wallet      EscrowWallet
	notify      *Notifier
	pub         events.Publisher
	log         *zap.Logger
	concurrency int
}

func NewPaymentVerifier(deals DealStore, wallet EscrowWallet, notify *Notifier, pub events.Publisher, concurrency int, log *zap.Logger) *PaymentVerifier {
	return &PaymentVerifier{deals: deals, wallet: wallet, notify: notify, pub: pub, concurrency: concurrency, log: log}
}

func (v *PaymentVerifier) Run(ctx context.Context) error {
	if err := v.verifyBatch(ctx); err != nil {
		return err
	}
	return v.expireBatch(ctx)
}

func (v *PaymentVerifier) verifyBatch(ctx context.Context) error {
	deals, err := v.deals.ListPendingUnexpired(ctx, jobBatchSize)
	if err != nil {
		return fmt.Errorf("list pending deals: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)
	for i := range deals {
		deal := deals[i]
		g.Go(func() error {
			if err := v.verifyOne(gctx, &deal); err != nil {
				v.log.Warn("payment verification failed",
					zap.String("deal_id", deal.ID.String()), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

func (v *PaymentVerifier) verifyOne(ctx context.Context, deal *models.Deal) error {
	balance, err := v.wallet.Balance(ctx, deal.EscrowSeedEnc)
	if err != nil {
		return fmt.Errorf("escrow balance: %w", err)
	}
	required, err := ton.ParseTON(deal.TotalPriceTON)
	if err != nil {
		return fmt.Errorf("parse total price: %w", err)
	}

	if balance.Cmp(required) < 0 {
		if balance.Int64() != deal.LastBalanceNano {
			if err := v.deals.UpdateBalance(ctx, deal.ID, balance.Int64()); err != nil {
				v.log.Warn("balance snapshot update failed",
					zap.String("deal_id", deal.ID.String()), zap.Error(err))
			}
		}
		return nil
	}

	won, err := v.deals.MarkEscrow(ctx, deal.ID, balance.Int64())
	if err != nil {
		return fmt.Errorf("mark escrow: %w", err)
	}
	if !won {
		return nil
	}

	v.log.Info("payment verified",
		zap.String("deal_id", deal.ID.String()),
		zap.String("balance_nano", balance.String()))

	if err := v.pub.Publish(ctx, events.DealStream, events.Event{
		Type: events.EventPaymentVerified,
		Payload: map[string]any{
			"deal_id":      deal.ID.String(),
			"status":       models.DealStatusEscrow,
			"balance_nano": balance.String(),
		},
	}); err != nil {
		v.log.Warn("event publish failed", zap.Error(err))
	}
	v.notify.PaymentVerified(ctx, deal)
	return nil
}

func (v *PaymentVerifier) expireBatch(ctx context.Context) error {
	deals, err := v.deals.ListPendingExpired(ctx, jobBatchSize)
	if err != nil {
		return fmt.Errorf("list expired deals: %w", err)
	}
	for i := range deals {
		deal := deals[i]
		won, err := v.deals.MarkExpired(ctx, deal.ID)
		if err != nil {
			v.log.Warn("expire failed", zap.String("deal_id", deal.ID.String()), zap.Error(err))
			continue
		}
		if !won {
			continue
		}
		v.log.Info("payment window expired", zap.String("deal_id", deal.ID.String()))
		if err := v.pub.Publish(ctx, events.DealStream, events.Event{
			Type: events.EventDealStatusChanged,
			Payload: map[string]any{
				"deal_id": deal.ID.String(),
				"status":  models.DealStatusExpired,
			},
		}); err != nil {
			v.log.Warn("event publish failed", zap.Error(err))
		}
		v.notify.PaymentExpired(ctx, &deal)
	}
	return nil
}
