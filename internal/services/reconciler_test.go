package services

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/adplace/backend/internal/models"
)

func newReconcilerJob(e *testEnv) *Reconciler {
	return NewReconciler(
		e.deals, e.channels, e.wallet, e.audit, e.notify, e.pub,
		e.gate, 24*time.Hour, 24*time.Hour, testLogger(),
	)
}

// fundedPromptDeal returns an escrow prompt deal verified `ago` ago.
func fundedPromptDeal(e *testEnv, balanceNano int64, ago time.Duration) *models.Deal {
	deal := e.newDeal(models.DealStatusEscrow, models.CampaignTypePrompt, "5")
	verifiedAt := time.Now().Add(-ago)
	e.deals.mu.Lock()
	e.deals.deals[deal.ID].PaymentVerifiedAt = &verifiedAt
	e.deals.mu.Unlock()
	e.wallet.setBalance(deal.EscrowSeedEnc, balanceNano)
	return deal
}

func TestReconcilerOwnerTimeoutRefundsInFull(t *testing.T) {
	e := newTestEnv()
	deal := fundedPromptDeal(e, 5_000_000_000, 25*time.Hour)

	if err := newReconcilerJob(e).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := e.deals.get(deal.ID)
	if got.Status != models.DealStatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
	if got.CancelReason == nil || *got.CancelReason != models.CancelReasonOwnerTimeout {
		t.Fatalf("cancel_reason = %v, want owner_timeout_24h", got.CancelReason)
	}
	if len(e.wallet.transfers) != 1 {
		t.Fatalf("transfers = %d, want 1 full refund", len(e.wallet.transfers))
	}
	tr := e.wallet.transfers[0]
	if tr.Dest != e.refundAddr || tr.Amount.Int64() != 5_000_000_000-50_000_000 {
		t.Errorf("refund = %d to %s, want balance minus fee to advertiser", tr.Amount.Int64(), tr.Dest)
	}
}

func TestReconcilerOwnerTimeoutStaysEscrowWhenRefundFails(t *testing.T) {
	e := newTestEnv()
	deal := fundedPromptDeal(e, 5_000_000_000, 25*time.Hour)
	e.wallet.failTransfer = true

	if err := newReconcilerJob(e).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := e.deals.get(deal.ID); got.Status != models.DealStatusEscrow {
		t.Fatalf("status = %s, failed refund must leave the deal for a retry", got.Status)
	}
}

func TestReconcilerOwnerTimeoutNotDueYet(t *testing.T) {
	e := newTestEnv()
	deal := fundedPromptDeal(e, 5_000_000_000, 23*time.Hour)

	if err := newReconcilerJob(e).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := e.deals.get(deal.ID); got.Status != models.DealStatusEscrow {
		t.Fatalf("status = %s, window not elapsed yet", got.Status)
	}
}

func TestReconcilerReviewTimeoutSplitsSeventyThirty(t *testing.T) {
	e := newTestEnv()
	deal := fundedPromptDeal(e, 5_000_000_000, 30*time.Hour)
	submittedAt := time.Now().Add(-25 * time.Hour)
	e.deals.mu.Lock()
	e.deals.deals[deal.ID].DraftSubmittedAt = &submittedAt
	e.deals.mu.Unlock()
	_ = e.deals.CreateDraft(context.Background(), &models.DealDraft{
		DealID:   deal.ID,
		Text:     "draft",
		Approval: models.DraftApprovalPending,
	})

	if err := newReconcilerJob(e).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := e.deals.get(deal.ID)
	if got.Status != models.DealStatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
	if got.CancelReason == nil || *got.CancelReason != models.CancelReasonAdvertiserTimeout {
		t.Fatalf("cancel_reason = %v, want advertiser_timeout_24h", got.CancelReason)
	}

	if len(e.wallet.transfers) != 2 {
		t.Fatalf("transfers = %d, want advertiser + channel legs", len(e.wallet.transfers))
	}
	advLeg, chLeg := e.wallet.transfers[0], e.wallet.transfers[1]
	if advLeg.Dest != e.refundAddr {
		t.Errorf("first leg went to %s, want advertiser refund address", advLeg.Dest)
	}
	if chLeg.Dest != e.payoutAddr {
		t.Errorf("second leg went to %s, want channel payout address", chLeg.Dest)
	}

	// Both legs plus the double fee reserve reconstruct the balance.
	pot := big.NewInt(5_000_000_000 - 2*50_000_000)
	total := new(big.Int).Add(advLeg.Amount, chLeg.Amount)
	if total.Cmp(pot) != 0 {
		t.Errorf("legs sum to %s, want the full pot %s", total, pot)
	}
	want := new(big.Int).Div(new(big.Int).Mul(pot, big.NewInt(70)), big.NewInt(100))
	if advLeg.Amount.Cmp(want) != 0 {
		t.Errorf("advertiser leg = %s, want 70%% = %s", advLeg.Amount, want)
	}
}

func TestReconcilerReviewTimeoutFinishesDrainedDeal(t *testing.T) {
	e := newTestEnv()
	// An earlier run moved the money and died before the status write:
	// only dust below the fee reserve remains.
	deal := fundedPromptDeal(e, 10_000_000, 30*time.Hour)
	submittedAt := time.Now().Add(-25 * time.Hour)
	e.deals.mu.Lock()
	e.deals.deals[deal.ID].DraftSubmittedAt = &submittedAt
	e.deals.mu.Unlock()
	_ = e.deals.CreateDraft(context.Background(), &models.DealDraft{
		DealID:   deal.ID,
		Text:     "draft",
		Approval: models.DraftApprovalPending,
	})

	if err := newReconcilerJob(e).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := e.deals.get(deal.ID)
	if got.Status != models.DealStatusCancelled {
		t.Fatalf("status = %s, want cancelled on a drained wallet", got.Status)
	}
	if got.CancelReason == nil || *got.CancelReason != models.CancelReasonAdvertiserTimeout {
		t.Fatalf("cancel_reason = %v, want advertiser_timeout_24h", got.CancelReason)
	}
	if len(e.wallet.transfers) != 0 {
		t.Errorf("transfers = %d, nothing must be re-sent", len(e.wallet.transfers))
	}
}

func TestReconcilerScheduleExpiryRefunds(t *testing.T) {
	e := newTestEnv()
	deal := fundedPromptDeal(e, 5_000_000_000, time.Hour)
	past := time.Now().Add(-10 * time.Minute)
	e.deals.mu.Lock()
	e.deals.deals[deal.ID].ScheduledAt = &past
	e.deals.mu.Unlock()

	if err := newReconcilerJob(e).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := e.deals.get(deal.ID)
	if got.Status != models.DealStatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
	if got.CancelReason == nil || *got.CancelReason != models.CancelReasonAutoExpired {
		t.Fatalf("cancel_reason = %v, want auto_expired", got.CancelReason)
	}
}

func TestReconcilerParksGateWhenIdle(t *testing.T) {
	e := newTestEnv()
	_ = e.gate.Activate(context.Background())

	// One terminal deal only.
	_ = e.newDeal(models.DealStatusCompleted, models.CampaignTypeReadyPost, "5")

	if err := newReconcilerJob(e).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	active, _ := e.gate.Active(context.Background())
	if active {
		t.Error("gate still active with no live deals")
	}
}

func TestReconcilerKeepsGateWithActiveDeals(t *testing.T) {
	e := newTestEnv()
	_ = e.gate.Activate(context.Background())
	_ = e.newDeal(models.DealStatusPending, models.CampaignTypeReadyPost, "5")

	if err := newReconcilerJob(e).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	active, _ := e.gate.Active(context.Background())
	if !active {
		t.Error("gate parked while a deal is still live")
	}
}
