package services

import (
	"context"
	"testing"
	"time"

	"github.com/adplace/backend/internal/models"
)

func newMonitor(e *testEnv) *IntegrityMonitor {
	return NewIntegrityMonitor(
		e.deals, e.channels, e.wallet, e.msgr, nil, e.audit,
		e.notify, e.pub, 777, 3*time.Hour, 2, testLogger(),
	)
}

// postedDeal creates an in_progress deal with one recorded message.
func postedDeal(e *testEnv, balanceNano int64) (*models.Deal, models.DealMessage) {
	deal := e.newDeal(models.DealStatusInProgress, models.CampaignTypeReadyPost, "5")
	postedAt := time.Now().Add(-2 * time.Hour)
	e.deals.mu.Lock()
	e.deals.deals[deal.ID].PostedAt = &postedAt
	e.deals.mu.Unlock()
	e.wallet.setBalance(deal.EscrowSeedEnc, balanceNano)

	msg := models.DealMessage{DealID: deal.ID, PostSeq: 1, ChatID: -100500, MessageID: 42, PostedAt: postedAt}
	_ = e.deals.AddMessage(context.Background(), &msg)
	return deal, msg
}

func TestIntegrityMonitorHealthyPostTouchesCheck(t *testing.T) {
	e := newTestEnv()
	deal, _ := postedDeal(e, 5_000_000_000)

	if err := newMonitor(e).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := e.deals.get(deal.ID)
	if got.Status != models.DealStatusInProgress {
		t.Fatalf("status = %s, want in_progress", got.Status)
	}
	if got.LastCheckAt == nil {
		t.Error("last_check_at not touched after healthy probe")
	}
}

func TestIntegrityMonitorDeletedPostVoidsDeal(t *testing.T) {
	e := newTestEnv()
	deal, msg := postedDeal(e, 5_000_000_000)
	e.msgr.deleted[msg.MessageID] = true

	if err := newMonitor(e).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := e.deals.get(deal.ID)
	if got.Status != models.DealStatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
	if got.CancelReason == nil || *got.CancelReason != models.CancelReasonPostDeleted {
		t.Fatalf("cancel_reason = %v, want post_deleted", got.CancelReason)
	}

	// Refund went to the advertiser's wallet, balance minus fee.
	if len(e.wallet.transfers) != 1 {
		t.Fatalf("transfers = %d, want 1 refund", len(e.wallet.transfers))
	}
	tr := e.wallet.transfers[0]
	if tr.Dest != e.refundAddr {
		t.Errorf("refund destination = %s, want %s", tr.Dest, e.refundAddr)
	}
	if tr.Amount.Int64() != 5_000_000_000-50_000_000 {
		t.Errorf("refund amount = %d, want balance minus fee", tr.Amount.Int64())
	}
	if len(e.audit.byAction(models.AuditRefundTransferAttempt)) != 1 {
		t.Error("refund attempt not audited")
	}
}

func TestIntegrityMonitorCancelsEvenWhenRefundFails(t *testing.T) {
	e := newTestEnv()
	deal, msg := postedDeal(e, 5_000_000_000)
	e.msgr.deleted[msg.MessageID] = true
	e.wallet.failTransfer = true

	if err := newMonitor(e).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := e.deals.get(deal.ID)
	if got.Status != models.DealStatusCancelled {
		t.Fatalf("status = %s, breach must cancel even with the refund failing", got.Status)
	}
	// The attempt is still on the audit trail for manual replay.
	if len(e.audit.byAction(models.AuditRefundTransferAttempt)) != 1 {
		t.Error("failed refund attempt not audited")
	}
}

func TestIntegrityMonitorSkipsRecentlyChecked(t *testing.T) {
	e := newTestEnv()
	deal, _ := postedDeal(e, 5_000_000_000)
	justNow := time.Now()
	e.deals.mu.Lock()
	e.deals.deals[deal.ID].LastCheckAt = &justNow
	e.deals.mu.Unlock()

	if err := newMonitor(e).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := e.deals.get(deal.ID)
	if !got.LastCheckAt.Equal(justNow) {
		t.Error("freshly checked deal re-probed before the interval elapsed")
	}
}
