package services

import (
	"context"
	"testing"
	"time"

	"github.com/adplace/backend/internal/events"
	"github.com/adplace/backend/internal/models"
)

func newVerifier(e *testEnv) *PaymentVerifier {
	return NewPaymentVerifier(e.deals, e.wallet, e.notify, e.pub, 2, testLogger())
}

func TestPaymentVerifierBelowTotalKeepsPending(t *testing.T) {
	e := newTestEnv()
	deal := e.newDeal(models.DealStatusPending, models.CampaignTypeReadyPost, "5")
	e.wallet.setBalance(deal.EscrowSeedEnc, 4_999_999_999)

	if err := newVerifier(e).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := e.deals.get(deal.ID)
	if got.Status != models.DealStatusPending {
		t.Fatalf("status = %s, want pending", got.Status)
	}
	if got.LastBalanceNano != 4_999_999_999 {
		t.Errorf("last_balance_nano = %d, want snapshot of partial payment", got.LastBalanceNano)
	}
	if len(e.pub.byType(events.EventPaymentVerified)) != 0 {
		t.Error("payment_verified event published for underfunded deal")
	}
}

func TestPaymentVerifierExactAndOverpayment(t *testing.T) {
	cases := []struct {
		name    string
		balance int64
	}{
		{"exact", 5_000_000_000},
		{"overpaid", 5_700_000_000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnv()
			deal := e.newDeal(models.DealStatusPending, models.CampaignTypeReadyPost, "5")
			e.wallet.setBalance(deal.EscrowSeedEnc, tc.balance)

			if err := newVerifier(e).Run(context.Background()); err != nil {
				t.Fatalf("run: %v", err)
			}

			got := e.deals.get(deal.ID)
			if got.Status != models.DealStatusEscrow {
				t.Fatalf("status = %s, want escrow", got.Status)
			}
			if got.PaymentVerifiedAt == nil {
				t.Error("payment_verified_at not stamped")
			}
			if got.LastBalanceNano != tc.balance {
				t.Errorf("last_balance_nano = %d, want %d", got.LastBalanceNano, tc.balance)
			}
			if len(e.pub.byType(events.EventPaymentVerified)) != 1 {
				t.Error("expected one payment_verified event")
			}
		})
	}
}

func TestPaymentVerifierSecondRunIsNoop(t *testing.T) {
	e := newTestEnv()
	deal := e.newDeal(models.DealStatusPending, models.CampaignTypeReadyPost, "5")
	e.wallet.setBalance(deal.EscrowSeedEnc, 5_000_000_000)

	v := newVerifier(e)
	if err := v.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := v.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if n := len(e.pub.byType(events.EventPaymentVerified)); n != 1 {
		t.Errorf("payment_verified events = %d, want exactly 1", n)
	}
}

func TestPaymentVerifierExpiresStaleOrders(t *testing.T) {
	e := newTestEnv()
	deal := e.newDeal(models.DealStatusPending, models.CampaignTypeReadyPost, "5")
	e.deals.mu.Lock()
	e.deals.deals[deal.ID].ExpiresAt = time.Now().Add(-time.Minute)
	e.deals.mu.Unlock()

	if err := newVerifier(e).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := e.deals.get(deal.ID)
	if got.Status != models.DealStatusExpired {
		t.Fatalf("status = %s, want expired", got.Status)
	}
	// Advertiser gets the expiry notice.
	found := false
	for _, m := range e.msgr.sent {
		if m.ChatID == 1001 {
			found = true
		}
	}
	if !found {
		t.Error("advertiser not notified about expiry")
	}
}

func TestPaymentVerifierFundedAfterDeadlineStillExpires(t *testing.T) {
	// A payment landing after expires_at does not revive the order.
	e := newTestEnv()
	deal := e.newDeal(models.DealStatusPending, models.CampaignTypeReadyPost, "5")
	e.wallet.setBalance(deal.EscrowSeedEnc, 5_000_000_000)
	e.deals.mu.Lock()
	e.deals.deals[deal.ID].ExpiresAt = time.Now().Add(-time.Minute)
	e.deals.mu.Unlock()

	if err := newVerifier(e).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := e.deals.get(deal.ID); got.Status != models.DealStatusExpired {
		t.Fatalf("status = %s, want expired", got.Status)
	}
}
