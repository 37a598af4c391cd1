package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/adplace/backend/internal/events"
	"github.com/adplace/backend/internal/models"
	"github.com/adplace/backend/internal/rbac"
	"github.com/adplace/backend/internal/repositories"
	"github.com/adplace/backend/internal/ton"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrForbidden means the caller is not a party to the deal in the
	// role the operation requires.
	ErrForbidden = errors.New("not allowed for this user")
	// ErrValidation wraps bad input; handlers map it to 400.
	ErrValidation = errors.New("validation failed")
)

type DealService struct {
	deals    DealStore
	channels ChannelRegistry
	users    UserStore
	audit    AuditSink
	wallet   EscrowWallet
	notify   *Notifier
	gate     JobGate
	pub      events.Publisher
	log      *zap.Logger

	paymentWindow time.Duration
}

func NewDealService(
	deals DealStore,
	channels ChannelRegistry,
	users UserStore,
	audit AuditSink,
	wallet EscrowWallet,
	notify *Notifier,
	gate JobGate,
	pub events.Publisher,
	paymentWindow time.Duration,
	log *zap.Logger,
) *DealService {
	return &DealService{
		deals:         deals,
		channels:      channels,
		users:         users,
		audit:         audit,
		wallet:        wallet,
		notify:        notify,
		gate:          gate,
		pub:           pub,
		log:           log,
		paymentWindow: paymentWindow,
	}
}

type ContentInput struct {
	Text         string   `json:"text"`
	MediaFileIDs []string `json:"media_file_ids"`
	MediaType    *string  `json:"media_type"`
	ButtonText   *string  `json:"button_text"`
	ButtonURL    *string  `json:"button_url"`
}

type CreateDealInput struct {
	ChannelID           uuid.UUID     `json:"channel_id"`
	CampaignType        string        `json:"campaign_type"`
	Brief               *string       `json:"brief"`
	PostsCount          int           `json:"posts_count"`
	PricePerPostTON     string        `json:"price_per_post_ton"`
	DurationHours       int           `json:"duration_hours"`
	ScheduledAt         *time.Time    `json:"scheduled_at"`
	RefundWalletAddress *string       `json:"refund_wallet_address"`
	Content             *ContentInput `json:"content"`
}

// CreateDeal places an order: validates the terms, fixes the total
// price, mints a single-use escrow wallet and opens the payment window.
func (s *DealService) CreateDeal(ctx context.Context, advertiserID uuid.UUID, in CreateDealInput) (*models.Deal, error) {
	switch in.CampaignType {
	case models.CampaignTypeReadyPost:
		if in.Content == nil || (in.Content.Text == "" && len(in.Content.MediaFileIDs) == 0) {
			return nil, fmt.Errorf("%w: ready_post campaign requires content", ErrValidation)
		}
	case models.CampaignTypePrompt:
		if in.Brief == nil || *in.Brief == "" {
			return nil, fmt.Errorf("%w: prompt campaign requires a brief", ErrValidation)
		}
	default:
		return nil, fmt.Errorf("%w: unknown campaign type %q", ErrValidation, in.CampaignType)
	}
	if in.PostsCount < 1 {
		return nil, fmt.Errorf("%w: posts_count must be positive", ErrValidation)
	}
	if in.DurationHours < 1 {
		return nil, fmt.Errorf("%w: duration_hours must be positive", ErrValidation)
	}
	if in.ScheduledAt != nil && in.ScheduledAt.Before(time.Now()) {
		return nil, fmt.Errorf("%w: scheduled_at is in the past", ErrValidation)
	}

	priceNano, err := ton.ParseTON(in.PricePerPostTON)
	if err != nil || priceNano.Sign() <= 0 {
		return nil, fmt.Errorf("%w: invalid price_per_post_ton", ErrValidation)
	}
	totalNano := new(big.Int).Mul(priceNano, big.NewInt(int64(in.PostsCount)))

	if _, err := s.channels.GetByID(ctx, in.ChannelID); err != nil {
		return nil, fmt.Errorf("channel lookup: %w", err)
	}

	addr, encSeed, err := s.wallet.CreateWallet(ctx)
	if err != nil {
		return nil, fmt.Errorf("create escrow wallet: %w", err)
	}

	deal := &models.Deal{
		ChannelID:           in.ChannelID,
		AdvertiserUserID:    advertiserID,
		Status:              models.DealStatusPending,
		CampaignType:        in.CampaignType,
		Brief:               in.Brief,
		PostsCount:          in.PostsCount,
		PricePerPostTON:     ton.FormatNano(priceNano),
		TotalPriceTON:       ton.FormatNano(totalNano),
		DurationHours:       in.DurationHours,
		EscrowAddress:       addr,
		EscrowSeedEnc:       encSeed,
		RefundWalletAddress: in.RefundWalletAddress,
		ExpiresAt:           time.Now().Add(s.paymentWindow),
		ScheduledAt:         in.ScheduledAt,
	}
	if err := s.deals.Create(ctx, deal); err != nil {
		return nil, fmt.Errorf("create deal: %w", err)
	}

	if in.CampaignType == models.CampaignTypeReadyPost {
		content := &models.DealContent{
			DealID:       deal.ID,
			Text:         in.Content.Text,
			MediaFileIDs: in.Content.MediaFileIDs,
			MediaType:    in.Content.MediaType,
			ButtonText:   in.Content.ButtonText,
			ButtonURL:    in.Content.ButtonURL,
		}
		if err := s.deals.CreateContent(ctx, content); err != nil {
			return nil, fmt.Errorf("create deal content: %w", err)
		}
	}

	if err := s.gate.Activate(ctx); err != nil {
		s.log.Warn("job gate activation failed", zap.Error(err))
	}

	s.publish(ctx, events.EventDealStatusChanged, deal, nil)
	s.notify.NotifyAdvertiser(ctx, deal, fmt.Sprintf(
		"Сделка %s создана. Переведите %s TON на адрес эскроу:\n%s\nСрок оплаты — %s.",
		shortRef(deal), deal.TotalPriceTON, deal.EscrowAddress,
		deal.ExpiresAt.Format("02.01.2006 15:04 MST")))

	return deal, nil
}

func (s *DealService) GetDeal(ctx context.Context, id uuid.UUID) (*models.DealWithChannel, error) {
	return s.deals.GetByIDWithChannel(ctx, id)
}

// CanAccess reports whether the user is the advertiser or a member of
// the deal's channel team.
func (s *DealService) CanAccess(ctx context.Context, deal *models.Deal, userID uuid.UUID) (bool, error) {
	if deal.AdvertiserUserID == userID {
		return true, nil
	}
	member, err := s.channels.GetMember(ctx, deal.ChannelID, userID)
	if err != nil {
		return false, err
	}
	return member != nil, nil
}

func (s *DealService) ListDeals(ctx context.Context, f repositories.DealFilter) ([]models.Deal, error) {
	return s.deals.List(ctx, f)
}

func (s *DealService) ListDrafts(ctx context.Context, dealID uuid.UUID) ([]models.DealDraft, error) {
	return s.deals.ListDrafts(ctx, dealID)
}

type DraftInput struct {
	Text         string   `json:"text"`
	MediaFileIDs []string `json:"media_file_ids"`
	MediaType    *string  `json:"media_type"`
}

// SubmitDrafts records a new draft set for a prompt campaign. Only the
// channel team may submit, and only while the deal is funded but not
// yet published.
func (s *DealService) SubmitDrafts(ctx context.Context, dealID, userID uuid.UUID, drafts []DraftInput) error {
	if len(drafts) == 0 {
		return fmt.Errorf("%w: at least one draft is required", ErrValidation)
	}
	for i, d := range drafts {
		if d.Text == "" && len(d.MediaFileIDs) == 0 {
			return fmt.Errorf("%w: draft %d is empty", ErrValidation, i+1)
		}
	}

	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		return err
	}
	if !deal.IsPromptCampaign() {
		return fmt.Errorf("%w: ready_post deals do not take drafts", ErrValidation)
	}
	if len(drafts) != deal.PostsCount {
		return fmt.Errorf("%w: the deal pays for %d posts, got %d drafts", ErrValidation, deal.PostsCount, len(drafts))
	}
	if deal.Status != models.DealStatusEscrow {
		return ErrStateConflict
	}
	member, err := s.channels.GetMember(ctx, deal.ChannelID, userID)
	if err != nil {
		return err
	}
	if member == nil || !rbac.HasPermission(member.Role, rbac.PermSubmitDraft) {
		return ErrForbidden
	}

	// A pending set must be reviewed before a new one is accepted.
	pending, err := s.deals.HasPendingDraft(ctx, dealID)
	if err != nil {
		return err
	}
	if pending {
		return ErrStateConflict
	}
	// An approved set is final. The deal may still read escrow when the
	// in_progress promotion has not landed yet, so the status check
	// alone does not close this window.
	approved, err := s.deals.HasApprovedDraft(ctx, dealID)
	if err != nil {
		return err
	}
	if approved {
		return ErrStateConflict
	}

	now := time.Now()
	for i := range drafts {
		draft := &models.DealDraft{
			DealID:       dealID,
			Text:         drafts[i].Text,
			MediaFileIDs: drafts[i].MediaFileIDs,
			MediaType:    drafts[i].MediaType,
			Approval:     models.DraftApprovalPending,
			SubmittedAt:  now,
		}
		if err := s.deals.CreateDraft(ctx, draft); err != nil {
			return fmt.Errorf("create draft: %w", err)
		}
	}
	if deal.DraftSubmittedAt == nil {
		if err := s.deals.SetDraftSubmitted(ctx, dealID, now); err != nil {
			return fmt.Errorf("mark draft submitted: %w", err)
		}
	}

	s.publish(ctx, events.EventDraftSubmitted, deal, nil)
	s.notify.DraftSubmitted(ctx, deal)
	return nil
}

// ReviewDrafts resolves the pending draft set: approve locks it for
// publication, a revision request rejects it with a comment and
// reopens submission.
func (s *DealService) ReviewDrafts(ctx context.Context, dealID, userID uuid.UUID, approve bool, comment string) error {
	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		return err
	}
	if deal.AdvertiserUserID != userID {
		return ErrForbidden
	}
	if deal.Status != models.DealStatusEscrow {
		return ErrStateConflict
	}
	pending, err := s.deals.HasPendingDraft(ctx, dealID)
	if err != nil {
		return err
	}
	if !pending {
		return ErrStateConflict
	}

	if approve {
		if err := s.deals.ApprovePendingDrafts(ctx, dealID); err != nil {
			return fmt.Errorf("approve drafts: %w", err)
		}
		// Approval ends the creative sub-workflow; the scheduler picks
		// the deal up for publication. If this write is lost the
		// scheduler promotes the deal itself on the next pass.
		if _, err := s.deals.MarkInProgress(ctx, dealID); err != nil {
			s.log.Warn("promote to in_progress failed",
				zap.String("deal_id", dealID.String()), zap.Error(err))
		}
		s.publish(ctx, events.EventDraftReviewed, deal, map[string]any{"approved": true})
		s.notify.DraftApproved(ctx, deal)
		return nil
	}

	if comment == "" {
		return fmt.Errorf("%w: a revision request requires a comment", ErrValidation)
	}
	if err := s.deals.RejectPendingDrafts(ctx, dealID, comment); err != nil {
		return fmt.Errorf("reject drafts: %w", err)
	}
	if err := s.deals.IncrementDraftRevisions(ctx, dealID); err != nil {
		return fmt.Errorf("count revision: %w", err)
	}
	s.publish(ctx, events.EventDraftReviewed, deal, map[string]any{"approved": false, "comment": comment})
	s.notify.RevisionRequested(ctx, deal, comment)
	return nil
}

// ForceComplete settles an in-progress deal on an admin's authority:
// payout to the channel, then the terminal write. The transfer attempt
// is audited first, and a failed payout does not block completion so
// the deal cannot wedge; operators reconcile from the audit log.
func (s *DealService) ForceComplete(ctx context.Context, dealID, adminUserID uuid.UUID) error {
	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		return err
	}
	if deal.Status != models.DealStatusInProgress {
		return ErrStateConflict
	}
	channel, err := s.channels.GetByID(ctx, deal.ChannelID)
	if err != nil {
		return fmt.Errorf("channel lookup: %w", err)
	}

	payoutErr := s.payoutToChannel(ctx, deal, channel, &adminUserID)

	ok, err := s.deals.MarkCompleted(ctx, dealID)
	if err != nil {
		return fmt.Errorf("complete deal: %w", err)
	}
	if !ok {
		return ErrStateConflict
	}
	if err := s.channels.IncrementCompletedDeals(ctx, deal.ChannelID); err != nil {
		s.log.Warn("completed deals counter update failed",
			zap.String("channel_id", deal.ChannelID.String()), zap.Error(err))
	}

	s.publish(ctx, events.EventDealCompleted, deal, nil)
	s.notify.DealCompleted(ctx, deal)
	if payoutErr != nil {
		s.log.Error("force-complete payout failed, deal completed anyway",
			zap.String("deal_id", dealID.String()), zap.Error(payoutErr))
	}
	return nil
}

// ForceCancel refunds the advertiser and cancels the deal on an
// admin's authority. Unlike completion, the refund must succeed before
// the terminal write when there is anything to refund: a cancelled
// deal with stranded funds is worse than a retryable admin call.
func (s *DealService) ForceCancel(ctx context.Context, dealID, adminUserID uuid.UUID) error {
	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		return err
	}
	switch deal.Status {
	case models.DealStatusPending, models.DealStatusEscrow, models.DealStatusInProgress:
	default:
		return ErrStateConflict
	}

	balance, err := s.wallet.Balance(ctx, deal.EscrowSeedEnc)
	if err != nil {
		return fmt.Errorf("escrow balance: %w", err)
	}
	refundable := new(big.Int).Sub(balance, s.wallet.NetworkFee())
	if refundable.Sign() > 0 {
		if deal.RefundWalletAddress == nil {
			return fmt.Errorf("deal %s holds funds but has no refund address", dealID)
		}
		s.auditTransfer(ctx, deal, models.AuditRefundTransferAttempt, &adminUserID, map[string]any{
			"destination": *deal.RefundWalletAddress,
			"amount_nano": refundable.String(),
		})
		if err := s.wallet.Transfer(ctx, deal.EscrowSeedEnc, *deal.RefundWalletAddress, refundable, "refund "+shortRef(deal)); err != nil {
			return fmt.Errorf("refund transfer: %w", err)
		}
	}

	ok, err := s.deals.MarkCancelled(ctx, dealID, deal.Status, models.CancelReasonAdmin)
	if err != nil {
		return fmt.Errorf("cancel deal: %w", err)
	}
	if !ok {
		return ErrStateConflict
	}

	s.publish(ctx, events.EventDealCancelled, deal, map[string]any{"reason": models.CancelReasonAdmin})
	s.notify.AdminCancelled(ctx, deal)
	return nil
}

// payoutToChannel moves everything spendable above the fee reserve to
// the channel's payout wallet. Failures before the transfer are still
// audited since the caller completes the deal either way.
func (s *DealService) payoutToChannel(ctx context.Context, deal *models.Deal, channel *models.Channel, actor *uuid.UUID) error {
	meta := map[string]any{"amount_nano": "unknown"}
	payable, prepErr := preparePayout(ctx, s.wallet, deal, channel, meta)
	if prepErr != nil {
		meta["error"] = prepErr.Error()
	}
	s.auditTransfer(ctx, deal, models.AuditSettlementTransferAttempt, actor, meta)
	if prepErr != nil {
		return prepErr
	}
	return s.wallet.Transfer(ctx, deal.EscrowSeedEnc, *channel.PayoutWalletAddress, payable, "payout "+shortRef(deal))
}

func (s *DealService) auditTransfer(ctx context.Context, deal *models.Deal, action string, actor *uuid.UUID, meta map[string]any) {
	actorType := "system"
	if actor != nil {
		actorType = "admin"
	}
	entry := models.AuditLog{
		ActorUserID: actor,
		ActorType:   actorType,
		Action:      action,
		EntityType:  "deal",
		EntityID:    &deal.ID,
		Meta:        meta,
	}
	if err := s.audit.Log(ctx, entry); err != nil {
		s.log.Error("audit write failed before transfer",
			zap.String("deal_id", deal.ID.String()), zap.String("action", action), zap.Error(err))
	}
}

func (s *DealService) publish(ctx context.Context, eventType string, deal *models.Deal, extra map[string]any) {
	payload := map[string]any{
		"deal_id": deal.ID.String(),
		"status":  deal.Status,
	}
	for k, v := range extra {
		payload[k] = v
	}
	if err := s.pub.Publish(ctx, events.DealStream, events.Event{Type: eventType, Payload: payload}); err != nil {
		s.log.Warn("event publish failed", zap.String("type", eventType), zap.Error(err))
	}
}
