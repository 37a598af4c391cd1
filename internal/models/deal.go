package models

import (
	"time"

	"github.com/google/uuid"
)

// Deal statuses
const (
	DealStatusPending    = "pending"
	DealStatusEscrow     = "escrow"
	DealStatusInProgress = "in_progress"
	DealStatusCompleted  = "completed"
	DealStatusCancelled  = "cancelled"
	DealStatusExpired    = "expired"
)

// Cancellation reasons
const (
	CancelReasonOwnerTimeout      = "owner_timeout_24h"
	CancelReasonAdvertiserTimeout = "advertiser_timeout_24h"
	CancelReasonAutoExpired       = "auto_expired"
	CancelReasonPostDeleted       = "post_deleted"
	CancelReasonAdmin             = "admin_cancelled"
)

// Campaign types
const (
	CampaignTypeReadyPost = "ready_post"
	CampaignTypePrompt    = "prompt"
)

// Draft approval states
const (
	DraftApprovalPending  = "pending"
	DraftApprovalApproved = "approved"
	DraftApprovalRejected = "rejected"
)

// Valid state transitions: from -> []to. The graph is strictly forward:
// terminal statuses never leave.
var ValidDealTransitions = map[string][]string{
	DealStatusPending:    {DealStatusEscrow, DealStatusExpired, DealStatusCancelled},
	DealStatusEscrow:     {DealStatusInProgress, DealStatusCancelled},
	DealStatusInProgress: {DealStatusCompleted, DealStatusCancelled},
	DealStatusCompleted:  {},
	DealStatusCancelled:  {},
	DealStatusExpired:    {},
}

func IsValidTransition(from, to string) bool {
	allowed, ok := ValidDealTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminalStatus(status string) bool {
	allowed, ok := ValidDealTransitions[status]
	return ok && len(allowed) == 0
}

// Deal is the central aggregate: one advertiser-channel placement,
// escrowed in its own single-use TON wallet.
type Deal struct {
	ID               uuid.UUID `json:"id"`
	ChannelID        uuid.UUID `json:"channel_id"`
	AdvertiserUserID uuid.UUID `json:"advertiser_user_id"`
	Status           string    `json:"status"`
	CancelReason     *string   `json:"cancel_reason,omitempty"`

	CampaignType    string  `json:"campaign_type"` // ready_post / prompt
	Brief           *string `json:"brief,omitempty"`
	PostsCount      int     `json:"posts_count"`
	PricePerPostTON string  `json:"price_per_post_ton"` // numeric as string
	TotalPriceTON   string  `json:"total_price_ton"`    // posts_count * price_per_post, fixed at creation
	DurationHours   int     `json:"duration_hours"`

	// Escrow wallet. The seed is stored AES-GCM encrypted and is never
	// serialized into API responses.
	EscrowAddress   string `json:"escrow_address"`
	EscrowSeedEnc   []byte `json:"-"`
	LastBalanceNano int64  `json:"last_balance_nano"`

	// Where refunds go. Supplied by the advertiser at order placement;
	// timeout branches skip (and log) when it is missing.
	RefundWalletAddress *string `json:"refund_wallet_address,omitempty"`

	DraftRevisions   int        `json:"draft_revisions"`
	DraftSubmittedAt *time.Time `json:"draft_submitted_at,omitempty"`

	CreatedAt         time.Time  `json:"created_at"`
	ExpiresAt         time.Time  `json:"expires_at"` // payment deadline
	PaymentVerifiedAt *time.Time `json:"payment_verified_at,omitempty"`
	ScheduledAt       *time.Time `json:"scheduled_at,omitempty"`
	PostedAt          *time.Time `json:"posted_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	LastCheckAt       *time.Time `json:"last_check_at,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// IsPromptCampaign reports whether the deal requires owner-authored drafts.
func (d *Deal) IsPromptCampaign() bool {
	return d.CampaignType == CampaignTypePrompt
}

// DealWithChannel embeds Deal and adds channel info to avoid N+1 queries.
type DealWithChannel struct {
	Deal
	ChannelTitle    *string `json:"channel_title,omitempty"`
	ChannelUsername *string `json:"channel_username,omitempty"`
}

// DealContent is the immutable creative of a ready_post campaign:
// verbatim advertiser-supplied text, media references (Telegram file_ids)
// and an optional inline button.
type DealContent struct {
	ID           uuid.UUID `json:"id"`
	DealID       uuid.UUID `json:"deal_id"`
	Text         string    `json:"text"`
	MediaFileIDs []string  `json:"media_file_ids,omitempty"`
	MediaType    *string   `json:"media_type,omitempty"` // photo / video
	ButtonText   *string   `json:"button_text,omitempty"`
	ButtonURL    *string   `json:"button_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// DealDraft is one entry of the ordered draft sequence of a prompt
// campaign (seq starts at 1; single-post deals simply have one entry).
type DealDraft struct {
	ID            uuid.UUID `json:"id"`
	DealID        uuid.UUID `json:"deal_id"`
	Seq           int       `json:"seq"`
	Text          string    `json:"text"`
	MediaFileIDs  []string  `json:"media_file_ids,omitempty"`
	MediaType     *string   `json:"media_type,omitempty"`
	Approval      string    `json:"approval"` // pending / approved / rejected
	ReviewComment *string   `json:"review_comment,omitempty"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// DealMessage records one published Telegram message so the integrity
// monitor can later verify the post still exists. PostSeq ties the
// message back to the post (1..posts_count) that produced it, which
// lets an interrupted publish run resume without double-posting.
type DealMessage struct {
	ID        uuid.UUID `json:"id"`
	DealID    uuid.UUID `json:"deal_id"`
	PostSeq   int       `json:"post_seq"`
	ChatID    int64     `json:"chat_id"`
	MessageID int64     `json:"message_id"`
	PostedAt  time.Time `json:"posted_at"`
}
