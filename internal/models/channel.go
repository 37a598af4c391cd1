package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a registry entry the core only reads (plus one counter it
// increments on completion). Onboarding and discovery live elsewhere.
type Channel struct {
	ID             uuid.UUID `json:"id"`
	TelegramChatID int64     `json:"telegram_chat_id"`
	Username       string    `json:"username"`
	Title          *string   `json:"title,omitempty"`
	// Payout destination for settlements and compensation splits.
	PayoutWalletAddress *string   `json:"payout_wallet_address,omitempty"`
	CompletedDeals      int       `json:"completed_deals"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type ChannelMember struct {
	ID             uuid.UUID `json:"id"`
	ChannelID      uuid.UUID `json:"channel_id"`
	UserID         uuid.UUID `json:"user_id"`
	TelegramUserID int64     `json:"telegram_user_id"`
	Role           string    `json:"role"` // owner / manager
}
