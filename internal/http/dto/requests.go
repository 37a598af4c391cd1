package dto

import "time"

type AuthTelegramRequest struct {
	InitData string `json:"init_data"`
}

type DealContentRequest struct {
	Text         string   `json:"text"`
	MediaFileIDs []string `json:"media_file_ids,omitempty"`
	MediaType    *string  `json:"media_type,omitempty"` // photo / video
	ButtonText   *string  `json:"button_text,omitempty"`
	ButtonURL    *string  `json:"button_url,omitempty"`
}

type CreateDealRequest struct {
	ChannelID           string              `json:"channel_id"`
	CampaignType        string              `json:"campaign_type"` // ready_post / prompt
	Brief               *string             `json:"brief,omitempty"`
	PostsCount          int                 `json:"posts_count"`
	PricePerPostTON     string              `json:"price_per_post_ton"`
	DurationHours       int                 `json:"duration_hours"`
	ScheduledAt         *time.Time          `json:"scheduled_at,omitempty"`
	RefundWalletAddress *string             `json:"refund_wallet_address,omitempty"`
	Content             *DealContentRequest `json:"content,omitempty"` // required for ready_post
}

type DraftRequest struct {
	Text         string   `json:"text"`
	MediaFileIDs []string `json:"media_file_ids,omitempty"`
	MediaType    *string  `json:"media_type,omitempty"`
}

type SubmitDraftsRequest struct {
	Drafts []DraftRequest `json:"drafts"`
}

type ReviewDraftsRequest struct {
	Action  string `json:"action"` // approve / request_revision
	Comment string `json:"comment,omitempty"`
}
