package services

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/adplace/backend/internal/models"
	"github.com/adplace/backend/internal/repositories"
	"github.com/adplace/backend/internal/telegram"
	"github.com/google/uuid"
)

// ErrStateConflict is returned when an operation's precondition (the
// expected prior deal status) no longer holds. No side effects have
// been attempted by then.
var ErrStateConflict = errors.New("deal is not in the required state")

// DealStore is the persistence seam for the deal aggregate. All status
// transitions are conditional updates: the bool result reports whether
// this caller won the write.
type DealStore interface {
	Create(ctx context.Context, d *models.Deal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Deal, error)
	GetByIDWithChannel(ctx context.Context, id uuid.UUID) (*models.DealWithChannel, error)
	List(ctx context.Context, f repositories.DealFilter) ([]models.Deal, error)

	MarkEscrow(ctx context.Context, id uuid.UUID, balanceNano int64) (bool, error)
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)
	MarkInProgress(ctx context.Context, id uuid.UUID) (bool, error)
	MarkPosted(ctx context.Context, id uuid.UUID, postedAt time.Time) (bool, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error)
	MarkCancelled(ctx context.Context, id uuid.UUID, fromStatus, reason string) (bool, error)
	TouchIntegrityCheck(ctx context.Context, id uuid.UUID) error
	UpdateBalance(ctx context.Context, id uuid.UUID, balanceNano int64) error
	SetDraftSubmitted(ctx context.Context, id uuid.UUID, at time.Time) error
	IncrementDraftRevisions(ctx context.Context, id uuid.UUID) error

	ListPendingUnexpired(ctx context.Context, limit int) ([]models.Deal, error)
	ListPendingExpired(ctx context.Context, limit int) ([]models.Deal, error)
	ListReadyToPublish(ctx context.Context, limit int) ([]models.Deal, error)
	ListDueForPublish(ctx context.Context, limit int) ([]models.Deal, error)
	ListDueForIntegrityCheck(ctx context.Context, staleAfter time.Duration, limit int) ([]models.Deal, error)
	ListDueForCompletion(ctx context.Context, buffer time.Duration, limit int) ([]models.Deal, error)
	ListOwnerResponseTimeouts(ctx context.Context, window time.Duration, limit int) ([]models.Deal, error)
	ListReviewTimeouts(ctx context.Context, window time.Duration, limit int) ([]models.Deal, error)
	ListUnapprovedPastSchedule(ctx context.Context, limit int) ([]models.Deal, error)
	CountActive(ctx context.Context) (int, error)

	CreateDraft(ctx context.Context, d *models.DealDraft) error
	ListDrafts(ctx context.Context, dealID uuid.UUID) ([]models.DealDraft, error)
	ListApprovedDrafts(ctx context.Context, dealID uuid.UUID) ([]models.DealDraft, error)
	HasApprovedDraft(ctx context.Context, dealID uuid.UUID) (bool, error)
	HasPendingDraft(ctx context.Context, dealID uuid.UUID) (bool, error)
	ApprovePendingDrafts(ctx context.Context, dealID uuid.UUID) error
	RejectPendingDrafts(ctx context.Context, dealID uuid.UUID, comment string) error

	CreateContent(ctx context.Context, c *models.DealContent) error
	GetContent(ctx context.Context, dealID uuid.UUID) (*models.DealContent, error)
	AddMessage(ctx context.Context, m *models.DealMessage) error
	ListMessages(ctx context.Context, dealID uuid.UUID) ([]models.DealMessage, error)
}

// ChannelRegistry is the read-only channel lookup surface, plus the one
// counter the settlement path increments.
type ChannelRegistry interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error)
	ListMembers(ctx context.Context, channelID uuid.UUID) ([]models.ChannelMember, error)
	GetMember(ctx context.Context, channelID, userID uuid.UUID) (*models.ChannelMember, error)
	IncrementCompletedDeals(ctx context.Context, id uuid.UUID) error
}

type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type AuditSink interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

// EscrowWallet is the custody boundary: seed material only ever crosses
// it in encrypted form.
type EscrowWallet interface {
	CreateWallet(ctx context.Context) (address string, encSeed []byte, err error)
	Balance(ctx context.Context, encSeed []byte) (*big.Int, error)
	Transfer(ctx context.Context, encSeed []byte, dest string, amountNano *big.Int, memo string) error
	NetworkFee() *big.Int
}

// Messenger is the messaging gateway. Failures never block or reverse a
// state transition.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
	PublishPost(ctx context.Context, chatID int64, post telegram.Post) ([]int64, error)
	ProbeMessage(ctx context.Context, probeChatID, chatID, messageID int64) (bool, error)
}

// PostProber is the fallback existence check for public channels.
type PostProber interface {
	PostExists(ctx context.Context, channelUsername string, messageID int64) (bool, error)
}

// JobGate switches the recurring background checks on and off so the
// worker does not poll an empty table forever.
type JobGate interface {
	Activate(ctx context.Context) error
	Deactivate(ctx context.Context) error
	Active(ctx context.Context) (bool, error)
}
