package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/adplace/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dealColumns = `
	id, channel_id, advertiser_user_id, status, cancel_reason,
	campaign_type, brief, posts_count, price_per_post_ton, total_price_ton, duration_hours,
	escrow_address, escrow_seed_enc, last_balance_nano, refund_wallet_address,
	draft_revisions, draft_submitted_at,
	created_at, expires_at, payment_verified_at, scheduled_at, posted_at,
	completed_at, last_check_at, updated_at`

type DealRepo struct {
	pool *pgxpool.Pool
}

func NewDealRepo(pool *pgxpool.Pool) *DealRepo {
	return &DealRepo{pool: pool}
}

func scanDeal(row interface{ Scan(...any) error }, d *models.Deal) error {
	return row.Scan(&d.ID, &d.ChannelID, &d.AdvertiserUserID, &d.Status, &d.CancelReason,
		&d.CampaignType, &d.Brief, &d.PostsCount, &d.PricePerPostTON, &d.TotalPriceTON, &d.DurationHours,
		&d.EscrowAddress, &d.EscrowSeedEnc, &d.LastBalanceNano, &d.RefundWalletAddress,
		&d.DraftRevisions, &d.DraftSubmittedAt,
		&d.CreatedAt, &d.ExpiresAt, &d.PaymentVerifiedAt, &d.ScheduledAt, &d.PostedAt,
		&d.CompletedAt, &d.LastCheckAt, &d.UpdatedAt)
}

func (r *DealRepo) Create(ctx context.Context, d *models.Deal) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO deals (channel_id, advertiser_user_id, status, campaign_type, brief,
		                   posts_count, price_per_post_ton, total_price_ton, duration_hours,
		                   escrow_address, escrow_seed_enc, refund_wallet_address, expires_at, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at
	`, d.ChannelID, d.AdvertiserUserID, d.Status, d.CampaignType, d.Brief,
		d.PostsCount, d.PricePerPostTON, d.TotalPriceTON, d.DurationHours,
		d.EscrowAddress, d.EscrowSeedEnc, d.RefundWalletAddress, d.ExpiresAt, d.ScheduledAt,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

func (r *DealRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	var d models.Deal
	err := scanDeal(r.pool.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id), &d)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DealRepo) GetByIDWithChannel(ctx context.Context, id uuid.UUID) (*models.DealWithChannel, error) {
	var d models.DealWithChannel
	err := r.pool.QueryRow(ctx, `
		SELECT d.id, d.channel_id, d.advertiser_user_id, d.status, d.cancel_reason,
		       d.campaign_type, d.brief, d.posts_count, d.price_per_post_ton, d.total_price_ton, d.duration_hours,
		       d.escrow_address, d.last_balance_nano,
		       d.draft_revisions, d.draft_submitted_at,
		       d.created_at, d.expires_at, d.payment_verified_at, d.scheduled_at, d.posted_at,
		       d.completed_at, d.last_check_at, d.updated_at,
		       c.title, c.username
		FROM deals d
		JOIN channels c ON c.id = d.channel_id
		WHERE d.id = $1
	`, id).Scan(&d.ID, &d.ChannelID, &d.AdvertiserUserID, &d.Status, &d.CancelReason,
		&d.CampaignType, &d.Brief, &d.PostsCount, &d.PricePerPostTON, &d.TotalPriceTON, &d.DurationHours,
		&d.EscrowAddress, &d.LastBalanceNano,
		&d.DraftRevisions, &d.DraftSubmittedAt,
		&d.CreatedAt, &d.ExpiresAt, &d.PaymentVerifiedAt, &d.ScheduledAt, &d.PostedAt,
		&d.CompletedAt, &d.LastCheckAt, &d.UpdatedAt,
		&d.ChannelTitle, &d.ChannelUsername)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

type DealFilter struct {
	ChannelID        *uuid.UUID
	AdvertiserUserID *uuid.UUID
	MemberUserID     *uuid.UUID // through channel_members
	Status           *string
	Limit            int
	Offset           int
}

func (r *DealRepo) List(ctx context.Context, f DealFilter) ([]models.Deal, error) {
	query := `SELECT ` + prefixColumns("d") + ` FROM deals d`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.MemberUserID != nil {
		query += ` JOIN channel_members cm ON cm.channel_id = d.channel_id `
		where = append(where, fmt.Sprintf("cm.user_id = $%d", argIdx))
		args = append(args, *f.MemberUserID)
		argIdx++
	}
	if f.ChannelID != nil {
		where = append(where, fmt.Sprintf("d.channel_id = $%d", argIdx))
		args = append(args, *f.ChannelID)
		argIdx++
	}
	if f.AdvertiserUserID != nil {
		where = append(where, fmt.Sprintf("d.advertiser_user_id = $%d", argIdx))
		args = append(args, *f.AdvertiserUserID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("d.status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY d.created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	return r.queryDeals(ctx, query, args...)
}

// ---- CAS status transitions ----
//
// Every transition is a conditional update on the expected prior status;
// RowsAffected == 0 means another component won the race and the caller
// must back off. Side-effect markers are written in the same statement
// as the status so a transition and its stamps are atomic.

func (r *DealRepo) MarkEscrow(ctx context.Context, id uuid.UUID, balanceNano int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE deals SET status = $1, payment_verified_at = now(), last_balance_nano = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, models.DealStatusEscrow, balanceNano, id, models.DealStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *DealRepo) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE deals SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, models.DealStatusExpired, id, models.DealStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *DealRepo) MarkInProgress(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE deals SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, models.DealStatusInProgress, id, models.DealStatusEscrow)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkPosted stamps posted_at once. The posted_at-is-null guard is what
// makes the publication scheduler effectively exactly-once.
func (r *DealRepo) MarkPosted(ctx context.Context, id uuid.UUID, postedAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE deals SET posted_at = $1, updated_at = now()
		WHERE id = $2 AND status = $3 AND posted_at IS NULL
	`, postedAt, id, models.DealStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *DealRepo) MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE deals SET status = $1, completed_at = now(), updated_at = now()
		WHERE id = $2 AND status = $3
	`, models.DealStatusCompleted, id, models.DealStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *DealRepo) MarkCancelled(ctx context.Context, id uuid.UUID, fromStatus, reason string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE deals SET status = $1, cancel_reason = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, models.DealStatusCancelled, reason, id, fromStatus)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *DealRepo) TouchIntegrityCheck(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE deals SET last_check_at = now(), updated_at = now() WHERE id = $1`, id)
	return err
}

func (r *DealRepo) UpdateBalance(ctx context.Context, id uuid.UUID, balanceNano int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE deals SET last_balance_nano = $1, updated_at = now() WHERE id = $2`, balanceNano, id)
	return err
}

func (r *DealRepo) SetDraftSubmitted(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE deals SET draft_submitted_at = $1, updated_at = now() WHERE id = $2`, at, id)
	return err
}

func (r *DealRepo) IncrementDraftRevisions(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE deals SET draft_revisions = draft_revisions + 1, updated_at = now() WHERE id = $1`, id)
	return err
}

// ---- background job selectors ----

func (r *DealRepo) ListPendingUnexpired(ctx context.Context, limit int) ([]models.Deal, error) {
	return r.queryDeals(ctx, `
		SELECT `+dealColumns+` FROM deals
		WHERE status = $1 AND expires_at > now()
		ORDER BY created_at LIMIT $2
	`, models.DealStatusPending, limit)
}

func (r *DealRepo) ListPendingExpired(ctx context.Context, limit int) ([]models.Deal, error) {
	return r.queryDeals(ctx, `
		SELECT `+dealColumns+` FROM deals
		WHERE status = $1 AND expires_at <= now()
		ORDER BY created_at LIMIT $2
	`, models.DealStatusPending, limit)
}

// ListReadyToPublish returns funded deals whose publish time has come
// and whose creative is settled: ready_post carries its content from
// creation, prompt needs at least one approved draft. A deal with no
// schedule publishes as soon as it qualifies.
func (r *DealRepo) ListReadyToPublish(ctx context.Context, limit int) ([]models.Deal, error) {
	return r.queryDeals(ctx, `
		SELECT `+dealColumns+` FROM deals d
		WHERE d.status = $1
		  AND (d.scheduled_at IS NULL OR d.scheduled_at <= now())
		  AND (d.campaign_type = $2
		       OR EXISTS (SELECT 1 FROM deal_drafts dd WHERE dd.deal_id = d.id AND dd.approval = 'approved'))
		ORDER BY d.scheduled_at NULLS FIRST LIMIT $3
	`, models.DealStatusEscrow, models.CampaignTypeReadyPost, limit)
}

func (r *DealRepo) ListDueForPublish(ctx context.Context, limit int) ([]models.Deal, error) {
	return r.queryDeals(ctx, `
		SELECT `+dealColumns+` FROM deals
		WHERE status = $1 AND posted_at IS NULL
		  AND (scheduled_at IS NULL OR scheduled_at <= now())
		ORDER BY scheduled_at NULLS FIRST LIMIT $2
	`, models.DealStatusInProgress, limit)
}

func (r *DealRepo) ListDueForIntegrityCheck(ctx context.Context, staleAfter time.Duration, limit int) ([]models.Deal, error) {
	return r.queryDeals(ctx, `
		SELECT `+dealColumns+` FROM deals
		WHERE status = $1 AND posted_at IS NOT NULL
		  AND (last_check_at IS NULL OR last_check_at < now() - ($2 || ' seconds')::interval)
		ORDER BY last_check_at NULLS FIRST LIMIT $3
	`, models.DealStatusInProgress, fmt.Sprintf("%d", int(staleAfter.Seconds())), limit)
}

// ListDueForCompletion returns in_progress deals whose paid placement
// window has elapsed and that have been up for at least the safety
// buffer (guards against instantaneous completion on clock skew).
func (r *DealRepo) ListDueForCompletion(ctx context.Context, buffer time.Duration, limit int) ([]models.Deal, error) {
	return r.queryDeals(ctx, `
		SELECT `+dealColumns+` FROM deals
		WHERE status = $1 AND posted_at IS NOT NULL
		  AND posted_at + (duration_hours || ' hours')::interval <= now()
		  AND posted_at + ($2 || ' seconds')::interval <= now()
		ORDER BY posted_at LIMIT $3
	`, models.DealStatusInProgress, fmt.Sprintf("%d", int(buffer.Seconds())), limit)
}

// ListOwnerResponseTimeouts: prompt deals funded more than `window` ago
// with no draft ever submitted.
func (r *DealRepo) ListOwnerResponseTimeouts(ctx context.Context, window time.Duration, limit int) ([]models.Deal, error) {
	return r.queryDeals(ctx, `
		SELECT `+dealColumns+` FROM deals
		WHERE status = $1 AND campaign_type = $2
		  AND draft_submitted_at IS NULL
		  AND payment_verified_at IS NOT NULL
		  AND payment_verified_at + ($3 || ' seconds')::interval < now()
		ORDER BY payment_verified_at LIMIT $4
	`, models.DealStatusEscrow, models.CampaignTypePrompt, fmt.Sprintf("%d", int(window.Seconds())), limit)
}

// ListReviewTimeouts: prompt deals with a draft submitted more than
// `window` ago and approval still pending.
func (r *DealRepo) ListReviewTimeouts(ctx context.Context, window time.Duration, limit int) ([]models.Deal, error) {
	return r.queryDeals(ctx, `
		SELECT `+dealColumns+` FROM deals d
		WHERE d.status = $1 AND d.campaign_type = $2
		  AND d.draft_submitted_at IS NOT NULL
		  AND d.draft_submitted_at + ($3 || ' seconds')::interval < now()
		  AND EXISTS (SELECT 1 FROM deal_drafts dd WHERE dd.deal_id = d.id AND dd.approval = 'pending')
		  AND NOT EXISTS (SELECT 1 FROM deal_drafts dd WHERE dd.deal_id = d.id AND dd.approval = 'approved')
		ORDER BY d.draft_submitted_at LIMIT $4
	`, models.DealStatusEscrow, models.CampaignTypePrompt, fmt.Sprintf("%d", int(window.Seconds())), limit)
}

// ListUnapprovedPastSchedule: prompt deals still in escrow whose
// scheduled publish time has passed without an approved creative.
// ready_post deals never land here: their creative is fixed at
// creation and the publisher picks them up directly.
func (r *DealRepo) ListUnapprovedPastSchedule(ctx context.Context, limit int) ([]models.Deal, error) {
	return r.queryDeals(ctx, `
		SELECT `+dealColumns+` FROM deals d
		WHERE d.status = $1 AND d.campaign_type = $2
		  AND d.scheduled_at IS NOT NULL AND d.scheduled_at < now()
		  AND NOT EXISTS (SELECT 1 FROM deal_drafts dd WHERE dd.deal_id = d.id AND dd.approval = 'approved')
		ORDER BY d.scheduled_at LIMIT $3
	`, models.DealStatusEscrow, models.CampaignTypePrompt, limit)
}

// CountActive counts deals in any non-terminal status; the reconciler
// deactivates the background jobs when it drops to zero.
func (r *DealRepo) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM deals WHERE status IN ($1, $2, $3)
	`, models.DealStatusPending, models.DealStatusEscrow, models.DealStatusInProgress).Scan(&n)
	return n, err
}

// ---- drafts ----

func (r *DealRepo) CreateDraft(ctx context.Context, d *models.DealDraft) error {
	mediaBytes, _ := json.Marshal(d.MediaFileIDs)
	return r.pool.QueryRow(ctx, `
		INSERT INTO deal_drafts (deal_id, seq, text, media_file_ids, media_type, approval, submitted_at)
		VALUES ($1, (SELECT COALESCE(MAX(seq), 0) + 1 FROM deal_drafts WHERE deal_id = $1), $2, $3, $4, $5, now())
		RETURNING id, seq, submitted_at
	`, d.DealID, d.Text, mediaBytes, d.MediaType, models.DraftApprovalPending).Scan(&d.ID, &d.Seq, &d.SubmittedAt)
}

func (r *DealRepo) ListDrafts(ctx context.Context, dealID uuid.UUID) ([]models.DealDraft, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, deal_id, seq, text, media_file_ids, media_type, approval, review_comment, submitted_at
		FROM deal_drafts WHERE deal_id = $1 ORDER BY seq
	`, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drafts []models.DealDraft
	for rows.Next() {
		var d models.DealDraft
		var mediaBytes []byte
		if err := rows.Scan(&d.ID, &d.DealID, &d.Seq, &d.Text, &mediaBytes, &d.MediaType, &d.Approval, &d.ReviewComment, &d.SubmittedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(mediaBytes, &d.MediaFileIDs)
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

func (r *DealRepo) ListApprovedDrafts(ctx context.Context, dealID uuid.UUID) ([]models.DealDraft, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, deal_id, seq, text, media_file_ids, media_type, approval, review_comment, submitted_at
		FROM deal_drafts WHERE deal_id = $1 AND approval = $2 ORDER BY seq
	`, dealID, models.DraftApprovalApproved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drafts []models.DealDraft
	for rows.Next() {
		var d models.DealDraft
		var mediaBytes []byte
		if err := rows.Scan(&d.ID, &d.DealID, &d.Seq, &d.Text, &mediaBytes, &d.MediaType, &d.Approval, &d.ReviewComment, &d.SubmittedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(mediaBytes, &d.MediaFileIDs)
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

func (r *DealRepo) HasApprovedDraft(ctx context.Context, dealID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM deal_drafts WHERE deal_id = $1 AND approval = $2)
	`, dealID, models.DraftApprovalApproved).Scan(&exists)
	return exists, err
}

func (r *DealRepo) HasPendingDraft(ctx context.Context, dealID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM deal_drafts WHERE deal_id = $1 AND approval = $2)
	`, dealID, models.DraftApprovalPending).Scan(&exists)
	return exists, err
}

// ApprovePendingDrafts marks every pending draft of the deal approved.
func (r *DealRepo) ApprovePendingDrafts(ctx context.Context, dealID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE deal_drafts SET approval = $1 WHERE deal_id = $2 AND approval = $3
	`, models.DraftApprovalApproved, dealID, models.DraftApprovalPending)
	return err
}

// RejectPendingDrafts marks pending drafts rejected with the reviewer's
// comment so the channel team can resubmit.
func (r *DealRepo) RejectPendingDrafts(ctx context.Context, dealID uuid.UUID, comment string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE deal_drafts SET approval = $1, review_comment = $2 WHERE deal_id = $3 AND approval = $4
	`, models.DraftApprovalRejected, comment, dealID, models.DraftApprovalPending)
	return err
}

// ---- ready-post content ----

func (r *DealRepo) CreateContent(ctx context.Context, c *models.DealContent) error {
	mediaBytes, _ := json.Marshal(c.MediaFileIDs)
	return r.pool.QueryRow(ctx, `
		INSERT INTO deal_contents (deal_id, text, media_file_ids, media_type, button_text, button_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, c.DealID, c.Text, mediaBytes, c.MediaType, c.ButtonText, c.ButtonURL).Scan(&c.ID, &c.CreatedAt)
}

func (r *DealRepo) GetContent(ctx context.Context, dealID uuid.UUID) (*models.DealContent, error) {
	var c models.DealContent
	var mediaBytes []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, deal_id, text, media_file_ids, media_type, button_text, button_url, created_at
		FROM deal_contents WHERE deal_id = $1
	`, dealID).Scan(&c.ID, &c.DealID, &c.Text, &mediaBytes, &c.MediaType, &c.ButtonText, &c.ButtonURL, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(mediaBytes, &c.MediaFileIDs)
	return &c, nil
}

// ---- published messages ----

func (r *DealRepo) AddMessage(ctx context.Context, m *models.DealMessage) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO deal_messages (deal_id, post_seq, chat_id, message_id, posted_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, m.DealID, m.PostSeq, m.ChatID, m.MessageID, m.PostedAt).Scan(&m.ID)
}

func (r *DealRepo) ListMessages(ctx context.Context, dealID uuid.UUID) ([]models.DealMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, deal_id, post_seq, chat_id, message_id, posted_at
		FROM deal_messages WHERE deal_id = $1 ORDER BY post_seq, message_id
	`, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.DealMessage
	for rows.Next() {
		var m models.DealMessage
		if err := rows.Scan(&m.ID, &m.DealID, &m.PostSeq, &m.ChatID, &m.MessageID, &m.PostedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// ---- helpers ----

func (r *DealRepo) queryDeals(ctx context.Context, query string, args ...any) ([]models.Deal, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []models.Deal
	for rows.Next() {
		var d models.Deal
		if err := scanDeal(rows, &d); err != nil {
			return nil, err
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

func prefixColumns(alias string) string {
	cols := strings.Split(dealColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}
