package repositories

import (
	"context"
	"errors"

	"github.com/adplace/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChannelRepo is the read-only view of the channel registry. The only
// mutation the deal lifecycle performs is the completed-deals counter.
type ChannelRepo struct {
	pool *pgxpool.Pool
}

func NewChannelRepo(pool *pgxpool.Pool) *ChannelRepo {
	return &ChannelRepo{pool: pool}
}

func (r *ChannelRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	var ch models.Channel
	err := r.pool.QueryRow(ctx, `
		SELECT id, telegram_chat_id, username, title, payout_wallet_address, completed_deals, created_at, updated_at
		FROM channels WHERE id = $1
	`, id).Scan(&ch.ID, &ch.TelegramChatID, &ch.Username, &ch.Title,
		&ch.PayoutWalletAddress, &ch.CompletedDeals, &ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// ListMembers returns the full channel team, owner first.
func (r *ChannelRepo) ListMembers(ctx context.Context, channelID uuid.UUID) ([]models.ChannelMember, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT cm.id, cm.channel_id, cm.user_id, u.telegram_user_id, cm.role
		FROM channel_members cm
		JOIN users u ON u.id = cm.user_id
		WHERE cm.channel_id = $1
		ORDER BY CASE cm.role WHEN 'owner' THEN 0 ELSE 1 END
	`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.ChannelMember
	for rows.Next() {
		var m models.ChannelMember
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.UserID, &m.TelegramUserID, &m.Role); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *ChannelRepo) GetMember(ctx context.Context, channelID, userID uuid.UUID) (*models.ChannelMember, error) {
	var m models.ChannelMember
	err := r.pool.QueryRow(ctx, `
		SELECT cm.id, cm.channel_id, cm.user_id, u.telegram_user_id, cm.role
		FROM channel_members cm
		JOIN users u ON u.id = cm.user_id
		WHERE cm.channel_id = $1 AND cm.user_id = $2
	`, channelID, userID).Scan(&m.ID, &m.ChannelID, &m.UserID, &m.TelegramUserID, &m.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *ChannelRepo) IncrementCompletedDeals(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE channels SET completed_deals = completed_deals + 1, updated_at = now() WHERE id = $1
	`, id)
	return err
}
