package services

import (
	"context"
	"fmt"
	"time"

	"github.com/adplace/backend/internal/events"
	"github.com/adplace/backend/internal/models"
	"github.com/adplace/backend/internal/telegram"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Publisher moves funded deals to in_progress when their publish time
// comes and delivers the creative to the channel. Each delivered post
// is recorded with its seq before the next one goes out, so a run that
// dies halfway resumes where it stopped instead of double-posting.
type Publisher struct {
	deals       DealStore
	channels    ChannelRegistry
	msgr        Messenger
	notify      *Notifier
	pub         events.Publisher
	log         *zap.Logger
	concurrency int
}

func NewPublisher(deals DealStore, channels ChannelRegistry, msgr Messenger, notify *Notifier, pub events.Publisher, concurrency int, log *zap.Logger) *Publisher {
	return &Publisher{deals: deals, channels: channels, msgr: msgr, notify: notify, pub: pub, concurrency: concurrency, log: log}
}

func (p *Publisher) Run(ctx context.Context) error {
	// Promote first so a deal becoming due is published in the same
	// pass; the second list picks up earlier runs that died mid-publish.
	ready, err := p.deals.ListReadyToPublish(ctx, jobBatchSize)
	if err != nil {
		return fmt.Errorf("list ready to publish: %w", err)
	}
	for i := range ready {
		won, err := p.deals.MarkInProgress(ctx, ready[i].ID)
		if err != nil {
			p.log.Warn("promote to in_progress failed",
				zap.String("deal_id", ready[i].ID.String()), zap.Error(err))
			continue
		}
		if won {
			ready[i].Status = models.DealStatusInProgress
		}
	}

	due, err := p.deals.ListDueForPublish(ctx, jobBatchSize)
	if err != nil {
		return fmt.Errorf("list due for publish: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := range due {
		deal := due[i]
		g.Go(func() error {
			if err := p.publishDeal(gctx, &deal); err != nil {
				p.log.Warn("publish failed",
					zap.String("deal_id", deal.ID.String()), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

func (p *Publisher) publishDeal(ctx context.Context, deal *models.Deal) error {
	channel, err := p.channels.GetByID(ctx, deal.ChannelID)
	if err != nil {
		return fmt.Errorf("channel lookup: %w", err)
	}
	posts, err := p.buildPosts(ctx, deal)
	if err != nil {
		return err
	}

	existing, err := p.deals.ListMessages(ctx, deal.ID)
	if err != nil {
		return fmt.Errorf("list delivered messages: %w", err)
	}
	delivered := make(map[int]bool, len(existing))
	for _, m := range existing {
		delivered[m.PostSeq] = true
	}

	var firstErr error
	for i, post := range posts {
		seq := i + 1
		if delivered[seq] {
			continue
		}
		msgIDs, err := p.msgr.PublishPost(ctx, channel.TelegramChatID, post)
		if err != nil {
			firstErr = fmt.Errorf("publish post %d: %w", seq, err)
			break
		}
		now := time.Now()
		for _, msgID := range msgIDs {
			rec := &models.DealMessage{
				DealID:    deal.ID,
				PostSeq:   seq,
				ChatID:    channel.TelegramChatID,
				MessageID: msgID,
				PostedAt:  now,
			}
			if err := p.deals.AddMessage(ctx, rec); err != nil {
				// The message is live; without its record the
				// integrity monitor cannot watch it. Stop and retry
				// the whole deal next tick rather than lose track.
				return fmt.Errorf("record message %d of post %d: %w", msgID, seq, err)
			}
		}
		delivered[seq] = true
	}

	for seq := 1; seq <= len(posts); seq++ {
		if !delivered[seq] {
			return firstErr
		}
	}

	won, err := p.deals.MarkPosted(ctx, deal.ID, time.Now())
	if err != nil {
		return fmt.Errorf("mark posted: %w", err)
	}
	if !won {
		return nil
	}

	p.log.Info("deal published",
		zap.String("deal_id", deal.ID.String()),
		zap.Int("posts", len(posts)))
	if err := p.pub.Publish(ctx, events.DealStream, events.Event{
		Type: events.EventPostPublished,
		Payload: map[string]any{
			"deal_id": deal.ID.String(),
			"status":  models.DealStatusInProgress,
			"posts":   len(posts),
		},
	}); err != nil {
		p.log.Warn("event publish failed", zap.Error(err))
	}
	p.notify.PostPublished(ctx, deal)
	return nil
}

// buildPosts assembles the post sequence: a ready_post creative is
// placed posts_count times verbatim, a prompt campaign publishes its
// approved drafts in submission order.
func (p *Publisher) buildPosts(ctx context.Context, deal *models.Deal) ([]telegram.Post, error) {
	if deal.IsPromptCampaign() {
		drafts, err := p.deals.ListApprovedDrafts(ctx, deal.ID)
		if err != nil {
			return nil, fmt.Errorf("list approved drafts: %w", err)
		}
		if len(drafts) == 0 {
			return nil, fmt.Errorf("no approved drafts for deal %s", deal.ID)
		}
		posts := make([]telegram.Post, 0, len(drafts))
		for _, d := range drafts {
			posts = append(posts, telegram.Post{
				Text:         d.Text,
				MediaFileIDs: d.MediaFileIDs,
				MediaType:    strValue(d.MediaType),
			})
		}
		return posts, nil
	}

	content, err := p.deals.GetContent(ctx, deal.ID)
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	post := telegram.Post{
		Text:         content.Text,
		MediaFileIDs: content.MediaFileIDs,
		MediaType:    strValue(content.MediaType),
		ButtonText:   strValue(content.ButtonText),
		ButtonURL:    strValue(content.ButtonURL),
	}
	posts := make([]telegram.Post, deal.PostsCount)
	for i := range posts {
		posts[i] = post
	}
	return posts, nil
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
