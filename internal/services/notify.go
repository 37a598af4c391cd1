package services

import (
	"context"
	"fmt"

	"github.com/adplace/backend/internal/models"
	"go.uber.org/zap"
)

// Notifier delivers plain-language Russian notifications to the parties
// of a deal. Delivery failures are logged and swallowed: the state
// machine never depends on them.
type Notifier struct {
	msgr     Messenger
	channels ChannelRegistry
	users    UserStore
	log      *zap.Logger
}

func NewNotifier(msgr Messenger, channels ChannelRegistry, users UserStore, log *zap.Logger) *Notifier {
	return &Notifier{msgr: msgr, channels: channels, users: users, log: log}
}

// shortRef is the human-facing deal reference used in messages.
func shortRef(d *models.Deal) string {
	return d.ID.String()[:8]
}

func (n *Notifier) NotifyAdvertiser(ctx context.Context, deal *models.Deal, text string) {
	user, err := n.users.GetByID(ctx, deal.AdvertiserUserID)
	if err != nil {
		n.log.Warn("advertiser lookup failed for notification",
			zap.String("deal_id", deal.ID.String()), zap.Error(err))
		return
	}
	if _, err := n.msgr.SendMessage(ctx, user.TelegramUserID, text); err != nil {
		n.log.Warn("advertiser notification failed",
			zap.String("deal_id", deal.ID.String()), zap.Error(err))
	}
}

// NotifyChannelTeam messages the full team: owner plus every manager.
func (n *Notifier) NotifyChannelTeam(ctx context.Context, deal *models.Deal, text string) {
	members, err := n.channels.ListMembers(ctx, deal.ChannelID)
	if err != nil {
		n.log.Warn("channel team lookup failed for notification",
			zap.String("deal_id", deal.ID.String()), zap.Error(err))
		return
	}
	for _, m := range members {
		if _, err := n.msgr.SendMessage(ctx, m.TelegramUserID, text); err != nil {
			n.log.Warn("channel team notification failed",
				zap.String("deal_id", deal.ID.String()),
				zap.Int64("telegram_user_id", m.TelegramUserID),
				zap.Error(err))
		}
	}
}

// --- message texts ---

func (n *Notifier) PaymentVerified(ctx context.Context, deal *models.Deal) {
	ref := shortRef(deal)
	if deal.IsPromptCampaign() {
		n.NotifyChannelTeam(ctx, deal, fmt.Sprintf(
			"Оплата по сделке %s поступила на эскроу. Подготовьте текст поста и отправьте его на согласование рекламодателю.", ref))
	} else {
		n.NotifyChannelTeam(ctx, deal, fmt.Sprintf(
			"Оплата по сделке %s поступила на эскроу. Пост будет опубликован автоматически в назначенное время.", ref))
	}
	n.NotifyAdvertiser(ctx, deal, fmt.Sprintf("Оплата по сделке %s подтверждена.", ref))
}

func (n *Notifier) DraftSubmitted(ctx context.Context, deal *models.Deal) {
	n.NotifyAdvertiser(ctx, deal, fmt.Sprintf(
		"Канал подготовил текст поста по сделке %s. Проверьте и подтвердите публикацию или запросите правки.", shortRef(deal)))
}

func (n *Notifier) DraftApproved(ctx context.Context, deal *models.Deal) {
	n.NotifyChannelTeam(ctx, deal, fmt.Sprintf(
		"Рекламодатель согласовал текст по сделке %s. Публикация состоится в назначенное время.", shortRef(deal)))
}

func (n *Notifier) RevisionRequested(ctx context.Context, deal *models.Deal, comment string) {
	n.NotifyChannelTeam(ctx, deal, fmt.Sprintf(
		"Рекламодатель запросил правки по сделке %s: %s", shortRef(deal), comment))
}

func (n *Notifier) PostPublished(ctx context.Context, deal *models.Deal) {
	n.NotifyAdvertiser(ctx, deal, fmt.Sprintf("Пост по сделке %s опубликован в канале.", shortRef(deal)))
}

func (n *Notifier) PostDeleted(ctx context.Context, deal *models.Deal) {
	ref := shortRef(deal)
	n.NotifyAdvertiser(ctx, deal, fmt.Sprintf(
		"Пост по сделке %s был удалён из канала до окончания размещения. Средства возвращены на ваш кошелёк.", ref))
	n.NotifyChannelTeam(ctx, deal, fmt.Sprintf(
		"Пост по сделке %s удалён до окончания оплаченного размещения. Сделка отменена, средства возвращены рекламодателю. Досрочное удаление — нарушение условий и влияет на репутацию канала.", ref))
}

func (n *Notifier) DealCompleted(ctx context.Context, deal *models.Deal) {
	ref := shortRef(deal)
	n.NotifyChannelTeam(ctx, deal, fmt.Sprintf(
		"Сделка %s завершена, средства отправлены на кошелёк канала. Оцените сотрудничество с рекламодателем от 1 до 5.", ref))
	n.NotifyAdvertiser(ctx, deal, fmt.Sprintf(
		"Сделка %s успешно завершена. Оцените сотрудничество с каналом от 1 до 5.", ref))
}

func (n *Notifier) PaymentExpired(ctx context.Context, deal *models.Deal) {
	n.NotifyAdvertiser(ctx, deal, fmt.Sprintf(
		"Срок оплаты по сделке %s истёк, сделка закрыта. Средства не поступали.", shortRef(deal)))
}

func (n *Notifier) OwnerTimeout(ctx context.Context, deal *models.Deal) {
	ref := shortRef(deal)
	n.NotifyAdvertiser(ctx, deal, fmt.Sprintf(
		"Канал не подготовил текст по сделке %s за 24 часа. Сделка отменена, средства возвращены на ваш кошелёк.", ref))
	n.NotifyChannelTeam(ctx, deal, fmt.Sprintf(
		"Вы не отправили текст по сделке %s в течение 24 часов. Сделка отменена, средства возвращены рекламодателю.", ref))
}

func (n *Notifier) AdvertiserTimeout(ctx context.Context, deal *models.Deal) {
	ref := shortRef(deal)
	n.NotifyAdvertiser(ctx, deal, fmt.Sprintf(
		"Вы не проверили текст по сделке %s в течение 24 часов. Сделка отменена: 70%% средств возвращено вам, 30%% выплачено каналу за проделанную работу.", ref))
	n.NotifyChannelTeam(ctx, deal, fmt.Sprintf(
		"Рекламодатель не проверил текст по сделке %s в течение 24 часов. Сделка отменена, каналу выплачена компенсация 30%% суммы.", ref))
}

func (n *Notifier) AutoExpired(ctx context.Context, deal *models.Deal) {
	ref := shortRef(deal)
	n.NotifyAdvertiser(ctx, deal, fmt.Sprintf(
		"Время публикации по сделке %s прошло без согласованного текста. Сделка отменена, средства возвращены на ваш кошелёк.", ref))
	n.NotifyChannelTeam(ctx, deal, fmt.Sprintf(
		"Время публикации по сделке %s прошло без согласованного текста. Сделка отменена.", ref))
}

func (n *Notifier) AdminCancelled(ctx context.Context, deal *models.Deal) {
	ref := shortRef(deal)
	n.NotifyAdvertiser(ctx, deal, fmt.Sprintf(
		"Сделка %s отменена администрацией. Средства возвращены на ваш кошелёк.", ref))
	n.NotifyChannelTeam(ctx, deal, fmt.Sprintf("Сделка %s отменена администрацией.", ref))
}
