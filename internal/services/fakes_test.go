package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/adplace/backend/internal/events"
	"github.com/adplace/backend/internal/models"
	"github.com/adplace/backend/internal/repositories"
	"github.com/adplace/backend/internal/telegram"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger { return zap.NewNop() }

// ---- deal store ----

type fakeDealStore struct {
	mu       sync.Mutex
	deals    map[uuid.UUID]*models.Deal
	drafts   []*models.DealDraft
	contents map[uuid.UUID]*models.DealContent
	messages []models.DealMessage
}

func newFakeDealStore() *fakeDealStore {
	return &fakeDealStore{
		deals:    make(map[uuid.UUID]*models.Deal),
		contents: make(map[uuid.UUID]*models.DealContent),
	}
}

func (s *fakeDealStore) put(d *models.Deal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.deals[d.ID] = &cp
}

func (s *fakeDealStore) get(id uuid.UUID) models.Deal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.deals[id]
}

func (s *fakeDealStore) Create(_ context.Context, d *models.Deal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	cp := *d
	s.deals[d.ID] = &cp
	return nil
}

func (s *fakeDealStore) GetByID(_ context.Context, id uuid.UUID) (*models.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deals[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *d
	return &cp, nil
}

func (s *fakeDealStore) GetByIDWithChannel(ctx context.Context, id uuid.UUID) (*models.DealWithChannel, error) {
	d, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.DealWithChannel{Deal: *d}, nil
}

func (s *fakeDealStore) List(_ context.Context, f repositories.DealFilter) ([]models.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Deal
	for _, d := range s.deals {
		if f.AdvertiserUserID != nil && d.AdvertiserUserID != *f.AdvertiserUserID {
			continue
		}
		if f.Status != nil && d.Status != *f.Status {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

func (s *fakeDealStore) cas(id uuid.UUID, from string, apply func(*models.Deal)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deals[id]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if d.Status != from {
		return false, nil
	}
	apply(d)
	d.UpdatedAt = time.Now()
	return true, nil
}

func (s *fakeDealStore) MarkEscrow(_ context.Context, id uuid.UUID, balanceNano int64) (bool, error) {
	return s.cas(id, models.DealStatusPending, func(d *models.Deal) {
		d.Status = models.DealStatusEscrow
		now := time.Now()
		d.PaymentVerifiedAt = &now
		d.LastBalanceNano = balanceNano
	})
}

func (s *fakeDealStore) MarkExpired(_ context.Context, id uuid.UUID) (bool, error) {
	return s.cas(id, models.DealStatusPending, func(d *models.Deal) {
		d.Status = models.DealStatusExpired
	})
}

func (s *fakeDealStore) MarkInProgress(_ context.Context, id uuid.UUID) (bool, error) {
	return s.cas(id, models.DealStatusEscrow, func(d *models.Deal) {
		d.Status = models.DealStatusInProgress
	})
}

func (s *fakeDealStore) MarkPosted(_ context.Context, id uuid.UUID, postedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deals[id]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if d.Status != models.DealStatusInProgress || d.PostedAt != nil {
		return false, nil
	}
	d.PostedAt = &postedAt
	return true, nil
}

func (s *fakeDealStore) MarkCompleted(_ context.Context, id uuid.UUID) (bool, error) {
	return s.cas(id, models.DealStatusInProgress, func(d *models.Deal) {
		d.Status = models.DealStatusCompleted
		now := time.Now()
		d.CompletedAt = &now
	})
}

func (s *fakeDealStore) MarkCancelled(_ context.Context, id uuid.UUID, fromStatus, reason string) (bool, error) {
	return s.cas(id, fromStatus, func(d *models.Deal) {
		d.Status = models.DealStatusCancelled
		d.CancelReason = &reason
	})
}

func (s *fakeDealStore) TouchIntegrityCheck(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.deals[id].LastCheckAt = &now
	return nil
}

func (s *fakeDealStore) UpdateBalance(_ context.Context, id uuid.UUID, balanceNano int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deals[id].LastBalanceNano = balanceNano
	return nil
}

func (s *fakeDealStore) SetDraftSubmitted(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deals[id].DraftSubmittedAt = &at
	return nil
}

func (s *fakeDealStore) IncrementDraftRevisions(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deals[id].DraftRevisions++
	return nil
}

func (s *fakeDealStore) selectDeals(match func(*models.Deal) bool) []models.Deal {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Deal
	for _, d := range s.deals {
		if match(d) {
			out = append(out, *d)
		}
	}
	return out
}

func (s *fakeDealStore) ListPendingUnexpired(_ context.Context, _ int) ([]models.Deal, error) {
	return s.selectDeals(func(d *models.Deal) bool {
		return d.Status == models.DealStatusPending && d.ExpiresAt.After(time.Now())
	}), nil
}

func (s *fakeDealStore) ListPendingExpired(_ context.Context, _ int) ([]models.Deal, error) {
	return s.selectDeals(func(d *models.Deal) bool {
		return d.Status == models.DealStatusPending && !d.ExpiresAt.After(time.Now())
	}), nil
}

func (s *fakeDealStore) ListReadyToPublish(_ context.Context, _ int) ([]models.Deal, error) {
	return s.selectDeals(func(d *models.Deal) bool {
		if d.Status != models.DealStatusEscrow {
			return false
		}
		if d.ScheduledAt != nil && d.ScheduledAt.After(time.Now()) {
			return false
		}
		if d.CampaignType == models.CampaignTypeReadyPost {
			return true
		}
		approved, _ := s.hasDraft(d.ID, models.DraftApprovalApproved)
		return approved
	}), nil
}

func (s *fakeDealStore) ListDueForPublish(_ context.Context, _ int) ([]models.Deal, error) {
	return s.selectDeals(func(d *models.Deal) bool {
		if d.Status != models.DealStatusInProgress || d.PostedAt != nil {
			return false
		}
		return d.ScheduledAt == nil || !d.ScheduledAt.After(time.Now())
	}), nil
}

func (s *fakeDealStore) ListDueForIntegrityCheck(_ context.Context, staleAfter time.Duration, _ int) ([]models.Deal, error) {
	return s.selectDeals(func(d *models.Deal) bool {
		if d.Status != models.DealStatusInProgress || d.PostedAt == nil {
			return false
		}
		return d.LastCheckAt == nil || time.Since(*d.LastCheckAt) > staleAfter
	}), nil
}

func (s *fakeDealStore) ListDueForCompletion(_ context.Context, buffer time.Duration, _ int) ([]models.Deal, error) {
	return s.selectDeals(func(d *models.Deal) bool {
		if d.Status != models.DealStatusInProgress || d.PostedAt == nil {
			return false
		}
		elapsed := time.Since(*d.PostedAt)
		return elapsed >= time.Duration(d.DurationHours)*time.Hour && elapsed >= buffer
	}), nil
}

func (s *fakeDealStore) ListOwnerResponseTimeouts(_ context.Context, window time.Duration, _ int) ([]models.Deal, error) {
	return s.selectDeals(func(d *models.Deal) bool {
		return d.Status == models.DealStatusEscrow &&
			d.CampaignType == models.CampaignTypePrompt &&
			d.DraftSubmittedAt == nil &&
			d.PaymentVerifiedAt != nil &&
			time.Since(*d.PaymentVerifiedAt) > window
	}), nil
}

func (s *fakeDealStore) ListReviewTimeouts(_ context.Context, window time.Duration, _ int) ([]models.Deal, error) {
	return s.selectDeals(func(d *models.Deal) bool {
		if d.Status != models.DealStatusEscrow || d.CampaignType != models.CampaignTypePrompt {
			return false
		}
		if d.DraftSubmittedAt == nil || time.Since(*d.DraftSubmittedAt) <= window {
			return false
		}
		pending, _ := s.hasDraft(d.ID, models.DraftApprovalPending)
		approved, _ := s.hasDraft(d.ID, models.DraftApprovalApproved)
		return pending && !approved
	}), nil
}

func (s *fakeDealStore) ListUnapprovedPastSchedule(_ context.Context, _ int) ([]models.Deal, error) {
	return s.selectDeals(func(d *models.Deal) bool {
		if d.Status != models.DealStatusEscrow || d.CampaignType != models.CampaignTypePrompt {
			return false
		}
		if d.ScheduledAt == nil || d.ScheduledAt.After(time.Now()) {
			return false
		}
		approved, _ := s.hasDraft(d.ID, models.DraftApprovalApproved)
		return !approved
	}), nil
}

func (s *fakeDealStore) CountActive(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, d := range s.deals {
		switch d.Status {
		case models.DealStatusPending, models.DealStatusEscrow, models.DealStatusInProgress:
			n++
		}
	}
	return n, nil
}

func (s *fakeDealStore) CreateDraft(_ context.Context, d *models.DealDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = uuid.New()
	maxSeq := 0
	for _, existing := range s.drafts {
		if existing.DealID == d.DealID && existing.Seq > maxSeq {
			maxSeq = existing.Seq
		}
	}
	d.Seq = maxSeq + 1
	cp := *d
	s.drafts = append(s.drafts, &cp)
	return nil
}

func (s *fakeDealStore) ListDrafts(_ context.Context, dealID uuid.UUID) ([]models.DealDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DealDraft
	for _, d := range s.drafts {
		if d.DealID == dealID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *fakeDealStore) ListApprovedDrafts(_ context.Context, dealID uuid.UUID) ([]models.DealDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DealDraft
	for _, d := range s.drafts {
		if d.DealID == dealID && d.Approval == models.DraftApprovalApproved {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *fakeDealStore) hasDraft(dealID uuid.UUID, approval string) (bool, error) {
	for _, d := range s.drafts {
		if d.DealID == dealID && d.Approval == approval {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeDealStore) HasApprovedDraft(_ context.Context, dealID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasDraft(dealID, models.DraftApprovalApproved)
}

func (s *fakeDealStore) HasPendingDraft(_ context.Context, dealID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasDraft(dealID, models.DraftApprovalPending)
}

func (s *fakeDealStore) ApprovePendingDrafts(_ context.Context, dealID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.drafts {
		if d.DealID == dealID && d.Approval == models.DraftApprovalPending {
			d.Approval = models.DraftApprovalApproved
		}
	}
	return nil
}

func (s *fakeDealStore) RejectPendingDrafts(_ context.Context, dealID uuid.UUID, comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.drafts {
		if d.DealID == dealID && d.Approval == models.DraftApprovalPending {
			d.Approval = models.DraftApprovalRejected
			c := comment
			d.ReviewComment = &c
		}
	}
	return nil
}

func (s *fakeDealStore) CreateContent(_ context.Context, c *models.DealContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	cp := *c
	s.contents[c.DealID] = &cp
	return nil
}

func (s *fakeDealStore) GetContent(_ context.Context, dealID uuid.UUID) (*models.DealContent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contents[dealID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (s *fakeDealStore) AddMessage(_ context.Context, m *models.DealMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = uuid.New()
	s.messages = append(s.messages, *m)
	return nil
}

func (s *fakeDealStore) ListMessages(_ context.Context, dealID uuid.UUID) ([]models.DealMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DealMessage
	for _, m := range s.messages {
		if m.DealID == dealID {
			out = append(out, m)
		}
	}
	return out, nil
}

// ---- channel registry ----

type fakeChannels struct {
	mu        sync.Mutex
	channels  map[uuid.UUID]*models.Channel
	members   map[uuid.UUID][]models.ChannelMember
	completed map[uuid.UUID]int
}

func newFakeChannels() *fakeChannels {
	return &fakeChannels{
		channels:  make(map[uuid.UUID]*models.Channel),
		members:   make(map[uuid.UUID][]models.ChannelMember),
		completed: make(map[uuid.UUID]int),
	}
}

func (c *fakeChannels) GetByID(_ context.Context, id uuid.UUID) (*models.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.channels[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *ch
	return &cp, nil
}

func (c *fakeChannels) ListMembers(_ context.Context, channelID uuid.UUID) ([]models.ChannelMember, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.ChannelMember(nil), c.members[channelID]...), nil
}

func (c *fakeChannels) GetMember(_ context.Context, channelID, userID uuid.UUID) (*models.ChannelMember, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.members[channelID] {
		if m.UserID == userID {
			cp := m
			return &cp, nil
		}
	}
	return nil, nil
}

func (c *fakeChannels) IncrementCompletedDeals(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed[id]++
	return nil
}

// ---- user store ----

type fakeUsers struct {
	users map[uuid.UUID]*models.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{users: make(map[uuid.UUID]*models.User)} }

func (u *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := u.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *user
	return &cp, nil
}

// ---- audit sink ----

type fakeAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (a *fakeAudit) Log(_ context.Context, entry models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

func (a *fakeAudit) byAction(action string) []models.AuditLog {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.AuditLog
	for _, e := range a.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// ---- escrow wallet ----

type walletTransfer struct {
	Dest   string
	Amount *big.Int
	Memo   string
}

type fakeWallet struct {
	mu           sync.Mutex
	balances     map[string]*big.Int // keyed by encoded seed
	transfers    []walletTransfer
	fee          *big.Int
	failTransfer bool
	failBalance  bool
	nextSeed     int
}

func newFakeWallet(feeNano int64) *fakeWallet {
	return &fakeWallet{balances: make(map[string]*big.Int), fee: big.NewInt(feeNano)}
}

func (w *fakeWallet) CreateWallet(_ context.Context) (string, []byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextSeed++
	seed := []byte(fmt.Sprintf("seed-%d", w.nextSeed))
	w.balances[string(seed)] = big.NewInt(0)
	return fmt.Sprintf("EQtest%d", w.nextSeed), seed, nil
}

func (w *fakeWallet) setBalance(encSeed []byte, nano int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[string(encSeed)] = big.NewInt(nano)
}

func (w *fakeWallet) Balance(_ context.Context, encSeed []byte) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failBalance {
		return nil, errors.New("liteserver unavailable")
	}
	b, ok := w.balances[string(encSeed)]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(b), nil
}

func (w *fakeWallet) Transfer(_ context.Context, encSeed []byte, dest string, amountNano *big.Int, memo string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failTransfer {
		return errors.New("liteserver unavailable")
	}
	b := w.balances[string(encSeed)]
	b.Sub(b, amountNano)
	b.Sub(b, w.fee)
	w.transfers = append(w.transfers, walletTransfer{Dest: dest, Amount: new(big.Int).Set(amountNano), Memo: memo})
	return nil
}

func (w *fakeWallet) NetworkFee() *big.Int { return new(big.Int).Set(w.fee) }

// ---- messenger ----

type sentMessage struct {
	ChatID int64
	Text   string
}

type fakeMessenger struct {
	mu            sync.Mutex
	sent          []sentMessage
	published     []telegram.Post
	deleted       map[int64]bool // message IDs reported missing by probe
	failAfter     int            // fail PublishPost after N successful posts, 0 = never
	nextMessageID int64
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{deleted: make(map[int64]bool), nextMessageID: 100}
}

func (m *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{ChatID: chatID, Text: text})
	m.nextMessageID++
	return m.nextMessageID, nil
}

func (m *fakeMessenger) PublishPost(_ context.Context, _ int64, post telegram.Post) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAfter > 0 && len(m.published) >= m.failAfter {
		return nil, errors.New("bot api: too many requests")
	}
	m.published = append(m.published, post)
	n := len(post.MediaFileIDs)
	if n < 2 {
		n = 1
	}
	ids := make([]int64, n)
	for i := range ids {
		m.nextMessageID++
		ids[i] = m.nextMessageID
	}
	return ids, nil
}

func (m *fakeMessenger) ProbeMessage(_ context.Context, _, _, messageID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.deleted[messageID], nil
}

// ---- event publisher ----

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, _ string, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) byType(t string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// ---- job gate ----

type fakeGate struct {
	mu     sync.Mutex
	active bool
}

func (g *fakeGate) Activate(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = true
	return nil
}

func (g *fakeGate) Deactivate(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = false
	return nil
}

func (g *fakeGate) Active(_ context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active, nil
}

// ---- fixture ----

// testEnv wires the fakes the way the worker wires the real stack: one
// channel with an owner and a manager, one advertiser, a funded-fee
// wallet backend.
type testEnv struct {
	deals    *fakeDealStore
	channels *fakeChannels
	users    *fakeUsers
	audit    *fakeAudit
	wallet   *fakeWallet
	msgr     *fakeMessenger
	pub      *fakePublisher
	gate     *fakeGate
	notify   *Notifier

	channelID    uuid.UUID
	advertiserID uuid.UUID
	ownerID      uuid.UUID
	payoutAddr   string
	refundAddr   string
}

func newTestEnv() *testEnv {
	e := &testEnv{
		deals:    newFakeDealStore(),
		channels: newFakeChannels(),
		users:    newFakeUsers(),
		audit:    &fakeAudit{},
		wallet:   newFakeWallet(50_000_000), // 0.05 TON
		msgr:     newFakeMessenger(),
		pub:      &fakePublisher{},
		gate:     &fakeGate{},
	}
	e.notify = NewNotifier(e.msgr, e.channels, e.users, testLogger())

	e.channelID = uuid.New()
	e.advertiserID = uuid.New()
	e.ownerID = uuid.New()
	e.payoutAddr = "EQchannel-payout"
	e.refundAddr = "EQadvertiser-refund"

	e.users.users[e.advertiserID] = &models.User{ID: e.advertiserID, TelegramUserID: 1001}
	e.users.users[e.ownerID] = &models.User{ID: e.ownerID, TelegramUserID: 2001}

	e.channels.channels[e.channelID] = &models.Channel{
		ID:                  e.channelID,
		TelegramChatID:      -100500,
		Username:            "testchannel",
		PayoutWalletAddress: &e.payoutAddr,
	}
	e.channels.members[e.channelID] = []models.ChannelMember{
		{ID: uuid.New(), ChannelID: e.channelID, UserID: e.ownerID, TelegramUserID: 2001, Role: "owner"},
	}
	return e
}

// newDeal inserts a deal with an escrow wallet already minted.
func (e *testEnv) newDeal(status, campaignType string, totalTON string) *models.Deal {
	addr, seed, _ := e.wallet.CreateWallet(context.Background())
	deal := &models.Deal{
		ChannelID:           e.channelID,
		AdvertiserUserID:    e.advertiserID,
		Status:              status,
		CampaignType:        campaignType,
		PostsCount:          1,
		PricePerPostTON:     totalTON,
		TotalPriceTON:       totalTON,
		DurationHours:       24,
		EscrowAddress:       addr,
		EscrowSeedEnc:       seed,
		RefundWalletAddress: &e.refundAddr,
		ExpiresAt:           time.Now().Add(3 * time.Hour),
	}
	_ = e.deals.Create(context.Background(), deal)
	return deal
}

func (e *testEnv) dealService() *DealService {
	return NewDealService(
		e.deals, e.channels, e.users, e.audit,
		e.wallet, e.notify, e.gate, e.pub,
		3*time.Hour, testLogger(),
	)
}
