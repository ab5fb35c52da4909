package bot

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/mlbb-topup-bot/internal/access"
	"github.com/Proton-105/mlbb-topup-bot/internal/bot/handlers"
	"github.com/Proton-105/mlbb-topup-bot/internal/domain"
	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
	"github.com/Proton-105/mlbb-topup-bot/internal/idempotency"
	"github.com/Proton-105/mlbb-topup-bot/internal/ledger"
	"github.com/Proton-105/mlbb-topup-bot/internal/lock"
	"github.com/Proton-105/mlbb-topup-bot/internal/middleware"
	"github.com/Proton-105/mlbb-topup-bot/internal/notify"
	"github.com/Proton-105/mlbb-topup-bot/internal/pricing"
	"github.com/Proton-105/mlbb-topup-bot/internal/ratelimit"
	"github.com/Proton-105/mlbb-topup-bot/internal/reports"
	"github.com/Proton-105/mlbb-topup-bot/internal/repository"
	"github.com/Proton-105/mlbb-topup-bot/internal/settings"
	"github.com/Proton-105/mlbb-topup-bot/internal/state"
	"github.com/Proton-105/mlbb-topup-bot/pkg/config"
)

const (
	ownerID    int64 = 1
	adminID    int64 = 7
	buyerID    int64 = 42
	strangerID int64 = 99
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

type fixture struct {
	router    *Router
	accounts  *repository.AccountStore
	published *recordingPublisher
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, rateLimit *config.RateLimitConfig) *fixture {
	t.Helper()

	ctx := context.Background()
	log := testLogger()
	backend := repository.NewInMemory()
	accounts := repository.NewAccountStore(backend, log)
	settingsStore := repository.NewSettingsStore(backend, log)
	fsm := state.NewStateMachine(state.NewMemoryStorage(), log)
	locker := lock.NewMemoryLocker()
	registry := access.NewRegistry("1", settingsStore, fsm, locker, log)
	prices := pricing.NewTable(settingsStore, 6000)
	require.NoError(t, prices.Load(ctx))
	shop := settings.NewService(settingsStore, registry, log)
	published := &recordingPublisher{}

	svc := ledger.NewService(ledger.Deps{
		Accounts:  accounts,
		Access:    registry,
		Prices:    prices,
		Sessions:  fsm,
		Locker:    locker,
		Publisher: published,
		Features:  shop,
		Payments:  shop,
		Log:       log,
	}, ledger.Config{MinTopUp: 1000, BannedGameIDs: ledger.DefaultBannedGameIDs, OpsChannelID: -100123})

	require.NoError(t, registry.AddAdmin(ctx, "1", "7"))
	require.NoError(t, registry.Authorize(ctx, "1", "42"))

	h := handlers.New(handlers.Deps{
		Ledger:   svc,
		Access:   registry,
		Settings: shop,
		Prices:   prices,
		Reports:  reports.NewService(accounts, registry, time.UTC, log),
		Log:      log,
	})

	opts := Options{
		Handlers:    h,
		FSM:         fsm,
		Idempotency: idempotency.NewManager(idempotency.NewMemoryStore(), time.Hour, log),
		ErrHandler:  apperrors.NewHandler(log, false),
		Log:         log,
	}
	if rateLimit != nil {
		opts.RateLimit = middleware.NewRateLimitMiddleware(ratelimit.NewMemoryLimiter(log), ratelimit.NewRules(*rateLimit), log)
	}

	b := New(nil, opts)
	return &fixture{router: b.Router(), accounts: accounts, published: published}
}

func (f *fixture) send(t *testing.T, c *fakeContext) *fakeContext {
	t.Helper()
	require.NoError(t, f.router.Route(c))
	return c
}

func (f *fixture) pendingTopUp(t *testing.T) *domain.TopUp {
	t.Helper()
	acc, err := f.accounts.Get(context.Background(), "42")
	require.NoError(t, err)
	return acc.PendingTopUp()
}

func TestStart_UnregisteredUserGetsRegisterButton(t *testing.T) {
	f := newFixture(t, nil)

	c := f.send(t, newTextContext(strangerID, "/start"))
	assert.Contains(t, c.lastSent(), "invite only")
	require.NotNil(t, c.lastMarkup())
	assert.NotEmpty(t, c.lastMarkup().InlineKeyboard)
}

func TestStart_BotSuffixAndCaseAreIgnored(t *testing.T) {
	f := newFixture(t, nil)

	c := f.send(t, newTextContext(buyerID, "/START@mlbb_shop_bot"))
	assert.Contains(t, c.lastSent(), "Welcome back")
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t, nil)

	c := f.send(t, newTextContext(buyerID, "/nope"))
	assert.Contains(t, c.lastSent(), "did not understand")
}

func TestUnauthorizedUserCannotTopUp(t *testing.T) {
	f := newFixture(t, nil)

	c := f.send(t, newTextContext(strangerID, "/topup 5000"))
	assert.Contains(t, c.lastSent(), "not authorized")
}

func TestTopUpFlow_ApproveThenOrder(t *testing.T) {
	f := newFixture(t, nil)

	c := f.send(t, newTextContext(buyerID, "/topup 10,000"))
	assert.Contains(t, c.lastSent(), "10,000")
	require.NotNil(t, c.lastMarkup())

	cb := f.send(t, newCallbackContext(buyerID, "cb-1", "topup_pay:kpay"))
	require.NotEmpty(t, cb.edits)
	assert.Contains(t, cb.edits[0], "KPAY")

	proof := f.send(t, newPhotoContext(buyerID, "file-1"))
	assert.Contains(t, proof.lastSent(), "waiting for admin approval")

	topUp := f.pendingTopUp(t)
	require.NotNil(t, topUp)
	assert.Equal(t, "file-1", topUp.ImageRef)
	assert.Equal(t, int64(10000), topUp.Amount)

	blocked := f.send(t, newTextContext(buyerID, "hello"))
	assert.NotEmpty(t, blocked.lastSent())
	blockedOrder := f.send(t, newTextContext(buyerID, "/mmb 987654321 1234 86"))
	assert.NotContains(t, blockedOrder.lastSent(), "Order placed")

	approve := f.send(t, newCallbackContext(adminID, "cb-2", notify.CallbackData(notify.ActionTopUpApprove, topUp.ID)))
	require.NotEmpty(t, approve.edits)
	assert.Contains(t, approve.edits[0], "Approved")
	assert.Nil(t, f.pendingTopUp(t))

	order := f.send(t, newTextContext(buyerID, "/mmb 987654321(1234) 86"))
	assert.Contains(t, order.lastSent(), "Order placed")
	assert.Contains(t, order.lastSent(), "4,900")
}

func TestTopUpFlow_CancelButton(t *testing.T) {
	f := newFixture(t, nil)

	f.send(t, newTextContext(buyerID, "/topup 5000"))
	cb := f.send(t, newCallbackContext(buyerID, "cb-1", "topup_cancel"))
	require.NotEmpty(t, cb.edits)
	assert.Equal(t, "Top-up cancelled.", cb.edits[0])

	again := f.send(t, newTextContext(buyerID, "/cancel"))
	assert.Equal(t, "Nothing to cancel.", again.lastSent())
}

func TestRepeatedCallbackIsHandledOnce(t *testing.T) {
	f := newFixture(t, nil)

	f.send(t, newTextContext(buyerID, "/topup 5000"))
	f.send(t, newCallbackContext(buyerID, "cb-1", "topup_pay:wave"))
	f.send(t, newPhotoContext(buyerID, "file-1"))
	topUp := f.pendingTopUp(t)
	require.NotNil(t, topUp)

	data := notify.CallbackData(notify.ActionTopUpApprove, topUp.ID)
	first := f.send(t, newCallbackContext(adminID, "same-id", data))
	second := f.send(t, newCallbackContext(adminID, "same-id", data))

	assert.Len(t, first.edits, 1)
	assert.Empty(t, second.edits)
	require.NotNil(t, second.lastResponse())
	assert.Empty(t, second.lastResponse().Text)

	acc, err := f.accounts.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), acc.Balance)
}

func TestAdminCommandsRequireAdmin(t *testing.T) {
	f := newFixture(t, nil)

	c := f.send(t, newTextContext(buyerID, "/grant 42 1000"))
	assert.Contains(t, c.lastSent(), "Only admins")

	ok := f.send(t, newTextContext(adminID, "/grant 42 1000"))
	assert.NotContains(t, ok.lastSent(), "Only admins")

	acc, err := f.accounts.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), acc.Balance)
}

func TestRateLimitRejectsFlood(t *testing.T) {
	f := newFixture(t, &config.RateLimitConfig{Enabled: true, PerMinute: 2})

	f.send(t, newTextContext(buyerID, "/balance"))
	f.send(t, newTextContext(buyerID, "/balance"))
	c := f.send(t, newTextContext(buyerID, "/balance"))
	assert.Contains(t, c.lastSent(), "Too many requests")

	other := f.send(t, newTextContext(adminID, "/balance"))
	assert.NotContains(t, other.lastSent(), "Too many requests")
}

func TestRateLimitPerCommand(t *testing.T) {
	f := newFixture(t, &config.RateLimitConfig{Enabled: true, PerMinute: 30, Commands: map[string]int{"price": 1}})

	f.send(t, newTextContext(buyerID, "/price"))
	c := f.send(t, newTextContext(buyerID, "/price"))
	assert.Contains(t, c.lastSent(), "Too many requests")

	balance := f.send(t, newTextContext(buyerID, "/balance"))
	assert.NotContains(t, balance.lastSent(), "Too many requests")
}

func TestRecoveryMiddleware(t *testing.T) {
	f := newFixture(t, nil)
	f.router.RegisterCommand("/boom", func(telebot.Context) error { panic("boom") })

	c := f.send(t, newTextContext(buyerID, "/boom"))
	assert.NotEmpty(t, c.lastSent())
}

func TestUnknownCallbackIsAnswered(t *testing.T) {
	f := newFixture(t, nil)

	c := f.send(t, newCallbackContext(buyerID, "cb-9", "unknown_action:1"))
	assert.NotNil(t, c.lastResponse())
}

func (f *fixture) submitProof(t *testing.T) {
	t.Helper()
	f.send(t, newTextContext(buyerID, "/topup 10000"))
	f.send(t, newCallbackContext(buyerID, "cb-pay", "topup_pay:kpay"))
	proof := f.send(t, newPhotoContext(buyerID, "file-1"))
	require.Contains(t, proof.lastSent(), "waiting for admin approval")
}

func TestCommandsRefusedWhileAwaitingApproval(t *testing.T) {
	f := newFixture(t, nil)
	f.submitProof(t)

	for _, text := range []string{"/price", "/start", "/balance", "/history", "/topup 5000", "/nope", "💎 Price list"} {
		t.Run(text, func(t *testing.T) {
			c := f.send(t, newTextContext(buyerID, text))
			assert.NotContains(t, c.lastSent(), "Price list")
			assert.Contains(t, c.lastSent(), "waiting for admin approval")
		})
	}
}

func TestPriceRequiresAuthorization(t *testing.T) {
	f := newFixture(t, nil)

	stranger := f.send(t, newTextContext(strangerID, "/price"))
	assert.NotContains(t, stranger.lastSent(), "Price list")
	assert.Contains(t, stranger.lastSent(), "not authorized")

	buyer := f.send(t, newTextContext(buyerID, "/price"))
	assert.Contains(t, buyer.lastSent(), "Price list")
	assert.Contains(t, buyer.lastSent(), "wp1 - 6,000 MMK")
}

func (p *recordingPublisher) last() notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return notify.Event{}
	}
	return p.events[len(p.events)-1]
}

func TestAdminMessagingCommands(t *testing.T) {
	f := newFixture(t, nil)

	reply := f.send(t, newTextContext(adminID, "/reply 42 your order is being processed"))
	assert.Contains(t, reply.lastSent(), "Message sent to 42")
	ev := f.published.last()
	assert.Equal(t, notify.EventAdminMessage, ev.Type)
	assert.Equal(t, "your order is being processed", ev.Text)
	assert.Equal(t, []notify.Recipient{notify.ToUser("42")}, ev.Recipients)

	done := f.send(t, newTextContext(adminID, "/done 42"))
	assert.Contains(t, done.lastSent(), "order is done")
	assert.Equal(t, notify.EventOrderDone, f.published.last().Type)

	group := f.send(t, newTextContext(adminID, "/sendgroup bot maintenance at 10pm"))
	assert.Contains(t, group.lastSent(), "operations channel")
	ev = f.published.last()
	assert.Equal(t, notify.EventOpsAnnouncement, ev.Type)
	assert.Equal(t, "bot maintenance at 10pm", ev.Text)

	denied := f.send(t, newTextContext(buyerID, "/reply 7 hello"))
	assert.Contains(t, denied.lastSent(), "Only admins")

	badID := f.send(t, newTextContext(adminID, "/done buyer"))
	assert.Contains(t, badID.lastSent(), "numeric Telegram user id")
}
