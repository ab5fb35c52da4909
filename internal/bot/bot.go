package bot

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/mlbb-topup-bot/internal/bot/handlers"
	"github.com/Proton-105/mlbb-topup-bot/internal/bot/keyboard"
	errors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
	"github.com/Proton-105/mlbb-topup-bot/internal/idempotency"
	"github.com/Proton-105/mlbb-topup-bot/internal/middleware"
	"github.com/Proton-105/mlbb-topup-bot/internal/notify"
	"github.com/Proton-105/mlbb-topup-bot/internal/state"
	"github.com/Proton-105/mlbb-topup-bot/pkg/config"
)

// Bot wraps telebot.Bot with the router that serves every update.
type Bot struct {
	telebot *telebot.Bot
	router  *Router
	log     *slog.Logger
}

// Options carries the collaborators of the update pipeline.
type Options struct {
	Handlers    *handlers.Handlers
	FSM         state.StateMachine
	RateLimit   *middleware.RateLimitMiddleware
	Idempotency idempotency.Manager
	ErrHandler  *errors.Handler
	Log         *slog.Logger
}

// NewTelebot creates the Telegram client for the configured update mode.
func NewTelebot(cfg config.BotConfig) (*telebot.Bot, error) {
	settings := telebot.Settings{
		Token: cfg.Token,
	}

	if cfg.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen:   cfg.WebhookListen,
			Endpoint: &telebot.WebhookEndpoint{PublicURL: cfg.WebhookURL},
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Timeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	return tb, nil
}

// New wires the router onto tb.
func New(tb *telebot.Bot, opts Options) *Bot {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	b := &Bot{
		telebot: tb,
		router:  NewRouter(NewDispatcher(opts.FSM, log), log),
		log:     log,
	}

	setupRouter(b.router, opts, log)
	b.registerTelebotHandlers()

	return b
}

// Router returns the router serving the bot's updates.
func (b *Bot) Router() *Router {
	return b.router
}

// Start runs the telegram bot event loop. It blocks until Stop.
func (b *Bot) Start() {
	if b.telebot != nil {
		b.telebot.Start()
	}
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

func setupRouter(r *Router, opts Options, log *slog.Logger) {
	r.Use(RecoveryMiddleware(log, opts.ErrHandler))
	r.Use(LoggingMiddleware(log))
	r.Use(ErrorHandlingMiddleware(opts.ErrHandler))
	r.Use(middleware.Metrics)
	if opts.RateLimit != nil {
		r.Use(opts.RateLimit.Handle)
	}
	r.Use(middleware.Idempotency(opts.Idempotency, log))

	h := opts.Handlers
	if h == nil {
		return
	}

	r.GuardCommands(h.RequireUnrestricted)

	r.RegisterCommand(CommandStart, h.Start)
	r.RegisterCommand(CommandHelp, h.Start)
	r.RegisterCommand(CommandRegister, h.Register)
	r.RegisterCommand(CommandBalance, h.Balance)
	r.RegisterCommand(CommandTopUp, h.TopUp)
	r.RegisterCommand(CommandCancel, h.Cancel)
	r.RegisterCommand(CommandPrice, h.Price)
	r.RegisterCommand(CommandHistory, h.History)
	r.RegisterCommand(CommandOrder, h.Order)

	r.RegisterCommand(CommandApprove, h.ApproveTopUp)
	r.RegisterCommand(CommandReject, h.RejectTopUp)
	r.RegisterCommand(CommandGrant, h.Grant)
	r.RegisterCommand(CommandDeduct, h.Deduct)
	r.RegisterCommand(CommandBan, h.Ban)
	r.RegisterCommand(CommandUnban, h.Unban)
	r.RegisterCommand(CommandAddAdmin, h.AddAdmin)
	r.RegisterCommand(CommandRemoveAdmin, h.RemoveAdmin)
	r.RegisterCommand(CommandSetPrice, h.SetPrice)
	r.RegisterCommand(CommandRemovePrice, h.RemovePrice)
	r.RegisterCommand(CommandMaintenance, h.Maintenance)
	r.RegisterCommand(CommandSetPay, h.SetPay)
	r.RegisterCommand(CommandReport, h.Report)
	r.RegisterCommand(CommandAdminHelp, h.AdminHelp)
	r.RegisterCommand(CommandReply, h.Reply)
	r.RegisterCommand(CommandDone, h.Done)
	r.RegisterCommand(CommandSendGroup, h.SendGroup)

	r.RegisterCallback(keyboard.ActionTopUpPay, h.SelectChannel)
	r.RegisterCallback(keyboard.ActionTopUpCancel, h.CancelTopUp)
	r.RegisterCallback(keyboard.ActionRegisterRequest, h.RegisterRequest)
	r.RegisterCallback(keyboard.ActionHistory, h.HistoryPage)
	r.RegisterCallback(notify.ActionTopUpApprove, h.ApproveTopUpButton)
	r.RegisterCallback(notify.ActionTopUpReject, h.RejectTopUpButton)
	r.RegisterCallback(notify.ActionOrderConfirm, h.ConfirmOrderButton)
	r.RegisterCallback(notify.ActionOrderCancel, h.CancelOrderButton)
	r.RegisterCallback(notify.ActionRegisterApprove, h.ApproveRegistrationButton)
	r.RegisterCallback(notify.ActionRegisterReject, h.RejectRegistrationButton)

	r.dispatcher.RegisterStateHandler(state.StateDraft, h.DraftReminder)
	r.dispatcher.RegisterStateHandler(state.StateChannelSelected, h.Proof)
	r.dispatcher.RegisterStateHandler(state.StateAwaitingApproval, h.AwaitingReminder)

	r.SetDefault(h.Unknown)
}

func (b *Bot) registerTelebotHandlers() {
	if b.telebot == nil || b.router == nil {
		return
	}

	for _, endpoint := range []string{telebot.OnText, telebot.OnPhoto, telebot.OnDocument, telebot.OnCallback} {
		b.telebot.Handle(endpoint, b.router.Route)
	}
}
