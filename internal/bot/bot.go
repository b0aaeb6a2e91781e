package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bio065/biobot/internal/service"
	"github.com/bio065/biobot/pkg/logger"
	"go.uber.org/zap"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	msgJoinPrompt = "To use this bot you need to join our channel first."
	msgAdmitted   = "Welcome, %s! You are in."
	msgMisconfig  = "The bot is not set up correctly right now. The operators have been notified, please try again later."
	msgTryAgain   = "Something went wrong and your registration was not confirmed. Please try again."
	msgNotAllowed = "This action is for admins only."
)

type Config struct {
	ChannelURL string
	AdminIDs   []int64
}

// Bot is the Telegram transport: it receives updates, drives the gate
// and renders outcomes back to the user.
type Bot struct {
	api    *tgbotapi.BotAPI
	svc    *service.Service
	cfg    Config
	admins map[int64]struct{}

	// pendingRefs remembers the referral argument of a blocked start so
	// a later "check again" retries with the original argument instead
	// of a re-derived one.
	mu          sync.Mutex
	pendingRefs map[int64]string
}

func New(api *tgbotapi.BotAPI, svc *service.Service, cfg Config) *Bot {
	admins := make(map[int64]struct{}, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		admins[id] = struct{}{}
	}

	return &Bot{
		api:         api,
		svc:         svc,
		cfg:         cfg,
		admins:      admins,
		pendingRefs: make(map[int64]string),
	}
}

// Start runs the long-poll update loop until the context is cancelled.
func (b *Bot) Start(ctx context.Context) {
	log := logger.Logger()

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := b.api.GetUpdatesChan(updateConfig)
	log.Info("bot update loop started", zap.String("bot", b.api.Self.UserName))

	for {
		select {
		case update := <-updates:
			switch {
			case update.Message != nil && update.Message.IsCommand():
				b.handleCommand(ctx, update.Message)
			case update.CallbackQuery != nil:
				b.handleCallback(ctx, update.CallbackQuery)
			}

		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			log.Info("bot update loop stopped")
			return
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, m *tgbotapi.Message) {
	if m.Command() != "start" || m.From == nil {
		return
	}

	arg := strings.TrimSpace(m.CommandArguments())
	b.rememberReferral(m.From.ID, arg)
	b.runGate(ctx, m.From, m.Chat.ID, arg)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	log := logger.Logger()

	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		log.Warn("failed to answer callback", zap.Error(err))
	}
	if cq.From == nil || cq.Message == nil {
		return
	}
	chatID := cq.Message.Chat.ID

	switch cq.Data {
	case callbackRecheck:
		b.runGate(ctx, cq.From, chatID, b.pendingReferral(cq.From.ID))
	case callbackLink:
		b.sendReferralLink(chatID, cq.From.ID)
	case callbackStats:
		b.sendStats(ctx, chatID, cq.From.ID)
	case callbackReport:
		b.sendReport(ctx, chatID, cq.From.ID)
	}
}

func (b *Bot) runGate(ctx context.Context, from *tgbotapi.User, chatID int64, referralArg string) {
	log := logger.Logger()

	result, err := b.svc.Pass(ctx, service.GateRequest{
		TelegramID:       from.ID,
		Username:         displayName(from),
		Handle:           from.UserName,
		ReferralArgument: referralArg,
	})
	if err != nil {
		// Not confirmed; the pending referral stays so a retry reuses
		// the original argument.
		log.Error("gate attempt failed", zap.Int64("telegram_id", from.ID), zap.Error(err))
		b.send(chatID, msgTryAgain)
		return
	}

	switch result.State {
	case service.StateBlocked:
		msg := tgbotapi.NewMessage(chatID, msgJoinPrompt)
		msg.ReplyMarkup = joinKeyboard(b.cfg.ChannelURL)
		b.sendMessage(msg)

	case service.StateMisconfigured:
		b.send(chatID, msgMisconfig)
		b.notifyAdmins(fmt.Sprintf("Membership check failed: %s", result.Reason))

	case service.StateAdmitted:
		b.forgetReferral(from.ID)
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(msgAdmitted, displayName(from)))
		msg.ReplyMarkup = menuKeyboard(b.isAdmin(from.ID))
		b.sendMessage(msg)
	}
}

func (b *Bot) sendReferralLink(chatID, telegramID int64) {
	link := fmt.Sprintf("https://t.me/%s?start=%d", b.api.Self.UserName, telegramID)
	b.send(chatID, fmt.Sprintf("Share this link to invite people:\n%s", link))
}

func (b *Bot) sendStats(ctx context.Context, chatID, telegramID int64) {
	log := logger.Logger()

	user, err := b.svc.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		log.Error("failed to get user stats", zap.Int64("telegram_id", telegramID), zap.Error(err))
		b.send(chatID, msgTryAgain)
		return
	}

	referrals, err := b.svc.GetUserReferrals(ctx, telegramID)
	if err != nil {
		log.Error("failed to get user referrals", zap.Int64("telegram_id", telegramID), zap.Error(err))
		b.send(chatID, msgTryAgain)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You invited %d people.\n", user.Referrals)
	for _, ref := range referrals {
		fmt.Fprintf(&sb, "- %s\n", ref.TelegramUsername)
	}
	b.send(chatID, sb.String())
}

func (b *Bot) sendReport(ctx context.Context, chatID, telegramID int64) {
	log := logger.Logger()

	if !b.isAdmin(telegramID) {
		b.send(chatID, msgNotAllowed)
		return
	}

	total, err := b.svc.CountUsers(ctx)
	if err != nil {
		log.Error("failed to count users", zap.Error(err))
		b.send(chatID, msgTryAgain)
		return
	}

	rows, err := b.svc.GetReferralReport(ctx)
	if err != nil {
		log.Error("failed to build referral report", zap.Error(err))
		b.send(chatID, msgTryAgain)
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  reportFileName(),
		Bytes: BuildReport(total, rows),
	})
	doc.Caption = fmt.Sprintf("Referral report, %d users", total)
	if _, err := b.api.Send(doc); err != nil {
		log.Error("failed to send report", zap.Error(err))
	}
}

func (b *Bot) notifyAdmins(text string) {
	log := logger.Logger()
	for id := range b.admins {
		if _, err := b.api.Send(tgbotapi.NewMessage(id, text)); err != nil {
			log.Warn("failed to notify admin", zap.Int64("admin_id", id), zap.Error(err))
		}
	}
}

func (b *Bot) send(chatID int64, text string) {
	b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendMessage(msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		logger.Logger().Warn("failed to send message",
			zap.Int64("chat_id", msg.ChatID), zap.Error(err))
	}
}

func (b *Bot) isAdmin(telegramID int64) bool {
	_, ok := b.admins[telegramID]
	return ok
}

func (b *Bot) rememberReferral(telegramID int64, arg string) {
	if arg == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingRefs[telegramID] = arg
}

func (b *Bot) pendingReferral(telegramID int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pendingRefs[telegramID]
}

func (b *Bot) forgetReferral(telegramID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pendingRefs, telegramID)
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}
