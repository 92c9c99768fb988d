package tgbot

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type App struct {
	bot    *tgbotapi.BotAPI
	router *Router
	logger *slog.Logger

	inflight sync.WaitGroup
}

func New(token string, router *Router, logger *slog.Logger) (*App, error) {
	b, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	b.Debug = false
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("telegram authorized", slog.String("bot", b.Self.UserName))
	return &App{bot: b, router: router, logger: logger}, nil
}

// Run polls for updates until ctx is done. Each message is handled in its own
// goroutine; commands already running are finished before Run returns.
func (a *App) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.bot.GetUpdatesChan(u)
	defer a.inflight.Wait()
	defer a.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.Message == nil || upd.Message.From == nil {
				continue
			}
			in := toInbound(upd.Message)
			a.inflight.Add(1)
			go func() {
				defer a.inflight.Done()
				if err := a.router.Handle(context.WithoutCancel(ctx), in, a); err != nil {
					a.logger.Error("handle message",
						slog.Int64("chat_id", in.ChatID),
						slog.Any("error", err),
					)
				}
			}()
		}
	}
}

func (a *App) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	_, err := a.bot.Send(msg)
	return err
}

func (a *App) DeleteMessage(chatID int64, messageID int) error {
	_, err := a.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

func toInbound(m *tgbotapi.Message) Inbound {
	in := Inbound{
		MessageID: m.MessageID,
		Text:      m.Text,
		From: Sender{
			UserID:      m.From.ID,
			DisplayName: displayName(m.From),
		},
	}
	if m.Chat != nil {
		in.ChatID = m.Chat.ID
		in.ChatTitle = m.Chat.Title
		in.Private = m.Chat.IsPrivate()
	}
	return in
}

// displayName is the identity written to sheets: the username when set,
// otherwise the full name.
func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
