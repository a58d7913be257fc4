package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// DefaultPollTimeoutSec is the long-poll timeout for inbound updates.
const DefaultPollTimeoutSec = 30

// TelegramOpts holds configuration options for the Telegram service.
type TelegramOpts struct {
	Token       string
	PollTimeout int
}

// TelegramOption defines a configuration option for the Telegram service.
type TelegramOption func(*TelegramOpts)

// WithToken sets the bot token.
func WithToken(token string) TelegramOption {
	return func(o *TelegramOpts) { o.Token = token }
}

// WithPollTimeout overrides the long-poll timeout in seconds.
func WithPollTimeout(seconds int) TelegramOption {
	return func(o *TelegramOpts) { o.PollTimeout = seconds }
}

// TelegramService implements Service over the Telegram Bot API using
// long-polling. Inbound updates are translated to Events and pushed on a
// buffered channel; a full channel drops the event with an error log
// rather than blocking the poll loop.
type TelegramService struct {
	bot         *tgbotapi.BotAPI
	events      chan Event
	pollTimeout int
	stopCh      chan struct{}
}

// NewTelegramService creates a Telegram-backed messaging service.
func NewTelegramService(opts ...TelegramOption) (*TelegramService, error) {
	cfg := TelegramOpts{PollTimeout: DefaultPollTimeoutSec}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)
	return &TelegramService{
		bot:         bot,
		events:      make(chan Event, DefaultChannelBufferSize),
		pollTimeout: cfg.PollTimeout,
		stopCh:      make(chan struct{}),
	}, nil
}

// Start begins long-polling for updates in a background goroutine.
func (s *TelegramService) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = s.pollTimeout
	updates := s.bot.GetUpdatesChan(u)
	go s.pollLoop(ctx, updates)
	slog.Info("Telegram service started")
	return nil
}

func (s *TelegramService) pollLoop(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			ev, ok := translateUpdate(update)
			if !ok {
				continue
			}
			select {
			case s.events <- ev:
			default:
				slog.Error("Event channel full, dropping inbound event", "kind", ev.Kind, "chatID", ev.ChatID)
			}
		}
	}
}

func translateUpdate(update tgbotapi.Update) (Event, bool) {
	if cq := update.CallbackQuery; cq != nil {
		ev := Event{
			Kind:       EventCallback,
			Data:       cq.Data,
			CallbackID: cq.ID,
		}
		if cq.Message != nil {
			ev.ChatID = strconv.FormatInt(cq.Message.Chat.ID, 10)
			ev.Ref = MessageRef{ChatID: ev.ChatID, MessageID: cq.Message.MessageID}
			ev.Time = int64(cq.Message.Date)
		}
		return ev, true
	}
	msg := update.Message
	if msg == nil {
		return Event{}, false
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	if msg.Contact != nil {
		return Event{
			Kind:   EventContact,
			ChatID: chatID,
			Phone:  msg.Contact.PhoneNumber,
			Time:   int64(msg.Date),
		}, true
	}
	if msg.IsCommand() {
		return Event{
			Kind:    EventCommand,
			ChatID:  chatID,
			Command: msg.Command(),
			Text:    msg.Text,
			Time:    int64(msg.Date),
		}, true
	}
	if msg.Text != "" {
		return Event{
			Kind:   EventText,
			ChatID: chatID,
			Text:   msg.Text,
			Time:   int64(msg.Date),
		}, true
	}
	return Event{}, false
}

func inlineKeyboard(controls [][]Control) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(controls))
	for _, row := range controls {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, c := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(c.Label, c.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// Deliver sends a message to the chat, attaching inline controls when given.
func (s *TelegramService) Deliver(ctx context.Context, chatID, text string, controls [][]Control) (MessageRef, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return MessageRef{}, fmt.Errorf("invalid chat ID %q: %w", chatID, err)
	}
	msg := tgbotapi.NewMessage(id, text)
	if len(controls) > 0 {
		msg.ReplyMarkup = inlineKeyboard(controls)
	}
	sent, err := s.bot.Send(msg)
	if err != nil {
		return MessageRef{}, fmt.Errorf("failed to send telegram message: %w", err)
	}
	slog.Debug("Telegram message delivered", "chatID", chatID, "messageID", sent.MessageID)
	return MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// UpdateControls replaces the inline keyboard on a sent message. Passing no
// controls strips the keyboard entirely.
func (s *TelegramService) UpdateControls(ctx context.Context, ref MessageRef, controls [][]Control) error {
	id, err := strconv.ParseInt(ref.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID %q: %w", ref.ChatID, err)
	}
	markup := inlineKeyboard(controls)
	edit := tgbotapi.NewEditMessageReplyMarkup(id, ref.MessageID, markup)
	if _, err := s.bot.Request(edit); err != nil {
		return fmt.Errorf("failed to edit message controls: %w", err)
	}
	slog.Debug("Telegram controls updated", "chatID", ref.ChatID, "messageID", ref.MessageID, "rows", len(controls))
	return nil
}

// Acknowledge answers a callback query so the pressed control stops spinning.
func (s *TelegramService) Acknowledge(ctx context.Context, callbackID, text string) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	if _, err := s.bot.Request(cb); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

// RequestContact prompts the reviewer with a one-time contact-share keyboard.
func (s *TelegramService) RequestContact(ctx context.Context, chatID, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID %q: %w", chatID, err)
	}
	msg := tgbotapi.NewMessage(id, text)
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact("Share phone number")),
	)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	msg.ReplyMarkup = kb
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to request contact: %w", err)
	}
	return nil
}

// Events returns the inbound event channel.
func (s *TelegramService) Events() <-chan Event {
	return s.events
}

// Stop halts the poll loop and closes the update stream.
func (s *TelegramService) Stop() error {
	close(s.stopCh)
	s.bot.StopReceivingUpdates()
	slog.Info("Telegram service stopped")
	return nil
}

var _ Service = (*TelegramService)(nil)
