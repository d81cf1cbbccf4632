package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rea/internal/domain"
)

const (
	telegramMaxMsgLen      = 4000
	telegramPollTimeoutSec = 30
)

// Telegram asks for approval in a Telegram chat and takes the next text
// message from that chat as the reply.
type Telegram struct {
	bot         *tgbotapi.BotAPI
	chatID      int64
	pollTimeout int
	logger      *slog.Logger

	mu     sync.Mutex // one request at a time; guards offset
	offset int
}

type TelegramConfig struct {
	Token       string
	ChatID      int64
	APIEndpoint string       // default tgbotapi.APIEndpoint
	HTTPClient  *http.Client // default http.DefaultClient
	PollTimeout int          // long-poll seconds; 0 means the default
	Logger      *slog.Logger
}

// NewTelegram connects to the Bot API and verifies the token.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if cfg.Token == "" || cfg.ChatID == 0 {
		return nil, errors.New("telegram gate: token and chat id are required")
	}
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = telegramPollTimeoutSec
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.APIEndpoint, cfg.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	cfg.Logger.Info("telegram gate connected", "username", bot.Self.UserName, "chat_id", cfg.ChatID)

	return &Telegram{
		bot:         bot,
		chatID:      cfg.ChatID,
		pollTimeout: cfg.PollTimeout,
		logger:      cfg.Logger,
	}, nil
}

// Request posts details to the chat and waits for the next text message in
// it. The message text is returned verbatim.
func (t *Telegram) Request(ctx context.Context, details string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	var lastID int
	for _, chunk := range splitMessage("Approval required:\n\n"+details+"\n\nReply to this chat to respond.", telegramMaxMsgLen) {
		sent, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, chunk))
		if err != nil {
			return "", &domain.HumanGateError{Err: fmt.Errorf("send approval request: %w", err)}
		}
		lastID = sent.MessageID
	}
	t.logger.Info("approval requested via telegram", "chat_id", t.chatID)

	for {
		updates, err := t.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", &domain.HumanGateError{Err: fmt.Errorf("poll telegram: %w", err)}
		}
		for _, u := range updates {
			if u.UpdateID >= t.offset {
				t.offset = u.UpdateID + 1
			}
			m := u.Message
			if m == nil || m.Chat == nil || m.Chat.ID != t.chatID || m.MessageID <= lastID || m.Text == "" {
				continue
			}
			return m.Text, nil
		}
	}
}

// poll runs one long poll. The Bot API call itself cannot be cancelled, so
// cancellation abandons it; its updates are fetched again next time because
// the offset only advances for consumed batches.
func (t *Telegram) poll(ctx context.Context) ([]tgbotapi.Update, error) {
	type result struct {
		updates []tgbotapi.Update
		err     error
	}
	ch := make(chan result, 1)
	cfg := tgbotapi.UpdateConfig{Offset: t.offset, Timeout: t.pollTimeout, AllowedUpdates: []string{"message"}}
	go func() {
		u, err := t.bot.GetUpdates(cfg)
		ch <- result{u, err}
	}()

	select {
	case r := <-ch:
		return r.updates, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// splitMessage cuts text into chunks of at most max bytes, preferring line
// breaks and never splitting a UTF-8 character.
func splitMessage(text string, max int) []string {
	var chunks []string
	for len(text) > max {
		cut := strings.LastIndex(text[:max], "\n")
		if cut < max/2 {
			cut = max
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = max
			}
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	return append(chunks, text)
}

var _ domain.HumanGate = (*Telegram)(nil)
