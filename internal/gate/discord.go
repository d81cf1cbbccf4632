package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"rea/internal/domain"
)

const (
	discordMaxMsgLen      = 2000
	discordDefaultPolling = 3 * time.Second
)

// Discord posts approval requests to a Discord channel over the REST API and
// takes the first non-bot message after them as the reply. Reading message
// content needs the Message Content intent enabled for the bot.
type Discord struct {
	session   *discordgo.Session
	channelID string
	selfID    string
	interval  time.Duration
	logger    *slog.Logger

	mu sync.Mutex
}

type DiscordConfig struct {
	Token        string
	ChannelID    string
	HTTPClient   *http.Client
	PollInterval time.Duration
	Logger       *slog.Logger
}

// NewDiscord resolves the bot's own user to verify the token.
func NewDiscord(ctx context.Context, cfg DiscordConfig) (*Discord, error) {
	if cfg.Token == "" || cfg.ChannelID == "" {
		return nil, errors.New("discord gate: token and channel id are required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = discordDefaultPolling
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	if cfg.HTTPClient != nil {
		session.Client = cfg.HTTPClient
	}
	self, err := session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord auth: %w", err)
	}
	cfg.Logger.Info("discord gate connected", "user", self.Username, "channel", cfg.ChannelID)

	return &Discord{
		session:   session,
		channelID: cfg.ChannelID,
		selfID:    self.ID,
		interval:  cfg.PollInterval,
		logger:    cfg.Logger,
	}, nil
}

// Request posts details and polls for messages after the request. The reply
// content is returned verbatim.
func (d *Discord) Request(ctx context.Context, details string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	var afterID string
	for _, chunk := range splitMessage("**Approval required**\n\n"+details+"\n\nReply in this channel to respond.", discordMaxMsgLen) {
		m, err := d.session.ChannelMessageSend(d.channelID, chunk, discordgo.WithContext(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", &domain.HumanGateError{Err: fmt.Errorf("send approval request: %w", err)}
		}
		afterID = m.ID
	}
	d.logger.Info("approval requested via discord", "channel", d.channelID)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		msgs, err := d.session.ChannelMessages(d.channelID, 100, "", afterID, "", discordgo.WithContext(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", &domain.HumanGateError{Err: fmt.Errorf("read discord messages: %w", err)}
		}
		sort.Slice(msgs, func(i, j int) bool { return snowflakeLess(msgs[i].ID, msgs[j].ID) })
		for _, m := range msgs {
			if m.Author == nil || m.Author.Bot || m.Author.ID == d.selfID || m.Content == "" {
				continue
			}
			return m.Content, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// snowflakeLess orders Discord ids, which are decimal strings of varying length.
func snowflakeLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

var _ domain.HumanGate = (*Discord)(nil)
