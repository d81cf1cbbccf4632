package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/slack-go/slack"

	"rea/internal/domain"
)

const (
	slackMaxMsgLen      = 4000
	slackDefaultPolling = 3 * time.Second
)

// Slack posts approval requests to a Slack channel and takes the first
// message a person posts there afterwards as the reply.
type Slack struct {
	client    *slack.Client
	channelID string
	botUserID string
	botID     string
	interval  time.Duration
	logger    *slog.Logger

	mu sync.Mutex // one request at a time
}

type SlackConfig struct {
	BotToken     string
	ChannelID    string
	APIURL       string // default slack.APIURL; must end with "/"
	HTTPClient   *http.Client
	PollInterval time.Duration
	Logger       *slog.Logger
}

// NewSlack verifies the bot token with auth.test.
func NewSlack(ctx context.Context, cfg SlackConfig) (*Slack, error) {
	if cfg.BotToken == "" || cfg.ChannelID == "" {
		return nil, errors.New("slack gate: bot token and channel id are required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = slackDefaultPolling
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	opts := []slack.Option{}
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, slack.OptionHTTPClient(cfg.HTTPClient))
	}
	client := slack.New(cfg.BotToken, opts...)

	auth, err := client.AuthTestContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("slack auth: %w", err)
	}
	cfg.Logger.Info("slack gate connected", "user", auth.User, "channel", cfg.ChannelID)

	return &Slack{
		client:    client,
		channelID: cfg.ChannelID,
		botUserID: auth.UserID,
		botID:     auth.BotID,
		interval:  cfg.PollInterval,
		logger:    cfg.Logger,
	}, nil
}

// Request posts details and polls the channel history until someone other
// than the bot replies. The reply text is returned verbatim.
func (s *Slack) Request(ctx context.Context, details string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	var lastTS string
	for _, chunk := range splitMessage("*Approval required*\n\n"+details+"\n\nReply in this channel to respond.", slackMaxMsgLen) {
		_, ts, err := s.client.PostMessageContext(ctx, s.channelID, slack.MsgOptionText(chunk, false))
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", &domain.HumanGateError{Err: fmt.Errorf("post approval request: %w", err)}
		}
		lastTS = ts
	}
	s.logger.Info("approval requested via slack", "channel", s.channelID)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		hist, err := s.client.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
			ChannelID: s.channelID,
			Oldest:    lastTS,
			Limit:     100,
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", &domain.HumanGateError{Err: fmt.Errorf("read slack history: %w", err)}
		}
		// History is newest first; the earliest human reply wins.
		for i := len(hist.Messages) - 1; i >= 0; i-- {
			m := hist.Messages[i]
			if s.fromHuman(m) {
				return m.Text, nil
			}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Slack) fromHuman(m slack.Message) bool {
	if m.SubType != "" || m.BotID != "" || m.User == "" {
		return false
	}
	if m.User == s.botUserID || (s.botID != "" && m.BotID == s.botID) {
		return false
	}
	return m.Text != ""
}

var _ domain.HumanGate = (*Slack)(nil)
