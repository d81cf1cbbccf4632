// Package role routes a task to one of the fixed behavior profiles.
package role

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"rea/internal/domain"
	"rea/internal/ratelimit"
)

// Strategies accepted by Config.Strategy.
const (
	StrategyLLM     = "llm"
	StrategyKeyword = "keyword"
	StrategyHybrid  = "hybrid"
)

// Classification methods reported on Classification.Method.
const (
	MethodOverride = "override"
	MethodKeyword  = "keyword"
	MethodLLM      = "llm"
)

var tracer = otel.Tracer("rea/role")

// Config configures a Classifier.
type Config struct {
	Strategy string
	Provider domain.Provider // required for llm and hybrid
	Model    string
	Profiles map[domain.Role]domain.Profile // nil means DefaultProfiles
	Limiter  *ratelimit.Limiter
	Logger   *slog.Logger
}

// Classification is the outcome of classifying one task.
type Classification struct {
	Profile domain.Profile
	Method  string
	Scores  map[domain.Role]int // keyword scores, when computed
	Reason  string              // model-supplied reasoning, when present
	Model   string              // model that served the classification call
	Usage   domain.Usage
}

// Classifier is safe for concurrent use.
type Classifier struct {
	strategy string
	provider domain.Provider
	model    string
	profiles map[domain.Role]domain.Profile
	keywords map[domain.Role][]*regexp.Regexp
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

func New(cfg Config) (*Classifier, error) {
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyLLM
	}
	switch cfg.Strategy {
	case StrategyLLM, StrategyHybrid:
		if cfg.Provider == nil {
			return nil, fmt.Errorf("role: strategy %q needs a provider", cfg.Strategy)
		}
	case StrategyKeyword:
	default:
		return nil, fmt.Errorf("role: unknown strategy %q", cfg.Strategy)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = DefaultProfiles()
	}
	for _, r := range domain.Roles {
		if _, ok := cfg.Profiles[r]; !ok {
			return nil, fmt.Errorf("role: missing profile for %s", r)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	kw := make(map[domain.Role][]*regexp.Regexp, len(cfg.Profiles))
	for r, p := range cfg.Profiles {
		for _, k := range p.Keywords {
			if re := keywordPattern(k); re != nil {
				kw[r] = append(kw[r], re)
			}
		}
	}

	return &Classifier{
		strategy: cfg.Strategy,
		provider: cfg.Provider,
		model:    cfg.Model,
		profiles: cfg.Profiles,
		keywords: kw,
		limiter:  cfg.Limiter,
		logger:   cfg.Logger,
	}, nil
}

// Profile returns the profile for r.
func (c *Classifier) Profile(r domain.Role) (domain.Profile, bool) {
	p, ok := c.profiles[r]
	return p, ok
}

// Classify selects the behavior profile for task.
func (c *Classifier) Classify(ctx context.Context, task domain.Task) (domain.Profile, error) {
	res, err := c.ClassifyDetailed(ctx, task)
	if err != nil {
		return domain.Profile{}, err
	}
	return res.Profile, nil
}

// ClassifyDetailed is Classify plus how the decision was reached and what the
// model call cost.
func (c *Classifier) ClassifyDetailed(ctx context.Context, task domain.Task) (*Classification, error) {
	ctx, span := tracer.Start(ctx, "role.classify")
	defer span.End()

	res, err := c.classify(ctx, task)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("rea.role", string(res.Profile.Role)),
		attribute.String("rea.classify.method", res.Method),
	)
	c.logger.Info("task classified", "role", res.Profile.Role, "method", res.Method, "tokens", res.Usage.TotalTokens)
	return res, nil
}

func (c *Classifier) classify(ctx context.Context, task domain.Task) (*Classification, error) {
	if strings.TrimSpace(task.Role) != "" {
		r, ok := domain.ParseRole(task.Role)
		if !ok {
			return nil, &domain.UnknownRoleError{Value: task.Role}
		}
		return &Classification{Profile: c.profiles[r], Method: MethodOverride}, nil
	}

	switch c.strategy {
	case StrategyKeyword:
		scores := c.Scores(task.Text)
		r, ok := bestByScore(scores)
		if !ok {
			return nil, &domain.UnknownRoleError{Value: task.Text}
		}
		return &Classification{Profile: c.profiles[r], Method: MethodKeyword, Scores: scores}, nil

	case StrategyHybrid:
		scores := c.Scores(task.Text)
		if r, ok := uniqueTop(scores); ok {
			return &Classification{Profile: c.profiles[r], Method: MethodKeyword, Scores: scores}, nil
		}
		res, err := c.classifyLLM(ctx, task.Text)
		if err != nil {
			return nil, err
		}
		res.Scores = scores
		return res, nil
	}
	return c.classifyLLM(ctx, task.Text)
}

// keywordPattern matches k as whole words, case-insensitively, allowing a
// plural suffix and any whitespace between the words of a phrase.
func keywordPattern(k string) *regexp.Regexp {
	words := strings.Fields(strings.ToLower(k))
	if len(words) == 0 {
		return nil
	}
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b` + strings.Join(words, `\s+`) + `(?:s|es)?\b`)
}

// Scores counts the keywords of every profile found in text as whole words.
func (c *Classifier) Scores(text string) map[domain.Role]int {
	scores := make(map[domain.Role]int, len(c.keywords))
	for r, kws := range c.keywords {
		for _, re := range kws {
			if re.MatchString(text) {
				scores[r]++
			}
		}
	}
	return scores
}

// bestByScore returns the highest scoring role, ties broken by priority.
func bestByScore(scores map[domain.Role]int) (domain.Role, bool) {
	var (
		best  domain.Role
		score int
	)
	for _, r := range domain.Roles {
		s := scores[r]
		if s > score || (s == score && s > 0 && r.Priority() > best.Priority()) {
			best, score = r, s
		}
	}
	return best, score > 0
}

// uniqueTop returns the role holding the highest non-zero score alone.
func uniqueTop(scores map[domain.Role]int) (domain.Role, bool) {
	best, ok := bestByScore(scores)
	if !ok {
		return "", false
	}
	for r, s := range scores {
		if r != best && s == scores[best] {
			return "", false
		}
	}
	return best, true
}

func (c *Classifier) classifyLLM(ctx context.Context, text string) (*Classification, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.provider.Chat(ctx, domain.ChatRequest{
		Messages: []domain.Message{
			{Role: "system", Content: c.prompt()},
			{Role: "user", Content: text},
		},
		Model:       c.model,
		Temperature: new(float64),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.ModelError{Err: fmt.Errorf("classify: %w", err)}
	}

	obj, err := ExtractJSON(resp.Content)
	if err != nil {
		return nil, &domain.ClassificationParseError{Response: resp.Content, Err: err}
	}
	names, ok := RoleValue(obj)
	if !ok {
		return nil, &domain.ClassificationParseError{Response: resp.Content, Err: errors.New(`missing "Role" value`)}
	}
	r, err := ResolvePriority(names)
	if err != nil {
		return nil, err
	}
	reason, _ := obj["Reason"].(string)
	return &Classification{
		Profile: c.profiles[r],
		Method:  MethodLLM,
		Reason:  reason,
		Model:   resp.Model,
		Usage:   resp.Usage,
	}, nil
}

// prompt is the classification template, listing each profile's keywords.
func (c *Classifier) prompt() string {
	var b strings.Builder
	b.WriteString("You route engineering tasks to exactly one of three roles.\n\n")
	for _, r := range domain.Roles {
		p := c.profiles[r]
		kws := append([]string(nil), p.Keywords...)
		sort.Strings(kws)
		fmt.Fprintf(&b, "[%s]\nTypical keywords: %s\n\n", roleLabel(r), strings.Join(kws, ", "))
	}
	b.WriteString("Scan the task for intent and domain terms and map them to a role. " +
		"If several roles apply, prefer Peer Review over Scrum Lead over Product Owner.\n\n" +
		"Reply with only a fenced JSON block:\n" +
		"```json\n{\"Role\": \"<Product Owner | Scrum Lead | Peer Review>\", \"Reason\": \"<short reason>\"}\n```")
	return b.String()
}

func roleLabel(r domain.Role) string {
	if r == domain.RolePeerReviewer {
		return "Peer Review"
	}
	return r.DisplayName()
}
