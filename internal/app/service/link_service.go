package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/ShortLife/config"
	"github.com/sifan077/ShortLife/internal/app/model"
	"github.com/sifan077/ShortLife/internal/app/repository"
	"github.com/sifan077/ShortLife/internal/app/util"
	infraprom "github.com/sifan077/ShortLife/internal/infra/prometheus"
	"go.uber.org/zap"
)

const maxURLLength = 2048

var (
	// Re-exported so callers can match every access outcome from this package.
	ErrLinkNotFound   = repository.ErrLinkNotFound
	ErrLinkExpired    = model.ErrLinkExpired
	ErrLimitExhausted = model.ErrLimitExhausted

	ErrForbidden           = errors.New("link belongs to another owner")
	ErrTokenSpaceExhausted = errors.New("could not generate a unique token")
	ErrInvalidURL          = errors.New("invalid target url")
	ErrInvalidOwner        = errors.New("owner id is required")
	ErrInvalidLimit        = errors.New("access limit cannot be negative")
	ErrInvalidLifetime     = errors.New("lifetime cannot be negative")
)

// IsLinkUnavailable reports whether err means "no valid link", whatever the cause.
func IsLinkUnavailable(err error) bool {
	return errors.Is(err, ErrLinkNotFound) ||
		errors.Is(err, ErrLinkExpired) ||
		errors.Is(err, ErrLimitExhausted)
}

// LinkService defines behaviour-level operations on links.
type LinkService interface {
	CreateLink(ctx context.Context, input CreateLinkInput) (*CreatedLink, error)
	AccessLink(ctx context.Context, token string) (*AccessResult, error)
	ListLinks(ctx context.Context, ownerID uuid.UUID) ([]model.Link, error)
	GetLink(ctx context.Context, token string, ownerID uuid.UUID) (*model.Link, error)
	DeleteLink(ctx context.Context, token string, ownerID uuid.UUID) error
	UpdateLimit(ctx context.Context, token string, ownerID uuid.UUID, newLimit int) (*model.Link, error)
	ShortURL(token string) string
	TokenFromShortURL(shortURL string) string
}

// LinkSettings are the configuration values the engine reads once at construction.
type LinkSettings struct {
	BaseURL               string
	DefaultMaxLifetime    time.Duration
	DefaultMaxAccessLimit int
	LimitPolicy           Policy
	LifetimePolicy        Policy
	TokenAttempts         int
}

// LinkSettingsFromConfig converts the links config section.
func LinkSettingsFromConfig(cfg config.LinksConfig) (LinkSettings, error) {
	limitPolicy, err := ParsePolicy(cfg.LimitPolicy)
	if err != nil {
		return LinkSettings{}, fmt.Errorf("limit policy: %w", err)
	}
	lifetimePolicy, err := ParsePolicy(cfg.LifetimePolicy)
	if err != nil {
		return LinkSettings{}, fmt.Errorf("lifetime policy: %w", err)
	}
	return LinkSettings{
		BaseURL:               cfg.BaseURL,
		DefaultMaxLifetime:    cfg.DefaultMaxLifetime,
		DefaultMaxAccessLimit: cfg.DefaultMaxAccessLimit,
		LimitPolicy:           limitPolicy,
		LifetimePolicy:        lifetimePolicy,
		TokenAttempts:         cfg.TokenAttempts,
	}, nil
}

// LinkServiceDeps groups dependencies required by the link service.
type LinkServiceDeps struct {
	Logger   *zap.Logger
	Links    repository.LinkRepository
	Tokens   util.TokenGenerator
	Guard    *util.ReissueGuard
	Metrics  *infraprom.Metrics
	Now      func() time.Time
	Settings LinkSettings
}

type linkService struct {
	logger   *zap.Logger
	links    repository.LinkRepository
	tokens   util.TokenGenerator
	guard    *util.ReissueGuard
	metrics  *infraprom.Metrics
	now      func() time.Time
	settings LinkSettings
}

// NewLinkService returns a service implementation backed by the given repository.
func NewLinkService(deps LinkServiceDeps) LinkService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tokens := deps.Tokens
	if tokens == nil {
		tokens = util.NewTokenGenerator()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	settings := deps.Settings
	if settings.TokenAttempts <= 0 {
		settings.TokenAttempts = 1
	}

	return &linkService{
		logger:   logger.Named("links"),
		links:    deps.Links,
		tokens:   tokens,
		guard:    deps.Guard,
		metrics:  deps.Metrics,
		now:      now,
		settings: settings,
	}
}

// CreateLinkInput captures data required to create a link.
// A nil requested value means the configured default is used as is.
type CreateLinkInput struct {
	TargetURL         string
	OwnerID           uuid.UUID
	RequestedLimit    *int
	RequestedLifetime *time.Duration
}

// CreatedLink is a freshly stored link together with its presentable short URL.
type CreatedLink struct {
	Link     model.Link
	ShortURL string
}

// AccessResult is what a successful access hands back to the caller to act on.
type AccessResult struct {
	TargetURL   string
	AccessCount int
	AccessLimit int
	ExpiresAt   time.Time
}

func (s *linkService) CreateLink(ctx context.Context, input CreateLinkInput) (*CreatedLink, error) {
	if err := validateURL(input.TargetURL); err != nil {
		return nil, fmt.Errorf("create link: %w: %v", ErrInvalidURL, err)
	}
	if input.OwnerID == uuid.Nil {
		return nil, fmt.Errorf("create link: %w", ErrInvalidOwner)
	}

	limit, lifetime, err := s.resolveLimits(input)
	if err != nil {
		return nil, fmt.Errorf("create link: %w", err)
	}

	now := s.now()
	link := &model.Link{
		TargetURL:   strings.TrimSpace(input.TargetURL),
		OwnerID:     input.OwnerID,
		AccessLimit: limit,
		ExpiresAt:   now.Add(lifetime),
		CreatedAt:   now,
	}

	for attempt := 1; attempt <= s.settings.TokenAttempts; attempt++ {
		token, err := s.tokens.Generate()
		if err != nil {
			return nil, fmt.Errorf("create link: %w", err)
		}
		if !s.guard.Claim(token) {
			s.logger.Debug("token issued before, regenerating", zap.String("token", token), zap.Int("attempt", attempt))
			continue
		}

		link.Token = token
		err = s.links.Insert(link)
		if err == nil {
			s.metrics.LinkCreated()
			s.logger.Info("link created",
				zap.String("token", token),
				zap.String("owner_id", input.OwnerID.String()),
				zap.Int("access_limit", limit),
				zap.Time("expires_at", link.ExpiresAt),
			)
			return &CreatedLink{Link: *link, ShortURL: s.ShortURL(token)}, nil
		}
		if !errors.Is(err, repository.ErrTokenCollision) {
			return nil, fmt.Errorf("create link: %w", err)
		}
		s.logger.Debug("token collision, regenerating", zap.String("token", token), zap.Int("attempt", attempt))
	}

	s.logger.Error("token space exhausted", zap.Int("attempts", s.settings.TokenAttempts))
	return nil, fmt.Errorf("create link: %w", ErrTokenSpaceExhausted)
}

func (s *linkService) AccessLink(ctx context.Context, token string) (*AccessResult, error) {
	now := s.now()
	link, err := s.links.Mutate(token, func(l *model.Link) (bool, error) {
		if evict, reason := evictIfDead(now)(l); evict {
			return true, reason
		}
		l.AccessCount++
		return false, nil
	})

	s.metrics.LinkAccessed(accessResultLabel(err))
	if err != nil {
		s.recordEviction(token, err, infraprom.PathLazy)
		return nil, fmt.Errorf("access link: %w", err)
	}

	s.logger.Debug("link accessed",
		zap.String("token", token),
		zap.Int("access_count", link.AccessCount),
		zap.Int("access_limit", link.AccessLimit),
	)
	return &AccessResult{
		TargetURL:   link.TargetURL,
		AccessCount: link.AccessCount,
		AccessLimit: link.AccessLimit,
		ExpiresAt:   link.ExpiresAt,
	}, nil
}

// ListLinks evicts the owner's dead links first and returns only the survivors.
func (s *linkService) ListLinks(ctx context.Context, ownerID uuid.UUID) ([]model.Link, error) {
	now := s.now()
	snapshot := s.links.ListByOwner(ownerID)

	live := make([]model.Link, 0, len(snapshot))
	for _, candidate := range snapshot {
		link, err := s.links.Mutate(candidate.Token, evictIfDead(now))
		if err != nil {
			s.recordEviction(candidate.Token, err, infraprom.PathLazy)
			continue
		}
		live = append(live, link)
	}
	return live, nil
}

func (s *linkService) GetLink(ctx context.Context, token string, ownerID uuid.UUID) (*model.Link, error) {
	now := s.now()
	link, err := s.links.Mutate(token, func(l *model.Link) (bool, error) {
		if l.OwnerID != ownerID {
			return false, ErrForbidden
		}
		return evictIfDead(now)(l)
	})
	if err != nil {
		s.recordEviction(token, err, infraprom.PathLazy)
		return nil, fmt.Errorf("get link: %w", err)
	}
	return &link, nil
}

func (s *linkService) DeleteLink(ctx context.Context, token string, ownerID uuid.UUID) error {
	_, err := s.links.Mutate(token, func(l *model.Link) (bool, error) {
		if l.OwnerID != ownerID {
			return false, ErrForbidden
		}
		return true, nil
	})
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			s.logger.Warn("delete refused", zap.String("token", token), zap.String("owner_id", ownerID.String()))
		}
		return fmt.Errorf("delete link: %w", err)
	}

	s.metrics.LinkEvicted("deleted", infraprom.PathOwner)
	s.logger.Info("link deleted", zap.String("token", token), zap.String("owner_id", ownerID.String()))
	return nil
}

// UpdateLimit may set the limit below the current access count; the link then dies on its next touch.
func (s *linkService) UpdateLimit(ctx context.Context, token string, ownerID uuid.UUID, newLimit int) (*model.Link, error) {
	if newLimit < 0 {
		return nil, fmt.Errorf("update limit: %w", ErrInvalidLimit)
	}

	link, err := s.links.Mutate(token, func(l *model.Link) (bool, error) {
		if l.OwnerID != ownerID {
			return false, ErrForbidden
		}
		l.AccessLimit = newLimit
		return false, nil
	})
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			s.logger.Warn("limit update refused", zap.String("token", token), zap.String("owner_id", ownerID.String()))
		}
		return nil, fmt.Errorf("update limit: %w", err)
	}

	s.logger.Info("link limit updated",
		zap.String("token", token),
		zap.Int("access_limit", link.AccessLimit),
		zap.Int("access_count", link.AccessCount),
	)
	return &link, nil
}

func (s *linkService) ShortURL(token string) string {
	return s.settings.BaseURL + token
}

// TokenFromShortURL accepts either a bare token or a full short URL.
func (s *linkService) TokenFromShortURL(shortURL string) string {
	shortURL = strings.TrimSpace(shortURL)
	if s.settings.BaseURL != "" {
		if token, ok := strings.CutPrefix(shortURL, s.settings.BaseURL); ok {
			return token
		}
	}
	return shortURL
}

func (s *linkService) resolveLimits(input CreateLinkInput) (int, time.Duration, error) {
	limit := s.settings.DefaultMaxAccessLimit
	if input.RequestedLimit != nil {
		if *input.RequestedLimit < 0 {
			return 0, 0, ErrInvalidLimit
		}
		limit = combine(s.settings.LimitPolicy, *input.RequestedLimit, limit)
	}

	lifetime := s.settings.DefaultMaxLifetime
	if input.RequestedLifetime != nil {
		if *input.RequestedLifetime < 0 {
			return 0, 0, ErrInvalidLifetime
		}
		lifetime = combine(s.settings.LifetimePolicy, *input.RequestedLifetime, lifetime)
	}
	return limit, lifetime, nil
}

// recordEviction logs and counts err when it reports that the link was found dead and removed.
func (s *linkService) recordEviction(token string, err error, path string) {
	reason := evictionReason(err)
	if reason == "" {
		return
	}
	s.metrics.LinkEvicted(reason, path)
	s.logger.Info("link evicted", zap.String("token", token), zap.String("reason", reason), zap.String("path", path))
}

// evictIfDead is the single Dead check shared by access, listing, owner reads and the janitor.
func evictIfDead(now time.Time) repository.MutateFunc {
	return func(l *model.Link) (bool, error) {
		if reason := l.DeadReason(now); reason != nil {
			return true, reason
		}
		return false, nil
	}
}

func evictionReason(err error) string {
	switch {
	case errors.Is(err, ErrLinkExpired):
		return "expired"
	case errors.Is(err, ErrLimitExhausted):
		return "exhausted"
	default:
		return ""
	}
}

func accessResultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrLinkNotFound):
		return "not_found"
	case errors.Is(err, ErrLinkExpired):
		return "expired"
	case errors.Is(err, ErrLimitExhausted):
		return "exhausted"
	default:
		return "error"
	}
}

func validateURL(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return errors.New("url cannot be empty")
	}
	if len(rawURL) > maxURLLength {
		return errors.New("url too long (max 2048 characters)")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid url format")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}
	if parsedURL.Host == "" {
		return errors.New("url must include host")
	}
	return nil
}
