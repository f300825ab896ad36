package service

import (
	"errors"
	"sync"
	"time"

	"github.com/sifan077/ShortLife/internal/app/repository"
	"github.com/sifan077/ShortLife/internal/app/util"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sequenceTokens replays the given tokens, then repeats the last one.
type sequenceTokens struct {
	mu     sync.Mutex
	tokens []string
	calls  int
}

func (g *sequenceTokens) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if len(g.tokens) == 0 {
		return "", errors.New("no tokens")
	}
	token := g.tokens[0]
	if len(g.tokens) > 1 {
		g.tokens = g.tokens[1:]
	}
	return token, nil
}

func testSettings() LinkSettings {
	return LinkSettings{
		BaseURL:               "https://short.ly/",
		DefaultMaxLifetime:    24 * time.Hour,
		DefaultMaxAccessLimit: 0,
		LimitPolicy:           PolicyFloor,
		LifetimePolicy:        PolicyCap,
		TokenAttempts:         5,
	}
}

type fixture struct {
	clock *fakeClock
	repo  repository.LinkRepository
	svc   LinkService
}

func newFixture(settings LinkSettings, tokens util.TokenGenerator) *fixture {
	clock := newFakeClock()
	repo := repository.NewLinkRepository()
	svc := NewLinkService(LinkServiceDeps{
		Links:    repo,
		Tokens:   tokens,
		Now:      clock.Now,
		Settings: settings,
	})
	return &fixture{clock: clock, repo: repo, svc: svc}
}

func intPtr(v int) *int { return &v }

func durPtr(v time.Duration) *time.Duration { return &v }
