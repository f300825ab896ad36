package shell

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sifan077/ShortLife/config"
	"github.com/sifan077/ShortLife/internal/app/repository"
	"github.com/sifan077/ShortLife/internal/app/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedTokens struct {
	mu     sync.Mutex
	tokens []string
}

func (g *fixedTokens) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.tokens) == 0 {
		return "", errors.New("out of tokens")
	}
	token := g.tokens[0]
	g.tokens = g.tokens[1:]
	return token, nil
}

type recordingOpener struct {
	urls []string
	err  error
}

func (o *recordingOpener) Open(ctx context.Context, url string) error {
	o.urls = append(o.urls, url)
	return o.err
}

type harness struct {
	opener *recordingOpener
	out    *strings.Builder
	shell  *Shell
}

func newHarness(input string, cfg config.ShellConfig, tokens ...string) *harness {
	now := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	links := service.NewLinkService(service.LinkServiceDeps{
		Links:  repository.NewLinkRepository(),
		Tokens: &fixedTokens{tokens: tokens},
		Now:    func() time.Time { return now },
		Settings: service.LinkSettings{
			BaseURL:               "https://short.ly/",
			DefaultMaxLifetime:    24 * time.Hour,
			DefaultMaxAccessLimit: 100,
			LimitPolicy:           service.PolicyCap,
			LifetimePolicy:        service.PolicyCap,
			TokenAttempts:         3,
		},
	})
	users := service.NewUserService(nil, repository.NewUserRepository())

	h := &harness{opener: &recordingOpener{}, out: &strings.Builder{}}
	h.shell = New(Deps{
		Links:  links,
		Users:  users,
		Opener: h.opener,
		Config: cfg,
		In:     strings.NewReader(input),
		Out:    h.out,
	})
	return h
}

func script(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

var detailed = config.ShellConfig{DetailedErrors: true, OpenBrowser: true}

func TestShell_LinkLifecycle(t *testing.T) {
	h := newHarness(script(
		"1", "alice", "pw",
		"2", "alice", "pw",
		"3", "https://example.com", "2", "",
		"4", "https://short.ly/tokenAAA",
		"4", "tokenAAA",
		"4", "tokenAAA",
		"5",
		"0",
	), detailed, "tokenAAA")

	require.NoError(t, h.shell.Run(context.Background()))

	out := h.out.String()
	assert.Contains(t, out, "Registered. Your id: ")
	assert.Contains(t, out, "Logged in as alice.")
	assert.Contains(t, out, "Short link: https://short.ly/tokenAAA")
	assert.Contains(t, out, "Uses:       2")
	assert.Contains(t, out, "Opening https://example.com (use 1 of 2)")
	assert.Contains(t, out, "Opening https://example.com (use 2 of 2)")
	assert.Contains(t, out, "This link has used up its access limit and was removed.")
	assert.Contains(t, out, "You have no active links.")
	assert.Contains(t, out, "Goodbye!")
	assert.Equal(t, []string{"https://example.com", "https://example.com"}, h.opener.urls)
}

func TestShell_UniformErrors(t *testing.T) {
	h := newHarness(script("4", "missing1"), config.ShellConfig{DetailedErrors: false, OpenBrowser: true})

	require.NoError(t, h.shell.Run(context.Background()))
	assert.Contains(t, h.out.String(), "No valid link for this token.")
	assert.NotContains(t, h.out.String(), "Link not found.")
}

func TestShell_RequiresLogin(t *testing.T) {
	h := newHarness(script("3", "5", "6", "7", "8"), detailed)

	require.NoError(t, h.shell.Run(context.Background()))
	out := h.out.String()
	assert.Equal(t, 5, strings.Count(out, "Please log in first."))
	assert.NotContains(t, out, "Long URL:")
}

func TestShell_Ownership(t *testing.T) {
	h := newHarness(script(
		"1", "alice", "pw",
		"1", "bob", "pw",
		"2", "alice", "pw",
		"3", "https://example.com", "3", "1h",
		"9",
		"2", "bob", "pw",
		"8", "tokenBBB",
		"7", "tokenBBB", "50",
		"9",
		"2", "alice", "pw",
		"7", "tokenBBB", "0",
		"8", "tokenBBB",
		"8", "tokenBBB",
		"0",
	), detailed, "tokenBBB")

	require.NoError(t, h.shell.Run(context.Background()))
	out := h.out.String()
	assert.Equal(t, 2, strings.Count(out, "That link belongs to another user."))
	assert.Contains(t, out, "Access limit is now 0 (used 0).")
	assert.Contains(t, out, "The link is already used up")
	assert.Contains(t, out, "Link deleted.")
	assert.Contains(t, out, "Link not found.")
	assert.Contains(t, out, "Logged out bob.")
}

func TestShell_OpenerSettings(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := newHarness(script(
			"1", "carol", "pw", "2", "carol", "pw",
			"3", "https://example.com", "", "",
			"4", "tokenCCC",
		), config.ShellConfig{DetailedErrors: true, OpenBrowser: false}, "tokenCCC")

		require.NoError(t, h.shell.Run(context.Background()))
		assert.Contains(t, h.out.String(), "Opening https://example.com (use 1 of 100)")
		assert.Empty(t, h.opener.urls)
	})

	t.Run("launch failure is reported", func(t *testing.T) {
		h := newHarness(script(
			"1", "dave", "pw", "2", "dave", "pw",
			"3", "https://example.com", "", "",
			"4", "tokenDDD",
		), detailed, "tokenDDD")
		h.opener.err = errors.New("no display")

		require.NoError(t, h.shell.Run(context.Background()))
		assert.Contains(t, h.out.String(), "Could not open the browser: no display")
	})
}

func TestShell_InvalidInput(t *testing.T) {
	h := newHarness(script(
		"1", "erin", "pw", "2", "erin", "wrong",
		"2", "erin", "pw",
		"1", "erin", "pw",
		"3", "https://example.com", "lots", "",
		"3", "https://example.com", "", "soon",
		"3", "not a url", "", "",
		"7", "whatever", "many",
		"42",
	), detailed)

	require.NoError(t, h.shell.Run(context.Background()))
	out := h.out.String()
	assert.Contains(t, out, "Invalid username or password.")
	assert.Contains(t, out, "That username is already taken.")
	assert.Equal(t, 2, strings.Count(out, "The access limit must be a whole number"))
	assert.Contains(t, out, "The lifetime must be a duration")
	assert.Contains(t, out, "Enter a valid http or https URL.")
	assert.Contains(t, out, "Unknown choice. Type h for the menu.")
}

func TestShell_UserInfo(t *testing.T) {
	h := newHarness(script(
		"1", "frank", "pw", "2", "frank", "pw",
		"3", "https://example.com", "", "",
		"6",
	), detailed, "tokenFFF")

	require.NoError(t, h.shell.Run(context.Background()))
	out := h.out.String()
	assert.Contains(t, out, "User:         frank")
	assert.Contains(t, out, "Active links: 1")
}

func TestShell_EndOfInputMidCommand(t *testing.T) {
	h := newHarness("1\nalice\n", detailed)
	assert.NoError(t, h.shell.Run(context.Background()))
}

func TestShell_ContextCancelled(t *testing.T) {
	h := newHarness(script("h"), detailed)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, h.shell.Run(ctx), context.Canceled)
}

func TestShell_InteractiveMenu(t *testing.T) {
	h := newHarness(script("h", "0"), detailed)
	h.shell.interactive = true

	require.NoError(t, h.shell.Run(context.Background()))
	out := h.out.String()
	assert.Equal(t, 2, strings.Count(out, "Choose an action:"))
	assert.Contains(t, out, "3. Create a short link")
	assert.Contains(t, out, "> ")
}
