package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sifan077/ShortLife/config"
	"github.com/sifan077/ShortLife/internal/app/service"
	"github.com/sifan077/ShortLife/internal/shell/middleware"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	errExit        = errors.New("exit requested")
	errNotLoggedIn = errors.New("not logged in")
)

// Deps groups dependencies required by the shell.
type Deps struct {
	Logger *zap.Logger
	Links  service.LinkService
	Users  service.UserService
	// Opener is used only when Config.OpenBrowser is set; nil disables opening.
	Opener      Opener
	Config      config.ShellConfig
	In          io.Reader
	Out         io.Writer
	Interactive bool
}

type command struct {
	key        string
	name       string
	title      string
	needsLogin bool
	run        middleware.Handler
}

// Shell is the interactive text menu in front of the link and user services.
type Shell struct {
	logger      *zap.Logger
	links       service.LinkService
	users       service.UserService
	opener      Opener
	cfg         config.ShellConfig
	in          *bufio.Scanner
	out         io.Writer
	interactive bool

	commands []command
	byKey    map[string]*command
	chain    []middleware.Middleware

	sessionID string
	ownerID   uuid.UUID
	username  string
}

// StdinIsTerminal reports whether the process reads commands from a terminal.
func StdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// New creates a shell reading from deps.In and writing to deps.Out.
func New(deps Deps) *Shell {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	in := deps.In
	if in == nil {
		in = os.Stdin
	}
	out := deps.Out
	if out == nil {
		out = os.Stdout
	}

	s := &Shell{
		logger:      logger.Named("shell"),
		links:       deps.Links,
		users:       deps.Users,
		opener:      deps.Opener,
		cfg:         deps.Config,
		in:          bufio.NewScanner(in),
		out:         out,
		interactive: deps.Interactive,
		sessionID:   uuid.NewString(),
	}
	s.chain = []middleware.Middleware{
		middleware.RequestID(),
		middleware.Logger(s.logger),
		middleware.Recovery(s.logger),
	}
	s.commands = []command{
		{key: "1", name: "register", title: "Register", run: s.register},
		{key: "2", name: "login", title: "Log in", run: s.login},
		{key: "3", name: "create", title: "Create a short link", needsLogin: true, run: s.create},
		{key: "4", name: "open", title: "Open a short link", run: s.open},
		{key: "5", name: "list", title: "My links", needsLogin: true, run: s.list},
		{key: "6", name: "info", title: "User info", needsLogin: true, run: s.info},
		{key: "7", name: "limit", title: "Change a link's access limit", needsLogin: true, run: s.updateLimit},
		{key: "8", name: "delete", title: "Delete a link", needsLogin: true, run: s.delete},
		{key: "9", name: "logout", title: "Log out", needsLogin: true, run: s.logout},
		{key: "0", name: "exit", title: "Exit", run: s.exit},
	}
	s.byKey = make(map[string]*command, len(s.commands)*2)
	for i := range s.commands {
		cmd := &s.commands[i]
		s.byKey[cmd.key] = cmd
		s.byKey[cmd.name] = cmd
	}
	return s
}

// Run reads commands until exit, end of input or ctx cancellation.
func (s *Shell) Run(ctx context.Context) error {
	if s.interactive {
		s.printMenu()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.interactive {
			fmt.Fprint(s.out, "> ")
		}

		line, ok := s.readLine()
		if !ok {
			return s.in.Err()
		}
		choice := strings.ToLower(line)
		if choice == "" {
			continue
		}
		if choice == "h" || choice == "help" {
			s.printMenu()
			continue
		}

		cmd, found := s.byKey[choice]
		if !found {
			fmt.Fprintln(s.out, "Unknown choice. Type h for the menu.")
			continue
		}

		err := s.dispatch(ctx, cmd)
		if errors.Is(err, errExit) {
			return nil
		}
		if err != nil {
			fmt.Fprintln(s.out, s.describe(err))
		}
	}
}

func (s *Shell) dispatch(ctx context.Context, cmd *command) error {
	run := cmd.run
	if cmd.needsLogin {
		run = s.requireLogin(run)
	}
	req := &middleware.Request{
		Command:   cmd.name,
		SessionID: s.sessionID,
		OwnerID:   s.ownerID,
	}
	return middleware.Chain(run, s.chain...)(ctx, req)
}

func (s *Shell) requireLogin(next middleware.Handler) middleware.Handler {
	return func(ctx context.Context, req *middleware.Request) error {
		if s.ownerID == uuid.Nil {
			return errNotLoggedIn
		}
		return next(ctx, req)
	}
}

func (s *Shell) printMenu() {
	fmt.Fprintln(s.out, "\nChoose an action:")
	for _, cmd := range s.commands {
		fmt.Fprintf(s.out, "%s. %s\n", cmd.key, cmd.title)
	}
}

func (s *Shell) readLine() (string, bool) {
	if !s.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

// ask prints a prompt and reads the answer. End of input reads as exit.
func (s *Shell) ask(prompt string) (string, error) {
	fmt.Fprint(s.out, prompt)
	line, ok := s.readLine()
	if !ok {
		fmt.Fprintln(s.out)
		return "", errExit
	}
	return line, nil
}

// describe turns an error into the message shown to the user.
func (s *Shell) describe(err error) string {
	if !s.cfg.DetailedErrors && service.IsLinkUnavailable(err) {
		return "No valid link for this token."
	}

	switch {
	case errors.Is(err, errNotLoggedIn):
		return "Please log in first."
	case errors.Is(err, service.ErrLinkNotFound):
		return "Link not found."
	case errors.Is(err, service.ErrLinkExpired):
		return "This link has expired and was removed."
	case errors.Is(err, service.ErrLimitExhausted):
		return "This link has used up its access limit and was removed."
	case errors.Is(err, service.ErrForbidden):
		return "That link belongs to another user."
	case errors.Is(err, service.ErrUserExists):
		return "That username is already taken."
	case errors.Is(err, service.ErrInvalidCredentials):
		return "Invalid username or password."
	case errors.Is(err, service.ErrInvalidUsername):
		return "Username and password cannot be empty."
	case errors.Is(err, service.ErrInvalidURL):
		return "Enter a valid http or https URL."
	case errors.Is(err, service.ErrInvalidLimit):
		return "The access limit must be a whole number, zero or more."
	case errors.Is(err, service.ErrInvalidLifetime):
		return "The lifetime must be a duration such as 90m or 2h, zero or more."
	case errors.Is(err, service.ErrTokenSpaceExhausted):
		return "Could not allocate a short token. Try again."
	case errors.Is(err, middleware.ErrPanic):
		return "Internal error."
	default:
		return "Error: " + err.Error()
	}
}
