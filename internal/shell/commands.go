package shell

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/ShortLife/internal/app/service"
	"github.com/sifan077/ShortLife/internal/shell/middleware"
	"github.com/sifan077/ShortLife/internal/shell/view"
	"go.uber.org/zap"
)

func (s *Shell) register(ctx context.Context, req *middleware.Request) error {
	username, password, err := s.askCredentials()
	if err != nil {
		return err
	}

	id, err := s.users.Register(ctx, username, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Registered. Your id: %s\n", id)
	return nil
}

func (s *Shell) login(ctx context.Context, req *middleware.Request) error {
	username, password, err := s.askCredentials()
	if err != nil {
		return err
	}

	id, err := s.users.Login(ctx, username, password)
	if err != nil {
		return err
	}
	s.ownerID, s.username = id, username
	s.sessionID = uuid.NewString()
	req.OwnerID, req.SessionID = id, s.sessionID

	fmt.Fprintf(s.out, "Logged in as %s.\n", username)
	return nil
}

func (s *Shell) logout(ctx context.Context, req *middleware.Request) error {
	fmt.Fprintf(s.out, "Logged out %s.\n", s.username)
	s.ownerID, s.username = uuid.Nil, ""
	s.sessionID = uuid.NewString()
	return nil
}

func (s *Shell) exit(ctx context.Context, req *middleware.Request) error {
	fmt.Fprintln(s.out, "Goodbye!")
	return errExit
}

func (s *Shell) create(ctx context.Context, req *middleware.Request) error {
	target, err := s.ask("Long URL: ")
	if err != nil {
		return err
	}
	rawLimit, err := s.ask("Access limit (blank for default): ")
	if err != nil {
		return err
	}
	rawLifetime, err := s.ask("Lifetime such as 90m or 2h (blank for default): ")
	if err != nil {
		return err
	}

	input := service.CreateLinkInput{TargetURL: target, OwnerID: s.ownerID}
	if rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil {
			return fmt.Errorf("%w: %q", service.ErrInvalidLimit, rawLimit)
		}
		input.RequestedLimit = &limit
	}
	if rawLifetime != "" {
		lifetime, err := time.ParseDuration(rawLifetime)
		if err != nil {
			return fmt.Errorf("%w: %q", service.ErrInvalidLifetime, rawLifetime)
		}
		input.RequestedLifetime = &lifetime
	}

	created, err := s.links.CreateLink(ctx, input)
	if err != nil {
		return err
	}
	return view.RenderCreatedLink(s.out, view.CreatedLinkData{
		ShortURL:    created.ShortURL,
		TargetURL:   created.Link.TargetURL,
		AccessLimit: created.Link.AccessLimit,
		ExpiresAt:   created.Link.ExpiresAt,
	})
}

func (s *Shell) open(ctx context.Context, req *middleware.Request) error {
	raw, err := s.ask("Short link or token: ")
	if err != nil {
		return err
	}

	res, err := s.links.AccessLink(ctx, s.links.TokenFromShortURL(raw))
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Opening %s (use %d of %d)\n", res.TargetURL, res.AccessCount, res.AccessLimit)

	if s.opener == nil || !s.cfg.OpenBrowser {
		return nil
	}
	if err := s.opener.Open(ctx, res.TargetURL); err != nil {
		// The access is already counted; a failed launch is only reported.
		s.logger.Warn("failed to open target", zap.String("target_url", res.TargetURL), zap.Error(err))
		fmt.Fprintf(s.out, "Could not open the browser: %v\n", err)
	}
	return nil
}

func (s *Shell) list(ctx context.Context, req *middleware.Request) error {
	links, err := s.links.ListLinks(ctx, s.ownerID)
	if err != nil {
		return err
	}

	rows := make([]view.LinkRow, len(links))
	for i, link := range links {
		rows[i] = view.LinkRow{
			ShortURL:    s.links.ShortURL(link.Token),
			TargetURL:   link.TargetURL,
			AccessCount: link.AccessCount,
			AccessLimit: link.AccessLimit,
			ExpiresAt:   link.ExpiresAt,
		}
	}
	return view.RenderLinkList(s.out, view.LinkListData{Links: rows})
}

func (s *Shell) info(ctx context.Context, req *middleware.Request) error {
	user, err := s.users.GetUser(ctx, s.ownerID)
	if err != nil {
		return err
	}
	links, err := s.links.ListLinks(ctx, s.ownerID)
	if err != nil {
		return err
	}
	return view.RenderUser(s.out, view.UserData{
		ID:          user.ID,
		Username:    user.Username,
		CreatedAt:   user.CreatedAt,
		ActiveLinks: len(links),
	})
}

func (s *Shell) updateLimit(ctx context.Context, req *middleware.Request) error {
	raw, err := s.ask("Short link or token: ")
	if err != nil {
		return err
	}
	rawLimit, err := s.ask("New access limit: ")
	if err != nil {
		return err
	}
	limit, err := strconv.Atoi(rawLimit)
	if err != nil {
		return fmt.Errorf("%w: %q", service.ErrInvalidLimit, rawLimit)
	}

	link, err := s.links.UpdateLimit(ctx, s.links.TokenFromShortURL(raw), s.ownerID, limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Access limit is now %d (used %d).\n", link.AccessLimit, link.AccessCount)
	if link.AccessCount >= link.AccessLimit {
		fmt.Fprintln(s.out, "The link is already used up and will be removed on its next use.")
	}
	return nil
}

func (s *Shell) delete(ctx context.Context, req *middleware.Request) error {
	raw, err := s.ask("Short link or token: ")
	if err != nil {
		return err
	}

	if err := s.links.DeleteLink(ctx, s.links.TokenFromShortURL(raw), s.ownerID); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Link deleted.")
	return nil
}

func (s *Shell) askCredentials() (string, string, error) {
	username, err := s.ask("Username: ")
	if err != nil {
		return "", "", err
	}
	password, err := s.ask("Password: ")
	if err != nil {
		return "", "", err
	}
	return username, password, nil
}
