package shell

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// Opener hands a target URL to something that can display it.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// BrowserOpener launches the platform's default browser.
type BrowserOpener struct{}

func (BrowserOpener) Open(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	// The browser outlives the command; reap the launcher in the background.
	go func() { _ = cmd.Wait() }()
	return nil
}
