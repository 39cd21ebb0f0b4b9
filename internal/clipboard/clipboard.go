// Package clipboard copies diagnostics text to the system clipboard.
package clipboard

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	atclip "github.com/atotto/clipboard"
)

const copyTimeout = 5 * time.Second

// isWayland returns true if the session is running under Wayland.
func isWayland() bool {
	return os.Getenv("WAYLAND_DISPLAY") != ""
}

// CopyText places text on the clipboard. Under Wayland it prefers wl-copy,
// since the X11 clipboard is not shared with native Wayland apps; elsewhere
// it uses the platform clipboard via atotto/clipboard.
func CopyText(text string) error {
	if isWayland() {
		if path, err := exec.LookPath("wl-copy"); err == nil {
			return copyWayland(path, text)
		}
	}
	if atclip.Unsupported {
		return fmt.Errorf("no clipboard utility found (install wl-clipboard, xclip or xsel)")
	}
	if err := atclip.WriteAll(text); err != nil {
		return fmt.Errorf("write to clipboard: %w", err)
	}
	return nil
}

func copyWayland(path, text string) error {
	ctx, cancel := context.WithTimeout(context.Background(), copyTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, path, "--", text)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("wl-copy: %w", err)
	}
	return nil
}
