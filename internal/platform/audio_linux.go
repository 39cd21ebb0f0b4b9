//go:build linux

package platform

import (
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/gordonklaus/portaudio"
)

// InitAudio suppresses ALSA/JACK noise during PortAudio initialization
// by temporarily redirecting stderr to /dev/null, then calls portaudio.Initialize().
func InitAudio() error {
	stderrFd := int(os.Stderr.Fd()) //nolint:gosec // fd fits in int on all supported platforms
	savedStderr, err := syscall.Dup(stderrFd)
	if err != nil {
		// If we can't dup stderr, just initialize without suppression
		return portaudio.Initialize()
	}
	devNull, err := os.Open(os.DevNull)
	if err != nil {
		_ = syscall.Close(savedStderr)
		return portaudio.Initialize()
	}
	_ = syscall.Dup2(int(devNull.Fd()), stderrFd)
	_ = devNull.Close()

	initErr := portaudio.Initialize()

	// Restore stderr
	_ = syscall.Dup2(savedStderr, stderrFd)
	_ = syscall.Close(savedStderr)

	return initErr
}

// defaultSourceDescription asks pactl (PulseAudio/PipeWire) for the
// description of the default input source, or "" if unavailable.
func defaultSourceDescription() string {
	out, err := exec.Command("pactl", "get-default-source").Output()
	if err != nil {
		return ""
	}
	sourceName := strings.TrimSpace(string(out))
	if sourceName == "" {
		return ""
	}

	out, err = exec.Command("pactl", "list", "sources").Output()
	if err != nil {
		return ""
	}
	return parseSourceDescription(string(out), sourceName)
}

func parseSourceDescription(listing, sourceName string) string {
	inSource := false
	for _, line := range strings.Split(listing, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "Name: ") {
			inSource = strings.TrimPrefix(trimmed, "Name: ") == sourceName
		}
		if inSource && strings.HasPrefix(trimmed, "Description: ") {
			desc := strings.TrimPrefix(trimmed, "Description: ")
			// Monitor sources capture output, not a microphone.
			if strings.HasPrefix(desc, "Monitor of ") {
				return ""
			}
			return desc
		}
	}
	return ""
}
