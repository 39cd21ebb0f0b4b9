//go:build darwin

package platform

import "github.com/gordonklaus/portaudio"

// InitAudio initializes PortAudio. On macOS, no stderr suppression is needed
// since CoreAudio doesn't produce ALSA/JACK noise.
func InitAudio() error {
	return portaudio.Initialize()
}

// defaultSourceDescription is empty on macOS; CoreAudio device names are
// already descriptive.
func defaultSourceDescription() string {
	return ""
}
