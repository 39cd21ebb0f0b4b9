//go:build darwin

package platform

import (
	"errors"
	"log"
)

// startHotplug is unavailable on macOS; device changes need a manual
// refresh.
func startHotplug(_ *log.Logger, _ func()) (func(), error) {
	return nil, errors.New("hot-plug notifications are not supported on macOS")
}
