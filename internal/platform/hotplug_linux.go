//go:build linux

package platform

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"
)

// startHotplug listens for udev events on camera and sound devices and calls
// onEvent for each. The returned function stops the listener.
func startHotplug(logger *log.Logger, onEvent func()) (func(), error) {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return nil, fmt.Errorf("connect netlink: %w", err)
	}

	// Buffered so the library's reader never blocks on a send once we stop
	// receiving.
	queue := make(chan netlink.UEvent, 16)
	errs := make(chan error, 4)
	monitorQuit := conn.Monitor(queue, errs, hotplugMatcher())
	quit := make(chan struct{})

	go func() {
		for {
			select {
			case <-quit:
				drainHotplug(queue, errs, hotplugDrain)
				return
			case ev := <-queue:
				if logger != nil {
					logger.Printf("hotplug: %s %s %s", ev.Action, ev.Env["SUBSYSTEM"], ev.Env["DEVNAME"])
				}
				onEvent()
			case err := <-errs:
				if logger != nil {
					logger.Printf("hotplug: monitor error: %v", err)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(monitorQuit)
			close(quit)
			_ = conn.Close()
		})
	}, nil
}

// hotplugDrain bounds how long a stopped listener waits for the netlink
// reader to report the closed socket.
const hotplugDrain = 2 * time.Second

// drainHotplug discards events until the reader reports an error, which it
// does once on every exit after the socket closes, or until limit passes.
func drainHotplug(queue <-chan netlink.UEvent, errs <-chan error, limit time.Duration) {
	timeout := time.NewTimer(limit)
	defer timeout.Stop()
	for {
		select {
		case <-queue:
		case <-errs:
			return
		case <-timeout.C:
			return
		}
	}
}

// hotplugMatcher matches SUBSYSTEM=video4linux|sound, ACTION=add|remove.
func hotplugMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "video4linux|sound",
		},
	})
	return rules
}
