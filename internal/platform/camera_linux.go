//go:build linux

package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unsafe"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/Danondso/precall/internal/media"
)

func defaultCameraPaths() cameraPaths {
	return cameraPaths{
		sysfs: "/sys/class/video4linux",
		byID:  "/dev/v4l/by-id",
		dev:   "/dev",
	}
}

// listCameras reads V4L2 capture nodes from sysfs. Only interface index 0
// is listed; higher indices are metadata nodes of the same camera. Ids are
// the /dev/v4l/by-id link when one exists because node numbers change
// across replugs.
func listCameras(paths cameraPaths) ([]media.Device, error) {
	entries, err := os.ReadDir(paths.sysfs)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", paths.sysfs, err)
	}
	byID := stableNames(paths.byID)

	type node struct {
		num int
		dev media.Device
	}
	var nodes []node
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "video") {
			continue
		}
		num, err := strconv.Atoi(strings.TrimPrefix(name, "video"))
		if err != nil {
			continue
		}
		dir := filepath.Join(paths.sysfs, name)
		if idx := readSysfs(filepath.Join(dir, "index")); idx != "" && idx != "0" {
			continue
		}
		devPath := filepath.Join(paths.dev, name)
		id := devPath
		if stable, ok := byID[devPath]; ok {
			id = stable
		}
		nodes = append(nodes, node{num: num, dev: media.Device{
			ID:    id,
			Label: cleanCameraName(readSysfs(filepath.Join(dir, "name"))),
			Kind:  media.Camera,
		}})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].num < nodes[j].num })

	out := make([]media.Device, len(nodes))
	for i, n := range nodes {
		out[i] = n.dev
	}
	return out, nil
}

// stableNames maps resolved device nodes to their by-id links.
func stableNames(dir string) map[string]string {
	out := make(map[string]string)
	links, err := os.ReadDir(dir)
	if err != nil {
		return out
	}
	for _, l := range links {
		link := filepath.Join(dir, l.Name())
		target, err := filepath.EvalSymlinks(link)
		if err != nil {
			continue
		}
		if _, seen := out[target]; !seen {
			out[target] = link
		}
	}
	return out
}

func readSysfs(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// cleanCameraName drops the repeated "Name: Name" form uvcvideo reports.
func cleanCameraName(name string) string {
	if head, tail, ok := strings.Cut(name, ": "); ok && strings.HasPrefix(head, tail) {
		return head
	}
	return name
}

// V4L2 ioctl numbers and flags from linux/videodev2.h.
const (
	vidiocQuerycap = 0x80685600 // _IOR('V', 0, struct v4l2_capability)
	vidiocReqbufs  = 0xC0145608 // _IOWR('V', 8, struct v4l2_requestbuffers)

	capVideoCapture = 0x00000001
	capDeviceCaps   = 0x80000000

	bufTypeVideoCapture = 1
	memoryMmap          = 1
)

type v4l2Capability struct {
	Driver       [16]uint8
	Card         [32]uint8
	BusInfo      [32]uint8
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
	Reserved     [3]uint32
}

type v4l2RequestBuffers struct {
	Count        uint32
	Type         uint32
	Memory       uint32
	Capabilities uint32
	Flags        uint8
	Reserved     [3]uint8
}

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// cameraTrack holds an open V4L2 capture node with one buffer requested,
// which claims the device the way a streaming application would.
type cameraTrack struct {
	id       string
	settings media.Settings

	mu      sync.Mutex
	fd      int
	stopped bool
	closed  bool
}

func openCamera(path, label string) (*cameraTrack, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var capability v4l2Capability
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(&capability)); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("query capabilities: %w", err)
	}
	caps := capability.Capabilities
	if caps&capDeviceCaps != 0 {
		caps = capability.DeviceCaps
	}
	if caps&capVideoCapture == 0 {
		_ = unix.Close(fd)
		return nil, &media.DeviceError{Kind: media.ErrDeviceNotFound, Device: media.Camera, DeviceID: path, Err: errors.New("not a video capture device")}
	}
	if label == "" {
		label = cleanCameraName(unix.ByteSliceToString(capability.Card[:]))
	}

	// Another application streaming from the camera makes this fail with EBUSY.
	req := v4l2RequestBuffers{Count: 1, Type: bufTypeVideoCapture, Memory: memoryMmap}
	if err := ioctl(fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("request buffers: %w", err)
	}

	return &cameraTrack{
		id:       uuid.NewString(),
		settings: media.Settings{DeviceID: path, Label: label},
		fd:       fd,
	}, nil
}

func (t *cameraTrack) ID() string               { return t.id }
func (t *cameraTrack) Kind() media.Kind         { return media.Camera }
func (t *cameraTrack) Settings() media.Settings { return t.settings }

// Play hands the track to surface. Terminal surfaces report readiness
// rather than render frames.
func (t *cameraTrack) Play(surface media.Surface) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return errors.New("camera track is closed")
	}
	if surface == nil {
		return nil
	}
	return surface.Show(t)
}

func (t *cameraTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.closed {
		return
	}
	t.stopped = true
	req := v4l2RequestBuffers{Count: 0, Type: bufTypeVideoCapture, Memory: memoryMmap}
	_ = ioctl(t.fd, vidiocReqbufs, unsafe.Pointer(&req))
}

func (t *cameraTrack) Close() error {
	t.Stop()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return unix.Close(t.fd)
}
