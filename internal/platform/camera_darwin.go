//go:build darwin

package platform

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework AVFoundation -framework Foundation
#include <stdlib.h>
#include <string.h>
#import <AVFoundation/AVFoundation.h>

typedef struct {
	char *uid;
	char *name;
} camInfo;

// camList writes up to max capture devices to out, the system default
// first. Strings are malloc'd and owned by the caller.
static int camList(camInfo *out, int max) {
	int n = 0;
	@autoreleasepool {
		AVCaptureDeviceDiscoverySession *s = [AVCaptureDeviceDiscoverySession
			discoverySessionWithDeviceTypes:@[AVCaptureDeviceTypeBuiltInWideAngleCamera, AVCaptureDeviceTypeExternalUnknown]
			mediaType:AVMediaTypeVideo
			position:AVCaptureDevicePositionUnspecified];
		NSMutableArray<AVCaptureDevice *> *devs = [NSMutableArray arrayWithArray:s.devices];
		AVCaptureDevice *def = [AVCaptureDevice defaultDeviceWithMediaType:AVMediaTypeVideo];
		if (def != nil && [devs containsObject:def]) {
			[devs removeObject:def];
			[devs insertObject:def atIndex:0];
		}
		for (AVCaptureDevice *d in devs) {
			if (n >= max) {
				break;
			}
			out[n].uid = strdup([d.uniqueID UTF8String]);
			out[n].name = strdup([d.localizedName UTF8String]);
			n++;
		}
	}
	return n;
}

static int camAuthStatus(void) {
	return (int)[AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeVideo];
}

// camRequestAccess shows the system prompt and waits up to timeout seconds.
static int camRequestAccess(int timeout) {
	__block int granted = 0;
	dispatch_semaphore_t sem = dispatch_semaphore_create(0);
	[AVCaptureDevice requestAccessForMediaType:AVMediaTypeVideo completionHandler:^(BOOL ok) {
		granted = ok ? 1 : 0;
		dispatch_semaphore_signal(sem);
	}];
	dispatch_semaphore_wait(sem, dispatch_time(DISPATCH_TIME_NOW, (int64_t)timeout * NSEC_PER_SEC));
	dispatch_release(sem);
	return granted;
}

// camCheck reports whether uid exists and is free: 0 ok, 1 not found,
// 2 in use.
static int camCheck(const char *uid) {
	@autoreleasepool {
		AVCaptureDevice *d = [AVCaptureDevice deviceWithUniqueID:[NSString stringWithUTF8String:uid]];
		if (d == nil) {
			return 1;
		}
		return [d isInUseByAnotherApplication] ? 2 : 0;
	}
}

// camOpen returns a retained device locked for configuration, or NULL
// with *status set: 1 not found, 2 in use, 3 lock refused.
static void *camOpen(const char *uid, int *status) {
	@autoreleasepool {
		AVCaptureDevice *d = [AVCaptureDevice deviceWithUniqueID:[NSString stringWithUTF8String:uid]];
		int check = camCheck(uid);
		if (check != 0) {
			*status = check;
			return NULL;
		}
		NSError *err = nil;
		if (![d lockForConfiguration:&err]) {
			*status = 3;
			return NULL;
		}
		*status = 0;
		return (void *)[d retain];
	}
}

static void camClose(void *h) {
	AVCaptureDevice *d = (AVCaptureDevice *)h;
	[d unlockForConfiguration];
	[d release];
}
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/google/uuid"

	"github.com/Danondso/precall/internal/media"
)

const (
	maxCameras        = 16
	accessPromptLimit = 60 // seconds
)

// AVAuthorizationStatus values.
const (
	authNotDetermined = 0
	authRestricted    = 1
	authDenied        = 2
	authAuthorized    = 3
)

// camOpen status codes.
const (
	openOK = iota
	openNotFound
	openInUse
	openLocked
)

func defaultCameraPaths() cameraPaths { return cameraPaths{} }

// listCameras asks AVFoundation for built-in and external cameras. Ids are
// AVCaptureDevice unique ids, stable across replugs. Listing needs no
// camera permission.
func listCameras(cameraPaths) ([]media.Device, error) {
	infos := make([]C.camInfo, maxCameras)
	n := int(C.camList(&infos[0], C.int(maxCameras)))
	devices := make([]media.Device, 0, n)
	for _, info := range infos[:n] {
		devices = append(devices, media.Device{
			ID:    C.GoString(info.uid),
			Label: C.GoString(info.name),
			Kind:  media.Camera,
		})
		C.free(unsafe.Pointer(info.uid))
		C.free(unsafe.Pointer(info.name))
	}
	return devices, nil
}

// authError maps an AVAuthorizationStatus onto the error taxonomy. An
// undetermined status is not an error; the caller prompts.
func authError(status int, id string) error {
	switch status {
	case authAuthorized, authNotDetermined:
		return nil
	case authRestricted:
		return &media.DeviceError{Kind: media.ErrPermissionDenied, Device: media.Camera, DeviceID: id,
			Err: errors.New("camera access is restricted by policy")}
	default:
		return &media.DeviceError{Kind: media.ErrPermissionDenied, Device: media.Camera, DeviceID: id,
			Err: errors.New("camera access denied in System Settings > Privacy & Security > Camera")}
	}
}

func openError(status int, id string) error {
	switch status {
	case openOK:
		return nil
	case openNotFound:
		return &media.DeviceError{Kind: media.ErrDeviceNotFound, Device: media.Camera, DeviceID: id,
			Err: errors.New("no capture device with this id")}
	case openInUse:
		return &media.DeviceError{Kind: media.ErrDeviceBusy, Device: media.Camera, DeviceID: id,
			Err: errors.New("camera is in use by another application")}
	default:
		return &media.DeviceError{Kind: media.ErrDeviceBusy, Device: media.Camera, DeviceID: id,
			Err: errors.New("camera refused a configuration lock")}
	}
}

// ensureCameraAccess prompts for camera permission when the user has not
// decided yet.
func ensureCameraAccess(id string) error {
	status := int(C.camAuthStatus())
	if err := authError(status, id); err != nil {
		return err
	}
	if status == authNotDetermined && C.camRequestAccess(C.int(accessPromptLimit)) == 0 {
		return authError(authDenied, id)
	}
	return nil
}

// cameraTrack holds a configuration-locked AVCaptureDevice, which keeps
// other applications from reconfiguring it while the check runs.
type cameraTrack struct {
	id       string
	settings media.Settings

	mu     sync.Mutex
	handle unsafe.Pointer
	closed bool
}

func openCamera(uid, label string) (*cameraTrack, error) {
	cuid := C.CString(uid)
	defer C.free(unsafe.Pointer(cuid))

	// Missing or busy cameras fail before the permission prompt.
	if err := openError(int(C.camCheck(cuid)), uid); err != nil {
		return nil, err
	}
	if err := ensureCameraAccess(uid); err != nil {
		return nil, err
	}

	var status C.int
	h := C.camOpen(cuid, &status)
	if h == nil {
		return nil, openError(int(status), uid)
	}
	if label == "" {
		label = uid
	}
	return &cameraTrack{
		id:       uuid.NewString(),
		settings: media.Settings{DeviceID: uid, Label: label},
		handle:   h,
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
		return fmt.Errorf("camera track %s is closed", t.id)
	}
	if surface == nil {
		return nil
	}
	return surface.Show(t)
}

// Stop is a no-op; the lock is held until Close.
func (t *cameraTrack) Stop() {}

func (t *cameraTrack) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	C.camClose(t.handle)
	t.handle = nil
	return nil
}
