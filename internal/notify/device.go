package notify

import (
	"context"
	"os"

	"github.com/google/uuid"
)

// DevicePlatform is the desktop stand-in for a mobile push service.
// Permission comes from configuration and the token is a stable
// name-based UUID of (project, host), so the server sees the same
// address for this machine across restarts.
type DevicePlatform struct {
	Enabled  bool
	Hostname func() (string, error)
}

// NewDevicePlatform returns a platform using the host name of this machine.
func NewDevicePlatform(enabled bool) *DevicePlatform {
	return &DevicePlatform{Enabled: enabled, Hostname: os.Hostname}
}

// Permission reports the configured permission.
func (d *DevicePlatform) Permission(context.Context) (Permission, error) {
	if d.Enabled {
		return PermissionGranted, nil
	}
	return PermissionDenied, nil
}

// RequestPermission cannot prompt on a terminal; it re-reads the
// configured permission.
func (d *DevicePlatform) RequestPermission(ctx context.Context) (Permission, error) {
	return d.Permission(ctx)
}

// Token derives the device token for projectID.
func (d *DevicePlatform) Token(_ context.Context, projectID string) (string, error) {
	host, err := d.Hostname()
	if err != nil {
		return "", err
	}
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("push://"+projectID+"/"+host))
	return "DeviceToken[" + id.String() + "]", nil
}
