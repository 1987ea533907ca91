package device

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Lister abstracts raw block-device enumeration so discovery logic can be
// tested without real hardware.
type Lister interface {
	ListBlockDevices(ctx context.Context) ([]BlockDevice, error)
}

// LsblkLister enumerates devices by running lsblk with JSON output.
type LsblkLister struct{}

type lsblkOutput struct {
	Blockdevices []lsblkDevice `json:"blockdevices"`
}

type lsblkDevice struct {
	Name       string        `json:"name"`
	Path       string        `json:"path"`
	Type       string        `json:"type"`
	Label      string        `json:"label"`
	FSType     string        `json:"fstype"`
	Mountpoint string        `json:"mountpoint"`
	Children   []lsblkDevice `json:"children,omitempty"`
}

// ListBlockDevices shells out to lsblk. Transient failures (the tool races
// with udev on freshly inserted media) are retried with exponential backoff
// until the caller's deadline.
func (l *LsblkLister) ListBlockDevices(ctx context.Context) ([]BlockDevice, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 10 * time.Second

	var devices []BlockDevice
	err := backoff.Retry(func() error {
		var err error
		devices, err = l.listOnce(ctx)
		return err
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, err
	}

	return devices, nil
}

func (l *LsblkLister) listOnce(ctx context.Context) ([]BlockDevice, error) {
	cmd := exec.CommandContext(ctx, "lsblk", "-J", "-o", "NAME,PATH,TYPE,LABEL,FSTYPE,MOUNTPOINT")
	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, backoff.Permanent(fmt.Errorf("lsblk: %w", ctxErr))
		}
		return nil, fmt.Errorf("lsblk failed: %w", err)
	}

	var parsed lsblkOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to parse lsblk output: %w", err))
	}

	var devices []BlockDevice
	for _, dev := range parsed.Blockdevices {
		if dev.Type != "disk" {
			continue
		}

		device := BlockDevice{
			Path:  dev.Path,
			Label: strings.TrimSpace(dev.Label),
		}
		for _, child := range dev.Children {
			if child.Type != "part" {
				continue
			}
			device.Partitions = append(device.Partitions, Partition{
				Path:       child.Path,
				Label:      strings.TrimSpace(child.Label),
				FSType:     child.FSType,
				MountPoint: child.Mountpoint,
			})
		}

		devices = append(devices, device)
	}

	return devices, nil
}
