package device

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MountResolver looks up where a partition is mounted. An empty result
// means not mounted; actually mounting is the mount collaborator's job,
// not ours.
type MountResolver interface {
	MountPoint(ctx context.Context, devicePath string) (string, error)
}

// Unmounter detaches the target card's partitions once provisioning is
// done, so the card can be pulled safely.
type Unmounter interface {
	Unmount(ctx context.Context, devicePath string) error
}

// FindmntResolver resolves mount points via findmnt, falling back to
// /proc/mounts when the tool is unavailable.
type FindmntResolver struct{}

func (r *FindmntResolver) MountPoint(ctx context.Context, devicePath string) (string, error) {
	cmd := exec.CommandContext(ctx, "findmnt", "-n", "-o", "TARGET", devicePath)
	out, err := cmd.Output()
	if err == nil {
		if target := strings.TrimSpace(string(out)); target != "" {
			return target, nil
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("findmnt %s: %w", devicePath, ctxErr)
	}

	return procMountsLookup(devicePath)
}

func procMountsLookup(devicePath string) (string, error) {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return "", fmt.Errorf("failed to read /proc/mounts: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[0] == devicePath {
			return fields[1], nil
		}
	}

	return "", scanner.Err()
}

// UmountUnmounter unmounts partitions with umount(8). Failures are logged
// and returned but a stuck unmount never blocks forever.
type UmountUnmounter struct {
	Logger *zap.Logger
}

func (u *UmountUnmounter) Unmount(ctx context.Context, devicePath string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "umount", devicePath)
	if out, err := cmd.CombinedOutput(); err != nil {
		if u.Logger != nil {
			u.Logger.Warn("unmount failed",
				zap.String("device", devicePath),
				zap.String("output", strings.TrimSpace(string(out))),
			)
		}
		return fmt.Errorf("umount %s: %w", devicePath, err)
	}

	if u.Logger != nil {
		u.Logger.Info("unmounted", zap.String("device", devicePath))
	}
	return nil
}
