package device

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Partition is one partition of an enumerated block device. MountPoint is
// empty when the partition is not mounted; an unmounted partition cannot
// be targeted for copy until the mount collaborator mounts it.
type Partition struct {
	Path       string
	Label      string
	FSType     string
	MountPoint string
}

// BlockDevice is a disk enumerated fresh on every discovery call. Only
// derived facts (chosen paths) are ever persisted.
type BlockDevice struct {
	Path       string
	Label      string
	Partitions []Partition
}

// LabeledPartition returns the partition whose filesystem label equals
// label exactly.
func (d BlockDevice) LabeledPartition(label string) (Partition, bool) {
	for _, p := range d.Partitions {
		if p.Label == label {
			return p, true
		}
	}

	return Partition{}, false
}

// Target-card partition roles, in provisioning order.
const (
	RoleRootfs = "rootfs"
	RoleModels = "models"
	RoleApp    = "app"
)

// TargetCard is a block device bound to the three required role partitions.
// All three are distinct partitions on the same device.
type TargetCard struct {
	Device BlockDevice
	Roles  map[string]Partition
}

// Rootfs returns the partition receiving the backend bundle.
func (c TargetCard) Rootfs() Partition { return c.Roles[RoleRootfs] }

// Models returns the partition receiving model trees and run configs.
func (c TargetCard) Models() Partition { return c.Roles[RoleModels] }

// App returns the application partition.
func (c TargetCard) App() Partition { return c.Roles[RoleApp] }

var (
	ErrMasterDiskNotFound = errors.New("master disk not found")
	ErrTargetCardNotFound = errors.New("target card not found")
)

// PartialPartitionsError reports a candidate card that exposes some but
// not all of the required role partitions. It is surfaced, never silently
// treated as a valid card.
type PartialPartitionsError struct {
	DevicePath string
	Missing    []string
}

func (e *PartialPartitionsError) Error() string {
	missing := append([]string(nil), e.Missing...)
	sort.Strings(missing)
	return fmt.Sprintf("device %s is missing partitions for roles: %s",
		e.DevicePath, strings.Join(missing, ", "))
}
