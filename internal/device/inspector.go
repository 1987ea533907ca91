package device

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Inspector discovers the master disk and the target card from a fresh
// device enumeration. Absence of either is a recoverable condition the
// orchestrator reports back to the user, never a crash.
type Inspector struct {
	lister      Lister
	logger      *zap.Logger
	masterLabel string
	roles       []string
}

func NewInspector(lister Lister, logger *zap.Logger, masterLabel string, roles []string) *Inspector {
	if len(roles) == 0 {
		roles = []string{RoleRootfs, RoleModels, RoleApp}
	}

	return &Inspector{
		lister:      lister,
		logger:      logger.Named("device"),
		masterLabel: masterLabel,
		roles:       roles,
	}
}

// DiscoverMasterDisk finds the device carrying the master volume label,
// either on the disk itself or on one of its partitions. The match is
// exact label equality.
func (i *Inspector) DiscoverMasterDisk(ctx context.Context) (BlockDevice, error) {
	devices, err := i.lister.ListBlockDevices(ctx)
	if err != nil {
		return BlockDevice{}, err
	}

	for _, dev := range devices {
		if dev.Label == i.masterLabel {
			i.logger.Info("master disk found", zap.String("device", dev.Path))
			return dev, nil
		}
		if _, ok := dev.LabeledPartition(i.masterLabel); ok {
			i.logger.Info("master disk found", zap.String("device", dev.Path))
			return dev, nil
		}
	}

	return BlockDevice{}, ErrMasterDiskNotFound
}

// DiscoverTargetCard finds the device whose partition labels cover all
// three required roles. Ties are broken by preferring the device with the
// fewest total partitions. A device covering only some roles is reported
// as PartialPartitionsError rather than silently accepted.
func (i *Inspector) DiscoverTargetCard(ctx context.Context) (TargetCard, error) {
	devices, err := i.lister.ListBlockDevices(ctx)
	if err != nil {
		return TargetCard{}, err
	}

	var (
		best        *TargetCard
		bestPartial *PartialPartitionsError
	)

	for _, dev := range devices {
		roles, missing := i.matchRoles(dev)

		if len(missing) == 0 {
			candidate := TargetCard{Device: dev, Roles: roles}
			if best == nil || len(dev.Partitions) < len(best.Device.Partitions) {
				best = &candidate
			}
			continue
		}

		// Remember the closest near-miss so the user learns exactly which
		// role partitions their card lacks.
		if len(missing) < len(i.roles) {
			partial := &PartialPartitionsError{DevicePath: dev.Path, Missing: missing}
			if bestPartial == nil || len(missing) < len(bestPartial.Missing) {
				bestPartial = partial
			}
		}
	}

	if best != nil {
		i.logger.Info("target card found",
			zap.String("device", best.Device.Path),
			zap.Int("partitions", len(best.Device.Partitions)),
		)
		return *best, nil
	}

	if bestPartial != nil {
		return TargetCard{}, bestPartial
	}

	return TargetCard{}, ErrTargetCardNotFound
}

// ValidatePartitionTriplet reports whether a device carries all required
// role partitions.
func (i *Inspector) ValidatePartitionTriplet(dev BlockDevice) bool {
	_, missing := i.matchRoles(dev)
	return len(missing) == 0
}

// matchRoles assigns each required role to a distinct partition whose
// label contains the role name, case-insensitively.
func (i *Inspector) matchRoles(dev BlockDevice) (map[string]Partition, []string) {
	used := make(map[string]bool, len(dev.Partitions))
	roles := make(map[string]Partition, len(i.roles))
	var missing []string

	for _, role := range i.roles {
		found := false
		for _, p := range dev.Partitions {
			if used[p.Path] {
				continue
			}
			if strings.Contains(strings.ToLower(p.Label), strings.ToLower(role)) {
				roles[role] = p
				used[p.Path] = true
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, role)
		}
	}

	return roles, missing
}
