package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/rm01-labs/cardmaker/internal/backend"
	"github.com/rm01-labs/cardmaker/internal/catalog"
	"github.com/rm01-labs/cardmaker/internal/config"
	"github.com/rm01-labs/cardmaker/internal/device"
	"github.com/rm01-labs/cardmaker/internal/layout"
	"github.com/rm01-labs/cardmaker/internal/naming"
	"github.com/rm01-labs/cardmaker/internal/transfer"

	"go.uber.org/zap"
)

// NotMountedError reports a matched partition without a usable mount
// point. Mounting is the external mount collaborator's job; provisioning
// cannot proceed until it has happened.
type NotMountedError struct {
	Device string
	Role   string
}

func (e *NotMountedError) Error() string {
	return fmt.Sprintf("partition %s (%s) is not mounted", e.Device, e.Role)
}

// Session holds the facts established by one discovery pass: where the
// master disk and the card partitions are mounted, the scanned catalog,
// and the backend mapping. A session stays valid as long as the card's
// partition set is untouched, which is why no transfer runs concurrently
// with discovery.
type Session struct {
	Master      device.BlockDevice
	MasterPath  string
	Card        device.TargetCard
	RootfsMount string
	ModelsMount string
	ModelsRoot  string
	Catalog     *catalog.Catalog
	Mapping     *backend.Mapping
}

// Orchestrator sequences discovery, scanning, resolution, plan
// construction, and transfer into the user-facing workflows. It does no
// file I/O of its own beyond settings persistence.
type Orchestrator struct {
	cfg        *config.Config
	inspector  *device.Inspector
	mounts     device.MountResolver
	unmounter  device.Unmounter
	scanner    *catalog.Scanner
	engine     *transfer.Engine
	normalizer *transfer.Normalizer
	logger     *zap.Logger
}

func NewOrchestrator(
	cfg *config.Config,
	inspector *device.Inspector,
	mounts device.MountResolver,
	unmounter device.Unmounter,
	scanner *catalog.Scanner,
	engine *transfer.Engine,
	normalizer *transfer.Normalizer,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		inspector:  inspector,
		mounts:     mounts,
		unmounter:  unmounter,
		scanner:    scanner,
		engine:     engine,
		normalizer: normalizer,
		logger:     logger.Named("provision"),
	}
}

func (o *Orchestrator) discoverTimeout() time.Duration {
	secs := o.cfg.DiscoverTimeout
	if secs <= 0 {
		secs = config.DefaultDiscoverTimeout
	}

	return time.Duration(secs) * time.Second
}

// Discover locates the master disk and target card, scans the model
// catalog, loads the backend mapping, and persists the resulting facts.
// Every failure here is recoverable: the caller re-prompts instead of
// terminating.
func (o *Orchestrator) Discover(ctx context.Context) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, o.discoverTimeout())
	defer cancel()

	sess := &Session{}

	master, err := o.inspector.DiscoverMasterDisk(ctx)
	if err != nil {
		return nil, err
	}
	sess.Master = master

	sess.MasterPath, err = o.masterMount(ctx, master)
	if err != nil {
		return nil, err
	}

	card, err := o.inspector.DiscoverTargetCard(ctx)
	if err != nil {
		return nil, err
	}
	sess.Card = card

	sess.RootfsMount, err = o.partitionMount(ctx, card.Rootfs(), device.RoleRootfs)
	if err != nil {
		return nil, err
	}
	sess.ModelsMount, err = o.partitionMount(ctx, card.Models(), device.RoleModels)
	if err != nil {
		return nil, err
	}

	sess.ModelsRoot = o.cfg.ModelsRoot
	if sess.ModelsRoot == "" {
		sess.ModelsRoot, err = catalog.ResolveRoot(sess.MasterPath)
		if err != nil {
			return nil, err
		}
	}

	sess.Catalog, err = o.scanner.Scan(ctx, sess.ModelsRoot)
	if err != nil {
		return nil, err
	}

	// The mapping artifact is optional; without it only explicit backend
	// choices work.
	if mapping, err := backend.LoadMapping(layout.BackendList(sess.MasterPath)); err == nil {
		sess.Mapping = mapping
	} else {
		o.logger.Warn("backend mapping unavailable, auto-detection disabled", zap.Error(err))
	}

	o.persist(sess)

	return sess, nil
}

// ScanCatalog locates the master disk and scans its model catalog without
// requiring a target card, so models can be listed before a card is
// inserted.
func (o *Orchestrator) ScanCatalog(ctx context.Context) (*catalog.Catalog, error) {
	ctx, cancel := context.WithTimeout(ctx, o.discoverTimeout())
	defer cancel()

	master, err := o.inspector.DiscoverMasterDisk(ctx)
	if err != nil {
		return nil, err
	}

	masterPath, err := o.masterMount(ctx, master)
	if err != nil {
		return nil, err
	}

	root := o.cfg.ModelsRoot
	if root == "" {
		if root, err = catalog.ResolveRoot(masterPath); err != nil {
			return nil, err
		}
	}

	return o.scanner.Scan(ctx, root)
}

// persist records discovery facts back into the settings file. A write
// failure is logged, not fatal: settings are a convenience cache.
func (o *Orchestrator) persist(sess *Session) {
	o.cfg.MasterPath = sess.MasterPath
	o.cfg.ModelsRoot = sess.ModelsRoot
	o.cfg.TargetDevice = sess.Card.Device.Path

	// Observed labels go into their own field; TargetLabels stays the
	// role-substring list the inspector matches against.
	labels := make([]string, 0, len(sess.Card.Device.Partitions))
	for _, p := range sess.Card.Device.Partitions {
		labels = append(labels, p.Label)
	}
	o.cfg.TargetPartitions = labels

	if err := o.cfg.Save(); err != nil {
		o.logger.Warn("failed to persist settings", zap.Error(err))
	}
}

// masterMount finds the mounted filesystem root of the master data volume.
func (o *Orchestrator) masterMount(ctx context.Context, master device.BlockDevice) (string, error) {
	if p, ok := master.LabeledPartition(o.cfg.MasterLabel); ok {
		return o.partitionMount(ctx, p, "master")
	}

	// Label sits on the disk itself (a single-filesystem stick).
	mp, err := o.mounts.MountPoint(ctx, master.Path)
	if err != nil {
		return "", err
	}
	if mp == "" {
		return "", &NotMountedError{Device: master.Path, Role: "master"}
	}

	return mp, nil
}

func (o *Orchestrator) partitionMount(ctx context.Context, p device.Partition, role string) (string, error) {
	if p.MountPoint != "" {
		return p.MountPoint, nil
	}

	mp, err := o.mounts.MountPoint(ctx, p.Path)
	if err != nil {
		return "", err
	}
	if mp == "" {
		return "", &NotMountedError{Device: p.Path, Role: role}
	}

	return mp, nil
}

// SelectModel returns the catalog entry for one class by menu position.
func (o *Orchestrator) SelectModel(sess *Session, class naming.Class, index int) (naming.Identity, error) {
	bucket := sess.Catalog.ByClass(class)
	if index < 0 || index >= len(bucket) {
		return naming.Identity{}, fmt.Errorf("model selection %d out of range (have %d %s models)",
			index, len(bucket), class)
	}

	return bucket[index], nil
}

// Finish unmounts the card's partitions so the card can be pulled.
// Unmount failures are reported but never undo a completed provisioning.
func (o *Orchestrator) Finish(ctx context.Context, sess *Session) error {
	var firstErr error
	for _, p := range []device.Partition{sess.Card.Rootfs(), sess.Card.Models(), sess.Card.App()} {
		if p.Path == "" {
			continue
		}
		if err := o.unmounter.Unmount(ctx, p.Path); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
