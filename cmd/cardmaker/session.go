package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rm01-labs/cardmaker/internal/catalog"
	"github.com/rm01-labs/cardmaker/internal/config"
	"github.com/rm01-labs/cardmaker/internal/device"
	"github.com/rm01-labs/cardmaker/internal/logger"
	"github.com/rm01-labs/cardmaker/internal/naming"
	"github.com/rm01-labs/cardmaker/internal/provision"
	"github.com/rm01-labs/cardmaker/internal/transfer"

	"github.com/spf13/viper"
)

func buildOrchestrator() *provision.Orchestrator {
	cfg := config.GetConfig()
	log := logger.GetLogger()

	inspector := device.NewInspector(&device.LsblkLister{}, log, cfg.MasterLabel, cfg.TargetLabels)
	scanner := catalog.NewScanner(naming.NewResolver(cfg.Manufacturers), log)

	return provision.NewOrchestrator(
		cfg,
		inspector,
		&device.FindmntResolver{},
		&device.UmountUnmounter{Logger: log},
		scanner,
		transfer.NewEngine(log, cfg.TransferWorkers),
		transfer.NewNormalizer(log),
		log,
	)
}

// findModel resolves a model argument against one catalog bucket. The
// argument is either a full directory name (case-insensitive) or a
// 1-based menu position as printed by the catalog command.
func findModel(cat *catalog.Catalog, class naming.Class, arg string) (naming.Identity, error) {
	bucket := cat.ByClass(class)

	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(bucket) {
			return naming.Identity{}, fmt.Errorf("model %d out of range (have %d %s models)", n, len(bucket), class)
		}
		return bucket[n-1], nil
	}

	for _, id := range bucket {
		if strings.EqualFold(id.FullName, arg) {
			return id, nil
		}
	}

	return naming.Identity{}, fmt.Errorf("no %s model named %q on the master disk", class, arg)
}

// finishSession unmounts the card unless --keep-mounted was given.
func finishSession(ctx context.Context, orch *provision.Orchestrator, sess *provision.Session) error {
	if viper.GetBool("keep_mounted") {
		return nil
	}

	return orch.Finish(ctx, sess)
}
