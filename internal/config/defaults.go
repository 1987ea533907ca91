package config

import "errors"

const (
	DefaultHome            = "~/.cardmaker"
	DefaultMasterLabel     = "RM01DATA"
	DefaultTransferWorkers = 2
	DefaultDiscoverTimeout = 30
)

// Known manufacturer tokens. Folder names that do not lead with one of
// these resolve to the Other manufacturer.
var DefaultManufacturers = []string{"Qwen", "GPT", "Llama", "DeepSeek", "Gemma"}

// Partition label substrings identifying the three target-card roles.
var DefaultTargetLabels = []string{"rootfs", "models", "app"}

var ErrHomeNotSet = errors.New("cardmaker home directory is not set")
