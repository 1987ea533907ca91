// Package layout pins down the directory contract shared by the master
// disk and the target card. Path construction lives here so the transfer
// planners never hardcode card geography.
package layout

import "path/filepath"

// Master disk directory names.
const (
	ModelsRootName    = "Models_download"
	ModelsRootAltName = "models_download"
	BackendScriptsDir = "98autoshell"
	DevConfigDir      = "Model_dev_yaml"
	FusedMoEDir       = "fused_moe"

	// Backend bundle subdirectories under BackendScriptsDir.
	AttentionBundle = "Attention"
	InferBundle     = "Infer"

	// Mapping artifact consumed by backend auto-detection.
	BackendListFile = "backend_list.yaml"

	// Sub-roots of the models root holding non-LLM model classes.
	EmbeddingSubdir = "embedding"
	RerankerSubdir  = "reranker"
)

// Target card paths, relative to a partition mount point.
const (
	// Backend bundle destination on the rootfs partition.
	AutoShellDest = "home/rm01/autoShell"

	// Run-config destination root on the models partition.
	DevDest = "dev"

	// Fused-MoE kernel configs land inside the vLLM install on rootfs.
	FusedMoEDest = "home/rm01/miniconda3/envs/vllm/lib/python3.12/site-packages/vllm/model_executor/layers/fused_moe/configs"
)

// Run-config file names under DevConfigDir/<vram>/<model>/, keyed by the
// dev/<class> directory each one lands in.
var DevConfigFiles = map[string]string{
	"llm_run.yaml":       "llm",
	"embedding_run.yaml": "embedding",
	"reranker_run.yaml":  "reranker",
}

// Master joins path elements under the master disk root.
func Master(root string, elem ...string) string {
	return filepath.Join(append([]string{root}, elem...)...)
}

// BackendBundle returns the source path of a backend bundle on the master disk.
func BackendBundle(root, bundle string) string {
	return Master(root, BackendScriptsDir, bundle)
}

// BackendList returns the path of the backend mapping artifact.
func BackendList(root string) string {
	return Master(root, BackendScriptsDir, BackendListFile)
}

// DevConfig returns the source directory of dev run-configs for one model
// at one VRAM tier.
func DevConfig(root, vram, modelFullName string) string {
	return Master(root, DevConfigDir, vram, modelFullName)
}

// FusedMoE returns the source directory of fused-MoE optimization configs
// for one model on one platform.
func FusedMoE(root, platform, modelFullName string) string {
	return Master(root, FusedMoEDir, platform, modelFullName)
}
