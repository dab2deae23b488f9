package pipeline

import (
	"context"
	"path/filepath"

	pipeerrors "github.com/cineripr/releasepipeline/internal/errors"
	"github.com/cineripr/releasepipeline/internal/extract"
)

// Extractor is the slice of the extraction driver the orchestrator needs;
// tests substitute a fake so no external tool is spawned.
type Extractor interface {
	// CanExtract structurally probes the archive before extraction.
	CanExtract(archivePath string) (bool, string)
	// VolumeCount returns the header-declared volume count of a RAR
	// archive, or an error when the header cannot be read.
	VolumeCount(ctx context.Context, archivePath string) (int, error)
	// Extract unpacks the archive into targetDir, reporting part-level
	// progress through onProgress.
	Extract(ctx context.Context, archivePath, targetDir string, partCount int, onProgress func(current, total int)) error
}

// toolExtractor is the production Extractor backed by internal/extract's
// external-tool driver and native structural probes.
type toolExtractor struct {
	toolPath   string
	candidates []string
	cpuCores   int
}

// NewToolExtractor builds the production extractor.
func NewToolExtractor(toolPath string, candidates []string, cpuCores int) Extractor {
	return &toolExtractor{toolPath: toolPath, candidates: candidates, cpuCores: cpuCores}
}

func (e *toolExtractor) CanExtract(archivePath string) (bool, string) {
	return extract.CanExtract(archivePath, e.toolPath, e.candidates)
}

func (e *toolExtractor) VolumeCount(ctx context.Context, archivePath string) (int, error) {
	tool, err := extract.ResolveTool(e.toolPath, e.candidates)
	if err != nil {
		return 0, err
	}
	return extract.GetVolumeCount(ctx, tool, archivePath)
}

func (e *toolExtractor) Extract(ctx context.Context, archivePath, targetDir string, partCount int, onProgress func(current, total int)) error {
	err := extract.Extract(ctx, archivePath, targetDir, extract.Options{
		ToolPath:       e.toolPath,
		ToolCandidates: e.candidates,
		CPUCores:       e.cpuCores,
		PartCount:      partCount,
		OnProgress:     onProgress,
	})
	if err != nil {
		return pipeerrors.NewExtractionFailed("extract "+filepath.Base(archivePath), err)
	}
	return nil
}
