package extract

import (
	"archive/zip"
	"fmt"
	"io"

	"github.com/cineripr/releasepipeline/internal/archive"
	"github.com/javi11/rardecode/v2"
	"github.com/javi11/sevenzip"
	"github.com/spf13/afero"
)

// CanExtract structurally validates archivePath before any extraction is
// attempted: it opens the archive with the matching native decoder and
// confirms it parses, rather than shelling out just to find out it can't.
func CanExtract(archivePath string, toolPath string, toolCandidates []string) (bool, string) {
	switch archive.Classify(archivePath).Format {
	case archive.FormatRAR:
		if _, err := ResolveTool(toolPath, toolCandidates); err != nil {
			return false, "archive tool not found: configure a path or install one"
		}
		if _, err := rardecode.ListArchiveInfo(archivePath); err != nil {
			return false, fmt.Sprintf("RAR structural check failed: %v", err)
		}
		return true, ""

	case archive.FormatSevenZip:
		if _, err := ResolveTool(toolPath, toolCandidates); err != nil {
			return false, "archive tool not found: configure a path or install one"
		}
		reader, err := sevenzip.OpenReader(archivePath, afero.NewOsFs())
		if err != nil {
			return false, fmt.Sprintf("7z structural check failed: %v", err)
		}
		defer reader.Close()
		return true, ""

	case archive.FormatZIP:
		r, err := zip.OpenReader(archivePath)
		if err != nil {
			return false, err.Error()
		}
		defer r.Close()
		for _, f := range r.File {
			if f.FileInfo().IsDir() {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				return false, fmt.Sprintf("corrupt member: %s", f.Name)
			}
			_, copyErr := io.Copy(io.Discard, rc)
			rc.Close()
			if copyErr != nil {
				return false, fmt.Sprintf("corrupt member: %s", f.Name)
			}
		}
		return true, ""

	case archive.FormatTAR:
		if err := probeTar(archivePath); err != nil {
			return false, err.Error()
		}
		return true, ""

	default:
		return true, ""
	}
}
