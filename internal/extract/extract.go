// Package extract drives archive extraction: a native structural pre-check
// against the bundled decoder libraries, then delegation to an external
// 7-Zip-compatible binary for RAR/7z payloads (stdlib unpacking for
// zip/tar/gzip/bzip2/xz/zstd). The external tool's percent output is parsed
// into part-level progress, and a non-zero exit triggers one retry through
// a short-named temp directory before the failure is reported.
package extract

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/cineripr/releasepipeline/internal/archive"
)

// Options configures one extraction.
type Options struct {
	// ToolPath, if set, overrides auto-detection of the external archive
	// tool binary.
	ToolPath string
	// ToolCandidates is the ordered list of binary names tried when
	// ToolPath is unset, e.g. []string{"7z", "7za", "7zr"}.
	ToolCandidates []string
	// CPUCores sizes the external tool's thread count (-mmtN).
	CPUCores int
	// PartCount is the number of volumes in the group, used to translate
	// the external tool's percent-complete output into a part index.
	PartCount int
	// OnProgress, if set, is called with (currentPart, totalParts) each
	// time the external tool reports a new percentage.
	OnProgress func(current, total int)
}

var percentRe = regexp.MustCompile(`(\d{1,3})%`)

// ResolveTool finds the external archive tool binary: an absolute
// configured path is used as-is, a relative one is resolved via PATH, and
// with nothing configured the candidate names are tried in order.
func ResolveTool(configuredPath string, candidates []string) (string, error) {
	if configuredPath != "" {
		if filepath.IsAbs(configuredPath) {
			return configuredPath, nil
		}
		if resolved, err := exec.LookPath(configuredPath); err == nil {
			return resolved, nil
		}
		if abs, err := filepath.Abs(configuredPath); err == nil {
			if _, statErr := os.Stat(abs); statErr == nil {
				return abs, nil
			}
		}
		return configuredPath, nil
	}

	for _, name := range candidates {
		if resolved, err := exec.LookPath(name); err == nil {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("archive tool not found among %v", candidates)
}

// GetVolumeCount asks the external tool for the header-declared volume
// count of a RAR archive via `<tool> l <archive>`, parsing "Volumes: N"
// from its combined output. Returns 1 when the tool reports no volume
// line at all.
func GetVolumeCount(ctx context.Context, tool, archivePath string) (int, error) {
	cmd := exec.CommandContext(ctx, tool, "l", archivePath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("list archive volumes: %w", err)
	}

	m := regexp.MustCompile(`(?i)Volumes:\s*(\d+)`).FindSubmatch(out)
	if m == nil {
		return 1, nil
	}
	n, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return 1, nil
	}
	return n, nil
}

// Extract unpacks archivePath into targetDir. RAR and 7z payloads go
// through the external tool; everything else is unpacked with the stdlib
// and klauspost/compress/ulikunitz codecs. Permissions are normalised to
// 0755/0644 afterward regardless of path taken.
func Extract(ctx context.Context, archivePath, targetDir string, opts Options) error {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("create target dir: %w", err)
	}

	format := archive.Classify(archivePath).Format
	var err error
	switch format {
	case archive.FormatRAR, archive.FormatSevenZip:
		err = extractWithExternalTool(ctx, archivePath, targetDir, opts)
	default:
		err = extractWithStdlib(archivePath, targetDir)
	}
	if err != nil {
		return err
	}

	FixPermissions(targetDir)
	return nil
}

// FixPermissions walks dir setting 0755 on directories and 0644 on files,
// tolerating individual chmod failures.
func FixPermissions(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			_ = os.Chmod(path, 0o755)
			return nil
		}
		_ = os.Chmod(path, 0o644)
		return nil
	})
}

func winLongPath(p string) string {
	if runtime.GOOS != "windows" {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		abs = p
	}
	if strings.HasPrefix(abs, `\\?\`) {
		return abs
	}
	if strings.HasPrefix(abs, `\\`) {
		return `\\?\UNC` + abs[1:]
	}
	return `\\?\` + abs
}

func extractWithExternalTool(ctx context.Context, archivePath, targetDir string, opts Options) error {
	tool, err := ResolveTool(opts.ToolPath, opts.ToolCandidates)
	if err != nil {
		return fmt.Errorf("resolve archive tool: %w", err)
	}

	cores := opts.CPUCores
	if cores <= 0 {
		cores = 2
	}

	args := []string{
		"x",
		winLongPath(archivePath),
		"-o" + winLongPath(targetDir),
		"-y",
		fmt.Sprintf("-mmt%d", cores),
		"-bsp1", "-bso1", "-bb1",
		"-x!*.sfv",
	}

	if err := runTool(ctx, tool, args, opts); err == nil {
		return nil
	} else if fallbackErr := extractToTempThenMove(ctx, tool, archivePath, targetDir, opts); fallbackErr == nil {
		return nil
	} else {
		return fmt.Errorf("archive tool extraction failed: %w", err)
	}
}

func runTool(ctx context.Context, tool string, args []string, opts Options) error {
	cmd := exec.CommandContext(ctx, tool, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return err
	}

	lastPercent := -1
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		m := percentRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		percent, convErr := strconv.Atoi(m[1])
		if convErr != nil {
			continue
		}
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		if percent == lastPercent {
			continue
		}
		lastPercent = percent

		if opts.OnProgress != nil && opts.PartCount > 0 {
			current := int(float64(percent) / 100 * float64(opts.PartCount))
			if current < 1 {
				current = 1
			}
			if current > opts.PartCount {
				current = opts.PartCount
			}
			opts.OnProgress(current, opts.PartCount)
		}
	}

	return cmd.Wait()
}

// extractToTempThenMove re-runs the tool into a short temp path and moves
// the results into targetDir, the fallback used when the first attempt
// fails (commonly a Windows MAX_PATH issue despite the long-path prefix).
func extractToTempThenMove(ctx context.Context, tool, archivePath, targetDir string, opts Options) error {
	tmpDir, err := os.MkdirTemp("", "releasepipeline-extract-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	cores := opts.CPUCores
	if cores <= 0 {
		cores = 2
	}
	args := []string{
		"x",
		winLongPath(archivePath),
		"-o" + tmpDir,
		"-y",
		fmt.Sprintf("-mmt%d", cores),
		"-bsp1", "-bso1", "-bb1",
		"-x!*.sfv",
	}
	if err := exec.CommandContext(ctx, tool, args...).Run(); err != nil {
		return err
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return err
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		removeUnwanted(filepath.Join(tmpDir, entry.Name()))
	}
	entries, err = os.ReadDir(tmpDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		src := filepath.Join(tmpDir, entry.Name())
		dst := filepath.Join(targetDir, entry.Name())
		if err := os.Rename(src, dst); err != nil {
			_ = copyTree(src, dst)
		}
	}
	return nil
}

func removeUnwanted(root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if unwantedExtractedSuffixes[strings.ToLower(filepath.Ext(path))] {
			_ = os.Remove(path)
		}
		return nil
	})
}

var unwantedExtractedSuffixes = map[string]bool{".sfv": true}

func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return err
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := copyTree(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
				return err
			}
		}
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
