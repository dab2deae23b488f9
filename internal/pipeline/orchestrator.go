package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/cineripr/releasepipeline/internal/archive"
	"github.com/cineripr/releasepipeline/internal/config"
	pipeerrors "github.com/cineripr/releasepipeline/internal/errors"
	"github.com/cineripr/releasepipeline/internal/fileops"
	"github.com/cineripr/releasepipeline/internal/library"
	"github.com/cineripr/releasepipeline/internal/logging"
	"github.com/cineripr/releasepipeline/internal/metadata"
	"github.com/cineripr/releasepipeline/internal/rename"
	"github.com/cineripr/releasepipeline/internal/settings"
	"github.com/cineripr/releasepipeline/internal/tracker"
	"github.com/cineripr/releasepipeline/internal/walker"
)

// Orchestrator drives every release found under the configured download
// roots through the read - validate - extract - rename - relocate -
// finalise state machine.
type Orchestrator struct {
	configGetter config.ConfigGetter
	settings     *settings.Store
	tracker      *tracker.Tracker
	ops          *fileops.Operator
	renamer      *rename.Renamer
	metaStep     *metadata.Step
	catalog      *metadata.Catalog
	extractor    Extractor // nil: built per run from config and settings
	log          *slog.Logger
}

// NewOrchestrator wires the orchestrator's collaborators.
func NewOrchestrator(
	configGetter config.ConfigGetter,
	store *settings.Store,
	track *tracker.Tracker,
	ops *fileops.Operator,
	renamer *rename.Renamer,
	metaStep *metadata.Step,
	catalog *metadata.Catalog,
	log *slog.Logger,
) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		configGetter: configGetter,
		settings:     store,
		tracker:      track,
		ops:          ops,
		renamer:      renamer,
		metaStep:     metaStep,
		catalog:      catalog,
		log:          log.With("component", "orchestrator"),
	}
}

// SetExtractor overrides the per-run extraction driver; used by tests.
func (o *Orchestrator) SetExtractor(e Extractor) { o.extractor = e }

// runSettings is the per-run snapshot of the runtime-mutable knobs.
type runSettings struct {
	demoMode       bool
	policy         walker.Policy
	cpuCores       int
	stabilityHours int
	parallel       int
}

func (o *Orchestrator) loadRunSettings() runSettings {
	rs := runSettings{
		demoMode: o.settings.Bool("demo_mode"),
		policy: walker.Policy{
			IncludeSample: o.settings.Bool("include_sample"),
			IncludeSub:    o.settings.Bool("include_sub"),
			IncludeOther:  o.settings.Bool("include_other"),
		},
		cpuCores:       o.settings.Int("cpu_cores_per_extraction"),
		stabilityHours: o.settings.Int("file_stability_hours"),
		parallel:       o.settings.Int("parallel_extractions"),
	}
	if rs.cpuCores < 1 {
		rs.cpuCores = 2
	}
	if rs.stabilityHours < 1 {
		rs.stabilityHours = 24
	}
	if rs.parallel < 1 {
		rs.parallel = 1
	}
	return rs
}

// ProcessDownloads runs one full pass over every download root. Releases
// are processed one at a time unless parallel_extractions raises the
// worker count; each release is always owned by exactly one worker.
func (o *Orchestrator) ProcessDownloads(ctx context.Context) Result {
	cfg := o.configGetter()
	rs := o.loadRunSettings()

	extractor := o.extractor
	if extractor == nil {
		extractor = NewToolExtractor(cfg.Tool.Path, cfg.Tool.Candidates, rs.cpuCores)
	}

	var result Result
	for _, downloadRoot := range cfg.Paths.DownloadRoots {
		releases := o.discoverReleases(downloadRoot)

		if rs.parallel <= 1 {
			for _, release := range releases {
				if ctx.Err() != nil {
					return result
				}
				o.holdWhilePaused(ctx)
				result.Merge(o.processRelease(ctx, cfg, rs, extractor, release))
			}
			continue
		}

		workers := pool.New().WithMaxGoroutines(rs.parallel)
		results := make([]Result, len(releases))
		for i, release := range releases {
			workers.Go(func() {
				if ctx.Err() != nil {
					return
				}
				o.holdWhilePaused(ctx)
				results[i] = o.processRelease(ctx, cfg, rs, extractor, release)
			})
		}
		workers.Wait()
		for _, r := range results {
			result.Merge(r)
		}
	}
	return result
}

// discoverReleases lists the immediate subdirectories of a download root,
// sorted by lowercase name.
func (o *Orchestrator) discoverReleases(downloadRoot string) []Release {
	entries, err := os.ReadDir(downloadRoot)
	if err != nil {
		o.log.Error("Unable to list download root", "root", downloadRoot, "error", err)
		return nil
	}

	var releases []Release
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		releases = append(releases, Release{
			ID:   uuid.New(),
			Name: entry.Name(),
			Path: filepath.Join(downloadRoot, entry.Name()),
			Root: downloadRoot,
		})
	}
	sort.Slice(releases, func(i, j int) bool {
		return strings.ToLower(releases[i].Name) < strings.ToLower(releases[j].Name)
	})
	return releases
}

// holdWhilePaused blocks before the next release while the pause flag is
// raised - never mid-archive.
func (o *Orchestrator) holdWhilePaused(ctx context.Context) {
	for o.tracker.IsPaused() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// processRelease runs one release through the full state machine.
func (o *Orchestrator) processRelease(ctx context.Context, cfg *config.Config, rs runSettings, extractor Extractor, release Release) Result {
	ctx = logging.ReleaseContext(ctx, release.ID.String(), release.Name)
	log := o.log.With("release", release.Name, "release_id", release.ID.String())
	outcome := &releaseOutcome{startedAt: time.Now()}

	o.tracker.AddToQueue(release.Name, release.Path, 0)
	o.tracker.SetCurrentRelease(release.Name)
	o.tracker.UpdateReleaseStatus("reading", "Reading directories for "+release.Name, "", 0, 0, "")
	log.Info("Reading directories", "path", release.Path)

	// The observer grows the denominator as entries are discovered so the
	// (k/N) progress is exact, never guessed.
	seen := 0
	contexts := walker.Walk(release.Path, release.Root, rs.policy, walker.ObserverFunc(func(path string) {
		seen++
		o.tracker.UpdateReleaseStatus("reading", "Reading "+filepath.Base(path), "", seen, seen, "")
	}))
	log.Info("Found directories", "count", seen, "contexts", len(contexts))

	o.tracker.UpdateQueueItem(release.Name, tracker.StatusProcessing, "")

	for i, wctx := range contexts {
		if ctx.Err() != nil {
			break
		}
		isMain := i == len(contexts)-1
		o.processContext(ctx, cfg, rs, extractor, release, wctx, isMain, outcome, log)
		if outcome.releaseFailed {
			break
		}
	}

	status := tracker.StatusCompleted
	switch {
	case outcome.releaseFailed:
		status = tracker.StatusFailed
		o.tracker.UpdateQueueItem(release.Name, status, "Extraction failed")
	case outcome.processed == 0 && len(outcome.failed) > 0:
		// Nothing extracted and at least one group rejected: the release
		// stays in the downloads for the next pass but is surfaced failed.
		status = tracker.StatusFailed
		o.tracker.UpdateQueueItem(release.Name, status,
			fmt.Sprintf("%d archive group(s) failed validation or extraction", len(outcome.failed)))
	default:
		o.finalizeRelease(ctx, rs, release, outcome, log)
		o.tracker.UpdateQueueItem(release.Name, status, "")
	}
	o.tracker.AddToHistory(tracker.HistoryEntry{
		ReleaseName:       release.Name,
		Status:            status,
		ProcessedArchives: outcome.processed,
		FailedArchives:    len(outcome.failed),
		Duration:          time.Since(outcome.startedAt),
		ErrorMessages:     outcome.failed,
	})

	return Result{
		Processed:   outcome.processed,
		Failed:      outcome.failed,
		Unsupported: outcome.unsupported,
		Messages:    outcome.messages,
	}
}

// splitEntries separates a context directory into archive members and
// companion files.
func splitEntries(dir string) (archives []string, companions []string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil
	}
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		full := filepath.Join(dir, entry.Name())
		if archive.IsSupportedArchive(entry.Name()) {
			archives = append(archives, full)
		} else {
			companions = append(companions, full)
		}
	}
	return archives, companions
}

// processContext handles one walker context: archive extraction, or the
// copy-only fallback for directories holding loose files.
func (o *Orchestrator) processContext(ctx context.Context, cfg *config.Config, rs runSettings, extractor Extractor, release Release, wctx walker.Context, isMain bool, outcome *releaseOutcome, log *slog.Logger) {
	archives, companions := splitEntries(wctx.Source)
	outcome.unsupported = append(outcome.unsupported, companions...)
	targetDir := filepath.Join(cfg.Paths.ExtractedRoot, wctx.TargetRel)

	if len(archives) == 0 {
		o.copyOnlyContext(rs, wctx, targetDir, outcome, log)
		return
	}

	groups := archive.BuildGroups(archives)
	if len(groups) == 0 {
		log.Error("No valid archive groups found - likely incomplete download", "dir", wctx.Source)
		outcome.failed = append(outcome.failed, wctx.Source)
		return
	}

	totalParts := 0
	for _, g := range groups {
		totalParts += g.PartCount()
	}
	log.Info("Processing archives", "groups", len(groups), "parts", totalParts, "dir", filepath.Base(wctx.Source))

	// Phase 1: validate every group before touching the first one.
	var toExtract []archive.Group
	for _, group := range groups {
		ok, reason := archive.Validate(group, true)
		if !ok {
			log.Warn("Skipping archive group",
				"primary", filepath.Base(group.Primary),
				"error", pipeerrors.NewPrecheckFailed(reason))
			outcome.failed = append(outcome.failed, group.Primary)
			continue
		}

		if !wctx.ShouldExtract {
			log.Info("Skipping extraction (disabled in configuration)", "primary", filepath.Base(group.Primary))
			continue
		}

		if rs.demoMode {
			log.Info("Demo: finished reading", "primary", filepath.Base(group.Primary))
			toExtract = append(toExtract, group)
			continue
		}

		// Multi-volume RAR families are probed against the header's
		// declared volume count before extraction.
		if strings.HasSuffix(strings.ToLower(group.Key), ".rar") {
			if count, err := extractor.VolumeCount(ctx, group.Primary); err == nil && count > 1 && group.PartCount() < count {
				log.Warn("Skipping archive group",
					"primary", filepath.Base(group.Primary),
					"reason", fmt.Sprintf("found %d volume(s) but archive requires %d - download may still be in progress", group.PartCount(), count))
				outcome.failed = append(outcome.failed, group.Primary)
				continue
			}
		}

		if ok, reason := extractor.CanExtract(group.Primary); !ok {
			log.Error("Pre-extraction check failed", "primary", filepath.Base(group.Primary), "reason", reason)
			outcome.failed = append(outcome.failed, group.Primary)
			continue
		}

		toExtract = append(toExtract, group)
	}

	// Phase 2: extract.
	for _, group := range toExtract {
		if rs.demoMode {
			outcome.messages = append(outcome.messages, "Demo: would extract "+filepath.Base(group.Primary))
			outcome.processed++
			continue
		}

		preExisting := false
		if info, err := os.Stat(targetDir); err == nil && info.IsDir() {
			preExisting = true
		}

		finalDir, err := o.extractGroup(ctx, cfg, extractor, wctx, group, targetDir, log)
		if err != nil {
			log.Error("Extract failed", "primary", filepath.Base(group.Primary), "error", err)
			outcome.failed = append(outcome.failed, group.Primary)
			o.ops.CleanupFailedExtractionDir(targetDir, preExisting)

			if isMain {
				log.Error("Main archive extraction failed - cleaning up all extracted content for this release")
				targets := outcome.extractedTargets
				if !preExisting {
					targets = append(targets, targetDir)
				}
				o.ops.RollbackExtractedTargets(targets)
				o.ops.RemoveEmptyTree(targetDir, cfg.Paths.ExtractedRoot)
				outcome.releaseFailed = true
				return
			}
			continue
		}

		outcome.extractedTargets = append(outcome.extractedTargets, finalDir)
		outcome.processed++
		outcome.messages = append(outcome.messages,
			fmt.Sprintf("Extracted %s -> %s", filepath.Base(group.Primary), filepath.Base(targetDir)))
		outcome.archiveSources = append(outcome.archiveSources, archiveMove{
			members:   memberPaths(group),
			sourceDir: wctx.Source,
		})
	}
}

func memberPaths(group archive.Group) []string {
	paths := make([]string, 0, len(group.Members))
	for _, m := range group.Members {
		paths = append(paths, m.Path)
	}
	return paths
}

// extractGroup runs one archive group through extraction, flattening,
// renaming, metadata, and relocation into the library root. It returns the
// directory the payload ended up in.
func (o *Orchestrator) extractGroup(ctx context.Context, cfg *config.Config, extractor Extractor, wctx walker.Context, group archive.Group, targetDir string, log *slog.Logger) (string, error) {
	o.ops.CopyCompanionFilesToExtracted(wctx.Source, targetDir)
	preNames := o.ops.TopLevelNames(targetDir)

	o.tracker.UpdateReleaseStatus("extracting", "Extracting "+filepath.Base(group.Primary),
		filepath.Base(group.Primary), 0, group.PartCount(), "")

	err := extractor.Extract(ctx, group.Primary, targetDir, group.PartCount(), func(current, total int) {
		o.tracker.UpdateReleaseStatus("extracting",
			fmt.Sprintf("Extracting %s (%d/%d)", filepath.Base(group.Primary), current, total),
			filepath.Base(group.Primary), current, total, "")
	})
	if err != nil {
		return targetDir, err
	}

	o.ops.FlattenSingleSubdir(targetDir)
	o.ops.FlattenNewTopLevelDirs(targetDir, preNames)
	o.ops.FlattenEpisodeLikeDirs(targetDir)

	return o.renameAndRelocate(ctx, cfg, targetDir, log), nil
}

// renameAndRelocate applies the metadata step, the naming patterns, and
// the move into the final library root, returning the directory the
// payload now lives in. Failures here never fail the release.
func (o *Orchestrator) renameAndRelocate(ctx context.Context, cfg *config.Config, targetDir string, log *slog.Logger) string {
	// Flattened TV targets are the season folder itself and special
	// subdirectories keep their canonical names; both stay in the staging
	// tree untouched.
	base := filepath.Base(targetDir)
	if library.IsSeasonDirectory(base) || library.NormalizeSpecialSubdir(base) != "" {
		return targetDir
	}

	var record metadata.Record
	isTV := false
	if o.metaStep != nil {
		record, isTV = o.metaStep.Resolve(ctx, targetDir)
	}
	if !record.HasTitle() || !cfg.Rename.RenameEnabled() {
		return targetDir
	}

	ok, renamedDir := o.renamer.FolderAndFiles(targetDir, cfg.Rename.FolderPattern, cfg.Rename.FilePattern, record)
	if !ok {
		return renamedDir
	}

	libraryRoot := cfg.Paths.MovieRoot
	if isTV {
		libraryRoot = cfg.Paths.TVShowRoot
	}
	if libraryRoot == "" {
		return renamedDir
	}

	moved, err := o.ops.MoveToFinalDestination(renamedDir, libraryRoot)
	if err != nil {
		log.Warn("Failed to move renamed folder into library root", "dir", renamedDir, "error", err)
		return renamedDir
	}
	log.Info("Moved into library", "dir", moved)
	if o.catalog != nil {
		o.catalog.TriggerDownloadScan(ctx, isTV)
	}
	return moved
}

// copyOnlyContext handles a context without archives: complete loose files
// are copied into staging so subtitle-only episodes are not lost.
func (o *Orchestrator) copyOnlyContext(rs runSettings, wctx walker.Context, targetDir string, outcome *releaseOutcome, log *slog.Logger) {
	if rs.demoMode {
		return
	}

	entries, err := os.ReadDir(wctx.Source)
	if err != nil {
		return
	}

	var toCopy []string
	for _, entry := range entries {
		if entry.IsDir() || strings.EqualFold(filepath.Ext(entry.Name()), ".sfv") {
			continue
		}
		full := filepath.Join(wctx.Source, entry.Name())
		if !o.ops.IsFileComplete(full, o.settings, rs.stabilityHours) {
			log.Info("Skipping file",
				"file", entry.Name(),
				"error", pipeerrors.NewIncomplete(entry.Name()+" appears to be still downloading"))
			continue
		}
		toCopy = append(toCopy, full)
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		log.Error("Cannot create staging directory", "dir", targetDir, "error", err)
		return
	}
	outcome.extractedTargets = append(outcome.extractedTargets, targetDir)

	if len(toCopy) == 0 {
		return
	}
	log.Info("Copying loose files", "count", len(toCopy), "from", filepath.Base(wctx.Source))
	sort.Slice(toCopy, func(i, j int) bool {
		return strings.ToLower(filepath.Base(toCopy[i])) < strings.ToLower(filepath.Base(toCopy[j]))
	})
	for _, src := range toCopy {
		if err := o.ops.CopyFile(src, filepath.Join(targetDir, filepath.Base(src))); err != nil {
			log.Warn("Copy failed", "file", src, "error", err)
		}
	}
	outcome.copySources = append(outcome.copySources, wctx.Source)
}

// finalizeRelease mirrors every processed archive member and companion
// file into the finished tree and collapses now-empty directories up to
// the download root.
func (o *Orchestrator) finalizeRelease(ctx context.Context, rs runSettings, release Release, outcome *releaseOutcome, log *slog.Logger) {
	cfg := o.configGetter()
	if rs.demoMode {
		if len(outcome.archiveSources) > 0 {
			log.Info("Demo: would move archives to finished", "groups", len(outcome.archiveSources))
		}
		return
	}
	if len(outcome.archiveSources) == 0 && len(outcome.copySources) == 0 {
		return
	}

	totalFiles := 0
	for _, mv := range outcome.archiveSources {
		totalFiles += len(mv.members)
	}
	if totalFiles > 0 {
		log.Info("All extractions complete - moving archives to finished",
			"groups", len(outcome.archiveSources), "files", totalFiles)
	}

	moved := 0
	for _, mv := range outcome.archiveSources {
		if ctx.Err() != nil {
			return
		}
		releaseRel, err := filepath.Rel(release.Root, mv.sourceDir)
		if err != nil {
			releaseRel = filepath.Base(mv.sourceDir)
		}
		destinationDir := filepath.Join(cfg.Paths.FinishedRoot, releaseRel)

		for _, member := range mv.members {
			o.tracker.UpdateReleaseStatus("moving",
				fmt.Sprintf("Moving %s", filepath.Base(member)), "", moved, totalFiles, "")
			dst := o.ops.EnsureUniqueDestination(filepath.Join(destinationDir, filepath.Base(member)))
			if err := o.ops.MoveFile(member, dst); err != nil {
				log.Error("Failed to move archive to finished", "file", member, "error", err)
				outcome.failed = append(outcome.failed, member)
				continue
			}
			moved++
		}
	}
	if moved > 0 {
		log.Info("Finished moving archives", "files", moved)
	}

	// Companion files and copy-only sources mirror 1:1 into finished.
	sources := make([]string, 0, len(outcome.archiveSources)+len(outcome.copySources))
	for _, mv := range outcome.archiveSources {
		sources = append(sources, mv.sourceDir)
	}
	sources = append(sources, outcome.copySources...)

	for _, sourceDir := range sources {
		o.ops.MoveReleaseTreeToFinished(sourceDir, cfg.Paths.FinishedRoot, release.Root)
		o.ops.MoveRelatedEpisodeArtifacts(sourceDir, cfg.Paths.FinishedRoot, release.Root)
		o.ops.RemoveEmptySubdirs(sourceDir)
		o.ops.RemoveEmptyTree(sourceDir, release.Root)
	}

	o.ops.RemoveEmptyTree(release.Path, release.Root)
}
