// Package tracker owns the observable pipeline state: running/paused
// flags, the current release with archive progress, aggregate counters,
// bounded log/notification/history rings, the release queue, disk metrics,
// and the next-run countdown with its one-shot manual trigger. All
// mutations are serialised behind one mutex; readers get deep snapshot
// copies.
package tracker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

// Ring bounds.
const (
	maxLogs          = 100
	maxNotifications = 50
	maxHistory       = 100
)

// ItemStatus is the lifecycle state of a queued release.
type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusProcessing ItemStatus = "processing"
	StatusCompleted  ItemStatus = "completed"
	StatusFailed     ItemStatus = "failed"
)

// QueueItem is one release in the processing queue.
type QueueItem struct {
	ID           uuid.UUID
	Name         string
	Path         string
	Status       ItemStatus
	ArchiveCount int
	AddedTime    time.Time
	Error        string
}

// DiskUsage captures one root's disk metrics.
type DiskUsage struct {
	TotalGB float64
	UsedGB  float64
	FreeGB  float64
	Percent float64
}

// SystemHealth aggregates disk metrics for the three roots plus the
// resolved archive tool version.
type SystemHealth struct {
	Downloads   DiskUsage
	Extracted   DiskUsage
	Finished    DiskUsage
	ToolVersion string
}

// HistoryEntry records one finished release.
type HistoryEntry struct {
	ReleaseName       string
	Status            ItemStatus
	ProcessedArchives int
	FailedArchives    int
	Timestamp         time.Time
	Duration          time.Duration
	ErrorMessages     []string
}

// Notification is one user-facing event message.
type Notification struct {
	ID        string
	Type      string // success, error, warning, info
	Title     string
	Message   string
	Timestamp time.Time
	Read      bool
}

// LogEntry is one line of the recent-log ring.
type LogEntry struct {
	Timestamp time.Time
	Level     string
	Message   string
}

// ReleaseProgress describes the release currently being worked on.
type ReleaseProgress struct {
	ReleaseName     string
	CurrentArchive  string
	ArchiveProgress int
	ArchiveTotal    int
	Status          string // idle, reading, extracting, moving, completed, failed
	Message         string
	Error           string
}

// Status is the full observable record. Snapshot returns deep copies of
// it; only the Tracker mutates the live instance.
type Status struct {
	IsRunning          bool
	IsPaused           bool
	CurrentOperation   string
	ProcessedCount     int
	FailedCount        int
	UnsupportedCount   int
	DeletedCount       int
	CleanupFailedCount int
	LastUpdate         time.Time
	StartTime          time.Time
	LastCompletionTime time.Time
	CurrentRelease     *ReleaseProgress
	RecentLogs         []LogEntry
	Queue              []QueueItem
	Health             SystemHealth
	Notifications      []Notification
	History            []HistoryEntry
	NextRunTime        time.Time
	RepeatMode         bool
	RepeatIntervalMin  int
}

// Tracker is the single owner of the mutable status record.
type Tracker struct {
	mu         sync.Mutex
	status     Status
	triggerNow bool
	log        *slog.Logger
	now        func() time.Time
}

// New creates a Tracker.
func New(log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		log: log.With("component", "tracker"),
		now: time.Now,
	}
}

func (t *Tracker) touch() {
	t.status.LastUpdate = t.now()
}

// Snapshot returns a deep copy of the current status.
func (t *Tracker) Snapshot() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	var snap Status
	if err := copier.CopyWithOption(&snap, &t.status, copier.Option{DeepCopy: true}); err != nil {
		// Copying a plain struct cannot realistically fail; fall back to
		// the shallow copy rather than panicking in a read path.
		snap = t.status
	}
	return snap
}

// StartProcessing marks a supervisor run as started.
func (t *Tracker) StartProcessing() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.IsRunning = true
	t.status.StartTime = t.now()
	t.status.CurrentOperation = "processing"
	t.touch()
}

// StopProcessing marks the run as finished and clears the current release.
func (t *Tracker) StopProcessing() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.IsRunning = false
	t.status.CurrentOperation = "idle"
	t.status.CurrentRelease = nil
	t.status.LastCompletionTime = t.now()
	t.touch()
}

// SetCurrentRelease switches the live progress record to a new release.
func (t *Tracker) SetCurrentRelease(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.CurrentRelease = &ReleaseProgress{ReleaseName: name, Status: "reading"}
	t.touch()
}

// UpdateReleaseStatus updates the live progress record, if one is active.
func (t *Tracker) UpdateReleaseStatus(status, message, currentArchive string, progress, total int, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.CurrentRelease == nil {
		return
	}
	t.status.CurrentRelease.Status = status
	t.status.CurrentRelease.Message = message
	t.status.CurrentRelease.CurrentArchive = currentArchive
	t.status.CurrentRelease.ArchiveProgress = progress
	t.status.CurrentRelease.ArchiveTotal = total
	t.status.CurrentRelease.Error = errMsg
	t.touch()
}

// AddLog appends to the bounded recent-log ring.
func (t *Tracker) AddLog(level, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.RecentLogs = append(t.status.RecentLogs, LogEntry{
		Timestamp: t.now(),
		Level:     level,
		Message:   message,
	})
	if len(t.status.RecentLogs) > maxLogs {
		t.status.RecentLogs = t.status.RecentLogs[len(t.status.RecentLogs)-maxLogs:]
	}
	t.touch()
}

// Counts is the aggregate counter update; negative fields are left as-is.
type Counts struct {
	Processed     int
	Failed        int
	Unsupported   int
	Deleted       int
	CleanupFailed int
}

// UpdateCounts overwrites the aggregate counters. Pass -1 to leave a
// counter untouched.
func (t *Tracker) UpdateCounts(c Counts) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c.Processed >= 0 {
		t.status.ProcessedCount = c.Processed
	}
	if c.Failed >= 0 {
		t.status.FailedCount = c.Failed
	}
	if c.Unsupported >= 0 {
		t.status.UnsupportedCount = c.Unsupported
	}
	if c.Deleted >= 0 {
		t.status.DeletedCount = c.Deleted
	}
	if c.CleanupFailed >= 0 {
		t.status.CleanupFailedCount = c.CleanupFailed
	}
	t.touch()
}

// AddToQueue registers a newly observed release.
func (t *Tracker) AddToQueue(name, path string, archiveCount int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, item := range t.status.Queue {
		if item.Name == name {
			return
		}
	}
	t.status.Queue = append(t.status.Queue, QueueItem{
		ID:           uuid.New(),
		Name:         name,
		Path:         path,
		Status:       StatusPending,
		ArchiveCount: archiveCount,
		AddedTime:    t.now(),
	})
	t.touch()
}

// UpdateQueueItem transitions a queued release's status.
func (t *Tracker) UpdateQueueItem(name string, status ItemStatus, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.status.Queue {
		if t.status.Queue[i].Name == name {
			t.status.Queue[i].Status = status
			t.status.Queue[i].Error = errMsg
			break
		}
	}
	t.touch()
}

// ClearCompletedQueueItems drops completed and failed entries.
func (t *Tracker) ClearCompletedQueueItems() {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.status.Queue[:0]
	for _, item := range t.status.Queue {
		if item.Status != StatusCompleted && item.Status != StatusFailed {
			kept = append(kept, item)
		}
	}
	t.status.Queue = kept
	t.touch()
}

// UpdateSystemHealth overwrites the health metrics.
func (t *Tracker) UpdateSystemHealth(health SystemHealth) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Health = health
	t.touch()
}

// AddToHistory appends a finished release to the bounded history ring.
func (t *Tracker) AddToHistory(entry HistoryEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry.Timestamp = t.now()
	t.status.History = append(t.status.History, entry)
	if len(t.status.History) > maxHistory {
		t.status.History = t.status.History[len(t.status.History)-maxHistory:]
	}
	t.touch()
}

// AddNotification appends to the bounded notification ring.
func (t *Tracker) AddNotification(notifType, title, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Notifications = append(t.status.Notifications, Notification{
		ID:        fmt.Sprintf("%d-%s", t.now().UnixNano(), uuid.NewString()[:8]),
		Type:      notifType,
		Title:     title,
		Message:   message,
		Timestamp: t.now(),
	})
	if len(t.status.Notifications) > maxNotifications {
		t.status.Notifications = t.status.Notifications[len(t.status.Notifications)-maxNotifications:]
	}
	t.touch()
}

// PauseProcessing raises the pause flag; the orchestrator holds before the
// next release.
func (t *Tracker) PauseProcessing() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.IsPaused = true
	t.touch()
}

// ResumeProcessing clears the pause flag.
func (t *Tracker) ResumeProcessing() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.IsPaused = false
	t.touch()
}

// IsPaused reports the pause flag.
func (t *Tracker) IsPaused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status.IsPaused
}

// SetNextRun schedules the countdown: next run = now + minutes.
func (t *Tracker) SetNextRun(minutes int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.NextRunTime = t.now().Add(time.Duration(minutes) * time.Minute)
	t.status.RepeatIntervalMin = minutes
	t.touch()
}

// ClearNextRun removes the countdown.
func (t *Tracker) ClearNextRun() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.NextRunTime = time.Time{}
	t.touch()
}

// SetRepeatMode records whether the supervisor loops and at what interval.
func (t *Tracker) SetRepeatMode(enabled bool, intervalMin int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.RepeatMode = enabled
	t.status.RepeatIntervalMin = intervalMin
	t.touch()
}

// SecondsUntilNextRun returns the countdown in whole seconds, clamped to
// zero; the second return is false when no next run is scheduled.
func (t *Tracker) SecondsUntilNextRun() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.NextRunTime.IsZero() {
		return 0, false
	}
	remaining := t.status.NextRunTime.Sub(t.now())
	if remaining < 0 {
		return 0, true
	}
	return int(remaining.Seconds()), true
}

// TriggerRunNow requests an immediate run, aborting the supervisor sleep
// at its next poll, and clears the countdown.
func (t *Tracker) TriggerRunNow() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.triggerNow = true
	t.status.NextRunTime = time.Time{}
	t.touch()
}

// ShouldTriggerNow consumes the manual trigger: it returns true exactly
// once per TriggerRunNow call.
func (t *Tracker) ShouldTriggerNow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	triggered := t.triggerNow
	t.triggerNow = false
	return triggered
}
