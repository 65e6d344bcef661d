// Package progress holds the submission pipeline's stage and per-file upload
// progress for UI consumption. It is a pure state holder: two producers (real
// completion events and simulated ticks) feed it, and the real event always
// takes precedence.
package progress

import "sync"

// Stage enumerates the submission pipeline stages.
type Stage string

const (
	StageIdle        Stage = "idle"
	StagePreparing   Stage = "preparing"
	StageCompressing Stage = "compressing"
	StageUploading   Stage = "uploading"
	StageFinalizing  Stage = "finalizing"
	StageCompleted   Stage = "completed"
	StageError       Stage = "error"
)

// FileState is the per-file upload lifecycle.
type FileState string

const (
	FilePending   FileState = "pending"
	FileUploading FileState = "uploading"
	FileCompleted FileState = "completed"
	FileError     FileState = "error"
)

// simulatedCap keeps simulated progress visibly short of done.
const simulatedCap = 95

// FileProgress is one file's observable upload state.
type FileProgress struct {
	Name    string    `json:"name"`
	Percent int       `json:"percent"`
	State   FileState `json:"state"`
	Message string    `json:"message,omitempty"`
}

// Snapshot is an immutable copy of the tracker state.
type Snapshot struct {
	Stage   Stage          `json:"stage"`
	Message string         `json:"message,omitempty"`
	Files   []FileProgress `json:"files,omitempty"`
}

// Tracker is safe for concurrent use by the pipeline goroutines.
type Tracker struct {
	mu      sync.Mutex
	stage   Stage
	message string
	order   []string
	files   map[string]*FileProgress
	subs    []chan Snapshot
}

func NewTracker() *Tracker {
	return &Tracker{
		stage: StageIdle,
		files: make(map[string]*FileProgress),
	}
}

// SetStage moves the pipeline to the given stage. Error and completed are
// absorbing: once reached, only Reset leaves them.
func (t *Tracker) SetStage(stage Stage) {
	t.mu.Lock()
	if t.stage == StageError || t.stage == StageCompleted {
		t.mu.Unlock()
		return
	}
	t.stage = stage
	t.mu.Unlock()
	t.publish()
}

// Fail moves to the error stage with a human-readable message.
func (t *Tracker) Fail(message string) {
	t.mu.Lock()
	if t.stage == StageCompleted {
		t.mu.Unlock()
		return
	}
	t.stage = StageError
	t.message = message
	t.mu.Unlock()
	t.publish()
}

// SetMessage records a non-fatal notice, e.g. the compression savings line.
func (t *Tracker) SetMessage(message string) {
	t.mu.Lock()
	t.message = message
	t.mu.Unlock()
	t.publish()
}

// InitFiles registers the files about to upload, all pending at zero.
func (t *Tracker) InitFiles(names []string) {
	t.mu.Lock()
	t.order = append([]string(nil), names...)
	t.files = make(map[string]*FileProgress, len(names))
	for _, name := range names {
		t.files[name] = &FileProgress{Name: name, State: FilePending}
	}
	t.mu.Unlock()
	t.publish()
}

// Advance raises a file's simulated progress. Values never decrease and are
// capped below completion; once a real result landed, ticks are ignored.
func (t *Tracker) Advance(name string, percent int) {
	t.mu.Lock()
	fp, ok := t.files[name]
	if !ok || fp.State == FileCompleted || fp.State == FileError {
		t.mu.Unlock()
		return
	}
	if percent > simulatedCap {
		percent = simulatedCap
	}
	if percent > fp.Percent {
		fp.Percent = percent
		fp.State = FileUploading
	}
	t.mu.Unlock()
	t.publish()
}

// CompleteFile snaps a file to 100 on the real upload result.
func (t *Tracker) CompleteFile(name string) {
	t.mu.Lock()
	if fp, ok := t.files[name]; ok {
		fp.Percent = 100
		fp.State = FileCompleted
		fp.Message = ""
	}
	t.mu.Unlock()
	t.publish()
}

// FailFile resets a file to zero with the real failure message.
func (t *Tracker) FailFile(name, message string) {
	t.mu.Lock()
	if fp, ok := t.files[name]; ok {
		fp.Percent = 0
		fp.State = FileError
		fp.Message = message
	}
	t.mu.Unlock()
	t.publish()
}

// Reset returns the tracker to idle for a fresh pipeline run.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.stage = StageIdle
	t.message = ""
	t.order = nil
	t.files = make(map[string]*FileProgress)
	t.mu.Unlock()
	t.publish()
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	snap := Snapshot{Stage: t.stage, Message: t.message}
	for _, name := range t.order {
		if fp := t.files[name]; fp != nil {
			snap.Files = append(snap.Files, *fp)
		}
	}
	return snap
}

// Subscribe returns a channel receiving state snapshots. Slow consumers miss
// intermediate updates rather than blocking the pipeline.
func (t *Tracker) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 16)
	t.mu.Lock()
	t.subs = append(t.subs, ch)
	t.mu.Unlock()
	return ch
}

func (t *Tracker) publish() {
	t.mu.Lock()
	snap := t.snapshotLocked()
	subs := t.subs
	t.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
