package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Project is a source project that owns artifact repositories.
type Project struct {
	ID          int64
	Name        string
	DisplayName string
	Description string
}

// Repository is an artifact repository inside a source project.
type Repository struct {
	ID      int64
	Name    string
	Type    int
	Project string
}

// RepoTypeMaven is the source registry's type discriminator for Maven
// repositories. Repositories of any other type are not enumerated.
const RepoTypeMaven = 3

// ArtifactRef identifies a single versioned artifact in the source registry.
// It is created by the enumerator and immutable afterwards.
type ArtifactRef struct {
	GroupID          string
	ArtifactID       string
	Version          string
	Packaging        string
	Classifier       string
	Project          string
	SourceRepository string
	SourcePath       string
	DownloadURL      string

	// Size is the content length reported by the source listing,
	// 0 when unknown ahead of transfer.
	Size int64
	// SHA256 and SHA1 are hashes reported by the source listing, empty
	// when the source does not expose them.
	SHA256 string
	SHA1   string
}

// IsSnapshot reports whether the version is a Maven snapshot.
func (r ArtifactRef) IsSnapshot() bool {
	return strings.HasSuffix(strings.ToUpper(r.Version), "-SNAPSHOT")
}

// Key returns the canonical coordinate identity used for dedup and ledger
// lookups. The source repository is deliberately excluded so the same
// coordinate enumerated under two repositories dedups to one transfer.
func (r ArtifactRef) Key() string {
	key := r.GroupID + ":" + r.ArtifactID + ":" + r.Version + ":" + r.Packaging
	if r.Classifier != "" {
		key += ":" + r.Classifier
	}
	return key
}

// Coordinate returns the short group:artifact:version form used in logs.
func (r ArtifactRef) Coordinate() string {
	return r.GroupID + ":" + r.ArtifactID + ":" + r.Version
}

// FileName returns the artifact file name in standard Maven layout.
func (r ArtifactRef) FileName() string {
	name := r.ArtifactID + "-" + r.Version
	if r.Classifier != "" {
		name += "-" + r.Classifier
	}
	return name + "." + r.Packaging
}

// RepositoryPath returns the path of the artifact below a Maven repository
// root: group/with/slashes/artifact/version/file.
func (r ArtifactRef) RepositoryPath() string {
	return strings.ReplaceAll(r.GroupID, ".", "/") + "/" + r.ArtifactID + "/" + r.Version + "/" + r.FileName()
}

// TaskState is the lifecycle state of a transfer task.
type TaskState int32

const (
	StatePending TaskState = iota
	StateDownloading
	StateHashing
	StateUploading
	StateSkipped
	StateDone
	StateFailed
	StateCancelled
)

func (s TaskState) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateDownloading:
		return "Downloading"
	case StateHashing:
		return "Hashing"
	case StateUploading:
		return "Uploading"
	case StateSkipped:
		return "Skipped"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	case StateCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("TaskState(%d)", int32(s))
	}
}

// Terminal reports whether the state is an end state.
func (s TaskState) Terminal() bool {
	switch s {
	case StateSkipped, StateDone, StateFailed, StateCancelled:
		return true
	}
	return false
}

// TransferTask carries one ArtifactRef through the pipeline. A task is owned
// exclusively by the worker processing it; only the engine enqueues and
// dequeues it.
type TransferTask struct {
	Ref ArtifactRef

	State         TaskState
	Attempts      int
	LastErrorKind ErrorKind
	LastError     error

	// ContentLength is the length discovered when the download stream was
	// opened, -1 when the source did not report one.
	ContentLength int64
	// Hash is the SHA-256 digest computed while streaming.
	Hash string

	StartedAt  time.Time
	FinishedAt time.Time
}

// NewTask wraps a ref into a pending task.
func NewTask(ref ArtifactRef) *TransferTask {
	return &TransferTask{Ref: ref, State: StatePending, ContentLength: -1}
}

// FailureDetail is one permanently failed coordinate in the run summary.
type FailureDetail struct {
	Key      string
	Kind     ErrorKind
	Attempts int
	Reason   string
}

// Summary aggregates the outcome of one engine run.
type Summary struct {
	Done       int64
	Skipped    int64
	Failed     int64
	Cancelled  int64
	Bytes      int64
	Unverified int64
	Elapsed    time.Duration
	Failures   []FailureDetail
}

// Total returns the number of tasks that reached a terminal state.
func (s Summary) Total() int64 {
	return s.Done + s.Skipped + s.Failed + s.Cancelled
}

// SuccessRate returns uploaded/(uploaded+failed) as a percentage.
func (s Summary) SuccessRate() float64 {
	processed := s.Done + s.Failed
	if processed == 0 {
		return 0
	}
	return float64(s.Done) / float64(processed) * 100
}

// SortedFailures returns the failures ordered by key for stable output.
func (s Summary) SortedFailures() []FailureDetail {
	out := make([]FailureDetail, len(s.Failures))
	copy(out, s.Failures)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Process exit codes produced by the CLI layer.
const (
	ExitOK           = 0
	ExitSetupError   = 1
	ExitWithFailures = 2
	ExitCancelled    = 3
)

// ExitCode maps a run outcome to the process exit code.
func (s Summary) ExitCode(cancelled bool) int {
	if cancelled {
		return ExitCancelled
	}
	if s.Failed > 0 {
		return ExitWithFailures
	}
	return ExitOK
}
