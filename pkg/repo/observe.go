package repo

import (
	"fmt"
	"path/filepath"

	"github.com/redisun/ctx/pkg/graph"
	"github.com/redisun/ctx/pkg/object"
)

// normalizePath makes a path repository-relative and slash-separated,
// the form FileVersion.FileID and NodeId{Kind: NodeFile} both key on.
func normalizePath(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

// ObserveFileRead records that a session looked at a file without
// capturing what it contained: a small marker blob naming the path is
// written and buffered, so the read still occupies a place in the
// step's artifact list even though there is no content to replay.
// ObserveFileReadWithContent is the counterpart that captures the
// content itself.
func (r *Repo) ObserveFileRead(path string, now int64) (object.ID, error) {
	if r.session == nil {
		return "", ErrNoActiveSession
	}
	norm := normalizePath(path)
	if r.ignore != nil && r.ignore.matches(norm) {
		return "", ErrPathIgnored
	}
	marker := fmt.Sprintf("read %s\n", norm)
	blobID, err := r.Objects.PutBlob([]byte(marker))
	if err != nil {
		return "", fmt.Errorf("observe file read: %w", err)
	}
	r.session.Buffer(blobID)
	return blobID, nil
}

// ObserveFileReadWithContent records that a session read a file and
// captures its exact content as a blob, buffered as a plain artifact
// rather than a FileVersion: a read is not a new version in history,
// but the captured bytes let a later step reconstruct exactly what the
// agent saw.
func (r *Repo) ObserveFileReadWithContent(path string, content []byte, now int64) (object.ID, error) {
	if r.session == nil {
		return "", ErrNoActiveSession
	}
	norm := normalizePath(path)
	if r.ignore != nil && r.ignore.matches(norm) {
		return "", ErrPathIgnored
	}
	if err := r.checkStepBudget(int64(len(content))); err != nil {
		return "", err
	}
	blobID, err := r.Objects.PutBlob(content)
	if err != nil {
		return "", fmt.Errorf("observe file read with content: %w", err)
	}
	r.session.Buffer(blobID)
	r.session.RecordFileObservation(int64(len(content)))
	return blobID, nil
}

// ObserveFileWrite stores content as a blob, wraps it in a FileVersion
// keyed by the file's normalized path, and buffers both into the
// active session. Identical content previously observed (by any
// session) reuses the existing blob, since the object store is
// content-addressed.
func (r *Repo) ObserveFileWrite(path string, content []byte, now int64) (object.ID, error) {
	if r.session == nil {
		return "", ErrNoActiveSession
	}
	norm := normalizePath(path)
	if r.ignore != nil && r.ignore.matches(norm) {
		return "", ErrPathIgnored
	}
	if err := r.checkStepBudget(int64(len(content))); err != nil {
		return "", err
	}
	blobID, err := r.Objects.PutBlob(content)
	if err != nil {
		return "", fmt.Errorf("observe file write: %w", err)
	}
	fv := &object.FileVersion{
		FileID:    norm,
		BlobID:    blobID,
		ByteCount: int64(len(content)),
		LineCount: countLines(content),
	}
	fvID, err := r.Objects.PutFileVersion(fv)
	if err != nil {
		return "", fmt.Errorf("observe file write: %w", err)
	}
	r.session.Buffer(fvID)
	r.session.RecordFileObservation(int64(len(content)))
	return fvID, nil
}

// checkStepBudget rejects a content-bearing file observation that
// would push the active session's current step past
// ingestion.max_files_per_step or ingestion.max_bytes_per_step. A cap
// of 0 disables that particular budget.
func (r *Repo) checkStepBudget(size int64) error {
	files, bytes := r.session.StepBudgetUsage()
	maxFiles := r.Config.Ingestion.MaxFilesPerStep
	maxBytes := r.Config.Ingestion.MaxBytesPerStep
	if maxFiles > 0 && files+1 > maxFiles {
		return &BudgetExceededError{Op: "observe_file", Cap: maxFiles, Err: fmt.Errorf("step already holds %d files", files)}
	}
	if maxBytes > 0 && bytes+size > maxBytes {
		return &BudgetExceededError{Op: "observe_file", Cap: int(maxBytes), Err: fmt.Errorf("step already holds %d bytes", bytes)}
	}
	return nil
}

// countLines returns -1 for content containing a NUL byte (treated as
// binary, matching FileVersion.LineCount's "not computed" convention).
func countLines(content []byte) int64 {
	for _, b := range content {
		if b == 0 {
			return -1
		}
	}
	if len(content) == 0 {
		return 0
	}
	n := int64(1)
	for _, b := range content {
		if b == '\n' {
			n++
		}
	}
	if content[len(content)-1] == '\n' {
		n--
	}
	return n
}

// ObserveCommand records a shell command's output as a blob and
// buffers it into the active session, for later narrative retrieval.
func (r *Repo) ObserveCommand(cmd string, output []byte, exitCode int, now int64) (object.ID, error) {
	if r.session == nil {
		return "", ErrNoActiveSession
	}
	record := fmt.Sprintf("$ %s\n(exit %d)\n\n%s", cmd, exitCode, output)
	blobID, err := r.Objects.PutBlob([]byte(record))
	if err != nil {
		return "", fmt.Errorf("observe command: %w", err)
	}
	r.session.Buffer(blobID)
	return blobID, nil
}

// ObserveNote buffers a freeform note blob and registers it as a
// narrative ref with role Work, the catch-all stream for agent
// commentary that isn't a plan or decision.
func (r *Repo) ObserveNote(text string, now int64) (object.ID, error) {
	return r.observeNarrative(text, object.NarrativeWork, "work")
}

// ObservePlan buffers a plan blob and registers it as a narrative ref
// with role Task.
func (r *Repo) ObservePlan(text string, now int64) (object.ID, error) {
	return r.observeNarrative(text, object.NarrativeTask, "task")
}

func (r *Repo) observeNarrative(text string, role object.NarrativeRole, dir string) (object.ID, error) {
	if r.session == nil {
		return "", ErrNoActiveSession
	}
	blobID, err := r.Objects.PutBlob([]byte(text))
	if err != nil {
		return "", fmt.Errorf("observe narrative: %w", err)
	}
	r.session.BufferNarrativeRef(object.NarrativeRef{
		Path:   fmt.Sprintf("%s/%s.md", dir, r.session.ID()),
		Stream: r.session.ID(),
		Role:   role,
		BlobID: blobID,
	})
	return blobID, nil
}

// ObserveRelations runs proposed edges through the configured ingress
// policy, writes the surviving set as one EdgeBatch, and buffers it
// into the active session. A step whose surviving edges exceed
// Config.Ingestion.MaxEdgesPerStep fails with BudgetExceededError
// instead of silently truncating.
func (r *Repo) ObserveRelations(edges []graph.Edge, now int64) (object.ID, error) {
	if r.session == nil {
		return "", ErrNoActiveSession
	}
	policy := graph.Policy{
		MinConfidence:   graph.ConfidenceMedium,
		MaxEdgesPerStep: r.Config.Ingestion.MaxEdgesPerStep,
	}
	kept, err := policy.Apply(edges, nil)
	if err != nil {
		return "", &BudgetExceededError{Op: "observe_relations", Cap: policy.MaxEdgesPerStep, Err: err}
	}
	if len(kept) == 0 {
		return "", nil
	}
	batchID, err := graph.PutEdgeBatch(r.Objects, &graph.EdgeBatch{Edges: kept, CreatedAt: now})
	if err != nil {
		return "", fmt.Errorf("observe relations: %w", err)
	}
	r.session.Buffer(batchID)
	return batchID, nil
}
