package pipeline

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// JobStatus represents the state of one issue in a run.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusFetching    JobStatus = "fetching"
	StatusExtracting  JobStatus = "extracting"
	StatusDownloading JobStatus = "downloading"
	StatusAssembling  JobStatus = "assembling"
	StatusConverting  JobStatus = "converting"
	StatusCompleted   JobStatus = "completed"
	StatusPartial     JobStatus = "partial"
	StatusFailed      JobStatus = "failed"
)

// Job tracks the processing of a single issue. A run processes issues one at
// a time, so a Job is only touched by the loop that owns it.
type Job struct {
	IssueID string    `json:"issue_id"`
	Status  JobStatus `json:"status"`
	Phase   string    `json:"phase"`

	// Folder is the issue directory relative to the output root.
	Folder       string `json:"folder,omitempty"`
	Snapshot     string `json:"snapshot,omitempty"`
	SnapshotHash string `json:"snapshot_hash,omitempty"`
	Report       string `json:"report,omitempty"`
	PDF          string `json:"pdf,omitempty"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Progress counts attachment outcomes and collects error text.
type Progress struct {
	LinksFound        int      `json:"links_found"`
	AttachmentsSaved  int      `json:"attachments_saved"`
	AttachmentsFailed int      `json:"attachments_failed"`
	Errors            []string `json:"errors"`
}

func NewJob(issueID string) *Job {
	now := time.Now()
	return &Job{
		IssueID:   issueID,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetStatus updates job status.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.Progress.Errors = append(j.Progress.Errors, err)
	j.UpdatedAt = time.Now()
}

// AddAttachments records download outcomes.
func (j *Job) AddAttachments(found, saved, failed int) {
	j.Progress.LinksFound += found
	j.Progress.AttachmentsSaved += saved
	j.Progress.AttachmentsFailed += failed
	j.UpdatedAt = time.Now()
}

// Succeeded reports whether a report was written.
func (j *Job) Succeeded() bool {
	return j.Status == StatusCompleted || j.Status == StatusPartial
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
