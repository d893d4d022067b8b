package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dgallion1/issuedoc/internal/extract"
	"github.com/dgallion1/issuedoc/internal/fetch"
	"github.com/dgallion1/issuedoc/internal/report"
)

// Processor handles a single issue job.
type Processor interface {
	Process(ctx context.Context, job *Job) error
}

// Orchestrator drives a run: issues are processed one at a time in list
// order and a failed issue never stops the ones after it.
type Orchestrator struct {
	proc Processor
	log  *slog.Logger
}

func NewOrchestrator(proc Processor, log *slog.Logger) *Orchestrator {
	return &Orchestrator{proc: proc, log: log}
}

// Run processes ids and returns a summary of every job. The error is
// non-nil only when ctx ends the run early; the summary then covers the
// issues reached so far.
func (o *Orchestrator) Run(ctx context.Context, ids []string) (*Summary, error) {
	sum := &Summary{StartedAt: time.Now()}
	defer func() { sum.FinishedAt = time.Now() }()

	o.log.Info("starting run", "issues", len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			o.log.Warn("run interrupted", "remaining", len(ids)-len(sum.Jobs), "error", err)
			return sum, err
		}

		job := NewJob(id)
		sum.Jobs = append(sum.Jobs, job)
		if err := o.proc.Process(ctx, job); err != nil {
			job.AddError(err.Error())
			job.SetStatus(StatusFailed, job.Phase)
			o.logFailure(id, err)
			continue
		}
		o.log.Info("issue done", "issue", id, "status", job.Status, "report", job.Report)
	}

	o.log.Info("run complete", "issues", len(sum.Jobs), "succeeded", sum.Succeeded(), "failed", sum.Failed())
	return sum, nil
}

// logFailure logs why an issue was skipped.
func (o *Orchestrator) logFailure(id string, err error) {
	log := o.log.With("issue", id)

	var fe *fetch.FetchError
	var ee *extract.ExtractError
	var ae *report.AssembleError
	switch {
	case errors.As(err, &fe):
		log.Error("issue page unavailable, skipping", "kind", fe.Kind.String(), "url", fe.URL, "error", err)
	case errors.As(err, &ee):
		log.Error("field extraction failed, no report written", "kind", ee.Kind.String(), "error", err)
	case errors.As(err, &ae):
		log.Error("report assembly failed", "kind", ae.Kind.String(), "error", err)
	default:
		log.Error("issue failed", "error", err)
	}
}
