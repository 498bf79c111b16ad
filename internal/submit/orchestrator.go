// Package submit drives bulk report submission: a strictly sequential loop
// over parsed targets with per-item logging, progress, a fixed inter-item
// delay, and cooperative cancellation.
package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/secdesk/abuse-portal/internal/model"
	"github.com/secdesk/abuse-portal/internal/report"
)

// Gateway submits one structured report to the upstream abuse API with
// bearer-token authorization.
type Gateway interface {
	Submit(ctx context.Context, rpt model.AbuseReport, bearer string) (json.RawMessage, error)
}

// Sink receives log entries and progress updates as the loop advances. It is
// only ever called from the single orchestrator goroutine.
type Sink interface {
	Append(entry model.SubmissionLogEntry)
	Progress(percent int)
}

// Options tunes one submission run.
type Options struct {
	// Delay is the wait between consecutive dispatches (not after the last).
	Delay time.Duration
	// SkipInvalid logs entries that failed local validation as errors
	// instead of sending them upstream. Off by default: the upstream
	// validator is authoritative and a locally-odd target may still be a
	// deliberate value.
	SkipInvalid bool
}

// Summary describes a finished run.
type Summary struct {
	Total     int
	Succeeded int
	Cancelled bool
}

// Orchestrator executes submission runs against a Gateway.
type Orchestrator struct {
	gateway Gateway
	logger  *slog.Logger
}

// New creates an orchestrator.
func New(gw Gateway, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{gateway: gw, logger: logger}
}

// Execute runs the submission loop to completion or cancellation. Targets are
// dispatched strictly in input order, one at a time; a per-item failure is
// logged and the loop continues. Cancellation is checked before each dispatch
// and during each inter-item wait, so already-dispatched results stay logged.
// The form must have been validated before Execute is called.
func (o *Orchestrator) Execute(ctx context.Context, form report.Form, entries []model.TargetEntry, bearer string, opts Options, sink Sink) Summary {
	total := len(entries)
	sum := Summary{Total: total}
	seq := 0

	append_ := func(outcome model.Outcome, msg string) {
		sink.Append(model.SubmissionLogEntry{Seq: seq, Outcome: outcome, Message: msg})
		seq++
	}

	for i, entry := range entries {
		if ctx.Err() != nil {
			sum.Cancelled = true
			break
		}

		if opts.SkipInvalid && !entry.Valid {
			append_(model.OutcomeError, fmt.Sprintf("%s: skipped, failed %s validation", entry.Raw, form.ThreatType))
		} else {
			rpt := report.Build(form, entry.Raw, time.Now().UTC())
			if _, err := o.gateway.Submit(ctx, rpt, bearer); err != nil {
				o.logger.Warn("report dispatch failed", "target", entry.Raw, "error", err)
				append_(model.OutcomeError, fmt.Sprintf("%s: %v", entry.Raw, err))
			} else {
				sum.Succeeded++
				append_(model.OutcomeSuccess, fmt.Sprintf("%s: report submitted", entry.Raw))
			}
		}

		done := i + 1
		sink.Progress((100*done + total/2) / total)

		if done < total {
			append_(model.OutcomeInfo, fmt.Sprintf("waiting %s before next dispatch", opts.Delay))
			timer := time.NewTimer(opts.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				sum.Cancelled = true
			case <-timer.C:
			}
			if sum.Cancelled {
				break
			}
		}
	}

	if sum.Cancelled {
		append_(model.OutcomeComplete, fmt.Sprintf("cancelled: %d of %d targets submitted successfully", sum.Succeeded, total))
	} else {
		append_(model.OutcomeComplete, fmt.Sprintf("done: %d of %d targets submitted successfully", sum.Succeeded, total))
	}
	return sum
}
