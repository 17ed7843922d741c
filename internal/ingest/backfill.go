package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/keibalab/racedata-ingester/internal/jvdata"
	"github.com/keibalab/racedata-ingester/internal/session"
)

const dateFormat = "20060102"

type BackfillRequest struct {
	Spec string
	From time.Time

	// To bounds the range; zero means everything the vendor has.
	To time.Time

	// ChunkDays splits the range into one session per chunk; 0 picks
	// the feed default (regional: 1, central: single chunk).
	ChunkDays int
}

type RunResult struct {
	Stats     Snapshot
	Completed bool

	// CompletedWithErrors marks a run that finished but dropped
	// records; operators must see this distinctly from a clean run.
	CompletedWithErrors bool

	LastChunk time.Time
}

// RunBackfill walks the date range chunk by chunk. The last successful
// chunk is persisted after each step so an interrupted run resumes
// where it stopped. Fatal vendor errors surface as a single tagged
// error; cancellation returns the partial result without error.
func (c *Coordinator) RunBackfill(ctx context.Context, req BackfillRequest) (*RunResult, error) {
	chunkDays := req.ChunkDays
	if chunkDays == 0 && c.feed == jvdata.FeedRegional {
		// One day per session bounds the regional vendor's memory use.
		chunkDays = 1
	}
	chunks := chunkStarts(req.From, req.To, chunkDays)

	c.bump(func(s *Snapshot) { s.Phase = "backfill" })
	start, skip := c.loadResume(req, chunks)
	if start > 0 {
		c.logger.Info("resuming backfill",
			zap.String("spec", req.Spec),
			zap.String("chunk", chunks[start].Format(dateFormat)))
	}

	var last time.Time
	if start > 0 {
		last = chunks[start-1]
	}
	for i := start; i < len(chunks); i++ {
		if ctx.Err() != nil {
			break
		}
		chunk := chunks[i]
		c.bump(func(s *Snapshot) { s.LastChunk = chunk.Format(dateFormat) })

		res, err := c.runOneChunk(ctx, req.Spec, chunk, req.To, skip)
		if err != nil {
			snap := c.Snapshot()
			return &RunResult{Stats: snap, LastChunk: last},
				fmt.Errorf("backfill chunk %s: %w", chunk.Format(dateFormat), err)
		}
		if !res.Completed {
			// Cancelled mid-chunk; progress is already persisted.
			break
		}
		skip = nil
		last = chunk
		c.saveResume(req, chunk)
		c.progress()
	}

	snap := c.Snapshot()
	out := &RunResult{Stats: snap, LastChunk: last}
	if ctx.Err() == nil && (len(chunks) == 0 || last.Equal(chunks[len(chunks)-1])) {
		out.Completed = true
		out.CompletedWithErrors = snap.Failed > 0
		c.removeState()
	}
	return out, nil
}

// runOneChunk dispatches to a child process when configured, retrying
// with the child's skip-files carried forward; otherwise it runs the
// chunk in-process (the session manager does its own re-opening there).
func (c *Coordinator) runOneChunk(ctx context.Context, spec string, chunk, to time.Time, skip []string) (*session.Result, error) {
	if len(c.opts.WorkerCmd) == 0 {
		return c.RunChunk(ctx, spec, chunk, to, skip)
	}

	attempts := 0
	for {
		args := append(append([]string(nil), c.opts.WorkerCmd[1:]...),
			"--spec", spec,
			"--from", chunk.Format(dateFormat))
		if !to.IsZero() {
			args = append(args, "--to", to.Format(dateFormat))
		}
		for _, f := range skip {
			args = append(args, "--skip-file", f)
		}

		wres, err := session.RunWorker(ctx, c.opts.WorkerTimeout, c.opts.WorkerCmd[0], args, c.logger)
		if err == nil && wres.Completed {
			c.bump(func(s *Snapshot) {
				s.Fetched += int64(wres.RecordsFetched)
				s.Imported += int64(wres.RecordsFetched)
			})
			return &session.Result{
				RecordsFetched: wres.RecordsFetched,
				Completed:      true,
				SkipFiles:      wres.SkipFiles,
			}, nil
		}
		if ctx.Err() != nil {
			return &session.Result{}, nil
		}

		attempts++
		c.bump(func(s *Snapshot) { s.Retries++ })
		if err != nil {
			c.logger.Warn("chunk worker failed",
				zap.String("chunk", chunk.Format(dateFormat)),
				zap.Int("attempt", attempts),
				zap.Error(err))
		} else {
			// The child reported a partial run; carry its delivered
			// files into the next attempt.
			skip = wres.SkipFiles
			c.bump(func(s *Snapshot) {
				s.Fetched += int64(wres.RecordsFetched)
				s.Imported += int64(wres.RecordsFetched)
			})
		}
		if attempts > c.scfg.MaxReopens {
			if err == nil {
				err = fmt.Errorf("chunk incomplete after %d attempts", attempts)
			}
			return nil, err
		}
	}
}

func chunkStarts(from, to time.Time, days int) []time.Time {
	if to.IsZero() || days <= 0 {
		return []time.Time{from}
	}
	var out []time.Time
	for t := from; !t.After(to); t = t.AddDate(0, 0, days) {
		out = append(out, t)
	}
	return out
}

func (c *Coordinator) loadResume(req BackfillRequest, chunks []time.Time) (int, []string) {
	if c.statePath() == "" {
		return 0, nil
	}
	raw, err := os.ReadFile(c.statePath())
	if err != nil {
		return 0, nil
	}
	var st runState
	if err := json.Unmarshal(raw, &st); err != nil {
		c.logger.Warn("state file unreadable, starting over", zap.Error(err))
		return 0, nil
	}
	if st.Spec != req.Spec || st.From != req.From.Format(dateFormat) || st.To != formatOrEmpty(req.To) {
		return 0, nil
	}
	lastDone, err := time.Parse(dateFormat, st.LastChunk)
	if err != nil {
		return 0, nil
	}
	for i, chunk := range chunks {
		if chunk.After(lastDone) {
			return i, nil
		}
	}
	return len(chunks), nil
}

func (c *Coordinator) saveResume(req BackfillRequest, lastDone time.Time) {
	if c.statePath() == "" {
		return
	}
	st := runState{
		Spec:      req.Spec,
		From:      req.From.Format(dateFormat),
		To:        formatOrEmpty(req.To),
		LastChunk: lastDone.Format(dateFormat),
	}
	raw, _ := json.Marshal(st)
	if err := os.WriteFile(c.statePath(), raw, 0o644); err != nil {
		c.logger.Warn("persisting backfill state failed", zap.Error(err))
	}
}

func formatOrEmpty(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateFormat)
}
