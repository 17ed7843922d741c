// Package ingest composes session, parser, router and writer into the
// two workflows: historical backfill and live monitoring.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/keibalab/racedata-ingester/internal/archive"
	"github.com/keibalab/racedata-ingester/internal/jvdata"
	"github.com/keibalab/racedata-ingester/internal/metrics"
	"github.com/keibalab/racedata-ingester/internal/schema"
	"github.com/keibalab/racedata-ingester/internal/session"
	"github.com/keibalab/racedata-ingester/internal/writer"
)

// OptionSetup is the only open option known to behave deterministically
// across both feeds for historical backfill.
const OptionSetup = 4

// SessionFactory hands out a fresh vendor session object. The object is
// single-owner; one is created per chunk or monitor cycle.
type SessionFactory func() session.Session

type Options struct {
	// ArchiveDir, when set, tees every raw record buffer to a
	// compressed archive file per chunk.
	ArchiveDir string

	// StateFile persists backfill resume bookkeeping.
	StateFile string

	// OnProgress receives a snapshot after each chunk and cycle.
	OnProgress func(Snapshot)

	// WorkerCmd, when set, runs each backfill chunk in a child process
	// (argv prefix; chunk flags are appended). Empty runs in-process.
	WorkerCmd []string

	// WorkerTimeout bounds one child process.
	WorkerTimeout time.Duration
}

type Coordinator struct {
	feed       jvdata.Feed
	reg        *jvdata.Registry
	cat        *schema.Catalogue
	w          *writer.Writer
	newSession SessionFactory
	scfg       session.Config
	opts       Options
	logger     *zap.Logger

	triggerRT chan struct{}

	mu sync.Mutex
	st Snapshot
}

func New(feed jvdata.Feed, reg *jvdata.Registry, cat *schema.Catalogue, w *writer.Writer,
	factory SessionFactory, scfg session.Config, opts Options, logger *zap.Logger) *Coordinator {
	c := &Coordinator{
		feed:       feed,
		reg:        reg,
		cat:        cat,
		w:          w,
		newSession: factory,
		scfg:       scfg,
		opts:       opts,
		logger:     logger.Named("ingest"),
		triggerRT:  make(chan struct{}, 1),
	}
	// Long single-chunk runs still report progress batch by batch.
	w.OnFlush(c.progress)
	return c
}

func (c *Coordinator) bump(f func(*Snapshot)) {
	c.mu.Lock()
	f(&c.st)
	c.mu.Unlock()
}

// Snapshot merges the coordinator's counters with the writer's.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	s := c.st
	c.mu.Unlock()
	_, wFailed, batches := c.w.Stats()
	s.Failed += wFailed
	s.Batches = batches
	return s
}

func (c *Coordinator) progress() {
	if c.opts.OnProgress != nil {
		c.opts.OnProgress(c.Snapshot())
	}
}

// ingestRecord parses one raw buffer and hands every resulting row to
// the writer. Parse and routing failures count as failed and never
// abort the run.
func (c *Coordinator) ingestRecord(ctx context.Context, p schema.Path, buf []byte, file string, to time.Time) error {
	recs, err := c.reg.Parse(buf)
	if err != nil {
		c.bump(func(s *Snapshot) { s.Failed++; s.LastFile = file })
		kind, _ := c.reg.Kind(buf)
		metrics.ParseErrorsTotal.WithLabelValues(kind, "parse").Inc()
		c.logger.Warn("record failed to parse",
			zap.String("file", file),
			zap.String("kind", kind),
			zap.Error(err))
		return nil
	}
	c.bump(func(s *Snapshot) { s.Parsed++; s.LastFile = file })
	if len(recs) > 0 {
		metrics.RecordsParsedTotal.WithLabelValues(c.feed.String(), recs[0].Kind).Inc()
	}

	// The vendor honours from_time but not always to_time, so the
	// upper bound is enforced here.
	if !to.IsZero() && len(recs) > 0 && recordDate(&recs[0]).After(to) {
		return nil
	}

	accepted := 0
	for i := range recs {
		ok, err := c.w.Add(ctx, p, &recs[i])
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			c.bump(func(s *Snapshot) { s.Failed++ })
			c.logger.Warn("record not routable", zap.String("kind", recs[i].Kind), zap.Error(err))
			return nil
		}
		if ok {
			accepted++
		}
	}
	// A record whose every row was rejected is failed, not imported;
	// the writer already counted the rejections.
	if accepted == 0 {
		return nil
	}
	c.bump(func(s *Snapshot) { s.Imported++ })
	metrics.LastRecordTimestamp.WithLabelValues(c.feed.String()).SetToCurrentTime()
	return nil
}

// recordDate extracts the record's data date: race records carry
// Year/MonthDay, masters fall back to the header's MakeDate.
func recordDate(rec *jvdata.ParsedRecord) time.Time {
	year := rec.Values["Year"]
	md := rec.Values["MonthDay"]
	if !year.IsNull() && !md.IsNull() && len(md.Text()) == 4 {
		if t, err := time.Parse("20060102", fmt.Sprintf("%04d%s", year.Int(), md.Text())); err == nil {
			return t
		}
	}
	if mk := rec.Values["MakeDate"]; !mk.IsNull() {
		if t, err := time.Parse("20060102", mk.Text()); err == nil {
			return t
		}
	}
	return time.Time{}
}

// RunChunk drives one session over one date chunk in-process. It is
// also the body of the chunk-worker subcommand.
func (c *Coordinator) RunChunk(ctx context.Context, spec string, from, to time.Time, skip []string) (*session.Result, error) {
	mgr := session.NewManager(c.feed, c.newSession(), c.scfg, c.logger)
	mgr.SetSkipFiles(skip)

	var aw *archive.Writer
	if c.opts.ArchiveDir != "" {
		name := fmt.Sprintf("%s-%s-%s.zst", c.feed, spec, from.Format("20060102"))
		w, err := archive.Create(filepath.Join(c.opts.ArchiveDir, name))
		if err != nil {
			return nil, fmt.Errorf("creating archive: %w", err)
		}
		aw = w
		defer aw.Close()
	}

	res, err := mgr.Run(ctx, spec, from.Format("20060102150405"), OptionSetup,
		func(buf []byte, file string) error {
			c.bump(func(s *Snapshot) { s.Fetched++ })
			if aw != nil {
				if err := aw.Append(buf); err != nil {
					return err
				}
			}
			return c.ingestRecord(ctx, schema.PathAccumulated, buf, file, to)
		})

	retries := int64(0)
	for _, st := range mgr.Transitions() {
		if st == session.StateFailedRetryable {
			retries++
		}
	}
	c.bump(func(s *Snapshot) {
		s.Retries += retries
		s.Failed += int64(res.Failed)
	})

	if ferr := c.w.Flush(ctx); ferr != nil && err == nil {
		err = ferr
	}
	return res, err
}

// ReplayArchive feeds a recorded archive through the same
// parse/route/write path used for live sessions.
func (c *Coordinator) ReplayArchive(ctx context.Context, path string, p schema.Path) (int, error) {
	n, err := archive.Replay(path, func(rec []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.bump(func(s *Snapshot) { s.Fetched++ })
		return c.ingestRecord(ctx, p, rec, filepath.Base(path), time.Time{})
	})
	if err != nil {
		return n, err
	}
	return n, c.w.Flush(ctx)
}

// TriggerRealtime forces the next monitor cycle to start immediately.
// Safe to call from any goroutine; coalesces repeated triggers.
func (c *Coordinator) TriggerRealtime() {
	select {
	case c.triggerRT <- struct{}{}:
	default:
	}
}

// Monitor runs real-time cycles until the context is cancelled. Each
// cycle opens one real-time session per spec; the vendor returns only
// data newer than the previous call for the same key.
func (c *Coordinator) Monitor(ctx context.Context, specs []string, interval time.Duration) error {
	c.bump(func(s *Snapshot) { s.Phase = "monitor" })
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.realtimeCycle(ctx, specs)
	for {
		select {
		case <-ctx.Done():
			return c.w.Flush(context.WithoutCancel(ctx))
		case <-c.triggerRT:
			c.realtimeCycle(ctx, specs)
		case <-ticker.C:
			c.realtimeCycle(ctx, specs)
		}
	}
}

func (c *Coordinator) realtimeCycle(ctx context.Context, specs []string) {
	key := time.Now().Format("20060102")
	for _, spec := range specs {
		if ctx.Err() != nil {
			return
		}
		mgr := session.NewManager(c.feed, c.newSession(), c.scfg, c.logger)
		res, err := mgr.RunRealTime(ctx, spec, key, func(buf []byte, file string) error {
			c.bump(func(s *Snapshot) { s.Fetched++ })
			return c.ingestRecord(ctx, schema.PathRealTime, buf, file, time.Time{})
		})
		if err != nil {
			c.logger.Warn("real-time cycle failed",
				zap.String("spec", spec),
				zap.Error(err))
			continue
		}
		if res.RecordsFetched > 0 {
			c.logger.Info("real-time cycle",
				zap.String("spec", spec),
				zap.Int("records", res.RecordsFetched))
		}
	}
	if err := c.w.Flush(ctx); err != nil {
		c.logger.Error("monitor flush failed", zap.Error(err))
	}
	c.progress()
}

// persistState writes backfill resume bookkeeping; absence of the file
// means start from the beginning.
type runState struct {
	Spec      string `json:"spec"`
	From      string `json:"from"`
	To        string `json:"to"`
	LastChunk string `json:"last_chunk"`
}

func (c *Coordinator) statePath() string { return c.opts.StateFile }

func (c *Coordinator) removeState() {
	if c.statePath() != "" {
		os.Remove(c.statePath())
	}
}
