package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/keibalab/racedata-ingester/internal/jvdata"
	"github.com/keibalab/racedata-ingester/internal/metrics"
)

// State is the manager's position in the session lifecycle.
type State int

const (
	StateUninitialised State = iota
	StateInitialised
	StateOpening
	StateDownloading
	StateReading
	StateClosed
	StateFailedRetryable
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitialised:
		return "initialised"
	case StateOpening:
		return "opening"
	case StateDownloading:
		return "downloading"
	case StateReading:
		return "reading"
	case StateClosed:
		return "closed"
	case StateFailedRetryable:
		return "failed-retryable"
	case StateFailed:
		return "failed"
	default:
		return "uninitialised"
	}
}

type Config struct {
	ServiceKey string

	// PollInterval paces status() during download. The vendor expects
	// its message pump to run between polls, so the loop always yields.
	PollInterval     time.Duration
	RateLimitBackoff time.Duration
	StallTimeout     time.Duration

	// ReopenWait and MaxReopens bound the close-wait-reopen recovery
	// protocol for download failures.
	ReopenWait time.Duration
	MaxReopens int

	// ReadBudget caps read_record iterations per session.
	ReadBudget int

	// BufferSize must hold the largest record kind.
	BufferSize int

	// RegionalOptionRemap rewrites open option 1/2 to 3/4 on the
	// regional feed. Off unless the vendor contract requires it.
	RegionalOptionRemap bool
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 80 * time.Millisecond
	}
	if c.RateLimitBackoff <= 0 {
		c.RateLimitBackoff = 30 * time.Second
	}
	if c.StallTimeout <= 0 {
		c.StallTimeout = 60 * time.Second
	}
	if c.ReopenWait <= 0 {
		c.ReopenWait = 10 * time.Second
	}
	if c.MaxReopens <= 0 {
		c.MaxReopens = 5
	}
	if c.ReadBudget <= 0 {
		c.ReadBudget = 100000
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 110000
	}
	return c
}

// Result is the outcome of one session run. Failed counts records
// lost to damaged files the vendor was asked to delete.
type Result struct {
	RecordsFetched int
	Failed         int
	Completed      bool
	SkipFiles      []string
}

// Emit receives each record buffer in vendor delivery order. The slice
// is reused between calls; implementations must copy if they retain it.
type Emit func(buf []byte, fileName string) error

var errStalled = errors.New("session: download made no progress")

// Manager owns exactly one vendor session object and drives it through
// the lifecycle. Not safe for concurrent use.
type Manager struct {
	feed   jvdata.Feed
	sess   Session
	cfg    Config
	logger *zap.Logger

	skip        map[string]struct{}
	state       State
	transitions []State
	initialized bool
}

func NewManager(feed jvdata.Feed, sess Session, cfg Config, logger *zap.Logger) *Manager {
	return &Manager{
		feed:   feed,
		sess:   sess,
		cfg:    cfg.withDefaults(),
		logger: logger.Named("session"),
		skip:   make(map[string]struct{}),
	}
}

// SetSkipFiles seeds the already-delivered set from a prior attempt.
func (m *Manager) SetSkipFiles(files []string) {
	for _, f := range files {
		m.skip[f] = struct{}{}
	}
}

func (m *Manager) State() State { return m.state }

// Transitions returns every state entered, in order.
func (m *Manager) Transitions() []State { return m.transitions }

func (m *Manager) setState(s State) {
	m.state = s
	m.transitions = append(m.transitions, s)
}

func (m *Manager) initialize() error {
	if m.initialized {
		return nil
	}
	key := m.cfg.ServiceKey
	if m.feed == jvdata.FeedRegional {
		// The regional vendor rejects anything except this literal.
		key = "UNKNOWN"
	}
	if code := m.sess.Initialize(key); code != CodeOK {
		m.setState(StateFailed)
		return fatalError("initialise", code)
	}
	m.initialized = true
	m.setState(StateInitialised)
	return nil
}

// Run drives one accumulated-data session to completion, emitting each
// record. Recoverable vendor errors close and re-open the session with
// the skip-files set carried forward. Cancellation closes the session
// cleanly and returns the partial result with Completed false.
func (m *Manager) Run(ctx context.Context, spec, fromTime string, option int, emit Emit) (*Result, error) {
	res := &Result{}
	defer func() { res.SkipFiles = m.skipFileList() }()

	if err := m.initialize(); err != nil {
		return res, err
	}

	if m.feed == jvdata.FeedRegional && m.cfg.RegionalOptionRemap && (option == 1 || option == 2) {
		option += 2
	}

	reopens := 0
	for {
		m.setState(StateOpening)
		code, readCount, downloadCount, _ := m.sess.Open(spec, fromTime, option)
		if code < 0 {
			if Recoverable(code) {
				if err := m.backOff(ctx, code, "open", &reopens); err != nil {
					return res, m.settle(err)
				}
				continue
			}
			m.setState(StateFailed)
			return res, fatalError("open", code)
		}
		m.logger.Info("session opened",
			zap.String("spec", spec),
			zap.String("from", fromTime),
			zap.Int("read_count", readCount),
			zap.Int("download_count", downloadCount))

		if downloadCount > 0 {
			m.setState(StateDownloading)
			if err := m.waitDownload(ctx, downloadCount); err != nil {
				if isRetryable(err) {
					if err := m.backOff(ctx, codeOf(err), "status", &reopens); err != nil {
						return res, m.settle(err)
					}
					continue
				}
				m.sess.Close()
				if isCancel(err) {
					m.setState(StateClosed)
					return res, nil
				}
				m.setState(StateFailed)
				return res, err
			}
		}

		m.setState(StateReading)
		end, err := m.readLoop(ctx, spec, emit, res)
		if err != nil {
			if isRetryable(err) {
				if err := m.backOff(ctx, codeOf(err), "read_record", &reopens); err != nil {
					return res, m.settle(err)
				}
				continue
			}
			m.sess.Close()
			if isCancel(err) {
				m.setState(StateClosed)
				return res, nil
			}
			m.setState(StateFailed)
			return res, err
		}

		m.sess.Close()
		m.setState(StateClosed)
		res.Completed = end
		return res, nil
	}
}

// RunRealTime drains one real-time session. The vendor returns only
// data newer than the previous call for the same key.
func (m *Manager) RunRealTime(ctx context.Context, spec, key string, emit Emit) (*Result, error) {
	res := &Result{}
	if err := m.initialize(); err != nil {
		return res, err
	}

	m.setState(StateOpening)
	code, readCount := m.sess.RealTimeOpen(spec, key)
	if code < 0 {
		m.setState(StateFailed)
		return res, fatalError("real_time_open", code)
	}
	m.logger.Debug("real-time session opened",
		zap.String("spec", spec),
		zap.Int("read_count", readCount))

	m.setState(StateReading)
	end, err := m.readLoop(ctx, spec, emit, res)
	m.sess.Close()
	if err != nil {
		if isCancel(err) {
			m.setState(StateClosed)
			return res, nil
		}
		m.setState(StateFailed)
		return res, err
	}
	m.setState(StateClosed)
	res.Completed = end
	return res, nil
}

// backOff closes the current session, records the retry and waits
// before the next open. Fails once the reopen allowance is spent.
func (m *Manager) backOff(ctx context.Context, code int, op string, reopens *int) error {
	m.sess.Close()
	m.setState(StateFailedRetryable)
	*reopens++
	metrics.SessionRetriesTotal.WithLabelValues(m.feed.String(), strconv.Itoa(code)).Inc()
	if *reopens > m.cfg.MaxReopens {
		m.setState(StateFailed)
		if code == CodeSetupPending {
			return &VendorError{Code: code, Op: op,
				Remedy: "vendor reports setup incomplete after repeated retries; run the vendor's initial setup"}
		}
		return &VendorError{Code: code, Op: op,
			Remedy: fmt.Sprintf("still failing after %d reopens", m.cfg.MaxReopens)}
	}
	m.logger.Warn("session error, re-opening",
		zap.String("op", op),
		zap.Int("code", code),
		zap.Int("reopen", *reopens),
		zap.Duration("wait", m.cfg.ReopenWait),
		zap.Int("skip_files", len(m.skip)))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.cfg.ReopenWait):
	}
	return nil
}

func (m *Manager) waitDownload(ctx context.Context, announced int) error {
	last := -1
	lastChange := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		st := m.sess.Status()
		switch {
		case st == 0:
			metrics.DownloadProgress.WithLabelValues(m.feed.String()).Set(1)
			return nil
		case st > 0:
			if st != last {
				last = st
				lastChange = time.Now()
				if announced > 0 {
					metrics.DownloadProgress.WithLabelValues(m.feed.String()).
						Set(1 - float64(st)/float64(announced))
				}
			} else if time.Since(lastChange) > m.cfg.StallTimeout {
				return errStalled
			}
			if err := sleep(ctx, m.cfg.PollInterval); err != nil {
				return err
			}
		case st == CodeRateLimit:
			m.logger.Warn("rate limited during download",
				zap.Duration("backoff", m.cfg.RateLimitBackoff))
			if err := sleep(ctx, m.cfg.RateLimitBackoff); err != nil {
				return err
			}
			lastChange = time.Now()
		case Recoverable(st):
			return &VendorError{Code: st, Op: "status"}
		default:
			return fatalError("status", st)
		}
	}
}

func (m *Manager) readLoop(ctx context.Context, spec string, emit Emit, res *Result) (end bool, err error) {
	buf := make([]byte, m.cfg.BufferSize)
	current := ""
	markDelivered := func() {
		if current != "" {
			m.skip[current] = struct{}{}
			current = ""
		}
	}

	for i := 0; i < m.cfg.ReadBudget; i++ {
		select {
		case <-ctx.Done():
			return false, nil
		default:
		}

		code, name := m.sess.ReadRecord(buf)
		switch {
		case code > 0:
			if _, seen := m.skip[name]; seen {
				// Already delivered in a prior attempt; jump past the
				// rest of this file.
				m.sess.Skip()
				continue
			}
			current = name
			if err := emit(buf[:code], name); err != nil {
				return false, err
			}
			res.RecordsFetched++
			metrics.RecordsFetchedTotal.WithLabelValues(m.feed.String(), spec).Inc()
		case code == CodeOK:
			markDelivered()
			return true, nil
		case code == CodeFileBoundary:
			markDelivered()
		case code == CodeNotReady:
			// The file is still on its way down; the next read retries.
		case code == CodeFileBroken1 || code == CodeFileBroken2:
			m.logger.Warn("damaged file, asking vendor to delete",
				zap.String("file", name),
				zap.Int("code", code))
			m.sess.FileDelete(name)
			res.Failed++
			current = ""
		case Recoverable(code):
			// The in-flight file is not complete; leave it out of the
			// skip set so the next attempt re-reads it.
			return false, &VendorError{Code: code, Op: "read_record"}
		default:
			return false, fatalError("read_record", code)
		}
	}
	return false, fmt.Errorf("session: read budget of %d exhausted", m.cfg.ReadBudget)
}

func (m *Manager) skipFileList() []string {
	out := make([]string, 0, len(m.skip))
	for f := range m.skip {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// settle turns a cancellation surfaced during recovery into a clean
// close. backOff has already closed the session at this point.
func (m *Manager) settle(err error) error {
	if isCancel(err) {
		m.setState(StateClosed)
		return nil
	}
	return err
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func isRetryable(err error) bool {
	if errors.Is(err, errStalled) {
		return true
	}
	var ve *VendorError
	return errors.As(err, &ve) && Recoverable(ve.Code)
}

func codeOf(err error) int {
	var ve *VendorError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
