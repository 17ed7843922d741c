package session

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// WorkerResult is the single JSON line a chunk worker prints on stdout
// at termination. It is the child's only return channel.
type WorkerResult struct {
	RecordsFetched int      `json:"records_fetched"`
	Completed      bool     `json:"completed"`
	SkipFiles      []string `json:"skip_files"`
}

// WriteWorkerResult emits the result line. Called by the chunk-worker
// subcommand just before exit.
func WriteWorkerResult(w io.Writer, res *Result) error {
	out := WorkerResult{
		RecordsFetched: res.RecordsFetched,
		Completed:      res.Completed,
		SkipFiles:      res.SkipFiles,
	}
	if out.SkipFiles == nil {
		out.SkipFiles = []string{}
	}
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

const DefaultWorkerTimeout = 300 * time.Second

// RunWorker spawns one chunk worker and collects its result line. The
// vendor session object can leak resources over long runs, so each
// chunk gets a fresh process. stderr is forwarded to the logger; the
// last parseable JSON line on stdout wins, which lets the child print
// diagnostics on stdout before the result without breaking the
// contract. A child that exceeds the timeout is killed and the chunk
// reported as an error for the caller to retry.
func RunWorker(ctx context.Context, timeout time.Duration, exe string, args []string, logger *zap.Logger) (*WorkerResult, error) {
	if timeout <= 0 {
		timeout = DefaultWorkerTimeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(tctx, exe, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}

	var res *WorkerResult
	g := &errgroup.Group{}
	g.Go(func() error {
		sc := bufio.NewScanner(stdout)
		sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for sc.Scan() {
			var line WorkerResult
			if err := json.Unmarshal(sc.Bytes(), &line); err == nil {
				res = &line
				continue
			}
			logger.Debug("worker stdout", zap.ByteString("line", sc.Bytes()))
		}
		return sc.Err()
	})
	g.Go(func() error {
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			logger.Info("worker", zap.ByteString("line", sc.Bytes()))
		}
		return sc.Err()
	})

	scanErr := g.Wait()
	waitErr := cmd.Wait()
	if tctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("worker timed out after %s", timeout)
	}
	if waitErr != nil {
		return nil, fmt.Errorf("worker exited: %w", waitErr)
	}
	if scanErr != nil {
		return nil, scanErr
	}
	if res == nil {
		return nil, fmt.Errorf("worker produced no result line")
	}
	return res, nil
}
