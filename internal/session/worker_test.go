package session

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestWriteWorkerResult(t *testing.T) {
	var buf bytes.Buffer
	err := WriteWorkerResult(&buf, &Result{RecordsFetched: 12, Completed: true, SkipFiles: []string{"F01"}})
	if err != nil {
		t.Fatal(err)
	}
	got := strings.TrimSpace(buf.String())
	want := `{"records_fetched":12,"completed":true,"skip_files":["F01"]}`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Errorf("result must be a single line, got %q", buf.String())
	}

	// Empty skip set still marshals as an array, not null.
	buf.Reset()
	if err := WriteWorkerResult(&buf, &Result{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"skip_files":[]`) {
		t.Errorf("got %s", buf.String())
	}
}

func TestRunWorkerCollectsResult(t *testing.T) {
	script := `echo starting >&2; echo progress note; echo '{"records_fetched":7,"completed":true,"skip_files":["A","B"]}'`
	res, err := RunWorker(context.Background(), time.Minute, "sh", []string{"-c", script}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if res.RecordsFetched != 7 || !res.Completed || len(res.SkipFiles) != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestRunWorkerTimeout(t *testing.T) {
	_, err := RunWorker(context.Background(), 50*time.Millisecond, "sh", []string{"-c", "sleep 5"}, zap.NewNop())
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("err = %v, want timeout", err)
	}
}

func TestRunWorkerExitFailure(t *testing.T) {
	_, err := RunWorker(context.Background(), time.Minute, "sh", []string{"-c", "exit 3"}, zap.NewNop())
	if err == nil || !strings.Contains(err.Error(), "exited") {
		t.Fatalf("err = %v, want exit error", err)
	}
}
