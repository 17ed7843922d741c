package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

// responderScript writes a shell responder that answers each JSON
// request line with a canned response keyed on the op field.
func responderScript(t *testing.T) string {
	t.Helper()
	script := `#!/bin/sh
while read line; do
  case "$line" in
    *'"op":"initialise"'*) echo '{"code":0}' ;;
    *'"op":"open"'*) echo '{"code":0,"read_count":5,"download_count":2,"last_file_ts":"20240601120000"}' ;;
    *'"op":"read"'*) echo '{"code":5,"data":"aGVsbG8=","file_name":"F01"}' ;;
    *'"op":"status"'*) echo '{"code":0}' ;;
    *'"op":"close"'*) echo '{"code":0}'; exit 0 ;;
    *) echo '{"code":0}' ;;
  esac
done
`
	path := filepath.Join(t.TempDir(), "responder.sh")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBridgeRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := StartBridge(ctx, []string{"sh", responderScript(t)}, zap.NewNop())
	if err != nil {
		t.Fatalf("StartBridge: %v", err)
	}
	defer b.Close()

	if code := b.Initialize("TESTKEY"); code != CodeOK {
		t.Errorf("Initialize = %d, want %d", code, CodeOK)
	}

	code, readCount, downloadCount, lastTS := b.Open("RACE", "20240601000000", 4)
	if code != CodeOK || readCount != 5 || downloadCount != 2 {
		t.Errorf("Open = (%d, %d, %d), want (0, 5, 2)", code, readCount, downloadCount)
	}
	if lastTS != "20240601120000" {
		t.Errorf("lastFileTS = %q", lastTS)
	}

	buf := make([]byte, 64)
	n, file := b.ReadRecord(buf)
	if n != 5 {
		t.Fatalf("ReadRecord = %d, want 5", n)
	}
	if string(buf[:n]) != "hello" {
		t.Errorf("payload = %q, want hello", buf[:n])
	}
	if file != "F01" {
		t.Errorf("file = %q, want F01", file)
	}
}

func TestBridgeTransportFailureIsServerError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A helper that exits immediately leaves both pipes closed.
	b, err := StartBridge(ctx, []string{"true"}, zap.NewNop())
	if err != nil {
		t.Fatalf("StartBridge: %v", err)
	}
	defer b.Close()

	if code := b.Status(); code != CodeServerError {
		t.Errorf("Status = %d, want %d", code, CodeServerError)
	}
}

func TestBridgeEmptyCommand(t *testing.T) {
	if _, err := StartBridge(context.Background(), nil, zap.NewNop()); err == nil {
		t.Fatal("expected error for empty bridge command")
	}
}
