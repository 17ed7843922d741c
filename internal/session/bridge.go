package session

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"go.uber.org/zap"
)

// Bridge drives the proprietary vendor component through a helper
// process speaking line-delimited JSON on stdin/stdout. The component
// is an in-process object on its native platform; hosting it behind a
// pipe keeps this service portable and lets a wedged component be
// killed without taking the service down.
type Bridge struct {
	cmd    *exec.Cmd
	in     *json.Encoder
	out    *json.Decoder
	logger *zap.Logger
}

type bridgeRequest struct {
	Op       string `json:"op"`
	Key      string `json:"key,omitempty"`
	Spec     string `json:"spec,omitempty"`
	FromTime string `json:"from_time,omitempty"`
	Option   int    `json:"option,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Size     int    `json:"size,omitempty"`
}

type bridgeResponse struct {
	Code          int    `json:"code"`
	ReadCount     int    `json:"read_count"`
	DownloadCount int    `json:"download_count"`
	LastFileTS    string `json:"last_file_ts"`
	Data          []byte `json:"data"`
	FileName      string `json:"file_name"`
}

// StartBridge launches the helper process. The returned Bridge is a
// Session; Close terminates the helper.
func StartBridge(ctx context.Context, argv []string, logger *zap.Logger) (*Bridge, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("session: bridge command not configured")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting vendor bridge: %w", err)
	}
	return &Bridge{
		cmd:    cmd,
		in:     json.NewEncoder(stdin),
		out:    json.NewDecoder(bufio.NewReaderSize(stdout, 256*1024)),
		logger: logger.Named("bridge"),
	}, nil
}

// call performs one request/response round trip. Transport failures
// surface as a server-error code so the manager's recovery protocol
// applies.
func (b *Bridge) call(req bridgeRequest) bridgeResponse {
	if err := b.in.Encode(req); err != nil {
		b.logger.Error("bridge write failed", zap.String("op", req.Op), zap.Error(err))
		return bridgeResponse{Code: CodeServerError}
	}
	var resp bridgeResponse
	if err := b.out.Decode(&resp); err != nil {
		b.logger.Error("bridge read failed", zap.String("op", req.Op), zap.Error(err))
		return bridgeResponse{Code: CodeServerError}
	}
	return resp
}

func (b *Bridge) Initialize(serviceKey string) int {
	return b.call(bridgeRequest{Op: "initialise", Key: serviceKey}).Code
}

func (b *Bridge) Open(spec, fromTime string, option int) (int, int, int, string) {
	resp := b.call(bridgeRequest{Op: "open", Spec: spec, FromTime: fromTime, Option: option})
	return resp.Code, resp.ReadCount, resp.DownloadCount, resp.LastFileTS
}

func (b *Bridge) RealTimeOpen(spec, key string) (int, int) {
	resp := b.call(bridgeRequest{Op: "real_time_open", Spec: spec, Key: key})
	return resp.Code, resp.ReadCount
}

func (b *Bridge) Status() int {
	return b.call(bridgeRequest{Op: "status"}).Code
}

func (b *Bridge) ReadRecord(buf []byte) (int, string) {
	resp := b.call(bridgeRequest{Op: "read", Size: len(buf)})
	if resp.Code > 0 {
		n := copy(buf, resp.Data)
		return n, resp.FileName
	}
	return resp.Code, resp.FileName
}

func (b *Bridge) Skip() {
	b.call(bridgeRequest{Op: "skip"})
}

func (b *Bridge) FileDelete(fileName string) int {
	return b.call(bridgeRequest{Op: "file_delete", FileName: fileName}).Code
}

func (b *Bridge) Close() int {
	code := b.call(bridgeRequest{Op: "close"}).Code
	if b.cmd.Process != nil {
		b.cmd.Process.Kill()
	}
	b.cmd.Wait()
	return code
}
