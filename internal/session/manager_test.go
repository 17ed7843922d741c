package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/keibalab/racedata-ingester/internal/jvdata"
)

type step struct {
	code int
	name string
	data string
}

type stubOpen struct {
	code     int
	download int
	status   []int
	steps    []step
}

type stubSession struct {
	initCode int
	gotKey   string
	gotOpts  []int

	opens   []stubOpen
	cur     int
	stepIdx int
	statIdx int

	rtCode  int
	rtSteps []step

	skips   int
	deleted []string
	closes  int
}

func (s *stubSession) Initialize(key string) int {
	s.gotKey = key
	return s.initCode
}

func (s *stubSession) Open(spec, fromTime string, option int) (int, int, int, string) {
	s.gotOpts = append(s.gotOpts, option)
	if s.cur >= len(s.opens) {
		return CodeServerError, 0, 0, ""
	}
	o := s.opens[s.cur]
	s.cur++
	s.stepIdx, s.statIdx = 0, 0
	return o.code, len(o.steps), o.download, ""
}

func (s *stubSession) RealTimeOpen(spec, key string) (int, int) {
	s.opens = append(s.opens, stubOpen{code: s.rtCode, steps: s.rtSteps})
	s.cur = len(s.opens)
	s.stepIdx = 0
	return s.rtCode, len(s.rtSteps)
}

func (s *stubSession) active() *stubOpen { return &s.opens[s.cur-1] }

func (s *stubSession) Status() int {
	o := s.active()
	if len(o.status) == 0 {
		return 0
	}
	if s.statIdx < len(o.status) {
		v := o.status[s.statIdx]
		s.statIdx++
		return v
	}
	return o.status[len(o.status)-1]
}

func (s *stubSession) ReadRecord(buf []byte) (int, string) {
	o := s.active()
	if s.stepIdx >= len(o.steps) {
		return 0, ""
	}
	st := o.steps[s.stepIdx]
	s.stepIdx++
	if st.code > 0 {
		copy(buf, st.data)
		return len(st.data), st.name
	}
	return st.code, st.name
}

func (s *stubSession) Skip() { s.skips++ }

func (s *stubSession) FileDelete(name string) int {
	s.deleted = append(s.deleted, name)
	return 0
}

func (s *stubSession) Close() int {
	s.closes++
	return 0
}

func fastConfig() Config {
	return Config{
		ServiceKey:       "test-key",
		PollInterval:     time.Millisecond,
		RateLimitBackoff: time.Millisecond,
		StallTimeout:     20 * time.Millisecond,
		ReopenWait:       time.Millisecond,
		MaxReopens:       3,
	}
}

func records(file string, n int) []step {
	out := make([]step, 0, n+1)
	for i := 0; i < n; i++ {
		out = append(out, step{code: 1, name: file, data: "RA" + file})
	}
	out = append(out, step{code: CodeFileBoundary, name: file})
	return out
}

// A download failure mid-run closes the session, waits, re-opens with
// the delivered files carried forward, and completes once the remaining
// files arrive.
func TestDownloadFailureRecovery(t *testing.T) {
	var open1 []step
	for _, f := range []string{"F01", "F02", "F03", "F04"} {
		open1 = append(open1, records(f, 5)...)
	}
	open1 = append(open1, step{code: CodeDownloadFail})

	open2 := []step{{code: 1, name: "F02", data: "RAF02"}} // re-delivered, must be skipped
	open2 = append(open2, step{code: CodeFileBoundary, name: "F02"})
	open2 = append(open2, records("F05", 5)...)
	open2 = append(open2, records("F06", 5)...)

	stub := &stubSession{
		opens: []stubOpen{
			{download: 2, status: []int{1, 0}, steps: open1},
			{steps: open2},
		},
	}
	m := NewManager(jvdata.FeedRegional, stub, fastConfig(), zap.NewNop())

	var fetched int
	res, err := m.Run(context.Background(), "RACE", "20250101000000", 4, func(buf []byte, file string) error {
		fetched++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if fetched != 30 || res.RecordsFetched != 30 {
		t.Errorf("fetched = %d / %d, want 30", fetched, res.RecordsFetched)
	}
	if !res.Completed {
		t.Error("run not marked complete")
	}
	if stub.skips == 0 {
		t.Error("re-delivered file was not skipped")
	}
	for _, f := range []string{"F01", "F02", "F03", "F04", "F05", "F06"} {
		found := false
		for _, s := range res.SkipFiles {
			if s == f {
				found = true
			}
		}
		if !found {
			t.Errorf("skip files missing %s: %v", f, res.SkipFiles)
		}
	}

	wantSeq := []State{StateReading, StateFailedRetryable, StateOpening, StateReading, StateClosed}
	if !containsSequence(m.Transitions(), wantSeq) {
		t.Errorf("transitions = %v, want subsequence %v", m.Transitions(), wantSeq)
	}
}

func containsSequence(got, want []State) bool {
	i := 0
	for _, s := range got {
		if i < len(want) && s == want[i] {
			i++
		}
	}
	return i == len(want)
}

func TestRegionalInitKeyLiteral(t *testing.T) {
	stub := &stubSession{opens: []stubOpen{{}}}
	m := NewManager(jvdata.FeedRegional, stub, fastConfig(), zap.NewNop())
	if _, err := m.Run(context.Background(), "RACE", "20250101000000", 4, nopEmit); err != nil {
		t.Fatal(err)
	}
	if stub.gotKey != "UNKNOWN" {
		t.Errorf("init key = %q, want UNKNOWN", stub.gotKey)
	}

	stub = &stubSession{opens: []stubOpen{{}}}
	m = NewManager(jvdata.FeedCentral, stub, fastConfig(), zap.NewNop())
	if _, err := m.Run(context.Background(), "RACE", "20250101000000", 4, nopEmit); err != nil {
		t.Fatal(err)
	}
	if stub.gotKey != "test-key" {
		t.Errorf("init key = %q, want test-key", stub.gotKey)
	}
}

func nopEmit(buf []byte, file string) error { return nil }

func TestRegionalOptionRemap(t *testing.T) {
	cfg := fastConfig()
	cfg.RegionalOptionRemap = true
	stub := &stubSession{opens: []stubOpen{{}}}
	m := NewManager(jvdata.FeedRegional, stub, cfg, zap.NewNop())
	if _, err := m.Run(context.Background(), "RACE", "20250101000000", 1, nopEmit); err != nil {
		t.Fatal(err)
	}
	if stub.gotOpts[0] != 3 {
		t.Errorf("option = %d, want 3", stub.gotOpts[0])
	}

	// Off by default.
	stub = &stubSession{opens: []stubOpen{{}}}
	m = NewManager(jvdata.FeedRegional, stub, fastConfig(), zap.NewNop())
	if _, err := m.Run(context.Background(), "RACE", "20250101000000", 1, nopEmit); err != nil {
		t.Fatal(err)
	}
	if stub.gotOpts[0] != 1 {
		t.Errorf("option = %d, want 1", stub.gotOpts[0])
	}
}

func TestCorruptFileDeleted(t *testing.T) {
	steps := []step{
		{code: 1, name: "F01", data: "RAF01"},
		{code: CodeFileBoundary, name: "F01"},
		{code: CodeFileBroken1, name: "F02"},
		{code: 1, name: "F03", data: "RAF03"},
	}
	stub := &stubSession{opens: []stubOpen{{steps: steps}}}
	m := NewManager(jvdata.FeedCentral, stub, fastConfig(), zap.NewNop())

	res, err := m.Run(context.Background(), "DIFF", "20250101000000", 1, nopEmit)
	if err != nil {
		t.Fatal(err)
	}
	if res.RecordsFetched != 2 {
		t.Errorf("fetched = %d, want 2", res.RecordsFetched)
	}
	if res.Failed != 1 {
		t.Errorf("failed = %d, want 1", res.Failed)
	}
	if len(stub.deleted) != 1 || stub.deleted[0] != "F02" {
		t.Errorf("deleted = %v, want [F02]", stub.deleted)
	}
}

func TestRateLimitBackoff(t *testing.T) {
	stub := &stubSession{opens: []stubOpen{
		{download: 1, status: []int{1, CodeRateLimit, 0}, steps: records("F01", 1)},
	}}
	m := NewManager(jvdata.FeedCentral, stub, fastConfig(), zap.NewNop())

	res, err := m.Run(context.Background(), "RACE", "20250101000000", 1, nopEmit)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Completed || res.RecordsFetched != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestDownloadStallFailsAfterReopens(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxReopens = 1
	stalled := stubOpen{download: 3, status: []int{3}}
	stub := &stubSession{opens: []stubOpen{stalled, stalled}}
	m := NewManager(jvdata.FeedCentral, stub, cfg, zap.NewNop())

	_, err := m.Run(context.Background(), "RACE", "20250101000000", 1, nopEmit)
	if err == nil {
		t.Fatal("expected failure after repeated stalls")
	}
	if m.State() != StateFailed {
		t.Errorf("state = %s, want failed", m.State())
	}
}

func TestAuthErrorIsFatal(t *testing.T) {
	stub := &stubSession{initCode: CodeAuthError}
	m := NewManager(jvdata.FeedRegional, stub, fastConfig(), zap.NewNop())

	_, err := m.Run(context.Background(), "RACE", "20250101000000", 4, nopEmit)
	var ve *VendorError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want VendorError", err)
	}
	if ve.Code != CodeAuthError || !strings.Contains(ve.Remedy, "UNKNOWN") {
		t.Errorf("error = %+v", ve)
	}
}

func TestReadBudgetExhausted(t *testing.T) {
	var steps []step
	for i := 0; i < 10; i++ {
		steps = append(steps, step{code: 1, name: "F01", data: "RAF01"})
	}
	cfg := fastConfig()
	cfg.ReadBudget = 5
	stub := &stubSession{opens: []stubOpen{{steps: steps}}}
	m := NewManager(jvdata.FeedCentral, stub, cfg, zap.NewNop())

	_, err := m.Run(context.Background(), "RACE", "20250101000000", 1, nopEmit)
	if err == nil || !strings.Contains(err.Error(), "read budget") {
		t.Fatalf("err = %v, want read budget error", err)
	}
}

func TestCancellationClosesCleanly(t *testing.T) {
	var steps []step
	for i := 0; i < 10; i++ {
		steps = append(steps, step{code: 1, name: "F01", data: "RAF01"})
	}
	stub := &stubSession{opens: []stubOpen{{steps: steps}}}
	m := NewManager(jvdata.FeedCentral, stub, fastConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	n := 0
	res, err := m.Run(ctx, "RACE", "20250101000000", 1, func(buf []byte, file string) error {
		n++
		if n == 3 {
			cancel()
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Completed {
		t.Error("cancelled run marked complete")
	}
	if res.RecordsFetched != 3 {
		t.Errorf("fetched = %d, want 3", res.RecordsFetched)
	}
	if m.State() != StateClosed {
		t.Errorf("state = %s, want closed", m.State())
	}
	if stub.closes == 0 {
		t.Error("session not released")
	}
}

func TestCancellationDuringDownload(t *testing.T) {
	// Status never reaches zero; the run is cancelled mid-download.
	stub := &stubSession{opens: []stubOpen{{download: 4, status: []int{4}}}}
	m := NewManager(jvdata.FeedCentral, stub, fastConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	res, err := m.Run(ctx, "RACE", "20250101000000", 1, nopEmit)
	if err != nil {
		t.Fatal(err)
	}
	if res.Completed {
		t.Error("cancelled run marked complete")
	}
	if m.State() != StateClosed {
		t.Errorf("state = %s, want closed", m.State())
	}
	if stub.closes == 0 {
		t.Error("session not released")
	}
}

func TestRunRealTime(t *testing.T) {
	stub := &stubSession{rtSteps: []step{
		{code: 1, name: "RT1", data: "O1live"},
		{code: 1, name: "RT1", data: "O1live"},
		{code: 1, name: "RT1", data: "O1live"},
	}}
	m := NewManager(jvdata.FeedCentral, stub, fastConfig(), zap.NewNop())

	res, err := m.RunRealTime(context.Background(), "0B30", "20250105", nopEmit)
	if err != nil {
		t.Fatal(err)
	}
	if res.RecordsFetched != 3 || !res.Completed {
		t.Errorf("result = %+v", res)
	}
	if stub.closes != 1 {
		t.Errorf("closes = %d, want 1", stub.closes)
	}
}
