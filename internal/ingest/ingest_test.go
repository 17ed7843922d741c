package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/keibalab/racedata-ingester/internal/db"
	"github.com/keibalab/racedata-ingester/internal/jvdata"
	"github.com/keibalab/racedata-ingester/internal/schema"
	"github.com/keibalab/racedata-ingester/internal/session"
	"github.com/keibalab/racedata-ingester/internal/writer"
)

// scriptSession delivers a fixed list of record buffers.
type scriptSession struct {
	bufs  [][]byte
	files []string
	idx   int
}

func (s *scriptSession) Initialize(key string) int { return 0 }

func (s *scriptSession) Open(spec, fromTime string, option int) (int, int, int, string) {
	s.idx = 0
	return 0, len(s.bufs), 0, ""
}

func (s *scriptSession) RealTimeOpen(spec, key string) (int, int) {
	s.idx = 0
	return 0, len(s.bufs)
}

func (s *scriptSession) Status() int { return 0 }

func (s *scriptSession) ReadRecord(buf []byte) (int, string) {
	if s.idx >= len(s.bufs) {
		return 0, ""
	}
	b := s.bufs[s.idx]
	name := "F01.dat"
	if s.idx < len(s.files) {
		name = s.files[s.idx]
	}
	s.idx++
	copy(buf, b)
	return len(b), name
}

func (s *scriptSession) Skip()                      {}
func (s *scriptSession) FileDelete(name string) int { return 0 }
func (s *scriptSession) Close() int                 { return 0 }

func blank(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return b
}

func put(b []byte, off int, s string) { copy(b[off:], s) }

func raBuf(monthDay, raceNum string) []byte {
	b := blank(1272)
	put(b, 0, "RA")
	put(b, 2, "7")
	put(b, 3, "20240601")
	put(b, 11, "2024")
	put(b, 15, monthDay)
	put(b, 19, "05")
	put(b, 21, "03")
	put(b, 23, "01")
	put(b, 25, raceNum)
	return b
}

func seBuf(raceNum, umaban string) []byte {
	b := blank(555)
	put(b, 0, "SE")
	put(b, 2, "7")
	put(b, 3, "20240601")
	put(b, 11, "2024")
	put(b, 15, "0601")
	put(b, 19, "05")
	put(b, 21, "03")
	put(b, 23, "01")
	put(b, 25, raceNum)
	put(b, 28, umaban)
	put(b, 30, "20201"+umaban+"001")
	return b
}

type fixture struct {
	drv  *db.SQLite
	cat  *schema.Catalogue
	co   *Coordinator
	feed jvdata.Feed
}

func newFixture(t *testing.T, feed jvdata.Feed, factory SessionFactory, opts Options) *fixture {
	return newFixtureCfg(t, feed, factory, opts, writer.Config{})
}

func newFixtureCfg(t *testing.T, feed jvdata.Feed, factory SessionFactory, opts Options, wcfg writer.Config) *fixture {
	t.Helper()
	ctx := context.Background()

	reg := jvdata.NewRegistry(feed)
	cat, err := schema.Build(reg)
	if err != nil {
		t.Fatal(err)
	}
	drv := db.NewSQLite(":memory:")
	if err := drv.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(drv.Close)
	if err := db.Migrate(ctx, drv, cat, zap.NewNop()); err != nil {
		t.Fatal(err)
	}

	w := writer.New(drv, cat, wcfg, zap.NewNop())
	scfg := session.Config{
		PollInterval: time.Millisecond,
		ReopenWait:   time.Millisecond,
	}
	co := New(feed, reg, cat, w, factory, scfg, opts, zap.NewNop())
	return &fixture{drv: drv, cat: cat, co: co, feed: feed}
}

func (f *fixture) count(t *testing.T, table string) int {
	t.Helper()
	rows, err := f.drv.Query(context.Background(),
		fmt.Sprintf(`SELECT COUNT(*) FROM %q`, table))
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	if !rows.Next() {
		t.Fatal("no count row")
	}
	var n int
	if err := rows.Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func oneDayRecords() [][]byte {
	var bufs [][]byte
	for _, rn := range []string{"01", "02", "03"} {
		bufs = append(bufs, raBuf("0601", rn))
	}
	for race := 1; race <= 3; race++ {
		for uma := 1; uma <= 16; uma++ {
			bufs = append(bufs, seBuf(fmt.Sprintf("%02d", race), fmt.Sprintf("%02d", uma)))
		}
	}
	return bufs
}

func TestBackfillCleanPath(t *testing.T) {
	f := newFixture(t, jvdata.FeedCentral, func() session.Session {
		return &scriptSession{bufs: oneDayRecords()}
	}, Options{})

	res, err := f.co.RunBackfill(context.Background(), BackfillRequest{
		Spec: "RACE",
		From: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Completed || res.CompletedWithErrors {
		t.Errorf("result = %+v", res)
	}
	if res.Stats.Imported != 51 || res.Stats.Failed != 0 {
		t.Errorf("imported = %d, failed = %d, want 51/0", res.Stats.Imported, res.Stats.Failed)
	}
	if got := f.count(t, "NL_RA"); got != 3 {
		t.Errorf("NL_RA rows = %d, want 3", got)
	}
	if got := f.count(t, "NL_SE"); got != 48 {
		t.Errorf("NL_SE rows = %d, want 48", got)
	}
}

func TestUpsertReplacesOnSecondRun(t *testing.T) {
	f := newFixture(t, jvdata.FeedCentral, func() session.Session {
		return &scriptSession{bufs: [][]byte{raBuf("0601", "01"), raBuf("0601", "02"), raBuf("0601", "03")}}
	}, Options{})

	req := BackfillRequest{
		Spec: "RACE",
		From: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	for i := 0; i < 2; i++ {
		if _, err := f.co.RunBackfill(context.Background(), req); err != nil {
			t.Fatal(err)
		}
	}

	snap := f.co.Snapshot()
	if snap.Imported != 6 {
		t.Errorf("imported = %d, want 6 (two writes)", snap.Imported)
	}
	if got := f.count(t, "NL_RA"); got != 3 {
		t.Errorf("NL_RA rows = %d, want 3", got)
	}
}

func TestProgressMonotonic(t *testing.T) {
	var snaps []Snapshot
	f := newFixture(t, jvdata.FeedCentral, func() session.Session {
		return &scriptSession{bufs: oneDayRecords()}
	}, Options{OnProgress: func(s Snapshot) { snaps = append(snaps, s) }})

	if _, err := f.co.RunBackfill(context.Background(), BackfillRequest{
		Spec: "RACE",
		From: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatal(err)
	}

	if len(snaps) == 0 {
		t.Fatal("no progress events")
	}
	prev := Snapshot{}
	for _, s := range snaps {
		if s.Fetched < prev.Fetched || s.Imported < prev.Imported {
			t.Errorf("counters regressed: %+v after %+v", s, prev)
		}
		if s.Imported > s.Parsed || s.Parsed > s.Fetched {
			t.Errorf("invariant broken: imported %d parsed %d fetched %d",
				s.Imported, s.Parsed, s.Fetched)
		}
		prev = s
	}
}

func TestProgressReportedPerBatch(t *testing.T) {
	var snaps []Snapshot
	f := newFixtureCfg(t, jvdata.FeedCentral, func() session.Session {
		return &scriptSession{bufs: [][]byte{
			raBuf("0601", "01"), raBuf("0601", "02"), raBuf("0601", "03"),
		}}
	}, Options{OnProgress: func(s Snapshot) { snaps = append(snaps, s) }},
		writer.Config{BatchCap: 1})

	if _, err := f.co.RunBackfill(context.Background(), BackfillRequest{
		Spec: "RACE",
		From: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatal(err)
	}

	// One event per flushed batch, not just one at the end of the chunk.
	if len(snaps) < 3 {
		t.Fatalf("progress events = %d, want >= 3", len(snaps))
	}
	last := snaps[len(snaps)-1]
	if last.Imported != 3 {
		t.Errorf("final imported = %d, want 3", last.Imported)
	}
}

func TestMissingKeyNotCountedImported(t *testing.T) {
	f := newFixture(t, jvdata.FeedCentral, func() session.Session {
		// Umaban blank, so the row has no complete primary key.
		return &scriptSession{bufs: [][]byte{seBuf("01", "  ")}}
	}, Options{})

	res, err := f.co.RunBackfill(context.Background(), BackfillRequest{
		Spec: "RACE",
		From: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats.Parsed != 1 {
		t.Errorf("parsed = %d, want 1", res.Stats.Parsed)
	}
	if res.Stats.Imported != 0 || res.Stats.Failed != 1 {
		t.Errorf("imported = %d, failed = %d, want 0/1", res.Stats.Imported, res.Stats.Failed)
	}
	if got := f.count(t, "NL_SE"); got != 0 {
		t.Errorf("NL_SE rows = %d, want 0", got)
	}
}

func TestToDateFilter(t *testing.T) {
	f := newFixture(t, jvdata.FeedCentral, func() session.Session {
		return &scriptSession{bufs: [][]byte{
			raBuf("0601", "01"),
			raBuf("0615", "01"), // past the requested range
		}}
	}, Options{})

	res, err := f.co.RunBackfill(context.Background(), BackfillRequest{
		Spec: "RACE",
		From: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats.Imported != 1 {
		t.Errorf("imported = %d, want 1", res.Stats.Imported)
	}
	if got := f.count(t, "NL_RA"); got != 1 {
		t.Errorf("NL_RA rows = %d, want 1", got)
	}
}

func TestParseFailureCountsFailed(t *testing.T) {
	f := newFixture(t, jvdata.FeedCentral, func() session.Session {
		return &scriptSession{bufs: [][]byte{
			raBuf("0601", "01"),
			[]byte("ZZ garbage record"),
		}}
	}, Options{})

	res, err := f.co.RunBackfill(context.Background(), BackfillRequest{
		Spec: "RACE",
		From: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Completed || !res.CompletedWithErrors {
		t.Errorf("result = %+v", res)
	}
	if res.Stats.Imported != 1 || res.Stats.Failed != 1 {
		t.Errorf("imported = %d, failed = %d, want 1/1", res.Stats.Imported, res.Stats.Failed)
	}
}

func TestRegionalChunkingAndResume(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "state.json")
	opens := 0
	factory := func() session.Session {
		opens++
		return &scriptSession{}
	}
	f := newFixture(t, jvdata.FeedRegional, factory, Options{StateFile: stateFile})

	req := BackfillRequest{
		Spec: "RACE",
		From: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
	}

	// Pretend a previous run finished the first day.
	st := runState{Spec: "RACE", From: "20250101", To: "20250103", LastChunk: "20250101"}
	raw, _ := json.Marshal(st)
	if err := os.WriteFile(stateFile, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := f.co.RunBackfill(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Completed {
		t.Errorf("result = %+v", res)
	}
	if opens != 2 {
		t.Errorf("sessions opened = %d, want 2 (days 2 and 3)", opens)
	}
	if _, err := os.Stat(stateFile); !os.IsNotExist(err) {
		t.Error("state file not removed after completion")
	}
}

func TestMonitorTriggerRunsCycle(t *testing.T) {
	cycles := 0
	factory := func() session.Session {
		cycles++
		return &scriptSession{bufs: [][]byte{seBuf("01", fmt.Sprintf("%02d", cycles))}}
	}
	f := newFixture(t, jvdata.FeedCentral, factory, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.co.Monitor(ctx, []string{"0B15"}, time.Hour)
	}()

	waitFor(t, func() bool { return f.co.Snapshot().Imported >= 1 })
	before := f.co.Snapshot().Imported

	f.co.TriggerRealtime()
	waitFor(t, func() bool { return f.co.Snapshot().Imported > before })

	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if got := f.count(t, "RT_SE"); got < 2 {
		t.Errorf("RT_SE rows = %d, want >= 2", got)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestReplayArchive(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, jvdata.FeedCentral, func() session.Session {
		return &scriptSession{bufs: [][]byte{raBuf("0601", "01"), raBuf("0601", "02")}}
	}, Options{ArchiveDir: dir})

	if _, err := f.co.RunBackfill(context.Background(), BackfillRequest{
		Spec: "RACE",
		From: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("archive dir entries = %v, err = %v", entries, err)
	}

	n, err := f.co.ReplayArchive(context.Background(),
		filepath.Join(dir, entries[0].Name()), schema.PathAccumulated)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("replayed = %d, want 2", n)
	}
	if got := f.count(t, "NL_RA"); got != 2 {
		t.Errorf("NL_RA rows = %d, want 2", got)
	}
}
