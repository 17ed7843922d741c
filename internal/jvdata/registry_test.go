package jvdata

import (
	"bytes"
	"errors"
	"testing"

	"github.com/keibalab/racedata-ingester/internal/codec"
)

// blank returns a space-padded buffer for a kind, tag already set.
func blank(t *testing.T, r *Registry, kind string) []byte {
	t.Helper()
	l, ok := r.Layout(kind)
	if !ok {
		t.Fatalf("no layout for %s", kind)
	}
	buf := bytes.Repeat([]byte{' '}, l.Length)
	copy(buf, kind)
	copy(buf[l.Length-2:], "\r\n")
	return buf
}

func put(buf []byte, offset int, s string) {
	copy(buf[offset:], s)
}

func TestLayoutsWellFormed(t *testing.T) {
	for _, feed := range []Feed{FeedCentral, FeedRegional} {
		r := NewRegistry(feed)
		for _, kind := range r.Kinds() {
			l, _ := r.Layout(kind)
			if len(l.Key) == 0 {
				t.Errorf("%s/%s: no key", feed, kind)
			}
			names := map[string]bool{}
			for _, fd := range l.Fields {
				if fd.Length <= 0 {
					t.Errorf("%s/%s field %s: bad length %d", feed, kind, fd.Name, fd.Length)
				}
				if fd.Offset+fd.Length > l.Length-2 {
					t.Errorf("%s/%s field %s: [%d,%d) past record end %d",
						feed, kind, fd.Name, fd.Offset, fd.Offset+fd.Length, l.Length-2)
				}
				if names[fd.Name] {
					t.Errorf("%s/%s: duplicate field %s", feed, kind, fd.Name)
				}
				names[fd.Name] = true
			}
			for _, key := range l.Key {
				if !names[key] {
					t.Errorf("%s/%s: key column %s not among fields", feed, kind, key)
				}
			}
			for _, g := range l.Groups {
				if g.Offset+g.Unit*g.Count > l.Length-2 {
					t.Errorf("%s/%s group %s: repeat region past record end", feed, kind, g.Name)
				}
				gnames := map[string]bool{}
				for _, fd := range g.Fields {
					if fd.Offset+fd.Length > g.Unit {
						t.Errorf("%s/%s group %s field %s: past unit %d",
							feed, kind, g.Name, fd.Name, g.Unit)
					}
					gnames[fd.Name] = true
				}
				for _, key := range g.Key {
					if !gnames[key] && key != g.IndexColumn {
						t.Errorf("%s/%s group %s: key column %s not among group fields",
							feed, kind, g.Name, key)
					}
				}
				for _, c := range l.carryFields() {
					if !names[c] {
						t.Errorf("%s/%s: carry column %s not among base fields", feed, kind, c)
					}
					if gnames[c] {
						t.Errorf("%s/%s group %s: carry column %s collides with group field",
							feed, kind, g.Name, c)
					}
				}
			}
		}
	}
}

func TestCentralKindCount(t *testing.T) {
	r := NewRegistry(FeedCentral)
	if got := len(r.Kinds()); got != 38 {
		t.Fatalf("central kinds = %d, want 38", got)
	}
	reg := NewRegistry(FeedRegional)
	if got := len(reg.Kinds()); got != 41 {
		t.Fatalf("regional kinds = %d, want 41", got)
	}
}

func TestParseRA(t *testing.T) {
	r := NewRegistry(FeedCentral)
	buf := blank(t, r, "RA")
	put(buf, 2, "7")
	put(buf, 3, "20250105")
	put(buf, 11, "2025")
	put(buf, 15, "0105")
	put(buf, 19, "06")
	put(buf, 21, "01")
	put(buf, 23, "02")
	put(buf, 25, "11")
	put(buf, 697, "1600")
	put(buf, 881, "18")
	put(buf, 890, "123") // first lap, 12.3s

	rows, err := r.Parse(buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if row.Kind != "RA" || row.Group != "" {
		t.Fatalf("kind/group = %s/%s", row.Kind, row.Group)
	}
	checks := map[string]codec.Value{
		"Year":       codec.Int(2025),
		"MonthDay":   codec.Text("0105"),
		"JyoCD":      codec.Text("06"),
		"RaceNum":    codec.Int(11),
		"Kyori":      codec.Int(1600),
		"TorokuTosu": codec.Int(18),
		"LapTime1":   codec.Real(12.3),
		"LapTime2":   codec.Null,
		"Hondai":     codec.Text(""),
	}
	for name, want := range checks {
		if got := row.Values[name]; !got.Equal(want) {
			t.Errorf("%s = %#v, want %#v", name, got, want)
		}
	}
	if row.Warnings != 0 {
		t.Errorf("warnings = %d, want 0", row.Warnings)
	}
}

func TestParseO1ExpandsGroups(t *testing.T) {
	r := NewRegistry(FeedCentral)
	buf := blank(t, r, "O1")
	put(buf, 11, "2025")
	put(buf, 15, "0105")
	put(buf, 19, "06")
	put(buf, 21, "01")
	put(buf, 23, "02")
	put(buf, 25, "11")
	put(buf, 27, "01051540")
	// Two win entries, one place entry, one bracket entry.
	put(buf, 43, "01"+"0035"+"02")
	put(buf, 51, "02"+"1902"+"01")
	put(buf, 267, "01"+"0120"+"0180"+"01")
	put(buf, 603, "12"+"00450"+"36")

	rows, err := r.Parse(buf)
	if err != nil {
		t.Fatal(err)
	}
	// Base row plus four combination rows.
	if len(rows) != 5 {
		t.Fatalf("rows = %d, want 5", len(rows))
	}
	byGroup := map[string][]ParsedRecord{}
	for _, row := range rows {
		byGroup[row.Group] = append(byGroup[row.Group], row)
	}
	if len(byGroup[""]) != 1 || len(byGroup["Tansyo"]) != 2 ||
		len(byGroup["Fukusyo"]) != 1 || len(byGroup["Wakuren"]) != 1 {
		t.Fatalf("group split = base:%d tansyo:%d fukusyo:%d wakuren:%d",
			len(byGroup[""]), len(byGroup["Tansyo"]), len(byGroup["Fukusyo"]), len(byGroup["Wakuren"]))
	}

	tan := byGroup["Tansyo"][0]
	if got := tan.Values["Umaban"]; !got.Equal(codec.Int(1)) {
		t.Errorf("Umaban = %#v", got)
	}
	if got := tan.Values["Odds"]; !got.Equal(codec.Real(3.5)) {
		t.Errorf("Odds = %#v", got)
	}
	// Base identity carried into the combination row.
	if got := tan.Values["HappyoTime"]; !got.Equal(codec.Text("01051540")) {
		t.Errorf("HappyoTime = %#v", got)
	}
	if got := tan.Values["RaceNum"]; !got.Equal(codec.Int(11)) {
		t.Errorf("RaceNum = %#v", got)
	}

	fuku := byGroup["Fukusyo"][0]
	if got := fuku.Values["OddsLow"]; !got.Equal(codec.Real(12.0)) {
		t.Errorf("OddsLow = %#v", got)
	}
	if got := fuku.Values["OddsHigh"]; !got.Equal(codec.Real(18.0)) {
		t.Errorf("OddsHigh = %#v", got)
	}
}

func TestParseWHSkipsBase(t *testing.T) {
	r := NewRegistry(FeedCentral)
	buf := blank(t, r, "WH")
	put(buf, 11, "2025")
	put(buf, 15, "0105")
	put(buf, 19, "06")
	put(buf, 21, "01")
	put(buf, 23, "02")
	put(buf, 25, "01")
	put(buf, 27, "01050945")
	put(buf, 35, "01")
	put(buf, 37, "TESTHORSE")
	put(buf, 73, "486")
	put(buf, 76, "+")
	put(buf, 77, "004")

	rows, err := r.Parse(buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1 (no base row)", len(rows))
	}
	if rows[0].Group != "Bataijyu" {
		t.Fatalf("group = %s", rows[0].Group)
	}
	if got := rows[0].Values["BaTaijyu"]; !got.Equal(codec.Int(486)) {
		t.Errorf("BaTaijyu = %#v", got)
	}
	if got := rows[0].Values["ZogenSa"]; !got.Equal(codec.Int(4)) {
		t.Errorf("ZogenSa = %#v", got)
	}
}

func TestParseFieldWarning(t *testing.T) {
	r := NewRegistry(FeedCentral)
	buf := blank(t, r, "WE")
	put(buf, 11, "2O25") // letter O in a numeric field
	rows, err := r.Parse(buf)
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].Warnings != 1 {
		t.Errorf("warnings = %d, want 1", rows[0].Warnings)
	}
	if !rows[0].Values["Year"].IsNull() {
		t.Errorf("Year = %#v, want null", rows[0].Values["Year"])
	}
}

func TestParseErrors(t *testing.T) {
	r := NewRegistry(FeedCentral)

	if _, err := r.Parse([]byte("ZZ" + "rest")); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("unknown kind: err = %v", err)
	}

	var short *codec.ErrShortBuffer
	if _, err := r.Parse([]byte("RA123")); !errors.As(err, &short) {
		t.Errorf("short buffer: err = %v", err)
	}

	if _, err := r.Parse([]byte("X")); !errors.As(err, &short) {
		t.Errorf("tag read: err = %v", err)
	}
}

func TestRegionalOnlyKinds(t *testing.T) {
	central := NewRegistry(FeedCentral)
	regional := NewRegistry(FeedRegional)
	for _, kind := range []string{"HA", "NU", "NC"} {
		if _, ok := central.Layout(kind); ok {
			t.Errorf("%s registered on central feed", kind)
		}
		if _, ok := regional.Layout(kind); !ok {
			t.Errorf("%s missing on regional feed", kind)
		}
	}
}

func TestParseHAEntryNumbers(t *testing.T) {
	r := NewRegistry(FeedRegional)
	buf := blank(t, r, "HA")
	put(buf, 11, "20250105")
	put(buf, 19, "36")
	put(buf, 21, "01")
	put(buf, 23, "02")
	put(buf, 25, "07")
	// Entry 1 and entry 3; entry 2 left as section padding.
	put(buf, 63, "01"+"0000000000350")
	put(buf, 63+30, "05"+"0000000001120")

	rows, err := r.Parse(buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want base + 2 entries", len(rows))
	}
	first, third := rows[1], rows[2]
	if got := first.Values["EntryNum"]; !got.Equal(codec.Int(1)) {
		t.Errorf("EntryNum = %#v, want 1", got)
	}
	if got := third.Values["EntryNum"]; !got.Equal(codec.Int(3)) {
		t.Errorf("EntryNum = %#v, want 3", got)
	}
	if got := third.Values["Pay"]; !got.Equal(codec.Int(1120)) {
		t.Errorf("Pay = %#v", got)
	}
	if got := first.Values["KaisaiDate"]; !got.Equal(codec.Text("20250105")) {
		t.Errorf("KaisaiDate = %#v", got)
	}
}
