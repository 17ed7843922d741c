// Package jvdata holds the record layouts for the vendor feeds and the
// registry that turns raw record buffers into typed rows.
//
// Every record kind is described declaratively by a Layout: a list of
// fixed-offset fields plus zero or more repeated groups (odds
// combinations, payout hits, vote counts). The registry walks the
// layout, decodes each field with internal/codec and expands groups
// into one row per repetition.
package jvdata

import "github.com/keibalab/racedata-ingester/internal/codec"

// FieldCodec selects how a field's bytes are decoded.
type FieldCodec int

const (
	// Text decodes Shift-JIS bytes to UTF-8.
	Text FieldCodec = iota
	// Int decodes an ASCII digit run, null when empty.
	Int
	// Real decodes an ASCII digit run with an implicit decimal
	// point; FieldDef.Scale gives the number of fractional digits.
	Real
)

// FieldDef is one fixed-offset field. Offsets are absolute for layout
// base fields and group-relative for fields inside a GroupDef.
type FieldDef struct {
	Name   string
	Offset int
	Length int
	Codec  FieldCodec
	Scale  int
}

// GroupDef is a repeated sub-layout. The repeat region spans
// [Offset, Offset+Unit*Count). Repetitions whose fields all decode to
// null (space padding for absent combinations) are dropped.
type GroupDef struct {
	// Name distinguishes the group's destination table when a kind
	// carries more than one group (O1 sells three bet types).
	Name   string
	Offset int
	Unit   int
	Count  int
	Fields []FieldDef
	// Key lists the group field names that extend the carried base
	// key to a full row key.
	Key []string
	// IndexColumn, when set, adds the 0-based repetition index as an
	// extra column. Used where the group fields alone do not
	// identify a repetition.
	IndexColumn string
}

// Layout describes one record kind end to end.
type Layout struct {
	Kind   string
	Length int // full record length including the trailing CR LF
	Fields []FieldDef
	Groups []GroupDef
	// Key names the base fields forming the primary key of the base
	// table.
	Key []string
	// Carry names the base fields copied into every group row. It is
	// the base-key prefix of each group table's key. Defaults to Key
	// when empty.
	Carry []string
	// SkipBase drops the base row and emits group rows only.
	SkipBase bool
}

// carryFields resolves the effective carry list.
func (l *Layout) carryFields() []string {
	if len(l.Carry) > 0 {
		return l.Carry
	}
	return l.Key
}

// ParsedRecord is one decoded row. Group is empty for the base row and
// the group name for expanded repetitions.
type ParsedRecord struct {
	Kind   string
	Group  string
	Values map[string]codec.Value
	// Warnings counts fields that held undecodable bytes and were
	// stored as null.
	Warnings int
}

// f is shorthand for building field tables.
func f(name string, offset, length int, c FieldCodec) FieldDef {
	return FieldDef{Name: name, Offset: offset, Length: length, Codec: c}
}

// fr builds a Real field with a decimal scale.
func fr(name string, offset, length, scale int) FieldDef {
	return FieldDef{Name: name, Offset: offset, Length: length, Codec: Real, Scale: scale}
}

// recordHeader is the RecordSpec / DataKubun / MakeDate prefix common
// to every kind on both feeds.
func recordHeader() []FieldDef {
	return []FieldDef{
		f("RecordSpec", 0, 2, Text),
		f("DataKubun", 2, 1, Text),
		f("MakeDate", 3, 8, Text),
	}
}

// raceIDFields is the six-part race identity starting at offset 11.
func raceIDFields() []FieldDef {
	return []FieldDef{
		f("Year", 11, 4, Int),
		f("MonthDay", 15, 4, Text),
		f("JyoCD", 19, 2, Text),
		f("Kaiji", 21, 2, Int),
		f("Nichiji", 23, 2, Int),
		f("RaceNum", 25, 2, Int),
	}
}

// raceKey is the base-table key shared by every per-race kind.
var raceKey = []string{"Year", "MonthDay", "JyoCD", "Kaiji", "Nichiji", "RaceNum"}

// meetingKey identifies a meeting day without a race number (WE, YS).
var meetingKey = []string{"Year", "MonthDay", "JyoCD", "Kaiji", "Nichiji"}

func fields(parts ...[]FieldDef) []FieldDef {
	var out []FieldDef
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
