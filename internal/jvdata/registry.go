package jvdata

import (
	"errors"
	"fmt"

	"github.com/keibalab/racedata-ingester/internal/codec"
)

// Feed selects the vendor data source.
type Feed int

const (
	FeedCentral Feed = iota
	FeedRegional
)

func (f Feed) String() string {
	if f == FeedRegional {
		return "regional"
	}
	return "central"
}

// ErrUnknownKind reports a record tag no layout is registered for. The
// record is skipped, not fatal.
var ErrUnknownKind = errors.New("jvdata: unknown record kind")

// Registry maps record tags to layouts for one feed.
type Registry struct {
	feed    Feed
	layouts map[string]*Layout
}

// NewRegistry builds the layout set for a feed. The regional feed
// reuses every central layout whose byte format matches and adds the
// regional-only kinds.
func NewRegistry(feed Feed) *Registry {
	r := &Registry{feed: feed, layouts: make(map[string]*Layout)}
	for _, l := range centralLayouts() {
		r.layouts[l.Kind] = l
	}
	if feed == FeedRegional {
		for _, l := range regionalLayouts() {
			r.layouts[l.Kind] = l
		}
	}
	return r
}

// Feed returns the feed this registry decodes.
func (r *Registry) Feed() Feed { return r.feed }

// Kinds returns the registered record tags in unspecified order.
func (r *Registry) Kinds() []string {
	out := make([]string, 0, len(r.layouts))
	for k := range r.layouts {
		out = append(out, k)
	}
	return out
}

// Layout returns the layout for a record tag.
func (r *Registry) Layout(kind string) (*Layout, bool) {
	l, ok := r.layouts[kind]
	return l, ok
}

// Kind reads the two-byte record tag from a raw buffer.
func (r *Registry) Kind(buf []byte) (string, error) {
	if len(buf) < 2 {
		return "", &codec.ErrShortBuffer{Need: 2, Have: len(buf)}
	}
	return string(buf[:2]), nil
}

// Parse decodes one raw record into rows. Kinds without repeated
// groups produce exactly one row; kinds with groups additionally
// produce one row per non-empty repetition, each carrying the base
// identity fields. A buffer shorter than the layout requires is an
// error; a field that merely holds junk decodes to null and bumps the
// row's warning count.
func (r *Registry) Parse(buf []byte) ([]ParsedRecord, error) {
	kind, err := r.Kind(buf)
	if err != nil {
		return nil, err
	}
	layout, ok := r.layouts[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	base := ParsedRecord{Kind: kind, Values: make(map[string]codec.Value, len(layout.Fields))}
	for _, fd := range layout.Fields {
		v, warn, err := decodeField(buf, fd, 0)
		if err != nil {
			return nil, fmt.Errorf("jvdata: %s field %s: %w", kind, fd.Name, err)
		}
		if warn {
			base.Warnings++
		}
		base.Values[fd.Name] = v
	}

	var out []ParsedRecord
	if !layout.SkipBase {
		out = append(out, base)
	}

	carry := layout.carryFields()
	for gi := range layout.Groups {
		g := &layout.Groups[gi]
		reps, err := codec.Repeat(buf, g.Offset, g.Unit, g.Count)
		if err != nil {
			return nil, fmt.Errorf("jvdata: %s group %s: %w", kind, g.Name, err)
		}
		for _, rep := range reps {
			row := ParsedRecord{Kind: kind, Group: g.Name,
				Values: make(map[string]codec.Value, len(carry)+len(g.Fields)+1)}
			empty := true
			for _, fd := range g.Fields {
				v, warn, err := decodeField(rep.Buf, fd, 0)
				if err != nil {
					return nil, fmt.Errorf("jvdata: %s group %s field %s: %w", kind, g.Name, fd.Name, err)
				}
				if warn {
					row.Warnings++
				}
				if !v.IsNull() {
					empty = false
				}
				row.Values[fd.Name] = v
			}
			// All-null repetitions are space padding for unsold or
			// absent combinations.
			if empty {
				continue
			}
			for _, name := range carry {
				row.Values[name] = base.Values[name]
			}
			if g.IndexColumn != "" {
				row.Values[g.IndexColumn] = codec.Int(int64(rep.Index + 1))
			}
			out = append(out, row)
		}
	}
	return out, nil
}

func decodeField(buf []byte, fd FieldDef, shift int) (codec.Value, bool, error) {
	switch fd.Codec {
	case Int:
		v, ok, err := codec.ASCIIInt(buf, fd.Offset+shift, fd.Length)
		return v, !ok, err
	case Real:
		v, ok, err := codec.ASCIIReal(buf, fd.Offset+shift, fd.Length, fd.Scale)
		return v, !ok, err
	default:
		v, err := codec.SJISText(buf, fd.Offset+shift, fd.Length)
		return v, false, err
	}
}
