// Package schema derives the destination-table catalogue from the
// record layouts and routes parsed rows to table names.
//
// Accumulated-path tables carry the NL_ prefix, real-time snapshots
// the RT_ prefix, and every regional-feed table additionally a _REG
// suffix. The two paths share column sets; a real-time table exists
// only for the kinds the vendor serves through snapshot specs.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/keibalab/racedata-ingester/internal/jvdata"
)

// Path selects between the accumulated store and the real-time
// snapshot store.
type Path int

const (
	PathAccumulated Path = iota
	PathRealTime
)

func (p Path) String() string {
	if p == PathRealTime {
		return "realtime"
	}
	return "accumulated"
}

func (p Path) prefix() string {
	if p == PathRealTime {
		return "RT_"
	}
	return "NL_"
}

// ColumnType is the driver-neutral storage class of a column.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeInteger
	TypeReal
)

type Column struct {
	Name string
	Type ColumnType
}

// TableDef is one destination table: ordered columns and the primary
// key the upsert conflicts on.
type TableDef struct {
	Name    string
	Columns []Column
	Key     []string
}

// Column returns the definition of a named column.
func (t *TableDef) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// realTimeKinds lists the record kinds the vendor also serves through
// real-time snapshot specs.
var realTimeKinds = map[string]bool{
	"RA": true, "SE": true, "HR": true, "H1": true, "H6": true,
	"O1": true, "O2": true, "O3": true, "O4": true, "O5": true, "O6": true,
	"WH": true, "WE": true, "AV": true, "JC": true, "TC": true, "CC": true,
	"JG": true, "DM": true, "TM": true,
}

type routeID struct {
	path  Path
	kind  string
	group string
}

// Catalogue maps (path, kind, group) to destination tables for one
// feed's registry.
type Catalogue struct {
	feed   jvdata.Feed
	tables map[string]*TableDef
	routes map[routeID]string
}

// Build derives the catalogue from a registry. Every table must end up
// with a primary key; a keyless layout is a programming error and is
// refused rather than defaulted.
func Build(reg *jvdata.Registry) (*Catalogue, error) {
	c := &Catalogue{
		feed:   reg.Feed(),
		tables: make(map[string]*TableDef),
		routes: make(map[routeID]string),
	}
	for _, kind := range reg.Kinds() {
		layout, _ := reg.Layout(kind)
		paths := []Path{PathAccumulated}
		if realTimeKinds[kind] {
			paths = append(paths, PathRealTime)
		}
		for _, p := range paths {
			if err := c.addKind(p, layout); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

func (c *Catalogue) addKind(p Path, layout *jvdata.Layout) error {
	suffix := ""
	if c.feed == jvdata.FeedRegional {
		suffix = "_REG"
	}

	baseCols := make(map[string]Column, len(layout.Fields))
	for _, fd := range layout.Fields {
		baseCols[fd.Name] = Column{Name: fd.Name, Type: columnType(fd.Codec)}
	}

	if !layout.SkipBase {
		name := p.prefix() + layout.Kind + suffix
		def := &TableDef{Name: name, Key: layout.Key}
		for _, fd := range layout.Fields {
			def.Columns = append(def.Columns, baseCols[fd.Name])
		}
		if err := c.add(def, routeID{p, layout.Kind, ""}); err != nil {
			return err
		}
	}

	carry := layout.Carry
	if len(carry) == 0 {
		carry = layout.Key
	}
	for i := range layout.Groups {
		g := &layout.Groups[i]
		name := p.prefix() + layout.Kind + "_" + strings.ToUpper(g.Name) + suffix
		def := &TableDef{Name: name}
		for _, cn := range carry {
			col, ok := baseCols[cn]
			if !ok {
				return fmt.Errorf("schema: %s group %s: carry column %s not in base fields",
					layout.Kind, g.Name, cn)
			}
			def.Columns = append(def.Columns, col)
		}
		if g.IndexColumn != "" {
			def.Columns = append(def.Columns, Column{Name: g.IndexColumn, Type: TypeInteger})
		}
		for _, fd := range g.Fields {
			def.Columns = append(def.Columns, Column{Name: fd.Name, Type: columnType(fd.Codec)})
		}
		def.Key = append(append([]string{}, carry...), g.Key...)
		if err := c.add(def, routeID{p, layout.Kind, g.Name}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalogue) add(def *TableDef, id routeID) error {
	if len(def.Key) == 0 {
		return fmt.Errorf("schema: table %s has no primary key", def.Name)
	}
	for _, k := range def.Key {
		if _, ok := def.Column(k); !ok {
			return fmt.Errorf("schema: table %s: key column %s missing", def.Name, k)
		}
	}
	if _, dup := c.tables[def.Name]; dup {
		return fmt.Errorf("schema: duplicate table %s", def.Name)
	}
	c.tables[def.Name] = def
	c.routes[id] = def.Name
	return nil
}

func columnType(fc jvdata.FieldCodec) ColumnType {
	switch fc {
	case jvdata.Int:
		return TypeInteger
	case jvdata.Real:
		return TypeReal
	default:
		return TypeText
	}
}

// Route resolves the destination table for a parsed row. Kinds outside
// the real-time subset have no snapshot table and fail the real-time
// path.
func (c *Catalogue) Route(p Path, kind, group string) (string, error) {
	name, ok := c.routes[routeID{p, kind, group}]
	if !ok {
		return "", fmt.Errorf("schema: no %s table for kind %s group %q", p, kind, group)
	}
	return name, nil
}

// Schema returns the definition of a catalogue table.
func (c *Catalogue) Schema(name string) (*TableDef, bool) {
	def, ok := c.tables[name]
	return def, ok
}

// Tables returns all table definitions sorted by name. The migrate
// subcommand walks this.
func (c *Catalogue) Tables() []*TableDef {
	out := make([]*TableDef, 0, len(c.tables))
	for _, def := range c.tables {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
