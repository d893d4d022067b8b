package extract

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Coord is a 0-based cell address in the report template's table.
type Coord struct {
	Row int
	Col int
}

// Field binds a scalar field name to its template cell. The page element
// carrying the value has class "bug-{Name}".
type Field struct {
	Name string
	At   Coord
}

// FieldMap is the immutable table binding field names to template cells.
// Build it once with NewFieldMap or DefaultFieldMap and pass it by value.
type FieldMap struct {
	fields     []Field
	custom     []Coord
	identifier string
}

// NewFieldMap validates and freezes a field layout. identifier names the
// field rendered as a hyperlink to the source page; it may be empty.
func NewFieldMap(fields []Field, custom []Coord, identifier string) (FieldMap, error) {
	seenName := make(map[string]bool, len(fields))
	seenCell := make(map[Coord]string, len(fields)+len(custom))

	claim := func(c Coord, owner string) error {
		if c.Row < 0 || c.Col < 0 {
			return fmt.Errorf("field %q: negative coordinate (%d,%d)", owner, c.Row, c.Col)
		}
		if prev, ok := seenCell[c]; ok {
			return fmt.Errorf("field %q: cell (%d,%d) already mapped to %q", owner, c.Row, c.Col, prev)
		}
		seenCell[c] = owner
		return nil
	}

	for _, f := range fields {
		if f.Name == "" {
			return FieldMap{}, fmt.Errorf("field with empty name at (%d,%d)", f.At.Row, f.At.Col)
		}
		if seenName[f.Name] {
			return FieldMap{}, fmt.Errorf("duplicate field %q", f.Name)
		}
		seenName[f.Name] = true
		if err := claim(f.At, f.Name); err != nil {
			return FieldMap{}, err
		}
	}
	for i, c := range custom {
		if err := claim(c, fmt.Sprintf("custom[%d]", i)); err != nil {
			return FieldMap{}, err
		}
	}
	if identifier != "" && !seenName[identifier] {
		return FieldMap{}, fmt.Errorf("identifier field %q is not mapped", identifier)
	}

	return FieldMap{
		fields:     append([]Field(nil), fields...),
		custom:     append([]Coord(nil), custom...),
		identifier: identifier,
	}, nil
}

// Fields returns the scalar fields in declaration order.
func (m FieldMap) Fields() []Field { return append([]Field(nil), m.fields...) }

// Custom returns the custom-field coordinates in occurrence order.
func (m FieldMap) Custom() []Coord { return append([]Coord(nil), m.custom...) }

// Identifier returns the hyperlinked field name.
func (m FieldMap) Identifier() string { return m.identifier }

// Bounds returns the minimum table size (rows, columns) the map addresses.
func (m FieldMap) Bounds() (rows, cols int) {
	grow := func(c Coord) {
		rows = max(rows, c.Row+1)
		cols = max(cols, c.Col+1)
	}
	for _, f := range m.fields {
		grow(f.At)
	}
	for _, c := range m.custom {
		grow(c)
	}
	return rows, cols
}

// DefaultFieldMap is the MantisBT issue layout used by the shipped report
// template.
func DefaultFieldMap() FieldMap {
	fields := []Field{
		{"id", Coord{1, 0}},
		{"project", Coord{1, 1}},
		{"category", Coord{1, 2}},
		{"view-status", Coord{1, 3}},
		{"date-submitted", Coord{1, 4}},
		{"last-modified", Coord{1, 5}},
		{"reporter", Coord{3, 1}},
		{"assigned-to", Coord{3, 3}},
		{"priority", Coord{4, 1}},
		{"severity", Coord{4, 3}},
		{"reproducibility", Coord{4, 5}},
		{"status", Coord{5, 1}},
		{"resolution", Coord{5, 3}},
		{"summary", Coord{7, 1}},
		{"description", Coord{8, 1}},
		{"steps-to-reproduce", Coord{9, 1}},
	}
	custom := make([]Coord, 12)
	for i := range custom {
		custom[i] = Coord{Row: 11 + i, Col: 1}
	}
	m, err := NewFieldMap(fields, custom, "id")
	if err != nil {
		panic(err)
	}
	return m
}

type fieldMapFile struct {
	Identifier string `toml:"identifier"`
	Fields     []struct {
		Name string `toml:"name"`
		Row  int    `toml:"row"`
		Col  int    `toml:"col"`
	} `toml:"field"`
	Custom []struct {
		Row int `toml:"row"`
		Col int `toml:"col"`
	} `toml:"custom"`
}

// LoadFieldMap reads a layout from a TOML file:
//
//	identifier = "id"
//
//	[[field]]
//	name = "id"
//	row = 1
//	col = 0
//
//	[[custom]]
//	row = 11
//	col = 1
func LoadFieldMap(path string) (FieldMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FieldMap{}, fmt.Errorf("read field map: %w", err)
	}
	var file fieldMapFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return FieldMap{}, fmt.Errorf("parse field map %s: %w", path, err)
	}

	fields := make([]Field, 0, len(file.Fields))
	for _, f := range file.Fields {
		fields = append(fields, Field{Name: f.Name, At: Coord{Row: f.Row, Col: f.Col}})
	}
	custom := make([]Coord, 0, len(file.Custom))
	for _, c := range file.Custom {
		custom = append(custom, Coord{Row: c.Row, Col: c.Col})
	}

	m, err := NewFieldMap(fields, custom, file.Identifier)
	if err != nil {
		return FieldMap{}, fmt.Errorf("field map %s: %w", path, err)
	}
	return m, nil
}
