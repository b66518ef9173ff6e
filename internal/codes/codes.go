// Package codes maps descriptive BRO vocabulary onto GEF header codes.
//
// Every table is total: a name that is not in the table resolves to the
// table's fallback code instead of failing. Conversions keep working on
// vocabulary the tables have not seen yet, at the cost of a lossy "-" code.
package codes

// Fallback is the code returned for names a table does not know.
const Fallback = "-"

// Entry pairs a descriptive name with its GEF code.
type Entry struct {
	Name string `json:"name" yaml:"name"`
	Code string `json:"code" yaml:"code"`
}

// Table is an immutable name → code mapping with a fallback.
type Table struct {
	title    string
	entries  []Entry
	byName   map[string]string
	fallback string
}

func newTable(title, fallback string, entries ...Entry) *Table {
	t := &Table{
		title:    title,
		entries:  entries,
		byName:   make(map[string]string, len(entries)),
		fallback: fallback,
	}
	for _, e := range entries {
		t.byName[e.Name] = e.Code
	}
	return t
}

// Title returns the table's display name.
func (t *Table) Title() string { return t.title }

// Fallback returns the code used for unknown names.
func (t *Table) Fallback() string { return t.fallback }

// Lookup returns the code for name, or the fallback code. It never fails.
func (t *Table) Lookup(name string) string {
	code, _ := t.Resolve(name)
	return code
}

// Resolve is Lookup that also reports whether name was known.
func (t *Table) Resolve(name string) (string, bool) {
	if code, ok := t.byName[name]; ok {
		return code, true
	}
	return t.fallback, false
}

// Name returns the first name declared for code.
func (t *Table) Name(code string) (string, bool) {
	for _, e := range t.entries {
		if e.Code == code {
			return e.Name, true
		}
	}
	return "", false
}

// Entries returns a copy of the table's entries in declaration order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// VerticalDatum maps vertical datum names to GEF #ZID codes.
var VerticalDatum = newTable("vertical datum (ZID)", Fallback,
	Entry{"Low Low Water Spring", "00001"},
	Entry{"NAP", "31000"},
	Entry{"Ostend Level", "32000"},
	Entry{"TAW", "32001"},
	Entry{"Normal Null", "49000"},
)

// CoordinateSystem maps coordinate system and transformation names to GEF #XYID codes.
var CoordinateSystem = newTable("coordinate system (XYID)", Fallback,
	Entry{"Geographic Coordinate System", "00001"},
	Entry{"SPCS", "01000"},
	Entry{"RD", "31000"},
	Entry{"RDNAPTRANS2008", "31000"},
	Entry{"UTM-3N", "31001"},
	Entry{"UTM-9N", "31002"},
	Entry{"Belgian Bessel", "32000"},
	Entry{"Gauss-Krüger", "49000"},
)

// StopCriterion maps BRO stop criteria to GEF MEASUREMENTVAR 17 codes.
var StopCriterion = newTable("stop criterion", Fallback,
	Entry{"einddiepte", "0"},
	Entry{"wegdrukkracht", "1"},
	Entry{"obstakel", "6"},
	Entry{"bezwijkrisico", "7"},
	Entry{"storing", "8"},
)

// CPTMethod maps BRO cone penetration methods to GEF MEASUREMENTVAR 12 codes.
var CPTMethod = newTable("cpt method", Fallback,
	Entry{"elektrisch", "0"},
	Entry{"elektrischContinu", "4"},
)

// All returns every table in a stable order.
func All() []*Table {
	return []*Table{VerticalDatum, CoordinateSystem, StopCriterion, CPTMethod}
}
