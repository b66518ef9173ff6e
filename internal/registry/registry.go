// Package registry holds the closed catalogue of CPT measurement columns.
//
// Column ids follow the GEF-CPT quantity numbers, which are also the order
// used by the BRO/IMBRO column enumeration. Descriptions are matched after
// normalization, so "Cone  Resistance" and "cone resistance" resolve to the
// same column.
package registry

// Column describes a known measurement channel.
type Column struct {
	ID          int    `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	Unit        string `json:"unit" yaml:"unit"`
}

// columns lists every known column in id order.
var columns = []Column{
	{ID: 1, Description: "penetration length", Unit: "m"},
	{ID: 2, Description: "cone resistance", Unit: "MPa"},
	{ID: 3, Description: "local friction", Unit: "MPa"},
	{ID: 4, Description: "friction ratio", Unit: "-"},
	{ID: 5, Description: "pore pressure u1", Unit: "MPa"},
	{ID: 6, Description: "pore pressure u2", Unit: "MPa"},
	{ID: 7, Description: "pore pressure u3", Unit: "MPa"},
	{ID: 8, Description: "inclination resultant", Unit: "degrees"},
	{ID: 9, Description: "inclination ns", Unit: "degrees"},
	{ID: 10, Description: "inclination ew", Unit: "degrees"},
	{ID: 11, Description: "depth", Unit: "m"},
	{ID: 12, Description: "elapsed time", Unit: "s"},
	{ID: 13, Description: "corrected cone resistance", Unit: "MPa"},
	{ID: 14, Description: "net cone resistance", Unit: "MPa"},
	{ID: 15, Description: "pore ratio", Unit: "-"},
	{ID: 21, Description: "inclination x", Unit: "degrees"},
	{ID: 22, Description: "inclination y", Unit: "degrees"},
	{ID: 23, Description: "electrical conductivity", Unit: "S/m"},
	{ID: 31, Description: "magnetic field strength x", Unit: "nT"},
	{ID: 32, Description: "magnetic field strength y", Unit: "nT"},
	{ID: 33, Description: "magnetic field strength z", Unit: "nT"},
	{ID: 34, Description: "magnetic field strength total", Unit: "nT"},
	{ID: 35, Description: "magnetic inclination", Unit: "degrees"},
	{ID: 36, Description: "magnetic declination", Unit: "degrees"},
}

var (
	byID          = make(map[int]Column, len(columns))
	byDescription = make(map[string]Column, len(columns))
)

func init() {
	for _, c := range columns {
		byID[c.ID] = c
		byDescription[Normalize(c.Description)] = c
	}
}

// All returns a copy of every known column in id order.
func All() []Column {
	out := make([]Column, len(columns))
	copy(out, columns)
	return out
}

// ByID returns the column with the given quantity number.
func ByID(id int) (Column, bool) {
	c, ok := byID[id]
	return c, ok
}

// ByDescription returns the column whose normalized description matches desc.
func ByDescription(desc string) (Column, bool) {
	c, ok := byDescription[Normalize(desc)]
	return c, ok
}

// ByParameter resolves a camel-cased XML parameter name such as
// "coneResistance" or "inclinationNS".
func ByParameter(name string) (Column, bool) {
	return ByDescription(UndoCamelCase(name))
}
