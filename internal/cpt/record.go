package cpt

import (
	"cmp"
	"math"
	"slices"
)

// Channel identifies a measurement series in a Record.
type Channel string

const (
	ChannelQc                Channel = "qc"
	ChannelFs                Channel = "fs"
	ChannelRf                Channel = "Rf"
	ChannelElevation         Channel = "elevation"
	ChannelCorrectedDepth    Channel = "corrected_depth"
	ChannelPenetrationLength Channel = "penetration_length"
	ChannelInclination       Channel = "inclination"
	ChannelInclinationNS     Channel = "inclination_n_s"
	ChannelInclinationEW     Channel = "inclination_e_w"
	ChannelU2                Channel = "u2"
)

// KnownChannels lists every channel in display order.
var KnownChannels = []Channel{
	ChannelPenetrationLength,
	ChannelCorrectedDepth,
	ChannelElevation,
	ChannelQc,
	ChannelFs,
	ChannelRf,
	ChannelU2,
	ChannelInclination,
	ChannelInclinationNS,
	ChannelInclinationEW,
}

// Series is an ordered sequence of samples. A nil entry is a missing sample.
type Series []*float64

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Values builds a Series with every sample present.
func Values(vs ...float64) Series {
	s := make(Series, len(vs))
	for i, v := range vs {
		s[i] = Float(v)
	}
	return s
}

// Last returns the last present sample.
func (s Series) Last() (float64, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] != nil {
			return *s[i], true
		}
	}
	return 0, false
}

// Coordinates is a horizontal position in the survey's coordinate system.
type Coordinates struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Headers holds the scalar survey fields. Only Name is required; every other
// field is optional and left nil/empty when the source does not carry it.
type Headers struct {
	// Name is the survey identifier (GEF #TESTID, BRO broId)
	Name string `json:"name" yaml:"name"`

	// FileDate is formatted YYYY-MM-DD
	FileDate string `json:"gef_file_date,omitempty" yaml:"gef_file_date,omitempty"`

	// HeightSystem is the vertical datum name, e.g. "NAP"
	HeightSystem string `json:"height_system,omitempty" yaml:"height_system,omitempty"`

	// FixedHorizontalLevel is the local vertical reference point, e.g. "maaiveld"
	FixedHorizontalLevel string `json:"fixed_horizontal_level,omitempty" yaml:"fixed_horizontal_level,omitempty"`

	ConeType string `json:"cone_type,omitempty" yaml:"cone_type,omitempty"`

	// Cone geometry: areas in mm2, quotients dimensionless, distance in mm
	ConeTipArea                        *float64 `json:"cone_tip_area,omitempty" yaml:"cone_tip_area,omitempty"`
	FrictionSleeveArea                 *float64 `json:"friction_sleeve_area,omitempty" yaml:"friction_sleeve_area,omitempty"`
	SurfaceAreaQuotientTip             *float64 `json:"surface_area_quotient_tip,omitempty" yaml:"surface_area_quotient_tip,omitempty"`
	SurfaceAreaQuotientFrictionSleeve  *float64 `json:"surface_area_quotient_friction_sleeve,omitempty" yaml:"surface_area_quotient_friction_sleeve,omitempty"`
	DistanceConeToCentreFrictionSleeve *float64 `json:"distance_cone_to_centre_friction_sleeve,omitempty" yaml:"distance_cone_to_centre_friction_sleeve,omitempty"`

	// ExcavationDepth is the predrilled depth in m
	ExcavationDepth *float64 `json:"excavation_depth,omitempty" yaml:"excavation_depth,omitempty"`

	// Depth is the total penetration length in mm
	Depth *float64 `json:"depth,omitempty" yaml:"depth,omitempty"`

	// CorrectedDepth is the corrected total depth in mm
	CorrectedDepth *float64 `json:"corrected_depth,omitempty" yaml:"corrected_depth,omitempty"`

	XYCoordinates *Coordinates `json:"x_y_coordinates,omitempty" yaml:"x_y_coordinates,omitempty"`

	// Ground level with respect to the vertical datum, in m and in mm
	GroundLevelWrtReferenceM *float64 `json:"ground_level_wrt_reference_m,omitempty" yaml:"ground_level_wrt_reference_m,omitempty"`
	GroundLevelWrtReference  *float64 `json:"ground_level_wrt_reference,omitempty" yaml:"ground_level_wrt_reference,omitempty"`

	// MeasurementStandard is "standard / quality class", e.g. "NEN-EN-ISO 22476-1 / klasse2"
	MeasurementStandard string `json:"measurement_standard,omitempty" yaml:"measurement_standard,omitempty"`
}

// Record is one CPT survey: headers plus depth-ordered measurement channels.
type Record struct {
	Headers         Headers            `json:"headers" yaml:"headers"`
	MeasurementData map[Channel]Series `json:"measurement_data" yaml:"measurement_data"`
}

// NewRecord returns a Record with an empty channel map.
func NewRecord(name string) *Record {
	return &Record{
		Headers:         Headers{Name: name},
		MeasurementData: make(map[Channel]Series),
	}
}

// Has reports whether ch is present and non-empty.
func (r *Record) Has(ch Channel) bool {
	return len(r.MeasurementData[ch]) > 0
}

// Len returns the number of samples, taken from the longest populated channel.
func (r *Record) Len() int {
	n := 0
	for _, s := range r.MeasurementData {
		n = max(n, len(s))
	}
	return n
}

// Channels returns the populated channels, known channels first in display
// order, then any others sorted by name.
func (r *Record) Channels() []Channel {
	out := make([]Channel, 0, len(r.MeasurementData))
	seen := make(map[Channel]bool, len(KnownChannels))
	for _, ch := range KnownChannels {
		seen[ch] = true
		if r.Has(ch) {
			out = append(out, ch)
		}
	}
	var extra []Channel
	for ch := range r.MeasurementData {
		if !seen[ch] && r.Has(ch) {
			extra = append(extra, ch)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

// FrictionRatio returns the Rf channel, or derives it as fs/qc when Rf is
// absent. A derived sample is nil when either input is missing or qc is 0.
func (r *Record) FrictionRatio() (Series, bool) {
	if r.Has(ChannelRf) {
		return r.MeasurementData[ChannelRf], true
	}
	if !r.Has(ChannelQc) || !r.Has(ChannelFs) {
		return nil, false
	}
	qc, fs := r.MeasurementData[ChannelQc], r.MeasurementData[ChannelFs]
	n := min(len(qc), len(fs))
	rf := make(Series, n)
	for i := range n {
		if qc[i] == nil || fs[i] == nil || *qc[i] == 0 {
			continue
		}
		rf[i] = Float(*fs[i] / *qc[i])
	}
	return rf, true
}

// DeriveFrictionRatio stores a derived Rf channel when none is present.
// It reports whether the channel was added.
func (r *Record) DeriveFrictionRatio() bool {
	if r.Has(ChannelRf) {
		return false
	}
	rf, ok := r.FrictionRatio()
	if ok {
		r.MeasurementData[ChannelRf] = rf
	}
	return ok
}

// depthKey returns the sort key for row i: corrected depth, else penetration
// length, else negated elevation. Rows without any key sort last.
func (r *Record) depthKey(i int) float64 {
	for _, ch := range []Channel{ChannelCorrectedDepth, ChannelPenetrationLength} {
		if s := r.MeasurementData[ch]; i < len(s) && s[i] != nil {
			return *s[i]
		}
	}
	if s := r.MeasurementData[ChannelElevation]; i < len(s) && s[i] != nil {
		return -*s[i]
	}
	return math.Inf(1)
}

// SortByDepth reorders every channel so rows ascend by depth. The sort is
// stable, so rows at equal depth keep their delivery order.
func (r *Record) SortByDepth() {
	n := r.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(r.depthKey(a), r.depthKey(b))
	})
	for ch, s := range r.MeasurementData {
		if len(s) != n {
			continue
		}
		sorted := make(Series, n)
		for i, j := range order {
			sorted[i] = s[j]
		}
		r.MeasurementData[ch] = sorted
	}
}

// IsSortedByDepth reports whether rows already ascend by depth.
func (r *Record) IsSortedByDepth() bool {
	n := r.Len()
	for i := 1; i < n; i++ {
		if r.depthKey(i) < r.depthKey(i-1) {
			return false
		}
	}
	return true
}

// DropIncompleteRows removes every row in which any populated channel has a
// missing sample. It returns the number of rows removed.
func (r *Record) DropIncompleteRows() int {
	n := r.Len()
	keep := make([]bool, n)
	kept := 0
	for i := range n {
		keep[i] = true
		for _, s := range r.MeasurementData {
			if len(s) == 0 {
				continue
			}
			if i >= len(s) || s[i] == nil {
				keep[i] = false
				break
			}
		}
		if keep[i] {
			kept++
		}
	}
	for ch, s := range r.MeasurementData {
		if len(s) == 0 {
			continue
		}
		filtered := make(Series, 0, kept)
		for i, v := range s {
			if i < n && keep[i] {
				filtered = append(filtered, v)
			}
		}
		r.MeasurementData[ch] = filtered
	}
	return n - kept
}
