package cpt

import (
	"fmt"
	"strings"
)

// Summary represents a record's headline facts without the sample data.
// Used by inspect-style operations to keep output small.
type Summary struct {
	Name         string       `json:"name" yaml:"name"`
	FileDate     string       `json:"file_date,omitempty" yaml:"file_date,omitempty"`
	HeightSystem string       `json:"height_system,omitempty" yaml:"height_system,omitempty"`
	GroundLevelM *float64     `json:"ground_level_m,omitempty" yaml:"ground_level_m,omitempty"`
	Coordinates  *Coordinates `json:"coordinates,omitempty" yaml:"coordinates,omitempty"`
	ConeType     string       `json:"cone_type,omitempty" yaml:"cone_type,omitempty"`
	Samples      int          `json:"samples" yaml:"samples"`
	Channels     []Channel    `json:"channels" yaml:"channels"`

	// BottomDepthM is the deepest corrected depth (or penetration length) in m
	BottomDepthM *float64 `json:"bottom_depth_m,omitempty" yaml:"bottom_depth_m,omitempty"`
}

// ToSummary converts a Record to a Summary by stripping the samples.
func (r *Record) ToSummary() Summary {
	s := Summary{
		Name:         r.Headers.Name,
		FileDate:     r.Headers.FileDate,
		HeightSystem: r.Headers.HeightSystem,
		GroundLevelM: r.Headers.GroundLevelWrtReferenceM,
		Coordinates:  r.Headers.XYCoordinates,
		ConeType:     r.Headers.ConeType,
		Samples:      r.Len(),
		Channels:     r.Channels(),
	}
	switch {
	case r.Headers.CorrectedDepth != nil:
		s.BottomDepthM = Float(*r.Headers.CorrectedDepth / 1000)
	case r.Headers.Depth != nil:
		s.BottomDepthM = Float(*r.Headers.Depth / 1000)
	default:
		if v, ok := r.MeasurementData[ChannelCorrectedDepth].Last(); ok {
			s.BottomDepthM = Float(v / 1000)
		}
	}
	return s
}

// Markdown renders the summary as a small Markdown document.
func (s Summary) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# CPT %s\n\n", s.Name)
	b.WriteString("| Field | Value |\n|---|---|\n")
	row := func(k, v string) {
		fmt.Fprintf(&b, "| %s | %s |\n", k, v)
	}
	row("File date", orDash(s.FileDate))
	row("Height system", orDash(s.HeightSystem))
	row("Ground level", metres(s.GroundLevelM))
	if s.Coordinates != nil {
		row("X-coordinate", fmt.Sprintf("%.2f m", s.Coordinates.X))
		row("Y-coordinate", fmt.Sprintf("%.2f m", s.Coordinates.Y))
	} else {
		row("Coordinates", "-")
	}
	row("Cone type", orDash(s.ConeType))
	row("Final depth", metres(s.BottomDepthM))
	row("Samples", fmt.Sprintf("%d", s.Samples))

	b.WriteString("\n## Channels\n\n")
	if len(s.Channels) == 0 {
		b.WriteString("_none_\n")
	}
	for _, ch := range s.Channels {
		fmt.Fprintf(&b, "- `%s`\n", ch)
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func metres(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f m", *v)
}
