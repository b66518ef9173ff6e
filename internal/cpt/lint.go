package cpt

import (
	"slices"
	"strings"
)

// RequiredHeaders lists the headers a record must carry to be converted.
var RequiredHeaders = []string{"name"}

// LintResult contains the results of linting a record.
type LintResult struct {
	Valid          bool      `json:"valid" yaml:"valid"`
	MissingHeaders []string  `json:"missing_headers,omitempty" yaml:"missing_headers,omitempty"`
	RaggedChannels []Channel `json:"ragged_channels,omitempty" yaml:"ragged_channels,omitempty"` // channels whose length differs from the longest
	Unsorted       bool      `json:"unsorted,omitempty" yaml:"unsorted,omitempty"`
	Samples        int       `json:"samples" yaml:"samples"`
}

// Lint checks a record's invariants: required headers present, every
// populated channel the same length, rows ascending by depth.
// An unsorted record is reported but stays valid, since mappers re-sort.
func Lint(r *Record) *LintResult {
	result := &LintResult{
		Valid:   true,
		Samples: r.Len(),
	}

	if strings.TrimSpace(r.Headers.Name) == "" {
		result.MissingHeaders = append(result.MissingHeaders, "name")
	}

	for _, ch := range r.Channels() {
		if len(r.MeasurementData[ch]) != result.Samples {
			result.RaggedChannels = append(result.RaggedChannels, ch)
		}
	}
	slices.Sort(result.RaggedChannels)

	if len(result.RaggedChannels) == 0 {
		result.Unsorted = !r.IsSortedByDepth()
	}

	if len(result.MissingHeaders) > 0 || len(result.RaggedChannels) > 0 {
		result.Valid = false
	}
	return result
}
