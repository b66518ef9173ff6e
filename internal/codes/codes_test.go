package codes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup_Known(t *testing.T) {
	tests := []struct {
		table *Table
		name  string
		code  string
	}{
		{VerticalDatum, "NAP", "31000"},
		{VerticalDatum, "TAW", "32001"},
		{CoordinateSystem, "RD", "31000"},
		{CoordinateSystem, "RDNAPTRANS2008", "31000"},
		{CoordinateSystem, "Gauss-Krüger", "49000"},
		{StopCriterion, "einddiepte", "0"},
		{StopCriterion, "obstakel", "6"},
		{CPTMethod, "elektrischContinu", "4"},
	}

	for _, tc := range tests {
		t.Run(tc.table.Title()+"/"+tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, tc.table.Lookup(tc.name))
		})
	}
}

func TestLookup_IsTotal(t *testing.T) {
	inputs := []string{"", "nap", "unknown datum", "  NAP  ", "ÿ\x00"}

	for _, table := range All() {
		for _, in := range inputs {
			code, known := table.Resolve(in)
			assert.False(t, known, "%s: %q", table.Title(), in)
			assert.Equal(t, table.Fallback(), code)
			assert.Equal(t, Fallback, table.Lookup(in))
		}
	}
}

func TestName_Reverse(t *testing.T) {
	name, ok := VerticalDatum.Name("31000")
	assert.True(t, ok)
	assert.Equal(t, "NAP", name)

	// First declared name wins for shared codes.
	name, ok = CoordinateSystem.Name("31000")
	assert.True(t, ok)
	assert.Equal(t, "RD", name)

	_, ok = StopCriterion.Name("99")
	assert.False(t, ok)
}

func TestEntries_ReturnsCopy(t *testing.T) {
	entries := CPTMethod.Entries()
	entries[0].Code = "x"
	assert.Equal(t, "0", CPTMethod.Lookup("elektrisch"))
}
