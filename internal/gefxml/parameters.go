package gefxml

import "github.com/cptkit/cptconv/internal/cpt"

// Parameters lists the CPT result columns in the order they appear in both
// the parameters element and every row of the values block.
var Parameters = [...]string{
	"penetrationLength",
	"depth",
	"elapsedTime",
	"coneResistance",
	"correctedConeResistance",
	"netConeResistance",
	"magneticFieldStrengthX",
	"magneticFieldStrengthY",
	"magneticFieldStrengthZ",
	"magneticFieldStrengthTotal",
	"electricalConductivity",
	"inclinationEW",
	"inclinationNS",
	"inclinationX",
	"inclinationY",
	"inclinationResultant",
	"magneticInclination",
	"magneticDeclination",
	"localFriction",
	"poreRatio",
	"temperature",
	"porePressureU1",
	"porePressureU2",
	"porePressureU3",
	"frictionRatio",
}

// Column indexes into a values row.
const (
	ColPenetrationLength    = 0
	ColDepth                = 1
	ColConeResistance       = 3
	ColInclinationEW        = 11
	ColInclinationNS        = 12
	ColInclinationResultant = 15
	ColLocalFriction        = 18
	ColPorePressureU2       = 22
	ColFrictionRatio        = 24
)

// channelColumns binds record channels to their values column. Rf is handled
// separately since it is scaled and may be derived.
var channelColumns = []struct {
	channel cpt.Channel
	col     int
}{
	{cpt.ChannelQc, ColConeResistance},
	{cpt.ChannelInclinationEW, ColInclinationEW},
	{cpt.ChannelInclinationNS, ColInclinationNS},
	{cpt.ChannelInclination, ColInclinationResultant},
	{cpt.ChannelFs, ColLocalFriction},
	{cpt.ChannelU2, ColPorePressureU2},
}

// ParameterIndex returns the values column for a parameter name.
func ParameterIndex(name string) (int, bool) {
	for i, p := range Parameters {
		if p == name {
			return i, true
		}
	}
	return 0, false
}
