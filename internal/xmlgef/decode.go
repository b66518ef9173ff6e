package xmlgef

import (
	"math"
	"strconv"
	"strings"

	"github.com/cptkit/cptconv/internal/cpt"
	"github.com/cptkit/cptconv/internal/errors"
	"github.com/cptkit/cptconv/internal/xmltemplate"
)

const sentinel = -999999.0

// parameterChannels binds parameters to the record channels they decode into.
// The depth parameter feeds corrected_depth and elevation separately.
var parameterChannels = map[string]cpt.Channel{
	"penetrationLength":    cpt.ChannelPenetrationLength,
	"coneResistance":       cpt.ChannelQc,
	"localFriction":        cpt.ChannelFs,
	"frictionRatio":        cpt.ChannelRf,
	"inclinationResultant": cpt.ChannelInclination,
	"inclinationNS":        cpt.ChannelInclinationNS,
	"inclinationEW":        cpt.ChannelInclinationEW,
	"porePressureU2":       cpt.ChannelU2,
}

// DecodeRecord reads a BRO/IMBRO CPT document into a record. Depths become
// mm, the friction ratio a fraction, and elevation is the ground level offset
// minus depth. Rows come out sorted by depth; Rf is derived when absent.
func DecodeRecord(src []byte, opts Options) (*cpt.Record, error) {
	obj, err := locate(src)
	if err != nil {
		return nil, err
	}
	name, ok := obj.TextAt("broId")
	if !ok {
		return nil, errors.NewMissingField("broId")
	}
	surveyTree, err := obj.TreeAt("conePenetrometerSurvey")
	if err != nil {
		return nil, err
	}

	rec := cpt.NewRecord(name)
	decodeHeaders(obj, &rec.Headers)

	flags, ok := surveyTree.FlagsAt(xmltemplate.FlagsTag)
	if !ok {
		return nil, errors.NewXMLStructure("conePenetrometerSurvey/parameters", "element not found")
	}
	channels := make(map[cpt.Channel]int)
	depthCol := -1
	maxCol := 0
	var numeric []int
	for i, f := range flags {
		if !f.On {
			continue
		}
		if f.Name == "depth" {
			depthCol = i
		} else if ch, ok := parameterChannels[f.Name]; ok {
			channels[ch] = i
		} else {
			continue
		}
		maxCol = max(maxCol, i)
		numeric = append(numeric, i)
	}

	result, values, err := resultBlock(surveyTree)
	if err != nil {
		return nil, err
	}
	token, block := opts.separators()
	token, block = separators(result, token, block)
	rows, err := parseRows(values, token, block, maxCol, numeric)
	if err != nil {
		return nil, err
	}

	sample := func(r row, col int) *float64 {
		v, _ := strconv.ParseFloat(r.fields[col], 64)
		if v == sentinel {
			return nil
		}
		return &v
	}

	offsetMM := rec.Headers.GroundLevelWrtReference
	for _, r := range rows {
		for ch, col := range channels {
			v := sample(r, col)
			if v != nil {
				switch ch {
				case cpt.ChannelPenetrationLength:
					v = cpt.Float(metresToMM(*v))
				case cpt.ChannelRf:
					v = cpt.Float(*v / 100)
				}
			}
			rec.MeasurementData[ch] = append(rec.MeasurementData[ch], v)
		}
		if depthCol < 0 {
			continue
		}
		d := sample(r, depthCol)
		var corrected, elevation *float64
		if d != nil {
			corrected = cpt.Float(metresToMM(*d))
			if offsetMM != nil {
				elevation = cpt.Float(*offsetMM - *corrected)
			}
		}
		rec.MeasurementData[cpt.ChannelCorrectedDepth] = append(rec.MeasurementData[cpt.ChannelCorrectedDepth], corrected)
		if offsetMM != nil {
			rec.MeasurementData[cpt.ChannelElevation] = append(rec.MeasurementData[cpt.ChannelElevation], elevation)
		}
	}

	rec.SortByDepth()
	rec.DeriveFrictionRatio()
	return rec, nil
}

// metresToMM converts m to mm, rounded to whole micrometres.
func metresToMM(v float64) float64 {
	return math.Round(v*1e6) / 1e3
}

func decodeHeaders(obj *xmltemplate.Tree, h *cpt.Headers) {
	text := func(path ...string) string {
		s, _ := obj.TextAt(path...)
		return s
	}
	number := func(path ...string) *float64 {
		if v, ok := obj.FloatAt(path...); ok {
			return cpt.Float(v)
		}
		return nil
	}

	h.FileDate = text("researchReportDate", "date")
	h.HeightSystem = text("deliveredVerticalPosition", "verticalDatum")
	h.FixedHorizontalLevel = text("deliveredVerticalPosition", "localVerticalReferencePoint")
	h.ConeType = text(cone("conePenetrometerType")...)
	h.ConeTipArea = number(cone("coneSurfaceArea")...)
	h.FrictionSleeveArea = number(cone("frictionSleeveSurfaceArea")...)
	h.SurfaceAreaQuotientTip = number(cone("coneSurfaceQuotient")...)
	h.SurfaceAreaQuotientFrictionSleeve = number(cone("frictionSleeveSurfaceQuotient")...)
	h.DistanceConeToCentreFrictionSleeve = number(cone("coneToFrictionSleeveDistance")...)
	h.ExcavationDepth = number(survey("trajectory", "predrilledDepth")...)
	if v := number(survey("trajectory", "finalDepth")...); v != nil {
		h.CorrectedDepth = cpt.Float(metresToMM(*v))
	}
	if v := number("deliveredVerticalPosition", "offset"); v != nil {
		h.GroundLevelWrtReferenceM = v
		h.GroundLevelWrtReference = cpt.Float(metresToMM(*v))
	}

	if xy := strings.Fields(text("deliveredLocation", "location", "pos")); len(xy) == 2 {
		x, errX := strconv.ParseFloat(xy[0], 64)
		y, errY := strconv.ParseFloat(xy[1], 64)
		if errX == nil && errY == nil {
			h.XYCoordinates = &cpt.Coordinates{X: x, Y: y}
		}
	}

	standard, class := text("cptStandard"), text(survey("qualityClass")...)
	if standard != "" && class != "" {
		h.MeasurementStandard = standard + " / " + class
	}
}
