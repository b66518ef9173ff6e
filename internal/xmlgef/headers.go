package xmlgef

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cptkit/cptconv/internal/codes"
	"github.com/cptkit/cptconv/internal/registry"
	"github.com/cptkit/cptconv/internal/xmltemplate"
)

// field is one value pulled from the CPT object and rendered into a header line.
type field struct {
	path []string
	conv func(string) string
}

// line is a numbered MEASUREMENTTEXT/MEASUREMENTVAR entry. A line is written
// only when every field has a value.
type line struct {
	format string
	fields []field
}

func at(path ...string) field {
	return field{path: path}
}

func conv(f func(string) string, path ...string) field {
	return field{path: path, conv: f}
}

func survey(path ...string) []string {
	return append([]string{"conePenetrometerSurvey"}, path...)
}

func cone(name string) []string {
	return survey("conePenetrometer", name)
}

func zeroLoad(name string) []string {
	return survey("conePenetrometer", "zeroLoadMeasurement", name)
}

// commaDate turns "2024-01-02" into "2024, 01, 02".
func commaDate(s string) string {
	return strings.ReplaceAll(s, "-", ", ")
}

// commaTimestamp turns "2024-01-02T03:04:05+01:00" into "2024, 01, 02, 03, 04, 05".
func commaTimestamp(s string) string {
	if len(s) > 19 {
		s = s[:19]
	}
	return strings.NewReplacer("-", ", ", "T", ", ", ":", ", ").Replace(s)
}

func commaSpaces(s string) string {
	return strings.Join(strings.Fields(s), ", ")
}

var measurementText = []line{
	{"4, %s, conustype", []field{at(cone("conePenetrometerType")...)}},
	{"5, %s, omschrijving sondeerapparaat", []field{at(cone("description")...)}},
	{"6, %s / %s, sondeernorm en kwaliteitsklasse", []field{at("cptStandard"), at(survey("qualityClass")...)}},
	{"9, %s, lokaal verticaal referentiepunt", []field{at("deliveredVerticalPosition", "localVerticalReferencePoint")}},
	{"21, %s, bewerking onderbrekingen uitgevoerd", []field{at(survey("procedure", "interruptionProcessingPerformed")...)}},
	{"42, %s, methode verticale positiebepaling", []field{at("deliveredVerticalPosition", "verticalPositioningMethod")}},
	{"43, %s, methode locatiebepaling", []field{at("deliveredLocation", "horizontalPositioningMethod")}},
	{"101, bronhouder, %s, -", []field{at("deliveryAccountableParty")}},
	{"103, %s, kader inwinning", []field{conv(registry.UndoCamelCase, "surveyPurpose")}},
	{"105, %s", []field{conv(commaDate, "deliveredLocation", "horizontalPositioningDate", "date")}},
	{"107, %s", []field{conv(commaDate, "deliveredVerticalPosition", "verticalPositioningDate", "date")}},
	{"109, %s, dissipatietest uitgevoerd", []field{at(survey("dissipationTestPerformed")...)}},
	{"110, %s, expertcorrectie uitgevoerd", []field{at(survey("procedure", "expertCorrectionPerformed")...)}},
	{"112, %s", []field{at(survey("finalProcessingDate", "date")...)}},
	{"113, %s", []field{at(survey("finalProcessingDate", "date")...)}},
	{"115, %s, kwaliteitsregime", []field{at("qualityRegime")}},
	{"116, %s", []field{conv(commaTimestamp, "registrationHistory", "objectRegistrationTime")}},
	{"117, %s, registratiestatus", []field{at("registrationHistory", "registrationStatus")}},
	{"118, %s", []field{conv(commaTimestamp, "registrationHistory", "registrationCompletionTime")}},
	{"119, %s, gecorrigeerd", []field{at("registrationHistory", "corrected")}},
	{"121, %s, in onderzoek", []field{at("registrationHistory", "underReview")}},
	{"123, %s, uit registratie genomen", []field{at("registrationHistory", "deregistered")}},
	{"125, %s, weer in registratie genomen", []field{at("registrationHistory", "reregistered")}},
	{"127, 4258, %s", []field{conv(commaSpaces, "standardizedLocation", "location", "pos")}},
	{"128, %s, toegepaste transformatie", []field{at("standardizedLocation", "coordinateTransformation")}},
}

var measurementVar = []line{
	{"1, %s, mm2 (vierkante millimeter), oppervlakte conuspunt", []field{at(cone("coneSurfaceArea")...)}},
	{"2, %s, mm2 (vierkante millimeter), oppervlakte kleefmantel", []field{at(cone("frictionSleeveSurfaceArea")...)}},
	{"3, %s, geen, oppervlaktequotiënt conuspunt", []field{at(cone("coneSurfaceQuotient")...)}},
	{"4, %s, geen, oppervlaktequotiënt kleefmantel", []field{at(cone("frictionSleeveSurfaceQuotient")...)}},
	{"5, %s, mm (millimeter), afstand conus tot midden kleefmantel", []field{at(cone("coneToFrictionSleeveDistance")...)}},
	{"12, %s, -, sondeermethode", []field{at(survey("cptMethod")...)}},
	{"13, %s, m (meter), voorgeboord tot", []field{at(survey("trajectory", "predrilledDepth")...)}},
	{"16, %s, m (meter), einddiepte", []field{at(survey("trajectory", "finalDepth")...)}},
	{"17, %s, -, stopcriterium", []field{at(survey("stopCriterion")...)}},
	{"20, %s, MPa (megaPascal), conusweerstand vooraf", []field{at(zeroLoad("coneResistanceBefore")...)}},
	{"21, %s, MPa (megaPascal), conusweerstand achteraf", []field{at(zeroLoad("coneResistanceAfter")...)}},
	{"22, %s, MPa (megaPascal), plaatselijke wrijving vooraf", []field{at(zeroLoad("localFrictionBefore")...)}},
	{"23, %s, MPa (megaPascal), plaatselijke wrijving achteraf", []field{at(zeroLoad("localFrictionAfter")...)}},
	{"26, %s, MPa (megaPascal), waterspanning u2 vooraf", []field{at(zeroLoad("porePressureU2Before")...)}},
	{"27, %s, MPa (megaPascal), waterspanning u2 achteraf", []field{at(zeroLoad("porePressureU2After")...)}},
	{"30, %s, ° (graden), hellingresultante vooraf", []field{at(zeroLoad("inclinationResultantBefore")...)}},
	{"31, %s, ° (graden), hellingresultante achteraf", []field{at(zeroLoad("inclinationResultantAfter")...)}},
}

// codeFields resolves vocabulary through code tables before rendering.
var codeFields = map[string]*codes.Table{
	"cptMethod":     codes.CPTMethod,
	"stopCriterion": codes.StopCriterion,
}

// renderLines formats every line whose fields are all present.
func renderLines(obj *xmltemplate.Tree, lines []line, logger *zap.Logger) []string {
	var out []string
	for _, l := range lines {
		args := make([]any, 0, len(l.fields))
		for _, f := range l.fields {
			v, ok := obj.TextAt(f.path...)
			if !ok {
				break
			}
			if t, ok := codeFields[f.path[len(f.path)-1]]; ok {
				v = resolveCode(t, v, logger)
			}
			if f.conv != nil {
				v = f.conv(v)
			}
			args = append(args, v)
		}
		if len(args) != len(l.fields) {
			continue
		}
		out = append(out, fmt.Sprintf(l.format, args...))
	}
	return out
}

// resolveCode looks name up in t, logging unknown names at debug level.
func resolveCode(t *codes.Table, name string, logger *zap.Logger) string {
	code, known := t.Resolve(name)
	if !known {
		logger.Debug("code table fallback",
			zap.String("table", t.Title()),
			zap.String("name", name),
			zap.String("code", code))
	}
	return code
}

// header is a single "#KEY= value" line.
type header struct {
	Key   string
	Value string
}

// identificationHeaders builds the STARTDATE, STARTTIME, TESTID, ZID and XYID lines.
func identificationHeaders(obj *xmltemplate.Tree, testID string, logger *zap.Logger) []header {
	var out []header

	if ts, ok := obj.TextAt(survey("conePenetrationTest", "phenomenonTime", "TimeInstant", "timePosition")...); ok {
		if len(ts) >= 10 {
			out = append(out, header{"STARTDATE", commaDate(ts[:10])})
		}
		if len(ts) >= 19 {
			out = append(out, header{"STARTTIME", strings.ReplaceAll(ts[11:19], ":", ", ")})
		}
	}

	out = append(out, header{"TESTID", testID})

	datum, hasDatum := obj.TextAt("deliveredVerticalPosition", "verticalDatum")
	offset, hasOffset := obj.TextAt("deliveredVerticalPosition", "offset")
	if hasDatum && hasOffset {
		out = append(out, header{"ZID", resolveCode(codes.VerticalDatum, datum, logger) + ", " + offset})
	}

	system, hasSystem := obj.TextAt("standardizedLocation", "coordinateTransformation")
	pos, hasPos := obj.TextAt("deliveredLocation", "location", "pos")
	if xy := strings.Fields(pos); hasSystem && hasPos && len(xy) == 2 {
		out = append(out, header{"XYID", fmt.Sprintf("%s, %s, %s",
			resolveCode(codes.CoordinateSystem, system, logger), xy[0], xy[1])})
	}
	return out
}
