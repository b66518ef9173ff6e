package xmlgef

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cptkit/cptconv/internal/cpt"
	"github.com/cptkit/cptconv/internal/errors"
)

var fixedNow = func() time.Time {
	return time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
}

const docTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<dispatchDocument xmlns="http://www.broservices.nl/xsd/dscpt/1.1"
    xmlns:brocom="http://www.broservices.nl/xsd/brocommon/3.0"
    xmlns:cptcommon="http://www.broservices.nl/xsd/cptcommon/1.1"
    xmlns:gml="http://www.opengis.net/gml/3.2"
    xmlns:om="http://www.opengis.net/om/2.0"
    xmlns:swe="http://www.opengis.net/swe/2.0">
  <CPT_O gml:id="BRO_0001">
    <brocom:broId>%s</brocom:broId>
    <cptStandard>NEN-EN-ISO22476D1</cptStandard>
    <standardizedLocation>
      <brocom:location><gml:pos>52.1 4.5</gml:pos></brocom:location>
      <brocom:coordinateTransformation>RDNAPTRANS2008</brocom:coordinateTransformation>
    </standardizedLocation>
    <deliveredLocation>
      <cptcommon:location><gml:pos>155000.12 463000.5</gml:pos></cptcommon:location>
    </deliveredLocation>
    <deliveredVerticalPosition>
      <cptcommon:offset uom="m">-1.250</cptcommon:offset>
      <cptcommon:verticalDatum>NAP</cptcommon:verticalDatum>
    </deliveredVerticalPosition>
    <conePenetrometerSurvey>
      <cptcommon:trajectory>
        <cptcommon:finalDepth uom="m">2.00</cptcommon:finalDepth>
      </cptcommon:trajectory>
      <cptcommon:conePenetrationTest>
        <om:phenomenonTime>
          <gml:TimeInstant><gml:timePosition>2023-06-07T08:09:10+02:00</gml:timePosition></gml:TimeInstant>
        </om:phenomenonTime>
        <cptcommon:cptResult>
          <swe:encoding>
            <swe:TextEncoding tokenSeparator="%s" blockSeparator="%s"/>
          </swe:encoding>
          <swe:values>%s</swe:values>
        </cptcommon:cptResult>
      </cptcommon:conePenetrationTest>
      <cptcommon:qualityClass>klasse2</cptcommon:qualityClass>
      <cptcommon:stopCriterion>obstakel</cptcommon:stopCriterion>
      <cptcommon:cptMethod>nieuwMethode</cptcommon:cptMethod>
      <cptcommon:conePenetrometer>
        <cptcommon:conePenetrometerType>F7.5CKEHG/B-1701-0715</cptcommon:conePenetrometerType>
        <cptcommon:coneSurfaceArea uom="mm2">1500</cptcommon:coneSurfaceArea>
      </cptcommon:conePenetrometer>
      <cptcommon:parameters>
%s
      </cptcommon:parameters>
    </conePenetrometerSurvey>
  </CPT_O>
</dispatchDocument>`

func params(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(&b, "        <cptcommon:%s>%s</cptcommon:%s>\n", pairs[i], pairs[i+1], pairs[i])
	}
	return b.String()
}

func doc(id, values, parameters string) []byte {
	return []byte(fmt.Sprintf(docTemplate, id, ",", ";", values, parameters))
}

// scenarioDoc flags depth and coneResistance; rows arrive out of order.
func scenarioDoc() []byte {
	return doc("CPT000000012345",
		"1.00,0.99,9.1;0.00,0.00,8.0;0.50,0.49,7.5;",
		params("depth", "ja", "coneResistance", "ja", "localFriction", "nee"))
}

func dataLines(t *testing.T, out []byte) []string {
	t.Helper()
	_, body, ok := strings.Cut(string(out), "#EOH=\n")
	require.True(t, ok, "missing #EOH")
	return strings.Split(strings.TrimSuffix(body, "\n"), "\n")
}

func TestConvert_Scenario(t *testing.T) {
	out, err := Convert(scenarioDoc(), Options{Now: fixedNow})
	require.NoError(t, err)
	s := string(out)

	assert.Contains(t, s, "#COLUMN= 2\n")
	assert.Contains(t, s, "#COLUMNINFO= 1, m, depth, 11\n")
	assert.Contains(t, s, "#COLUMNINFO= 2, MPa, cone resistance, 2\n")
	assert.Contains(t, s, "#COLUMNVOID= 2, -999999\n")
	assert.Contains(t, s, "#LASTSCAN= 3\n")

	lines := dataLines(t, out)
	require.Len(t, lines, 3)
	for _, l := range lines {
		require.True(t, strings.HasSuffix(l, ";!"), l)
		fields := strings.Split(strings.TrimSuffix(l, ";!"), ";")
		assert.Len(t, fields, 2, l)
	}
	assert.Equal(t, []string{"0.00;0.00;!", "0.50;0.49;!", "1.00;0.99;!"}, lines, "sorted by field 0")
}

func TestConvert_Headers(t *testing.T) {
	out, err := Convert(scenarioDoc(), Options{Now: fixedNow})
	require.NoError(t, err)
	s := string(out)

	assert.True(t, strings.HasPrefix(s, "#GEFID= 1, 1, 0\n"))
	assert.Contains(t, s, "#FILEDATE= 2024, 03, 04\n")
	assert.Contains(t, s, "#TESTID= CPT000000012345\n")
	assert.Contains(t, s, "#STARTDATE= 2023, 06, 07\n")
	assert.Contains(t, s, "#STARTTIME= 08, 09, 10\n")
	assert.Contains(t, s, "#ZID= 31000, -1.250\n")
	assert.Contains(t, s, "#XYID= 31000, 155000.12, 463000.5\n")
	assert.Contains(t, s, "#MEASUREMENTTEXT= 4, F7.5CKEHG/B-1701-0715, conustype\n")
	assert.Contains(t, s, "#MEASUREMENTTEXT= 6, NEN-EN-ISO22476D1 / klasse2, sondeernorm en kwaliteitsklasse\n")
	assert.Contains(t, s, "#MEASUREMENTTEXT= 127, 4258, 52.1, 4.5\n")
	assert.Contains(t, s, "#MEASUREMENTVAR= 1, 1500, mm2 (vierkante millimeter), oppervlakte conuspunt\n")
	assert.Contains(t, s, "#MEASUREMENTVAR= 16, 2.00, m (meter), einddiepte\n")
	assert.Contains(t, s, "#MEASUREMENTVAR= 17, 6, -, stopcriterium\n")
	assert.Contains(t, s, "#MEASUREMENTVAR= 12, -, -, sondeermethode\n", "unknown method falls back")
	assert.Contains(t, s, "#COLUMNSEPARATOR= ;\n")
	assert.Contains(t, s, "#RECORDSEPARATOR= !\n")

	assert.NotContains(t, s, "#MEASUREMENTTEXT= 5,", "absent description is omitted")
	assert.NotContains(t, s, "#MEASUREMENTVAR= 2,")
}

func TestConvert_CustomSeparators(t *testing.T) {
	src := []byte(fmt.Sprintf(docTemplate, "CPT-1", " ", "|", "0.0 0.0|1.0 1.0|",
		params("depth", "ja", "coneResistance", "1")))

	out, err := Convert(src, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"0.0;0.0;!", "1.0;1.0;!"}, dataLines(t, out))
}

func TestConvert_EmptyValues(t *testing.T) {
	out, err := Convert(doc("CPT-1", "", params("depth", "ja")), Options{})
	require.NoError(t, err)
	assert.Contains(t, string(out), "#LASTSCAN= 0\n")
	assert.True(t, strings.HasSuffix(string(out), "#EOH=\n"))
}

func TestConvert_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  []byte
		code errors.ErrorCode
	}{
		{"malformed", []byte(`<dispatchDocument><CPT_O></dispatchDocument>`), errors.ErrXMLStructure},
		{"no survey", []byte(`<dispatchDocument><CPT_O><broId>x</broId></CPT_O></dispatchDocument>`), errors.ErrXMLStructure},
		{"missing broId", doc("", "0;", params("depth", "ja")), errors.ErrMissingField},
		{"unknown column", doc("CPT-1", "0,1;", params("depth", "ja", "temperature", "ja")), errors.ErrUnknownColumn},
		{"short row", doc("CPT-1", "0,1;2;", params("depth", "ja", "coneResistance", "ja")), errors.ErrXMLStructure},
		{"non-numeric", doc("CPT-1", "a,1;", params("depth", "ja", "coneResistance", "ja")), errors.ErrXMLStructure},
		{"no parameters", []byte(strings.Replace(string(doc("CPT-1", "0;", "")), "parameters", "params", 2)), errors.ErrXMLStructure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Convert(tt.src, Options{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestConvert_UnknownColumnNamesParameter(t *testing.T) {
	_, err := Convert(doc("CPT-1", "0,1;", params("depth", "ja", "temperature", "ja")), Options{})
	ce, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, "temperature", ce.Details["parameter"])
}

func TestDecodeRecord(t *testing.T) {
	src := doc("CPT-9",
		"0.020,1.000,-999999,2.0,0.5,2.5;0.010,0.000,-999999,1.0,-999999,1.0;",
		params("penetrationLength", "ja", "depth", "ja", "elapsedTime", "nee",
			"coneResistance", "ja", "frictionRatio", "ja", "localFriction", "ja"))

	rec, err := DecodeRecord(src, Options{})
	require.NoError(t, err)

	assert.Equal(t, "CPT-9", rec.Headers.Name)
	assert.Equal(t, "NAP", rec.Headers.HeightSystem)
	require.NotNil(t, rec.Headers.GroundLevelWrtReference)
	assert.Equal(t, -1250.0, *rec.Headers.GroundLevelWrtReference)
	assert.Equal(t, &cpt.Coordinates{X: 155000.12, Y: 463000.5}, rec.Headers.XYCoordinates)
	assert.Equal(t, "NEN-EN-ISO22476D1 / klasse2", rec.Headers.MeasurementStandard)
	require.NotNil(t, rec.Headers.CorrectedDepth)
	assert.Equal(t, 2000.0, *rec.Headers.CorrectedDepth)

	want := map[cpt.Channel]cpt.Series{
		cpt.ChannelPenetrationLength: cpt.Values(10, 20),
		cpt.ChannelCorrectedDepth:    cpt.Values(0, 1000),
		cpt.ChannelElevation:         cpt.Values(-1250, -2250),
		cpt.ChannelQc:                cpt.Values(1, 2),
		cpt.ChannelRf:                {nil, cpt.Float(0.005)},
		cpt.ChannelFs:                cpt.Values(1, 2.5),
	}
	if diff := cmp.Diff(want, rec.MeasurementData); diff != "" {
		t.Errorf("MeasurementData mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRecord_DerivesRf(t *testing.T) {
	src := doc("CPT-9", "0,0,2,0.02;1,1,4,0.02;",
		params("penetrationLength", "ja", "depth", "ja", "coneResistance", "ja", "localFriction", "ja"))

	rec, err := DecodeRecord(src, Options{})
	require.NoError(t, err)
	require.True(t, rec.Has(cpt.ChannelRf))
	assert.InDelta(t, 0.01, *rec.MeasurementData[cpt.ChannelRf][0], 1e-12)
	assert.InDelta(t, 0.005, *rec.MeasurementData[cpt.ChannelRf][1], 1e-12)
}

func TestDecodeRecord_MissingBroID(t *testing.T) {
	_, err := DecodeRecord(doc("  ", "0;", params("depth", "ja")), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingField))
}
