// Package gefxml maps a CPT record onto the BRO/IMBRO XML skeleton.
package gefxml

import (
	_ "embed"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cptkit/cptconv/internal/cpt"
	"github.com/cptkit/cptconv/internal/errors"
	"github.com/cptkit/cptconv/internal/logging"
	"github.com/cptkit/cptconv/internal/xmltemplate"
)

//go:embed template_imbro.xml
var skeletonXML []byte

// Sentinel marks a missing sample in the values block.
const Sentinel = "-999999"

// TimeLayout is the registration timestamp format.
const TimeLayout = "2006-01-02T15:04:05-07:00"

// RegistrationStatus is written for every converted survey.
const RegistrationStatus = "voltooid"

// ObjectElement is the skeleton element below the root that holds the survey.
const ObjectElement = "CPT_O"

// Options controls a mapping.
type Options struct {
	// Now supplies registration timestamps; defaults to time.Now
	Now func() time.Time

	Logger *zap.Logger
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// DefaultSkeleton loads the embedded BRO/IMBRO skeleton.
func DefaultSkeleton() (*xmltemplate.Node, error) {
	return xmltemplate.LoadSkeleton(skeletonXML)
}

// SkeletonXML returns a copy of the embedded skeleton document.
func SkeletonXML() []byte {
	out := make([]byte, len(skeletonXML))
	copy(out, skeletonXML)
	return out
}

// Convert maps rec, fills skeleton and serializes the result.
func Convert(rec *cpt.Record, skeleton *xmltemplate.Node, opts Options) ([]byte, error) {
	data, err := Map(rec, opts)
	if err != nil {
		return nil, err
	}
	filled, _ := xmltemplate.Fill(skeleton, data, logging.OrNop(opts.Logger))
	out, err := xmltemplate.Build(filled)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// Map translates rec into fill data for the BRO/IMBRO skeleton, nested under
// ObjectElement as Fill expects. Rows are written ascending by depth; rec
// itself is not modified.
func Map(rec *cpt.Record, opts Options) (xmltemplate.Data, error) {
	if rec == nil || strings.TrimSpace(rec.Headers.Name) == "" {
		return nil, errors.NewMissingField("name")
	}

	r := *rec
	r.MeasurementData = maps.Clone(rec.MeasurementData)
	if r.MeasurementData == nil {
		r.MeasurementData = make(map[cpt.Channel]cpt.Series)
	}
	if lint := cpt.Lint(&r); len(lint.RaggedChannels) > 0 {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("channels differ in length: %v", lint.RaggedChannels))
	}
	r.SortByDepth()

	h := r.Headers
	ts := opts.now().Format(TimeLayout)

	data := xmltemplate.Data{"broId": h.Name}
	if h.FileDate != "" {
		data["researchReportDate"] = xmltemplate.Data{"date": h.FileDate}
	}

	vertical := xmltemplate.Data{}
	putString(vertical, "verticalDatum", h.HeightSystem)
	putString(vertical, "localVerticalReferencePoint", h.FixedHorizontalLevel)
	putFloat(vertical, "offset", h.GroundLevelWrtReferenceM)
	if h.FileDate != "" {
		vertical["verticalPositioningDate"] = xmltemplate.Data{"date": h.FileDate}
	}
	putData(data, "deliveredVerticalPosition", vertical)

	cone := xmltemplate.Data{}
	putString(cone, "conePenetrometerType", h.ConeType)
	putFloat(cone, "coneSurfaceArea", h.ConeTipArea)
	putFloat(cone, "frictionSleeveSurfaceArea", h.FrictionSleeveArea)
	putFloat(cone, "coneSurfaceQuotient", h.SurfaceAreaQuotientTip)
	putFloat(cone, "frictionSleeveSurfaceQuotient", h.SurfaceAreaQuotientFrictionSleeve)
	putFloat(cone, "coneToFrictionSleeveDistance", h.DistanceConeToCentreFrictionSleeve)

	trajectory := xmltemplate.Data{}
	putFloat(trajectory, "predrilledDepth", h.ExcavationDepth)
	if h.CorrectedDepth != nil {
		trajectory["finalDepth"] = *h.CorrectedDepth * 0.001
	}

	survey := xmltemplate.Data{
		"parameters": parameterFlags(&r),
		"conePenetrationTest": xmltemplate.Data{
			"cptResult": xmltemplate.Data{"values": EncodeValues(&r)},
		},
	}
	putData(survey, "conePenetrometer", cone)
	putData(survey, "trajectory", trajectory)
	if h.FileDate != "" {
		survey["finalProcessingDate"] = xmltemplate.Data{"date": h.FileDate}
	}
	data["conePenetrometerSurvey"] = survey

	location := xmltemplate.Data{}
	if c := h.XYCoordinates; c != nil {
		location["location"] = xmltemplate.Data{
			"pos": formatCoord(c.X) + " " + formatCoord(c.Y),
		}
	}
	if h.FileDate != "" {
		location["horizontalPositioningDate"] = xmltemplate.Data{"date": h.FileDate}
	}
	putData(data, "deliveredLocation", location)

	data["registrationHistory"] = xmltemplate.Data{
		"objectRegistrationTime":     ts,
		"registrationStatus":         RegistrationStatus,
		"registrationCompletionTime": ts,
	}

	if standard, class, ok := strings.Cut(h.MeasurementStandard, "/"); ok {
		data["cptStandard"] = strings.TrimSpace(standard)
		survey["qualityClass"] = strings.TrimSpace(class)
	}

	return xmltemplate.Data{ObjectElement: data}, nil
}

// parameterFlags marks the axis columns and every populated channel "ja".
func parameterFlags(r *cpt.Record) xmltemplate.Data {
	flags := xmltemplate.Data{
		Parameters[ColPenetrationLength]: "ja",
		Parameters[ColDepth]:             "ja",
	}
	for _, cc := range channelColumns {
		flags[Parameters[cc.col]] = yesNo(r.Has(cc.channel))
	}
	rf, ok := r.FrictionRatio()
	flags[Parameters[ColFrictionRatio]] = yesNo(ok && len(rf) > 0)
	return flags
}

func yesNo(b bool) string {
	if b {
		return "ja"
	}
	return "nee"
}

// EncodeValues renders the values block: one row per sample, 25 fields in
// Parameters order joined by ",", each row terminated by ";". Missing samples
// are written as the sentinel.
func EncodeValues(r *cpt.Record) string {
	n := r.Len()
	rows := make([][len(Parameters)]float64, n)
	for i := range rows {
		for j := range rows[i] {
			rows[i][j] = math.NaN()
		}
	}

	penetration := linspace(totalPenetrationM(r), n)
	depth := linspace(totalDepthM(r), n)
	for i := range n {
		rows[i][ColPenetrationLength] = penetration[i]
		rows[i][ColDepth] = depth[i]
	}

	fill := func(col int, s cpt.Series, scale float64) {
		for i := range min(n, len(s)) {
			if s[i] != nil {
				rows[i][col] = *s[i] * scale
			}
		}
	}
	for _, cc := range channelColumns {
		fill(cc.col, r.MeasurementData[cc.channel], 1)
	}
	if rf, ok := r.FrictionRatio(); ok {
		fill(ColFrictionRatio, rf, 100)
	}

	var b strings.Builder
	for _, row := range rows {
		for j, v := range row {
			if j > 0 {
				b.WriteByte(',')
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				b.WriteString(Sentinel)
				continue
			}
			b.WriteString(strconv.FormatFloat(v, 'f', 3, 64))
		}
		b.WriteByte(';')
	}
	return b.String()
}

// linspace returns n evenly spaced values from 0 to total inclusive.
func linspace(total float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		return out
	}
	for i := range n {
		out[i] = total * float64(i) / float64(n-1)
	}
	return out
}

// totalPenetrationM is the penetration axis length in m: the depth header,
// else the last penetration length sample, else the corrected depth.
func totalPenetrationM(r *cpt.Record) float64 {
	if r.Headers.Depth != nil {
		return *r.Headers.Depth * 0.001
	}
	if v, ok := r.MeasurementData[cpt.ChannelPenetrationLength].Last(); ok {
		return v * 0.001
	}
	return totalCorrectedM(r, false)
}

// totalDepthM is the depth axis length in m: the corrected depth header, else
// the last corrected depth sample, else the penetration length.
func totalDepthM(r *cpt.Record) float64 {
	return totalCorrectedM(r, true)
}

func totalCorrectedM(r *cpt.Record, fallback bool) float64 {
	if r.Headers.CorrectedDepth != nil {
		return *r.Headers.CorrectedDepth * 0.001
	}
	if v, ok := r.MeasurementData[cpt.ChannelCorrectedDepth].Last(); ok {
		return v * 0.001
	}
	if fallback {
		if r.Headers.Depth != nil {
			return *r.Headers.Depth * 0.001
		}
		if v, ok := r.MeasurementData[cpt.ChannelPenetrationLength].Last(); ok {
			return v * 0.001
		}
	}
	return 0
}

func putString(d xmltemplate.Data, key, v string) {
	if v != "" {
		d[key] = v
	}
}

func putFloat(d xmltemplate.Data, key string, v *float64) {
	if v != nil {
		d[key] = *v
	}
}

func putData(d xmltemplate.Data, key string, v xmltemplate.Data) {
	if len(v) > 0 {
		d[key] = v
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
