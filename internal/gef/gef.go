// Package gef reads GEF-CPT text files into CPT records.
package gef

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cptkit/cptconv/internal/codes"
	"github.com/cptkit/cptconv/internal/cpt"
	"github.com/cptkit/cptconv/internal/errors"
	"github.com/cptkit/cptconv/internal/logging"
)

// quantityChannels maps GEF quantity numbers onto record channels.
var quantityChannels = map[int]cpt.Channel{
	1:  cpt.ChannelPenetrationLength,
	2:  cpt.ChannelQc,
	3:  cpt.ChannelFs,
	4:  cpt.ChannelRf,
	6:  cpt.ChannelU2,
	8:  cpt.ChannelInclination,
	9:  cpt.ChannelInclinationNS,
	10: cpt.ChannelInclinationEW,
	11: cpt.ChannelCorrectedDepth,
}

// Options controls parsing.
type Options struct {
	Logger *zap.Logger
}

type column struct {
	number   int
	quantity int
	unit     string
	void     *float64
}

type header struct {
	key   string
	value string
	line  int
}

// Parse reads GEF-CPT text. Depth columns are converted from m to mm, the
// friction ratio from percent to a fraction, void values become nil, and
// elevation is derived from the ground level when #ZID carries one. Rows come
// out sorted by depth.
func Parse(src []byte, opts Options) (*cpt.Record, error) {
	logger := logging.OrNop(opts.Logger)

	headers, body, eohLine, err := splitHeader(src)
	if err != nil {
		return nil, err
	}

	columns := make(map[int]*column)
	colSep, recSep := "", ""
	rec := cpt.NewRecord("")
	var finalDepthM *float64

	col := func(n int) *column {
		c, ok := columns[n]
		if !ok {
			c = &column{number: n}
			columns[n] = c
		}
		return c
	}

	for _, h := range headers {
		fields := splitFields(h.value)
		switch h.key {
		case "COLUMNINFO":
			if len(fields) < 4 {
				return nil, errors.NewGEFSyntax(h.line, "COLUMNINFO needs 4 fields")
			}
			n, err1 := strconv.Atoi(fields[0])
			q, err2 := strconv.Atoi(fields[len(fields)-1])
			if err1 != nil || err2 != nil || n < 1 {
				return nil, errors.NewGEFSyntax(h.line, "invalid COLUMNINFO: "+h.value)
			}
			c := col(n)
			c.quantity = q
			c.unit = fields[1]
		case "COLUMNVOID":
			if len(fields) < 2 {
				return nil, errors.NewGEFSyntax(h.line, "COLUMNVOID needs 2 fields")
			}
			n, err1 := strconv.Atoi(fields[0])
			v, err2 := strconv.ParseFloat(fields[1], 64)
			if err1 != nil || err2 != nil || n < 1 {
				return nil, errors.NewGEFSyntax(h.line, "invalid COLUMNVOID: "+h.value)
			}
			col(n).void = &v
		case "COLUMNSEPARATOR":
			colSep = strings.TrimSpace(h.value)
		case "RECORDSEPARATOR":
			recSep = strings.TrimSpace(h.value)
		case "TESTID":
			rec.Headers.Name = strings.TrimSpace(h.value)
		case "FILEDATE":
			rec.Headers.FileDate = isoDate(fields)
		case "ZID":
			if len(fields) >= 2 {
				if name, ok := codes.VerticalDatum.Name(fields[0]); ok {
					rec.Headers.HeightSystem = name
				} else {
					logger.Debug("unknown ZID code", zap.String("code", fields[0]))
				}
				if v, err := strconv.ParseFloat(fields[1], 64); err == nil {
					rec.Headers.GroundLevelWrtReferenceM = cpt.Float(v)
					rec.Headers.GroundLevelWrtReference = cpt.Float(math.Round(v * 1000))
				}
			}
		case "XYID":
			if len(fields) >= 3 {
				x, errX := strconv.ParseFloat(fields[1], 64)
				y, errY := strconv.ParseFloat(fields[2], 64)
				if errX == nil && errY == nil {
					rec.Headers.XYCoordinates = &cpt.Coordinates{X: x, Y: y}
				}
			}
		case "MEASUREMENTTEXT":
			n, text := numbered(h.value)
			switch n {
			case 4:
				rec.Headers.ConeType = text
			case 6:
				rec.Headers.MeasurementStandard = text
			case 9:
				rec.Headers.FixedHorizontalLevel = text
			}
		case "MEASUREMENTVAR":
			n, text := numbered(h.value)
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				continue
			}
			switch n {
			case 1:
				rec.Headers.ConeTipArea = cpt.Float(v)
			case 2:
				rec.Headers.FrictionSleeveArea = cpt.Float(v)
			case 3:
				rec.Headers.SurfaceAreaQuotientTip = cpt.Float(v)
			case 4:
				rec.Headers.SurfaceAreaQuotientFrictionSleeve = cpt.Float(v)
			case 5:
				rec.Headers.DistanceConeToCentreFrictionSleeve = cpt.Float(v)
			case 13:
				rec.Headers.ExcavationDepth = cpt.Float(v)
			case 16:
				finalDepthM = cpt.Float(v)
			}
		}
	}

	if len(columns) == 0 {
		return nil, errors.NewGEFSyntax(0, "no COLUMNINFO headers")
	}
	ncols := 0
	for n := range columns {
		ncols = max(ncols, n)
	}

	if err := readData(rec, body, eohLine, columns, ncols, colSep, recSep, logger); err != nil {
		return nil, err
	}

	if !rec.Has(cpt.ChannelCorrectedDepth) && rec.Has(cpt.ChannelPenetrationLength) {
		rec.MeasurementData[cpt.ChannelCorrectedDepth] = append(cpt.Series(nil), rec.MeasurementData[cpt.ChannelPenetrationLength]...)
	}
	if ground := rec.Headers.GroundLevelWrtReference; ground != nil && rec.Has(cpt.ChannelCorrectedDepth) {
		depth := rec.MeasurementData[cpt.ChannelCorrectedDepth]
		elevation := make(cpt.Series, len(depth))
		for i, d := range depth {
			if d != nil {
				elevation[i] = cpt.Float(*ground - *d)
			}
		}
		rec.MeasurementData[cpt.ChannelElevation] = elevation
	}

	rec.SortByDepth()

	if v, ok := rec.MeasurementData[cpt.ChannelPenetrationLength].Last(); ok {
		rec.Headers.Depth = cpt.Float(v)
	} else if finalDepthM != nil {
		rec.Headers.Depth = cpt.Float(*finalDepthM * 1000)
	}
	if v, ok := rec.MeasurementData[cpt.ChannelCorrectedDepth].Last(); ok {
		rec.Headers.CorrectedDepth = cpt.Float(v)
	} else if finalDepthM != nil {
		rec.Headers.CorrectedDepth = cpt.Float(*finalDepthM * 1000)
	}
	return rec, nil
}

// splitHeader separates "#KEY= value" lines from the data lines after #EOH.
// It also returns the line number of #EOH.
func splitHeader(src []byte) ([]header, []string, int, error) {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(src))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, nil, 0, errors.NewGEFSyntax(len(lines)+1, err.Error())
	}

	var headers []header
	for i, raw := range lines {
		lineNo := i + 1
		text := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
		if text == "" {
			continue
		}
		if !strings.HasPrefix(text, "#") {
			return nil, nil, 0, errors.NewGEFSyntax(lineNo, "data before #EOH")
		}
		key, value, ok := strings.Cut(text[1:], "=")
		if !ok {
			return nil, nil, 0, errors.NewGEFSyntax(lineNo, "header without '='")
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		if key == "EOH" {
			return headers, lines[i+1:], lineNo, nil
		}
		headers = append(headers, header{key: key, value: strings.TrimSpace(value), line: lineNo})
	}
	return nil, nil, 0, errors.NewGEFSyntax(0, "missing #EOH")
}

func readData(rec *cpt.Record, body []string, eohLine int, columns map[int]*column, ncols int, colSep, recSep string, logger *zap.Logger) error {
	series := make([]cpt.Series, ncols+1)
	for i, raw := range body {
		lineNo := eohLine + i + 1
		text := strings.TrimSpace(raw)
		if recSep != "" {
			text = strings.TrimSpace(strings.TrimSuffix(text, recSep))
		}
		if text == "" {
			continue
		}
		var fields []string
		if colSep == "" {
			fields = strings.Fields(text)
		} else {
			fields = strings.Split(strings.TrimSuffix(text, colSep), colSep)
		}
		if len(fields) != ncols {
			return errors.NewGEFSyntax(lineNo, fmt.Sprintf("row has %d fields, want %d", len(fields), ncols))
		}
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return errors.NewGEFSyntax(lineNo, fmt.Sprintf("column %d: not a number: %q", i+1, f))
			}
			c := columns[i+1]
			if c != nil && c.void != nil && v == *c.void {
				series[i+1] = append(series[i+1], nil)
				continue
			}
			series[i+1] = append(series[i+1], cpt.Float(v))
		}
	}

	for n, c := range columns {
		ch, ok := quantityChannels[c.quantity]
		if !ok {
			logger.Debug("ignoring GEF column", zap.Int("column", n), zap.Int("quantity", c.quantity))
			continue
		}
		s := series[n]
		switch ch {
		case cpt.ChannelPenetrationLength, cpt.ChannelCorrectedDepth:
			s = scale(s, 1000)
		case cpt.ChannelRf:
			s = scale(s, 0.01)
		}
		if s == nil {
			s = cpt.Series{}
		}
		rec.MeasurementData[ch] = s
	}
	return nil
}

func scale(s cpt.Series, f float64) cpt.Series {
	for i, v := range s {
		if v != nil {
			s[i] = cpt.Float(math.Round(*v*f*1e6) / 1e6)
		}
	}
	return s
}

// splitFields splits a comma separated header value into trimmed fields.
func splitFields(v string) []string {
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// numbered splits "n, value, description" into n and value.
func numbered(v string) (int, string) {
	parts := strings.SplitN(v, ",", 3)
	if len(parts) < 2 {
		return 0, ""
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, ""
	}
	return n, strings.TrimSpace(parts[1])
}

// isoDate turns ["2024", "1", "2"] into "2024-01-02".
func isoDate(fields []string) string {
	if len(fields) < 3 {
		return ""
	}
	y, errY := strconv.Atoi(fields[0])
	m, errM := strconv.Atoi(fields[1])
	d, errD := strconv.Atoi(fields[2])
	if errY != nil || errM != nil || errD != nil {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}
