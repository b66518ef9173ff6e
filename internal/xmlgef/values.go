package xmlgef

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/cptkit/cptconv/internal/errors"
	"github.com/cptkit/cptconv/internal/xmltemplate"
)

// Default separators for the values block.
const (
	DefaultTokenSeparator = ","
	DefaultBlockSeparator = ";"
)

const valuesPath = "conePenetrometerSurvey/conePenetrationTest/cptResult/values"

// separators reads token and block separators from the TextEncoding element,
// as attributes or as child elements, falling back to the given defaults.
func separators(result *xmltemplate.Tree, token, block string) (string, string) {
	enc, ok := result.Lookup("encoding", "TextEncoding")
	if !ok {
		return token, block
	}
	switch e := enc.(type) {
	case xmltemplate.Text:
		if v := e.Attrs["tokenSeparator"]; v != "" {
			token = v
		}
		if v := e.Attrs["blockSeparator"]; v != "" {
			block = v
		}
	case *xmltemplate.Tree:
		if v, ok := e.TextAt("tokenSeparator"); ok {
			token = v
		}
		if v, ok := e.TextAt("blockSeparator"); ok {
			block = v
		}
		if v := e.Attrs["tokenSeparator"]; v != "" {
			token = v
		}
		if v := e.Attrs["blockSeparator"]; v != "" {
			block = v
		}
	}
	return token, block
}

// row is one block of the values text, split into trimmed fields.
type row struct {
	fields []string
	key    float64
}

// parseRows splits the values text into rows sorted ascending by field 0.
// Every row must have more than maxCol fields and numeric fields at 0 and at
// each index in numeric.
func parseRows(values, token, block string, maxCol int, numeric []int) ([]row, error) {
	var rows []row
	for n, blk := range strings.Split(values, block) {
		blk = strings.TrimSpace(blk)
		if blk == "" {
			continue
		}
		fields := strings.Split(blk, token)
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if len(fields) <= maxCol {
			return nil, errors.NewXMLStructure(valuesPath,
				fmt.Sprintf("row %d has %d fields, need %d", n+1, len(fields), maxCol+1))
		}
		key, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, errors.NewXMLStructure(valuesPath,
				fmt.Sprintf("row %d: field 1 is not a number: %q", n+1, fields[0]))
		}
		for _, c := range numeric {
			if _, err := strconv.ParseFloat(fields[c], 64); err != nil {
				return nil, errors.NewXMLStructure(valuesPath,
					fmt.Sprintf("row %d: field %d is not a number: %q", n+1, c+1, fields[c]))
			}
		}
		rows = append(rows, row{fields: fields, key: key})
	}
	slices.SortStableFunc(rows, func(a, b row) int {
		return cmp.Compare(a.key, b.key)
	})
	return rows, nil
}

// resultBlock locates the cptResult subtree and its values text.
func resultBlock(survey *xmltemplate.Tree) (*xmltemplate.Tree, string, error) {
	result, err := survey.TreeAt("conePenetrationTest", "cptResult")
	if err != nil {
		return nil, "", err
	}
	v, ok := result.Get("values")
	if !ok {
		return nil, "", errors.NewXMLStructure(valuesPath, "element not found")
	}
	txt, ok := v.(xmltemplate.Text)
	if !ok {
		return nil, "", errors.NewXMLStructure(valuesPath, "expected text content")
	}
	return result, txt.Value, nil
}
