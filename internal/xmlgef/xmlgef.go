// Package xmlgef converts BRO/IMBRO CPT XML into GEF-CPT text and decodes it
// into CPT records.
package xmlgef

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/cptkit/cptconv/internal/errors"
	"github.com/cptkit/cptconv/internal/logging"
	"github.com/cptkit/cptconv/internal/registry"
	"github.com/cptkit/cptconv/internal/xmltemplate"
)

//go:embed template_gef.txt
var gefTemplateText string

var gefTemplate = template.Must(template.New("gef").Parse(gefTemplateText))

// VoidValue is declared as #COLUMNVOID for every column.
const VoidValue = "-999999"

// FileDateLayout formats #FILEDATE.
const FileDateLayout = "2006, 01, 02"

// Options controls a conversion.
type Options struct {
	// Now supplies #FILEDATE; defaults to time.Now
	Now func() time.Time

	// Separators used when the document declares none
	TokenSeparator string
	BlockSeparator string

	Logger *zap.Logger
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) separators() (string, string) {
	token, block := o.TokenSeparator, o.BlockSeparator
	if token == "" {
		token = DefaultTokenSeparator
	}
	if block == "" {
		block = DefaultBlockSeparator
	}
	return token, block
}

// Column is a selected output column.
type Column struct {
	registry.Column

	// Number is the 1-based GEF column number
	Number int

	// Index is the field position within a values row
	Index int
}

type gefDocument struct {
	FileDate        string
	Headers         []header
	Columns         []Column
	Void            string
	LastScan        int
	MeasurementText []string
	MeasurementVar  []string
	Data            string
}

// Convert renders a BRO/IMBRO CPT document as GEF-CPT text.
func Convert(src []byte, opts Options) ([]byte, error) {
	logger := logging.OrNop(opts.Logger)

	obj, err := locate(src)
	if err != nil {
		return nil, err
	}
	testID, ok := obj.TextAt("broId")
	if !ok {
		return nil, errors.NewMissingField("broId")
	}
	surveyTree, err := obj.TreeAt("conePenetrometerSurvey")
	if err != nil {
		return nil, err
	}

	columns, err := SelectColumns(surveyTree)
	if err != nil {
		return nil, err
	}

	result, values, err := resultBlock(surveyTree)
	if err != nil {
		return nil, err
	}
	token, block := opts.separators()
	token, block = separators(result, token, block)

	maxCol := 0
	selected := make([]int, len(columns))
	for i, c := range columns {
		maxCol = max(maxCol, c.Index)
		selected[i] = c.Index
	}
	rows, err := parseRows(values, token, block, maxCol, selected)
	if err != nil {
		return nil, err
	}

	var data strings.Builder
	for _, r := range rows {
		for i, c := range columns {
			if i > 0 {
				data.WriteByte(';')
			}
			data.WriteString(r.fields[c.Index])
		}
		data.WriteString(";!\n")
	}

	doc := gefDocument{
		FileDate:        opts.now().Format(FileDateLayout),
		Headers:         identificationHeaders(obj, testID, logger),
		Columns:         columns,
		Void:            VoidValue,
		LastScan:        len(rows),
		MeasurementText: renderLines(obj, measurementText, logger),
		MeasurementVar:  renderLines(obj, measurementVar, logger),
		Data:            data.String(),
	}

	var out bytes.Buffer
	if err := gefTemplate.Execute(&out, doc); err != nil {
		return nil, errors.NewInternal(err)
	}
	logger.Debug("rendered GEF",
		zap.String("test_id", testID),
		zap.Int("columns", len(columns)),
		zap.Int("rows", len(rows)))
	return out.Bytes(), nil
}

// SelectColumns maps every "on" parameter to its registry column, numbering
// from 1 in parameter order.
func SelectColumns(surveyTree *xmltemplate.Tree) ([]Column, error) {
	flags, ok := surveyTree.FlagsAt(xmltemplate.FlagsTag)
	if !ok {
		return nil, errors.NewXMLStructure("conePenetrometerSurvey/parameters", "element not found")
	}
	var columns []Column
	for i, f := range flags {
		if !f.On {
			continue
		}
		col, ok := registry.ByParameter(f.Name)
		if !ok {
			return nil, errors.NewUnknownColumn(f.Name)
		}
		columns = append(columns, Column{Column: col, Number: len(columns) + 1, Index: i})
	}
	return columns, nil
}

// locate flattens src and returns the subtree holding the CPT object.
func locate(src []byte) (*xmltemplate.Tree, error) {
	tree, err := xmltemplate.Flatten(src)
	if err != nil {
		return nil, err
	}
	obj, ok := tree.Find("conePenetrometerSurvey")
	if !ok {
		return nil, errors.NewXMLStructure(tree.Name+"/conePenetrometerSurvey", "element not found")
	}
	return obj, nil
}
