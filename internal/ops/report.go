package ops

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/cptkit/cptconv/internal/errors"
)

// ReportEncoding selects how a report is serialized.
type ReportEncoding string

const (
	EncodingJSON ReportEncoding = "json"
	EncodingYAML ReportEncoding = "yaml"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// MarshalReport serializes v as indented JSON or YAML.
func MarshalReport(v any, enc ReportEncoding) ([]byte, error) {
	switch enc {
	case EncodingJSON, "":
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		return append(out, '\n'), nil
	case EncodingYAML:
		var buf bytes.Buffer
		e := yaml.NewEncoder(&buf)
		e.SetIndent(2)
		if err := e.Encode(v); err != nil {
			return nil, errors.NewInternal(err)
		}
		if err := e.Close(); err != nil {
			return nil, errors.NewInternal(err)
		}
		return buf.Bytes(), nil
	}
	return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown report encoding %q", enc))
}

// encodingFor picks the report encoding from an output file extension.
func encodingFor(path string) (ReportEncoding, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return EncodingJSON, nil
	case ".yaml":
		return EncodingYAML, nil
	}
	return "", errors.NewInvalidRequest("report output must end in .json or .yaml")
}

// RenderHTML converts Markdown to an HTML fragment.
func RenderHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to render markdown: %w", err))
	}
	return buf.String(), nil
}
