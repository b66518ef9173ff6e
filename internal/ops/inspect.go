package ops

import (
	"context"

	"go.uber.org/zap"

	"github.com/cptkit/cptconv/internal/config"
	"github.com/cptkit/cptconv/internal/convert"
	"github.com/cptkit/cptconv/internal/cpt"
	"github.com/cptkit/cptconv/internal/errors"
)

// InspectInput contains parameters for the Inspect operation.
type InspectInput struct {
	Path        string         // required
	Format      convert.Format // optional, inferred from the Path extension
	IncludeData bool           // include the full record with samples
	Output      string         // optional .json or .yaml report file
}

// InspectOutput contains the result of the Inspect operation.
type InspectOutput struct {
	ID      string          `json:"id" yaml:"id"`
	Path    string          `json:"path" yaml:"path"`
	Format  string          `json:"format" yaml:"format"`
	Summary cpt.Summary     `json:"summary" yaml:"summary"`
	Lint    *cpt.LintResult `json:"lint" yaml:"lint"`
	Record  *cpt.Record     `json:"record,omitempty" yaml:"record,omitempty"`
	Output  string          `json:"output,omitempty" yaml:"output,omitempty"`
}

// Inspect decodes a document and reports its summary and lint result.
func Inspect(ctx context.Context, conv *convert.Converter, cfg *config.Config, input InspectInput) (*InspectOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	format, err := resolveFormat(input.Format, input.Path)
	if err != nil {
		return nil, err
	}
	var enc ReportEncoding
	if input.Output != "" {
		if enc, err = encodingFor(input.Output); err != nil {
			return nil, err
		}
	}
	if ctx.Err() != nil {
		return nil, errors.NewCancelled("inspect")
	}

	rec, err := decodeFile(conv, cfg, format, input.Path)
	if err != nil {
		return nil, err
	}

	out := &InspectOutput{
		ID:      newConversionID(),
		Path:    input.Path,
		Format:  string(format),
		Summary: rec.ToSummary(),
		Lint:    cpt.Lint(rec),
	}
	if input.IncludeData {
		out.Record = rec
	}
	conv.Logger().Debug("inspected",
		zap.String("id", out.ID),
		zap.String("path", input.Path),
		zap.Int("samples", out.Lint.Samples),
		zap.Bool("valid", out.Lint.Valid))

	if input.Output != "" {
		out.Output = input.Output
		data, err := MarshalReport(out, enc)
		if err != nil {
			return nil, err
		}
		if err := writeFileAtomic(input.Output, data, cfg); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeFile(conv *convert.Converter, cfg *config.Config, format convert.Format, path string) (*cpt.Record, error) {
	in, err := readDocument(path, cfg)
	if err != nil {
		return nil, err
	}
	return conv.Decode(format, in)
}
