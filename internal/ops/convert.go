package ops

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/cptkit/cptconv/internal/config"
	"github.com/cptkit/cptconv/internal/convert"
	"github.com/cptkit/cptconv/internal/errors"
)

// ConvertInput contains parameters for the Convert operation.
type ConvertInput struct {
	Path   string         // required
	Source convert.Format // optional, inferred from the Path extension
	Target convert.Format // optional, default: the other format
	Output string         // optional, default: Path with the target extension
}

// ConvertOutput contains the result of the Convert operation.
type ConvertOutput struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	Path         string `json:"path"`
	Output       string `json:"output"`
	BytesRead    int    `json:"bytes_read"`
	BytesWritten int    `json:"bytes_written"`
}

// Convert reads one document, converts it and writes the result atomically.
func Convert(ctx context.Context, conv *convert.Converter, cfg *config.Config, input ConvertInput) (*ConvertOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	source, err := resolveFormat(input.Source, input.Path)
	if err != nil {
		return nil, err
	}
	target := opposite(source)
	if input.Target != "" {
		target, err = resolveFormat(input.Target, "")
		if err != nil {
			return nil, errors.NewUnsupportedConversion(string(source), string(input.Target))
		}
	}

	output := input.Output
	if output == "" {
		output = outputPath(input.Path, "", target)
	}
	if filepath.Clean(output) == filepath.Clean(input.Path) {
		return nil, errors.NewInvalidRequest("output must differ from the input path")
	}

	if ctx.Err() != nil {
		return nil, errors.NewCancelled("convert")
	}

	id := newConversionID()
	logger := conv.Logger().With(zap.String("conversion_id", id))
	logger.Info("conversion started",
		zap.String("path", input.Path),
		zap.String("source", string(source)),
		zap.String("target", string(target)))

	in, err := readDocument(input.Path, cfg)
	if err != nil {
		return nil, err
	}
	out, err := conv.Convert(source, target, in)
	if err != nil {
		logger.Info("conversion failed", zap.Error(err))
		return nil, err
	}
	if err := writeFileAtomic(output, out, cfg); err != nil {
		return nil, err
	}

	logger.Info("conversion finished",
		zap.String("output", output),
		zap.Int("bytes_in", len(in)),
		zap.Int("bytes_out", len(out)))

	return &ConvertOutput{
		ID:           id,
		Source:       string(source),
		Target:       string(target),
		Path:         input.Path,
		Output:       output,
		BytesRead:    len(in),
		BytesWritten: len(out),
	}, nil
}
