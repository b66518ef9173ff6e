package ops

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cptkit/cptconv/internal/config"
	"github.com/cptkit/cptconv/internal/convert"
	"github.com/cptkit/cptconv/internal/errors"
)

// MaxBatchItems limits the number of files in one batch.
const MaxBatchItems = 1000

// BatchInput contains parameters for the Batch operation.
type BatchInput struct {
	Paths   []string       // required
	Target  convert.Format // optional, default: the other format per file
	OutDir  string         // optional, default: next to each input
	Workers int            // optional, default: cfg.BatchWorkers
}

// BatchItem is the outcome for one input file.
type BatchItem struct {
	Path    string `json:"path"`
	Output  string `json:"output,omitempty"`
	ID      string `json:"id,omitempty"`
	Bytes   int    `json:"bytes,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// BatchOutput contains the result of the Batch operation.
type BatchOutput struct {
	ID         string      `json:"id"`
	Converted  int         `json:"converted"`
	Failed     int         `json:"failed"`
	Items      []BatchItem `json:"items"`
	DurationMS int64       `json:"duration_ms"`
}

// Batch converts many files concurrently. A failing file is reported in its
// item and does not stop the others. Items keep the order of input.Paths.
// Cancelling ctx stops files that have not been read yet; they are reported
// as CANCELLED.
func Batch(ctx context.Context, conv *convert.Converter, cfg *config.Config, input BatchInput) (*BatchOutput, error) {
	if len(input.Paths) == 0 {
		return nil, errors.NewInvalidRequest("paths is required")
	}
	if len(input.Paths) > MaxBatchItems {
		return nil, errors.NewInvalidRequest("too many paths; maximum is 1000")
	}
	if input.Target != "" {
		if _, ok := convert.ParseFormat(string(input.Target)); !ok {
			return nil, errors.NewUnsupportedConversion("", string(input.Target))
		}
	}

	workers := input.Workers
	if workers <= 0 && cfg != nil {
		workers = cfg.BatchWorkers
	}
	if workers <= 0 {
		workers = 1
	}

	start := time.Now()
	out := &BatchOutput{
		ID:    newConversionID(),
		Items: make([]BatchItem, len(input.Paths)),
	}
	logger := conv.Logger().With(zap.String("batch_id", out.ID))
	logger.Info("batch started", zap.Int("files", len(input.Paths)), zap.Int("workers", workers))

	inputs, planErrs := planBatch(input)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range input.Paths {
		g.Go(func() error {
			item := BatchItem{Path: path}
			defer func() { out.Items[i] = item }()

			if gctx.Err() != nil {
				item.Code, item.Message = string(errors.ErrCancelled), "batch cancelled"
				return nil
			}
			if err := planErrs[i]; err != nil {
				item.Code, item.Message = failure(err)
				logger.Warn("batch item failed", zap.String("path", path), zap.Error(err))
				return nil
			}

			res, err := Convert(gctx, conv, cfg, inputs[i])
			if err != nil {
				item.Code, item.Message = failure(err)
				logger.Warn("batch item failed", zap.String("path", path), zap.Error(err))
				return nil
			}
			item.Output, item.ID, item.Bytes = res.Output, res.ID, res.BytesWritten
			return nil
		})
	}
	_ = g.Wait()

	for _, item := range out.Items {
		if item.Code == "" {
			out.Converted++
		} else {
			out.Failed++
		}
	}
	out.DurationMS = time.Since(start).Milliseconds()
	logger.Info("batch finished",
		zap.Int("converted", out.Converted),
		zap.Int("failed", out.Failed),
		zap.Int64("duration_ms", out.DurationMS))

	if ctx.Err() != nil {
		return out, errors.NewCancelled("batch")
	}
	return out, nil
}

// planBatch resolves each item's output path before any file is written.
// An item whose output was already claimed by an earlier item fails, so two
// inputs with the same stem never overwrite each other in OutDir.
func planBatch(input BatchInput) ([]ConvertInput, []error) {
	inputs := make([]ConvertInput, len(input.Paths))
	errs := make([]error, len(input.Paths))
	claimed := make(map[string]int)
	for i, path := range input.Paths {
		inputs[i] = ConvertInput{Path: path, Target: input.Target}
		source, err := formatFromPath(path)
		if err != nil {
			if input.OutDir != "" {
				errs[i] = err
			}
			// without OutDir, Convert reports the bad extension itself
			continue
		}
		target := opposite(source)
		if input.Target != "" {
			target, _ = convert.ParseFormat(string(input.Target))
		}
		output := outputPath(path, input.OutDir, target)
		key := filepath.Clean(output)
		if j, dup := claimed[key]; dup {
			errs[i] = errors.NewInvalidRequest(fmt.Sprintf("output %s is already written by item %d (%s)", output, j, input.Paths[j]))
			continue
		}
		claimed[key] = i
		inputs[i].Output = output
	}
	return inputs, errs
}

// failure splits an error into its code and message.
func failure(err error) (string, string) {
	if ce, ok := errors.As(err); ok {
		return string(ce.Code), ce.Message
	}
	return string(errors.ErrInternal), err.Error()
}
