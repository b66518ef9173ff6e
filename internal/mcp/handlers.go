package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/cptkit/cptconv/internal/config"
	"github.com/cptkit/cptconv/internal/convert"
	"github.com/cptkit/cptconv/internal/errors"
	"github.com/cptkit/cptconv/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	conv   *convert.Converter
	cfg    *config.Config
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(conv *convert.Converter, cfg *config.Config) *Handlers {
	return &Handlers{conv: conv, cfg: cfg, logger: conv.Logger()}
}

// ConvertRequest represents the arguments for cpt_convert.
type ConvertRequest struct {
	Path   string `json:"path"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
	Output string `json:"output,omitempty"`
}

// InspectRequest represents the arguments for cpt_inspect.
type InspectRequest struct {
	Path        string `json:"path"`
	Format      string `json:"format,omitempty"`
	IncludeData bool   `json:"include_data,omitempty"`
	Output      string `json:"output,omitempty"`
}

// SummaryRequest represents the arguments for cpt_summary.
type SummaryRequest struct {
	Path   string `json:"path"`
	Format string `json:"format,omitempty"`
	HTML   bool   `json:"html,omitempty"`
	Output string `json:"output,omitempty"`
}

// BatchRequest represents the arguments for cpt_batch.
type BatchRequest struct {
	Paths   []string `json:"paths"`
	Target  string   `json:"target,omitempty"`
	OutDir  string   `json:"out_dir,omitempty"`
	Workers int      `json:"workers,omitempty"`
}

// HandleConvert handles the cpt_convert tool call.
func (h *Handlers) HandleConvert(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ConvertRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	h.logger.Debug("tool call", zap.String("tool", "cpt_convert"), zap.String("path", input.Path))

	result, err := ops.Convert(ctx, h.conv, h.cfg, ops.ConvertInput{
		Path:   input.Path,
		Source: convert.Format(input.Source),
		Target: convert.Format(input.Target),
		Output: input.Output,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleInspect handles the cpt_inspect tool call.
func (h *Handlers) HandleInspect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[InspectRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	h.logger.Debug("tool call", zap.String("tool", "cpt_inspect"), zap.String("path", input.Path))

	result, err := ops.Inspect(ctx, h.conv, h.cfg, ops.InspectInput{
		Path:        input.Path,
		Format:      convert.Format(input.Format),
		IncludeData: input.IncludeData,
		Output:      input.Output,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSummary handles the cpt_summary tool call.
func (h *Handlers) HandleSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SummaryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	h.logger.Debug("tool call", zap.String("tool", "cpt_summary"), zap.String("path", input.Path))

	result, err := ops.Summary(ctx, h.conv, h.cfg, ops.SummaryInput{
		Path:   input.Path,
		Format: convert.Format(input.Format),
		HTML:   input.HTML,
		Output: input.Output,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleBatch handles the cpt_batch tool call.
func (h *Handlers) HandleBatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BatchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	h.logger.Debug("tool call", zap.String("tool", "cpt_batch"), zap.Int("files", len(input.Paths)))

	result, err := ops.Batch(ctx, h.conv, h.cfg, ops.BatchInput{
		Paths:   input.Paths,
		Target:  convert.Format(input.Target),
		OutDir:  input.OutDir,
		Workers: input.Workers,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	errorObj := map[string]any{
		"code":    errors.ErrInternal,
		"message": "an internal error occurred",
	}
	if ce, ok := errors.As(err); ok && ce.Code != errors.ErrInternal {
		errorObj["code"] = ce.Code
		errorObj["message"] = ce.Message
		if error(ce) != err {
			// keep wrapper context such as "items[2]: ..."
			errorObj["message"] = err.Error()
		}
		if ce.Details != nil {
			errorObj["details"] = ce.Details
		}
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
