package ops

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/cptkit/cptconv/internal/config"
	"github.com/cptkit/cptconv/internal/convert"
	"github.com/cptkit/cptconv/internal/errors"
)

// SummaryInput contains parameters for the Summary operation.
type SummaryInput struct {
	Path   string         // required
	Format convert.Format // optional, inferred from the Path extension
	HTML   bool           // render HTML instead of Markdown; implied by an .html Output
	Output string         // optional .md or .html file
}

// SummaryOutput contains the result of the Summary operation.
type SummaryOutput struct {
	Name    string `json:"name"`
	Format  string `json:"format"` // "markdown" or "html"
	Content string `json:"content"`
	Output  string `json:"output,omitempty"`
}

// Summary renders a document's headline facts as Markdown or HTML.
func Summary(ctx context.Context, conv *convert.Converter, cfg *config.Config, input SummaryInput) (*SummaryOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	format, err := resolveFormat(input.Format, input.Path)
	if err != nil {
		return nil, err
	}
	html := input.HTML
	if input.Output != "" {
		switch strings.ToLower(filepath.Ext(input.Output)) {
		case ".html":
			html = true
		case ".md":
			if html {
				return nil, errors.NewInvalidRequest("HTML summary output must end in .html")
			}
		default:
			return nil, errors.NewInvalidRequest("summary output must end in .md or .html")
		}
	}
	if ctx.Err() != nil {
		return nil, errors.NewCancelled("summary")
	}

	rec, err := decodeFile(conv, cfg, format, input.Path)
	if err != nil {
		return nil, err
	}

	summary := rec.ToSummary()
	out := &SummaryOutput{
		Name:    summary.Name,
		Format:  "markdown",
		Content: summary.Markdown(),
	}
	if html {
		if out.Content, err = RenderHTML(out.Content); err != nil {
			return nil, err
		}
		out.Format = "html"
	}

	if input.Output != "" {
		if err := writeFileAtomic(input.Output, []byte(out.Content), cfg); err != nil {
			return nil, err
		}
		out.Output = input.Output
	}
	return out, nil
}
