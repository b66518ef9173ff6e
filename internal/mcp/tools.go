package mcp

import "github.com/mark3labs/mcp-go/mcp"

var convertToolDef = mcp.NewTool("cpt_convert",
	mcp.WithDescription("Convert a CPT survey between GEF and BRO/IMBRO XML. The source format is taken from the file extension unless given; the target defaults to the other format. Output is written atomically next to the input unless an output path is given."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Input file (.gef or .xml)")),
	mcp.WithString("source", mcp.Description("Source format"), mcp.Enum("gef", "xml")),
	mcp.WithString("target", mcp.Description("Target format"), mcp.Enum("gef", "xml")),
	mcp.WithString("output", mcp.Description("Output file; default replaces the input extension")),
)

var inspectToolDef = mcp.NewTool("cpt_inspect",
	mcp.WithDescription("Decode a CPT survey and report its headline facts and lint result (missing headers, ragged channels, unsorted depth)."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Input file (.gef or .xml)")),
	mcp.WithString("format", mcp.Description("Input format"), mcp.Enum("gef", "xml")),
	mcp.WithBoolean("include_data", mcp.Description("Include every sample in the response")),
	mcp.WithString("output", mcp.Description("Optional .json or .yaml report file")),
)

var summaryToolDef = mcp.NewTool("cpt_summary",
	mcp.WithDescription("Render a short Markdown (or HTML) summary of a CPT survey."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Input file (.gef or .xml)")),
	mcp.WithString("format", mcp.Description("Input format"), mcp.Enum("gef", "xml")),
	mcp.WithBoolean("html", mcp.Description("Render HTML instead of Markdown")),
	mcp.WithString("output", mcp.Description("Optional .md or .html file")),
)

var batchToolDef = mcp.NewTool("cpt_batch",
	mcp.WithDescription("Convert many CPT files concurrently. Each file is reported separately; one failure does not stop the others."),
	mcp.WithArray("paths", mcp.Required(), mcp.Description("Input files"), mcp.WithStringItems()),
	mcp.WithString("target", mcp.Description("Target format; default is the other format per file"), mcp.Enum("gef", "xml")),
	mcp.WithString("out_dir", mcp.Description("Directory for converted files; default is next to each input")),
	mcp.WithNumber("workers", mcp.Description("Concurrent conversions; default from config")),
)
