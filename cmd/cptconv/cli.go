package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/cptkit/cptconv/internal/codes"
	"github.com/cptkit/cptconv/internal/config"
	"github.com/cptkit/cptconv/internal/convert"
	"github.com/cptkit/cptconv/internal/errors"
	"github.com/cptkit/cptconv/internal/logging"
	"github.com/cptkit/cptconv/internal/ops"
	"github.com/cptkit/cptconv/internal/registry"
)

// session is built once per run, after global flags are parsed.
type session struct {
	cfg  *config.Config
	conv *convert.Converter
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(cfg *config.Config) *cli.App {
	s := &session{cfg: cfg}
	app := &cli.App{
		Name:    "cptconv",
		Usage:   "Convert CPT surveys between GEF and BRO/IMBRO XML",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Usage: "Log debug output to stderr"},
			&cli.BoolFlag{Name: "drop-incomplete", Usage: "Drop rows with a missing channel value before writing XML"},
		},
		Before: func(c *cli.Context) error {
			if s.cfg == nil {
				return nil
			}
			logger, err := logging.New(c.Bool("verbose"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if c.Bool("drop-incomplete") {
				cfg := *s.cfg
				cfg.DropIncompleteRows = true
				s.cfg = &cfg
			}
			conv, err := convert.NewFromConfig(s.cfg, logger)
			if err != nil {
				return outputError(err)
			}
			s.conv = conv
			return nil
		},
		Commands: []*cli.Command{
			convertCmd(s),
			inspectCmd(s),
			summaryCmd(s),
			batchCmd(s),
			codesCmd(),
			columnsCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// convertCmd creates the convert command.
func convertCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "Convert one file; the target defaults to the other format",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Usage: "Source format: gef|xml (default: from extension)"},
			&cli.StringFlag{Name: "target", Aliases: []string{"t"}, Usage: "Target format: gef|xml"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file (default: input with the target extension)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Convert(c.Context, s.conv, s.cfg, ops.ConvertInput{
				Path:   c.Args().First(),
				Source: convert.Format(c.String("source")),
				Target: convert.Format(c.String("target")),
				Output: c.String("output"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// inspectCmd creates the inspect command.
func inspectCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Report a file's headline facts and lint result",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Input format: gef|xml (default: from extension)"},
			&cli.BoolFlag{Name: "include-data", Usage: "Include every sample"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Also write the report to a .json or .yaml file"},
			&cli.BoolFlag{Name: "yaml", Usage: "Print YAML instead of JSON"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Inspect(c.Context, s.conv, s.cfg, ops.InspectInput{
				Path:        c.Args().First(),
				Format:      convert.Format(c.String("format")),
				IncludeData: c.Bool("include-data"),
				Output:      c.String("output"),
			})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("yaml") {
				data, err := ops.MarshalReport(output, ops.EncodingYAML)
				if err != nil {
					return outputError(err)
				}
				_, err = os.Stdout.Write(data)
				return err
			}
			return outputJSON(output)
		},
	}
}

// summaryCmd creates the summary command.
func summaryCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:      "summary",
		Usage:     "Print a Markdown (or HTML) summary of a file",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Input format: gef|xml (default: from extension)"},
			&cli.BoolFlag{Name: "html", Usage: "Render HTML"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write to a .md or .html file instead of stdout"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Summary(c.Context, s.conv, s.cfg, ops.SummaryInput{
				Path:   c.Args().First(),
				Format: convert.Format(c.String("format")),
				HTML:   c.Bool("html"),
				Output: c.String("output"),
			})
			if err != nil {
				return outputError(err)
			}
			if output.Output != "" {
				return outputJSON(output)
			}
			_, err = fmt.Fprint(os.Stdout, output.Content)
			return err
		},
	}
}

// batchCmd creates the batch command.
func batchCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "Convert many files concurrently",
		ArgsUsage: "<path>...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "target", Aliases: []string{"t"}, Usage: "Target format: gef|xml (default: the other format per file)"},
			&cli.StringFlag{Name: "out-dir", Aliases: []string{"d"}, Usage: "Directory for converted files"},
			&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "Concurrent conversions (default: batch_workers from config)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Batch(c.Context, s.conv, s.cfg, ops.BatchInput{
				Paths:   c.Args().Slice(),
				Target:  convert.Format(c.String("target")),
				OutDir:  c.String("out-dir"),
				Workers: c.Int("workers"),
			})
			if output != nil {
				if jsonErr := outputJSON(output); jsonErr != nil {
					return jsonErr
				}
			}
			if err != nil {
				return outputError(err)
			}
			if output.Failed > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d files failed", output.Failed, len(output.Items)), 1)
			}
			return nil
		},
	}
}

// codeTable is the printable form of a codes.Table.
type codeTable struct {
	Title    string        `json:"title"`
	Fallback string        `json:"fallback"`
	Entries  []codes.Entry `json:"entries"`
}

// codesCmd creates the codes command.
func codesCmd() *cli.Command {
	return &cli.Command{
		Name:  "codes",
		Usage: "List the BRO vocabulary to GEF code tables",
		Action: func(c *cli.Context) error {
			var tables []codeTable
			for _, t := range codes.All() {
				tables = append(tables, codeTable{Title: t.Title(), Fallback: t.Fallback(), Entries: t.Entries()})
			}
			return outputJSON(tables)
		},
	}
}

// columnsCmd creates the columns command.
func columnsCmd() *cli.Command {
	return &cli.Command{
		Name:  "columns",
		Usage: "List the known measurement columns",
		Action: func(c *cli.Context) error {
			return outputJSON(registry.All())
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if ce, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", ce.Code, ce.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
