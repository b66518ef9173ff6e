// Package convert routes CPT documents between the GEF and BRO/IMBRO XML
// formats.
package convert

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cptkit/cptconv/internal/config"
	"github.com/cptkit/cptconv/internal/cpt"
	"github.com/cptkit/cptconv/internal/errors"
	"github.com/cptkit/cptconv/internal/gef"
	"github.com/cptkit/cptconv/internal/gefxml"
	"github.com/cptkit/cptconv/internal/logging"
	"github.com/cptkit/cptconv/internal/xmlgef"
	"github.com/cptkit/cptconv/internal/xmltemplate"
)

// Format is a supported document format.
type Format string

const (
	FormatGEF Format = "gef"
	FormatXML Format = "xml"
)

// Formats lists every supported format.
var Formats = []Format{FormatGEF, FormatXML}

// ParseFormat normalizes a format name ("GEF", ".xml", ...).
func ParseFormat(s string) (Format, bool) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	switch f {
	case FormatGEF, FormatXML:
		return f, true
	}
	return f, false
}

// Options configures a Converter.
type Options struct {
	// Skeleton is the XML template; nil loads the embedded default
	Skeleton *xmltemplate.Node

	TokenSeparator string
	BlockSeparator string

	// DropIncompleteRows removes rows with a missing sample before mapping
	DropIncompleteRows bool

	Now    func() time.Time
	Logger *zap.Logger
}

// Converter converts between formats. It holds only immutable state and is
// safe for concurrent use.
type Converter struct {
	skeleton       *xmltemplate.Node
	tokenSeparator string
	blockSeparator string
	dropIncomplete bool
	now            func() time.Time
	logger         *zap.Logger
}

// New returns a Converter for opts.
func New(opts Options) (*Converter, error) {
	skeleton := opts.Skeleton
	if skeleton == nil {
		var err error
		skeleton, err = gefxml.DefaultSkeleton()
		if err != nil {
			return nil, err
		}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Converter{
		skeleton:       skeleton,
		tokenSeparator: opts.TokenSeparator,
		blockSeparator: opts.BlockSeparator,
		dropIncomplete: opts.DropIncompleteRows,
		now:            now,
		logger:         logging.OrNop(opts.Logger),
	}, nil
}

// NewFromConfig builds a Converter from configuration, loading the skeleton
// from cfg.SkeletonPath when set.
func NewFromConfig(cfg *config.Config, logger *zap.Logger) (*Converter, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	opts := Options{
		TokenSeparator:     cfg.TokenSeparator,
		BlockSeparator:     cfg.BlockSeparator,
		DropIncompleteRows: cfg.DropIncompleteRows,
		Logger:             logger,
	}
	if cfg.SkeletonPath != "" {
		skeleton, err := xmltemplate.LoadSkeletonFile(cfg.SkeletonPath)
		if err != nil {
			return nil, err
		}
		opts.Skeleton = skeleton
	}
	return New(opts)
}

// Logger returns the converter's logger.
func (c *Converter) Logger() *zap.Logger {
	return c.logger
}

// Skeleton returns the template tree. Callers must not modify it.
func (c *Converter) Skeleton() *xmltemplate.Node {
	return c.skeleton
}

// Convert converts in from src to dst. Unknown formats are rejected before
// any parsing; src == dst returns a copy of in.
func (c *Converter) Convert(src, dst Format, in []byte) ([]byte, error) {
	if !known(src) || !known(dst) {
		return nil, errors.NewUnsupportedConversion(string(src), string(dst))
	}
	if src == dst {
		return append([]byte(nil), in...), nil
	}

	switch {
	case src == FormatGEF && dst == FormatXML:
		rec, err := c.Decode(FormatGEF, in)
		if err != nil {
			return nil, err
		}
		return c.EncodeXML(rec)
	case src == FormatXML && dst == FormatGEF:
		return xmlgef.Convert(in, xmlgef.Options{
			Now:            c.now,
			TokenSeparator: c.tokenSeparator,
			BlockSeparator: c.blockSeparator,
			Logger:         c.logger,
		})
	}
	return nil, errors.NewUnsupportedConversion(string(src), string(dst))
}

// EncodeXML maps an already parsed record onto the skeleton.
func (c *Converter) EncodeXML(rec *cpt.Record) ([]byte, error) {
	if rec == nil {
		return nil, errors.NewMissingField("name")
	}
	if c.dropIncomplete {
		work := *rec
		work.MeasurementData = make(map[cpt.Channel]cpt.Series, len(rec.MeasurementData))
		for ch, s := range rec.MeasurementData {
			work.MeasurementData[ch] = append(cpt.Series(nil), s...)
		}
		if n := work.DropIncompleteRows(); n > 0 {
			c.logger.Debug("dropped incomplete rows", zap.String("name", rec.Headers.Name), zap.Int("rows", n))
		}
		rec = &work
	}
	return gefxml.Convert(rec, c.skeleton, gefxml.Options{Now: c.now, Logger: c.logger})
}

// Decode parses in as a CPT record.
func (c *Converter) Decode(format Format, in []byte) (*cpt.Record, error) {
	switch format {
	case FormatGEF:
		return gef.Parse(in, gef.Options{Logger: c.logger})
	case FormatXML:
		return xmlgef.DecodeRecord(in, xmlgef.Options{
			TokenSeparator: c.tokenSeparator,
			BlockSeparator: c.blockSeparator,
			Logger:         c.logger,
		})
	}
	return nil, errors.NewUnsupportedConversion(string(format), "record")
}

func known(f Format) bool {
	return f == FormatGEF || f == FormatXML
}
