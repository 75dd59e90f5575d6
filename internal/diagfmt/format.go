package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"astrols/internal/diag"
)

// Format selects an output encoding.
type Format uint8

const (
	FormatPretty Format = iota
	FormatShort
	FormatJSON
	FormatSarif
	FormatMsgpack
)

func (f Format) String() string {
	switch f {
	case FormatShort:
		return "short"
	case FormatJSON:
		return "json"
	case FormatSarif:
		return "sarif"
	case FormatMsgpack:
		return "msgpack"
	default:
		return "pretty"
	}
}

// ParseFormat parses pretty|short|json|sarif|msgpack.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "pretty":
		return FormatPretty, nil
	case "short":
		return FormatShort, nil
	case "json":
		return FormatJSON, nil
	case "sarif":
		return FormatSarif, nil
	case "msgpack":
		return FormatMsgpack, nil
	}
	return FormatPretty, fmt.Errorf("invalid format: %q (expected: pretty|short|json|sarif|msgpack)", s)
}

// Binary reports whether f should not be written to a terminal.
func (f Format) Binary() bool {
	return f == FormatMsgpack
}

// Options bundles the per-format options for Write.
type Options struct {
	Pretty PrettyOpts
	JSON   JSONOpts
	Sarif  SarifRunMeta
}

// Write renders bag in format f.
func Write(w io.Writer, f Format, bag *diag.Bag, opts Options) error {
	switch f {
	case FormatShort:
		Short(w, bag, opts.Pretty.PathMode, opts.Pretty.BaseDir)
		return nil
	case FormatJSON:
		return JSON(w, bag, opts.JSON)
	case FormatSarif:
		return Sarif(w, bag, opts.Sarif)
	case FormatMsgpack:
		return Msgpack(w, bag)
	default:
		Pretty(w, bag, opts.Pretty)
		return nil
	}
}
