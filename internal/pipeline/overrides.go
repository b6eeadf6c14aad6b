package pipeline

import (
	"fmt"
	"strings"
)

// Overrides are per-request changes to the configured options. Zero values
// keep the configured setting.
type Overrides struct {
	HeaderRows int
	Delimiter  string
	Encoding   string
	Format     string
	TreatBlank *bool
}

func (o Overrides) Apply(opts Options) (Options, error) {
	switch o.HeaderRows {
	case 0:
	case 1, 2:
		opts.HeaderRows = o.HeaderRows
	default:
		return opts, fmt.Errorf("header rows must be 1 or 2, got %d", o.HeaderRows)
	}

	switch strings.TrimSpace(o.Delimiter) {
	case "":
	case ",":
		opts.Decode.Delimiter = ','
	case ";":
		opts.Decode.Delimiter = ';'
	default:
		return opts, fmt.Errorf("delimiter must be \",\" or \";\", got %q", o.Delimiter)
	}

	if e := strings.TrimSpace(o.Encoding); e != "" {
		opts.Decode.Encoding = e
	}
	if f := strings.TrimSpace(o.Format); f != "" {
		format := ParseFormat(f)
		if format == "" {
			return opts, fmt.Errorf("unknown input format %q", o.Format)
		}
		opts.Decode.Format = format
	}
	if o.TreatBlank != nil {
		opts.Mode.Policy.TreatBlankAsPending = *o.TreatBlank
	}
	return opts, nil
}
