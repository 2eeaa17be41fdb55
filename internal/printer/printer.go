// Package printer renders twinctl output, coloured for humans or as JSON.
package printer

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed, color.Bold)
	cyan  = color.New(color.FgCyan)
	bold  = color.New(color.Bold)
)

// Printer writes command results.
type Printer struct {
	out    io.Writer
	errOut io.Writer
	json   bool
}

// New returns a printer writing results to out and errors to errOut. With
// asJSON set, snapshots and verdicts are printed as protojson.
func New(out, errOut io.Writer, asJSON bool) *Printer {
	return &Printer{
		out:    out,
		errOut: errOut,
		json:   asJSON,
	}
}

// Snapshot prints a device snapshot under title.
func (p *Printer) Snapshot(title string, s *structpb.Struct) error {
	if p.json {
		return p.writeJSON(s)
	}

	cyan.Fprintf(p.out, "%s\n", title)

	fields := s.GetFields()
	keys := make([]string, 0, len(fields))

	for k := range fields {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	for _, k := range keys {
		bold.Fprintf(p.out, "  %s", k)
		fmt.Fprintf(p.out, ": %s\n", FormatValue(fields[k]))
	}

	return nil
}

// Verdict prints a card reader verdict character.
func (p *Printer) Verdict(verdict string) error {
	if p.json {
		s, err := structpb.NewStruct(map[string]any{"verdict": verdict})
		if err != nil {
			return fmt.Errorf("build verdict: %w", err)
		}

		return p.writeJSON(s)
	}

	if verdict == "Y" {
		green.Fprintf(p.out, "✓ access allowed (%s)\n", verdict)
	} else {
		red.Fprintf(p.out, "✗ access denied (%s)\n", verdict)
	}

	return nil
}

// Error prints title and explanation to the error stream and returns an
// error carrying only the title.
func (p *Printer) Error(title, explanation string) error {
	red.Fprintf(p.errOut, "%s\n", title)

	if explanation != "" {
		fmt.Fprintf(p.errOut, "%s\n", explanation)
	}

	return fmt.Errorf("%s", title)
}

func (p *Printer) writeJSON(s *structpb.Struct) error {
	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = fmt.Fprintf(p.out, "%s\n", data)

	return err
}

// FormatValue renders a snapshot value on one line.
func FormatValue(v *structpb.Value) string {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		if k.StringValue == "" {
			return `""`
		}

		return k.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(k.NumberValue, 'g', -1, 64)
	case *structpb.Value_BoolValue:
		return strconv.FormatBool(k.BoolValue)
	case *structpb.Value_ListValue:
		items := make([]string, 0, len(k.ListValue.GetValues()))
		for _, item := range k.ListValue.GetValues() {
			items = append(items, FormatValue(item))
		}

		return "[" + strings.Join(items, ", ") + "]"
	case *structpb.Value_StructValue:
		data, err := protojson.Marshal(k.StructValue)
		if err != nil {
			return "{?}"
		}

		return string(data)
	default:
		return "-"
	}
}
