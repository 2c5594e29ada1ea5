package output

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
)

// Field is one labelled value. Key is used as the JSON object key and
// Label as the text-mode heading.
type Field struct {
	Key   string
	Label string
	Value any
}

// Formatter writes command results as aligned text or JSON.
type Formatter struct {
	Writer   io.Writer
	JSONMode bool
}

// New creates a new Formatter with the specified writer and JSON mode.
func New(w io.Writer, jsonMode bool) *Formatter {
	return &Formatter{
		Writer:   w,
		JSONMode: jsonMode,
	}
}

// Fields outputs a record as "Label: value" lines, or as a single JSON
// object keyed by Field.Key.
func (f *Formatter) Fields(fields []Field) error {
	if f.JSONMode {
		return f.fieldsAsJSON(fields)
	}

	tw := tabwriter.NewWriter(f.Writer, 0, 0, 2, ' ', 0)
	for _, field := range fields {
		if _, err := fmt.Fprintf(tw, "%s:\t%v\n", field.Label, field.Value); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// fieldsAsJSON keeps field order, which a map would lose.
func (f *Formatter) fieldsAsJSON(fields []Field) error {
	var buf []byte
	buf = append(buf, '{')
	for i, field := range fields {
		if i > 0 {
			buf = append(buf, ',')
		}
		k, err := json.Marshal(field.Key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(field.Value)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", field.Key, err)
		}
		buf = append(buf, k...)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	buf = append(buf, '}')

	return f.Print(json.RawMessage(buf))
}

// Print outputs data as pretty-printed JSON or with its default format.
func (f *Formatter) Print(data any) error {
	if f.JSONMode {
		encoder := json.NewEncoder(f.Writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	}

	_, err := fmt.Fprintf(f.Writer, "%v\n", data)
	return err
}

// Message prints a human-readable status line. In JSON mode it is emitted
// as {"message": msg} so stdout stays machine-readable.
func (f *Formatter) Message(msg string) error {
	if f.JSONMode {
		return f.Print(map[string]string{"message": msg})
	}
	_, err := fmt.Fprintln(f.Writer, msg)
	return err
}
