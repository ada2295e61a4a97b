package infer

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/siegeai/schemaparser/schema"
)

// MaxLineSize bounds a single NDJSON line, which is the largest document the
// stream readers accept.
const MaxLineSize = 16 << 20

// ParseNDJSON decodes one JSON object per line and hands each to fn. Blank
// lines are skipped. Decoding stops at the first error, from the input or
// from fn, and the error names the line.
func ParseNDJSON(r io.Reader, fn func(schema.Document) error) error {
	return defaultDecoder.ParseNDJSON(r, fn)
}

func (d *JSONDecoder) ParseNDJSON(r io.Reader, fn func(schema.Document) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), MaxLineSize)

	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		doc, err := d.Parse(b)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(doc); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("line %d: %w", line+1, err)
	}
	return nil
}
