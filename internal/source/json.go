package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// jsonReader reads either a top-level array of objects or newline-delimited
// objects. The header is the key order of the first object; later objects
// are projected onto it.
type jsonReader struct {
	file    *os.File
	counter *countingReader
	dec     *json.Decoder
	array   bool
	header  []string
	raw     []string // un-normalized keys, for lookup
	known   map[string]bool
	first   map[string]string
	extra   map[string]bool
	objects int
}

func openJSON(path string) (*jsonReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	r, counter := newStreamingReader(f, size)
	j, err := newJSONReader(r)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	j.file = f
	j.counter = counter
	return j, nil
}

func newJSONReader(r io.Reader) (*jsonReader, error) {
	br := bufio.NewReader(r)

	lead, err := firstNonSpace(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFile
		}
		return nil, err
	}

	j := &jsonReader{
		dec:   json.NewDecoder(br),
		array: lead == '[',
		extra: make(map[string]bool),
	}

	if j.array {
		if _, err := j.dec.Token(); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
	}

	keys, values, err := j.readObject()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFile
		}
		return nil, err
	}

	j.raw = keys
	j.known = make(map[string]bool, len(keys))
	for _, k := range keys {
		j.known[k] = true
	}
	j.header = NormalizeHeader(keys)
	j.first = values
	return j, nil
}

// firstNonSpace peeks past leading whitespace without consuming the first
// significant byte.
func firstNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if !bytes.ContainsRune([]byte(" \t\r\n"), rune(b)) {
			return b, br.UnreadByte()
		}
	}
}

// readObject decodes the next object, keeping key order.
func (j *jsonReader) readObject() ([]string, map[string]string, error) {
	if !j.dec.More() {
		if j.array {
			// Consume the closing bracket so trailing garbage is reported.
			if _, err := j.dec.Token(); err != nil {
				return nil, nil, fmt.Errorf("invalid json: %w", err)
			}
		}
		return nil, nil, io.EOF
	}

	tok, err := j.dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, io.EOF
		}
		return nil, nil, fmt.Errorf("invalid json: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("invalid json: expected object, got %v", tok)
	}

	var keys []string
	values := make(map[string]string)
	for j.dec.More() {
		keyTok, err := j.dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("invalid json: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("invalid json: object key %v", keyTok)
		}

		var raw json.RawMessage
		if err := j.dec.Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("invalid json value for %q: %w", key, err)
		}

		if _, dup := values[key]; !dup {
			keys = append(keys, key)
		}
		values[key] = cellText(raw)
	}

	if _, err := j.dec.Token(); err != nil {
		return nil, nil, fmt.Errorf("invalid json: %w", err)
	}
	return keys, values, nil
}

// cellText renders a JSON value as a cell: strings unquoted, null empty,
// numbers and booleans verbatim, nested values as compact JSON.
func cellText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		return ""
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	case trimmed[0] == '{' || trimmed[0] == '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err == nil {
			return buf.String()
		}
	}
	return string(trimmed)
}

func (j *jsonReader) Header() []string { return j.header }

func (j *jsonReader) Next() ([]string, error) {
	var values map[string]string
	if j.first != nil {
		values, j.first = j.first, nil
	} else {
		keys, v, err := j.readObject()
		if err != nil {
			return nil, err
		}
		j.noteExtraKeys(keys)
		values = v
	}

	j.objects++
	row := make([]string, len(j.raw))
	for i, key := range j.raw {
		row[i] = values[key]
	}
	return row, nil
}

// Line returns the number of the last object read.
func (j *jsonReader) Line() int { return j.objects }

// noteExtraKeys warns once per key that is absent from the header.
func (j *jsonReader) noteExtraKeys(keys []string) {
	for _, k := range keys {
		if j.known[k] || j.extra[k] {
			continue
		}
		j.extra[k] = true
		slog.Warn("json key not in header, ignoring", "key", k, "header", strings.Join(j.raw, ","))
	}
}

func (j *jsonReader) Progress() (int64, int64) {
	if j.counter == nil {
		return 0, 0
	}
	return j.counter.read, j.counter.total
}

func (j *jsonReader) Close() error {
	if j.file == nil {
		return nil
	}
	return j.file.Close()
}
