package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// delimitedReader reads CSV and TSV files.
type delimitedReader struct {
	file    *os.File
	counter *countingReader
	csv     *csv.Reader
	header  []string
	line    int
}

func openDelimited(path string, comma rune) (*delimitedReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	r, counter := newStreamingReader(f, size)
	d, err := newDelimitedReader(r, comma)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	d.file = f
	d.counter = counter
	return d, nil
}

// newDelimitedReader parses the header from r. Quotes are parsed lazily and
// rows may have any number of fields.
func newDelimitedReader(r io.Reader, comma rune) (*delimitedReader, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("invalid csv header: %w", err)
	}

	return &delimitedReader{
		csv:    cr,
		header: NormalizeHeader(header),
	}, nil
}

func (d *delimitedReader) Header() []string { return d.header }

func (d *delimitedReader) Next() ([]string, error) {
	for {
		row, err := d.csv.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		if isBlankRow(row) {
			continue
		}
		d.line, _ = d.csv.FieldPos(0)
		return fitRow(row, len(d.header), d.line)
	}
}

// Line returns the line the last record started on. Quoted fields may
// carry it over several lines.
func (d *delimitedReader) Line() int { return d.line }

func (d *delimitedReader) Progress() (int64, int64) {
	if d.counter == nil {
		return 0, 0
	}
	return d.counter.read, d.counter.total
}

func (d *delimitedReader) Close() error {
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}

// isBlankRow reports whether a record is a single empty field, such as a
// line holding only "". Fully empty lines never reach here.
func isBlankRow(row []string) bool {
	return len(row) == 1 && row[0] == ""
}
