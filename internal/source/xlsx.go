package source

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// xlsxReader streams the first worksheet of a workbook. The first row is
// the header.
type xlsxReader struct {
	file   *excelize.File
	rows   *excelize.Rows
	header []string
	sheet  string
	read   int64
}

func openXLSX(path string) (*xlsxReader, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, ErrEmptyFile
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	x := &xlsxReader{file: f, rows: rows, sheet: sheets[0]}

	header, err := x.nextRaw()
	if err != nil {
		x.Close()
		if err == io.EOF {
			return nil, ErrEmptyFile
		}
		return nil, err
	}
	x.header = NormalizeHeader(header)
	return x, nil
}

// nextRaw returns the next non-empty sheet row as displayed text.
func (x *xlsxReader) nextRaw() ([]string, error) {
	for x.rows.Next() {
		cols, err := x.rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", x.sheet, err)
		}
		x.read++
		if len(cols) == 0 {
			continue
		}
		return cols, nil
	}
	if err := x.rows.Error(); err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", x.sheet, err)
	}
	return nil, io.EOF
}

func (x *xlsxReader) Header() []string { return x.header }

func (x *xlsxReader) Next() ([]string, error) {
	row, err := x.nextRaw()
	if err != nil {
		return nil, err
	}
	return fitRow(row, len(x.header), int(x.read))
}

// Line returns the sheet row number of the last row.
func (x *xlsxReader) Line() int { return int(x.read) }

// Progress reports sheet rows read. The total is unknown.
func (x *xlsxReader) Progress() (int64, int64) {
	return x.read, 0
}

func (x *xlsxReader) Close() error {
	return closeAll(x.rows, x.file)
}
