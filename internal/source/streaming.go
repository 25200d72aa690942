package source

// streaming.go wraps raw file bytes before they reach a parser:
//
//   - countingReader tracks bytes consumed for progress logging
//   - textReader drops a leading UTF-8 BOM and replaces invalid UTF-8
//     with '?', keeping memory at one bufio buffer regardless of file size
//
// newStreamingReader applies both in the right order.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// countingReader counts bytes read from the underlying reader.
type countingReader struct {
	r     io.Reader
	read  int64
	total int64 // 0 when unknown
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += int64(n)
	return n, err
}

// textReader yields valid UTF-8 with any leading BOM removed.
type textReader struct {
	br         *bufio.Reader
	bomChecked bool
}

func newTextReader(r io.Reader) *textReader {
	return &textReader{br: bufio.NewReaderSize(r, 64*1024)}
}

// Read implements io.Reader.
//
// ASCII runs already in the buffer are copied in bulk. Everything else is
// decoded rune by rune; bufio.Reader.ReadRune waits for a complete rune,
// so sequences split across underlying reads are not mistaken for invalid
// bytes.
func (t *textReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if !t.bomChecked {
		t.bomChecked = true
		if head, _ := t.br.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
			_, _ = t.br.Discard(len(utf8BOM))
		}
	}

	n := 0
	for n < len(p) {
		if buffered := t.br.Buffered(); buffered > 0 {
			want := min(buffered, len(p)-n)
			peek, _ := t.br.Peek(want)
			ascii := asciiPrefix(peek)
			if ascii > 0 {
				copy(p[n:], peek[:ascii])
				_, _ = t.br.Discard(ascii)
				n += ascii
				continue
			}
		} else if n > 0 {
			// Hand back what we have rather than block on the next fill.
			break
		}

		r, size, err := t.br.ReadRune()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}

		if r == utf8.RuneError && size == 1 {
			p[n] = '?'
			n++
			continue
		}

		if size > len(p)-n {
			_ = t.br.UnreadRune()
			if n == 0 {
				return 0, io.ErrShortBuffer
			}
			break
		}
		n += utf8.EncodeRune(p[n:], r)
	}

	return n, nil
}

// asciiPrefix returns the length of the leading run of ASCII bytes.
func asciiPrefix(b []byte) int {
	for i, c := range b {
		if c >= utf8.RuneSelf {
			return i
		}
	}
	return len(b)
}

// newStreamingReader stacks counting under text cleanup. Counting sits on
// the raw bytes so progress compares against the file size on disk.
func newStreamingReader(r io.Reader, total int64) (io.Reader, *countingReader) {
	counter := &countingReader{r: r, total: total}
	return newTextReader(counter), counter
}
