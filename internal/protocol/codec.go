package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// MaxLineSize bounds a single protocol line. Bundles carry whole file
// contents, so this is generous.
const MaxLineSize = 64 << 20

// ErrEmptyLine is returned by the parse helpers for blank input.
var ErrEmptyLine = errors.New("empty protocol line")

// Encoder writes newline-delimited JSON values. Each value goes out in a
// single Write, and concurrent callers are serialized in call order.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode marshals v and writes it followed by a newline.
func (e *Encoder) Encode(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode line: %w", err)
	}
	data = append(data, '\n')

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("failed to write line: %w", err)
	}
	return nil
}

// ErrLineTooLong is returned by LineReader.Next for a line over the size
// limit. The line is discarded and the reader stays usable.
var ErrLineTooLong = errors.New("protocol line too long")

// LineReader splits a stream into protocol lines.
type LineReader struct {
	r   *bufio.Reader
	max int
	buf []byte
}

// NewLineReader returns a LineReader over r that accepts lines up to
// MaxLineSize.
func NewLineReader(r io.Reader) *LineReader {
	return NewLineReaderSize(r, MaxLineSize)
}

// NewLineReaderSize returns a LineReader over r that accepts lines up to max
// bytes, newline included. A max of zero or less means MaxLineSize.
func NewLineReaderSize(r io.Reader, max int) *LineReader {
	if max <= 0 {
		max = MaxLineSize
	}
	return &LineReader{r: bufio.NewReaderSize(r, 64*1024), max: max}
}

// Next returns the next non-blank line without its line ending. It returns
// io.EOF at end of stream and ErrLineTooLong, after skipping it, for an
// oversize line. The returned slice is only valid until the next call.
func (l *LineReader) Next() ([]byte, error) {
	for {
		line, err := l.readLine()
		if err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		return line, nil
	}
}

func (l *LineReader) readLine() ([]byte, error) {
	l.buf = l.buf[:0]
	tooLong := false
	for {
		chunk, err := l.r.ReadSlice('\n')
		if !tooLong {
			if len(l.buf)+len(chunk) > l.max {
				tooLong = true
				l.buf = l.buf[:0]
			} else {
				l.buf = append(l.buf, chunk...)
			}
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == nil:
			if tooLong {
				return nil, ErrLineTooLong
			}
			return bytes.TrimRight(l.buf, "\r\n"), nil
		case errors.Is(err, io.EOF):
			if tooLong {
				return nil, ErrLineTooLong
			}
			if len(l.buf) > 0 {
				return bytes.TrimRight(l.buf, "\r"), nil
			}
			return nil, io.EOF
		default:
			return nil, fmt.Errorf("failed to read line: %w", err)
		}
	}
}

// ParseResponse decodes one worker output line. It is lenient: unknown
// fields are ignored, since workers may attach extra diagnostics.
func ParseResponse(line []byte) (*Response, error) {
	if len(bytes.TrimSpace(line)) == 0 {
		return nil, ErrEmptyLine
	}
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("worker output is not valid JSON: %w", err)
	}
	return &resp, nil
}

// ParseBundle decodes one stdin line into a Bundle.
func ParseBundle(line []byte) (*Bundle, error) {
	if len(bytes.TrimSpace(line)) == 0 {
		return nil, ErrEmptyLine
	}
	var b Bundle
	if err := json.Unmarshal(line, &b); err != nil {
		return nil, fmt.Errorf("bundle is not valid JSON: %w", err)
	}
	return &b, nil
}
