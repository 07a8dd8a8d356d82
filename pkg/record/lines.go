package record

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// DefaultMaxLineBytes bounds a single row. Longer rows are skipped as
// DefectOverlong.
const DefaultMaxLineBytes = 64 * 1024 * 1024

const readBufferBytes = 1024 * 1024

// lineReader yields lines without their terminator. Unlike bufio.Scanner it
// survives lines longer than its limit: the rest of such a line is drained
// and the line is reported as overlong instead of failing the read.
type lineReader struct {
	reader   *bufio.Reader
	maxBytes int
}

func newLineReader(reader io.Reader, maxBytes int) *lineReader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxLineBytes
	}
	return &lineReader{
		reader:   bufio.NewReaderSize(reader, min(maxBytes+2, readBufferBytes)),
		maxBytes: maxBytes,
	}
}

// next returns the next line. An overlong line comes back with empty text
// and overlong set. io.EOF is returned once the input is exhausted.
func (l *lineReader) next() (string, bool, error) {
	var buffer []byte
	overlong := false

	for {
		fragment, err := l.reader.ReadSlice('\n')
		if !overlong {
			buffer = append(buffer, fragment...)
			if len(trimTerminator(buffer)) > l.maxBytes {
				overlong = true
				buffer = nil
			}
		}

		switch {
		case err == nil:
			return string(trimTerminator(buffer)), overlong, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(buffer) == 0 && !overlong {
				return "", false, io.EOF
			}
			return string(trimTerminator(buffer)), overlong, nil
		default:
			return "", false, err
		}
	}
}

func trimTerminator(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r"))
}
