// Package wire implements the viewer protocol: closing-tag-delimited XML
// message framing, the message vocabulary, and the fixed-layout binary bar
// records that follow a bar_array header.
package wire

import (
	"bytes"
	"io"
)

// ClosingTag delimits messages on the stream. There is no length prefix:
// the receiver accumulates bytes and scans for this literal.
const ClosingTag = "</message>"

const readChunk = 256

// Framer extracts complete messages from a byte stream. Bytes read past a
// closing tag are kept for the next call, so several messages arriving in
// one read are handed out one at a time, and a message split across reads
// is reassembled.
//
// The Framer does not own timeouts; callers bound reads by setting a
// deadline on the underlying connection before each ReadMessage.
type Framer struct {
	r   io.Reader
	buf []byte
}

func NewFramer(r io.Reader) *Framer {
	return &Framer{r: r}
}

// ReadMessage returns the next complete message including its closing tag.
func (f *Framer) ReadMessage() ([]byte, error) {
	for {
		if i := bytes.Index(f.buf, []byte(ClosingTag)); i >= 0 {
			end := i + len(ClosingTag)
			msg := make([]byte, end)
			copy(msg, f.buf[:end])
			f.buf = append(f.buf[:0], f.buf[end:]...)
			return msg, nil
		}

		chunk := make([]byte, readChunk)
		n, err := f.r.Read(chunk)
		if n > 0 {
			f.buf = append(f.buf, chunk[:n]...)
			continue
		}
		if err != nil {
			return nil, err
		}
	}
}

// ReadRaw returns the next n bytes verbatim, serving buffered bytes first.
// Binary bar records that follow a bar_array header are read this way.
func (f *Framer) ReadRaw(n int) ([]byte, error) {
	for len(f.buf) < n {
		chunk := make([]byte, readChunk)
		m, err := f.r.Read(chunk)
		if m > 0 {
			f.buf = append(f.buf, chunk[:m]...)
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	out := make([]byte, n)
	copy(out, f.buf[:n])
	f.buf = append(f.buf[:0], f.buf[n:]...)
	return out, nil
}

// Buffered reports how many undelivered bytes the framer is holding.
func (f *Framer) Buffered() int { return len(f.buf) }
