package praxis

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

const (
	defaultReadSize = 4096

	// maxEmptyReads bounds consecutive (0, nil) reads before giving up,
	// mirroring bufio.
	maxEmptyReads = 100
)

// Decoder turns a byte stream into text deltas. It is pull-based: call Next
// until it returns io.EOF (normal end) or an error wrapping
// ErrStreamInterrupted. Concatenating every delta reproduces the full text no
// matter how the underlying reader chunks its bytes; a multi-byte character
// split across reads is held back until it is complete.
//
// A Decoder is not restartable. Once Next returns an error it keeps
// returning that error.
type Decoder struct {
	r     io.Reader
	buf   []byte
	carry []byte
	err   error
}

// DecoderOption configures a Decoder.
type DecoderOption func(*decoderConfig)

type decoderConfig struct {
	charset  string
	readSize int
}

// WithCharset decodes the stream from the named charset (a WHATWG label such
// as "iso-8859-1" or "windows-1252"). Empty or UTF-8 labels read the bytes
// as-is.
func WithCharset(name string) DecoderOption {
	return func(c *decoderConfig) { c.charset = name }
}

// WithReadSize sets the size of each read from the underlying stream.
func WithReadSize(n int) DecoderOption {
	return func(c *decoderConfig) { c.readSize = n }
}

// NewDecoder creates a Decoder reading from r. It fails with ErrValidation
// for an unknown charset.
func NewDecoder(r io.Reader, opts ...DecoderOption) (*Decoder, error) {
	cfg := decoderConfig{readSize: defaultReadSize}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.readSize <= 0 {
		cfg.readSize = defaultReadSize
	}

	if cs := strings.TrimSpace(cfg.charset); cs != "" {
		enc, err := htmlindex.Get(cs)
		if err != nil {
			return nil, fmt.Errorf("charset %q: %w", cs, ErrValidation)
		}
		if name, _ := htmlindex.Name(enc); name != "utf-8" {
			r = transform.NewReader(r, enc.NewDecoder())
		}
	}

	return &Decoder{r: r, buf: make([]byte, cfg.readSize)}, nil
}

// Next returns the next non-empty text delta.
func (d *Decoder) Next() (string, error) {
	for empty := 0; ; {
		if d.err != nil {
			return "", d.err
		}

		n, err := d.r.Read(d.buf)
		var text string
		if n > 0 {
			text = d.consume(d.buf[:n])
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			if len(d.carry) > 0 {
				// Dangling partial character at end of data.
				text += string(utf8.RuneError)
				d.carry = nil
			}
			d.err = io.EOF
		default:
			d.carry = nil
			d.err = fmt.Errorf("%w: %w", ErrStreamInterrupted, err)
		}

		if text != "" {
			return text, nil
		}
		if n == 0 && err == nil {
			if empty++; empty >= maxEmptyReads {
				d.err = fmt.Errorf("%w: %w", ErrStreamInterrupted, io.ErrNoProgress)
			}
		}
	}
}

// Deltas returns the remaining deltas as an iterator. Iteration stops at the
// end of the stream; a failure is yielded once as a non-nil error.
func (d *Decoder) Deltas() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			delta, err := d.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(delta, err) || err != nil {
				return
			}
		}
	}
}

// consume appends p to any carried bytes and returns the longest prefix that
// ends on a character boundary, keeping the incomplete remainder.
func (d *Decoder) consume(p []byte) string {
	data := p
	if len(d.carry) > 0 {
		data = append(d.carry, p...)
	}
	cut := len(data) - partialSuffix(data)
	text := validText(data[:cut])
	d.carry = append(d.carry[:0:0], data[cut:]...)
	return text
}

// partialSuffix returns the length of an incomplete UTF-8 sequence at the
// end of p, or 0 if p ends on a character boundary.
func partialSuffix(p []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(p); i++ {
		if utf8.RuneStart(p[len(p)-i]) {
			if utf8.FullRune(p[len(p)-i:]) {
				return 0
			}
			return i
		}
	}
	return 0
}

// validText converts p to a string, replacing each invalid byte with
// U+FFFD. Replacement is per byte so the result does not depend on where
// chunk boundaries fell.
func validText(p []byte) string {
	if utf8.Valid(p) {
		return string(p)
	}
	var b strings.Builder
	b.Grow(len(p))
	for len(p) > 0 {
		r, size := utf8.DecodeRune(p)
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(utf8.RuneError)
		} else {
			b.Write(p[:size])
		}
		p = p[size:]
	}
	return b.String()
}
