package mock

import (
	"context"
	"io"
	"sync"
)

// Body is a response body that returns one chunk per Read, then Err (io.EOF
// when nil). A Read never merges chunks, which makes chunk boundaries
// deterministic in tests.
type Body struct {
	Chunks [][]byte
	Err    error

	// Gate, when set, is received from before each chunk is returned. Tests
	// use it to pace the stream.
	Gate <-chan struct{}
	// Ctx, when set, aborts a Read blocked on Gate.
	Ctx context.Context

	mu     sync.Mutex
	next   int
	closed bool
}

// NewBody returns a Body delivering the given string chunks.
func NewBody(chunks ...string) *Body {
	b := &Body{}
	for _, c := range chunks {
		b.Chunks = append(b.Chunks, []byte(c))
	}
	return b
}

// Read implements io.Reader.
func (b *Body) Read(p []byte) (int, error) {
	if b.Gate != nil {
		done := context.Background().Done()
		if b.Ctx != nil {
			done = b.Ctx.Done()
		}
		select {
		case <-b.Gate:
		case <-done:
			return 0, b.Ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, io.ErrClosedPipe
	}
	if b.next >= len(b.Chunks) {
		if b.Err != nil {
			return 0, b.Err
		}
		return 0, io.EOF
	}
	n := copy(p, b.Chunks[b.next])
	if n < len(b.Chunks[b.next]) {
		b.Chunks[b.next] = b.Chunks[b.next][n:]
	} else {
		b.next++
	}
	return n, nil
}

// Close implements io.Closer.
func (b *Body) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Closed reports whether Close was called.
func (b *Body) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
