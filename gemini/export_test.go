package gemini

import (
	"context"
	"io"
	"iter"

	"google.golang.org/genai"
)

// NewBodyFromIter exposes newBody for testing.
func NewBodyFromIter(ctx context.Context, seq iter.Seq2[*genai.GenerateContentResponse, error], onDone func(string)) io.ReadCloser {
	return newBody(ctx, seq, onDone)
}
