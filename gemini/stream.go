package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"google.golang.org/genai"
)

// newBody starts streaming seq into a pipe. A goroutine drains the SDK
// iterator and writes each chunk's text as it arrives. onDone receives the
// full reply once the iterator is exhausted without error and the reader has
// consumed every byte; it is not called for failed or abandoned replies.
func newBody(ctx context.Context, seq iter.Seq2[*genai.GenerateContentResponse, error], onDone func(reply string)) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		var reply strings.Builder
		for resp, err := range seq {
			if err != nil {
				pw.CloseWithError(fmt.Errorf("gemini: %w", err))
				return
			}
			if err := ctx.Err(); err != nil {
				pw.CloseWithError(err)
				return
			}
			if err := blocked(resp); err != nil {
				pw.CloseWithError(err)
				return
			}
			text := chunkText(resp)
			if text == "" {
				continue
			}
			if _, err := io.WriteString(pw, text); err != nil {
				// Reader closed: the reply was abandoned.
				return
			}
			reply.WriteString(text)
		}
		if onDone != nil {
			onDone(reply.String())
		}
		pw.Close()
	}()
	return pr
}

// chunkText returns the visible text of a streamed chunk. Thought parts are
// skipped.
func chunkText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}

var errBlocked = errors.New("gemini: response blocked")

// blocked reports a prompt rejected by safety filters.
func blocked(resp *genai.GenerateContentResponse) error {
	if resp == nil || resp.PromptFeedback == nil || resp.PromptFeedback.BlockReason == "" {
		return nil
	}
	return fmt.Errorf("%w: %s", errBlocked, resp.PromptFeedback.BlockReason)
}
