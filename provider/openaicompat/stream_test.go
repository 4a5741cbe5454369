package openaicompat

import (
	"context"
	"strings"
	"testing"

	parley "github.com/parley-ai/parley"
)

func collectChunks(t *testing.T, sse string) ([]parley.StreamChunk, error) {
	t.Helper()
	ch := make(chan parley.StreamChunk, 32)
	errCh := make(chan error, 1)
	go func() {
		errCh <- StreamSSE(context.Background(), strings.NewReader(sse), ch)
	}()
	var chunks []parley.StreamChunk
	for c := range ch {
		chunks = append(chunks, c)
	}
	return chunks, <-errCh
}

func TestStreamSSEDeltas(t *testing.T) {
	sse := `data: {"id":"1","choices":[{"delta":{"content":"Hel"}}]}

data: {"id":"1","choices":[{"delta":{"content":"lo"}}]}

data: [DONE]
`
	chunks, err := collectChunks(t, sse)
	if err != nil {
		t.Fatalf("StreamSSE: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if chunks[0].Delta != "Hel" || chunks[1].Delta != "lo" {
		t.Errorf("deltas = %q %q, want Hel lo", chunks[0].Delta, chunks[1].Delta)
	}
	if !chunks[2].Done {
		t.Error("last chunk should have Done set")
	}
}

func TestStreamSSESkipsMalformedAndEmpty(t *testing.T) {
	sse := `data: {malformed json

: comment line

data: {"id":"1","choices":[]}

data: {"id":"1","choices":[{"delta":{"content":"ok"}}]}

data: [DONE]
`
	chunks, err := collectChunks(t, sse)
	if err != nil {
		t.Fatalf("StreamSSE: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Delta != "ok" {
		t.Errorf("delta = %q, want ok", chunks[0].Delta)
	}
}

func TestStreamSSEEndsWithoutSentinel(t *testing.T) {
	// A stream that just ends still produces a Done chunk.
	sse := `data: {"id":"1","choices":[{"delta":{"content":"x"}}]}
`
	chunks, err := collectChunks(t, sse)
	if err != nil {
		t.Fatalf("StreamSSE: %v", err)
	}
	if len(chunks) != 2 || !chunks[1].Done {
		t.Errorf("chunks = %+v, want delta then Done", chunks)
	}
}

func TestStreamSSECancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := make(chan parley.StreamChunk) // unbuffered, nobody reads
	err := StreamSSE(ctx, strings.NewReader("data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n"), ch)
	if err == nil {
		t.Fatal("expected context error")
	}
	// Channel must still be closed.
	if _, open := <-ch; open {
		t.Error("channel left open after error")
	}
}
