package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	parley "github.com/parley-ai/parley"
)

// StreamSSE reads an SSE stream from body and sends delta chunks to ch,
// ending with a chunk where Done is true. The channel is closed when
// streaming completes. Callers should read from ch in a separate
// goroutine. The context cancels channel sends if the consumer is no
// longer interested.
//
// SSE format expected:
//
//	data: {"id":"...","choices":[...]}\n
//	data: [DONE]\n
func StreamSSE(ctx context.Context, body io.Reader, ch chan<- parley.StreamChunk) error {
	defer close(ch)

	scanner := bufio.NewScanner(body)
	// Increase buffer for large SSE payloads.
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		// SSE lines that carry data start with "data: ".
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")

		// End-of-stream sentinel.
		if data == "[DONE]" {
			break
		}

		var chunk ChatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Skip malformed chunks.
			continue
		}

		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if delta == nil || delta.Content == "" {
			continue
		}

		select {
		case ch <- parley.StreamChunk{Delta: delta.Content}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	select {
	case ch <- parley.StreamChunk{Done: true}:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
