package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/voocel/unillm"
)

// chunkWriter renders stream events as chat.completion.chunk frames.
type chunkWriter struct {
	w       io.Writer
	flusher http.Flusher
	id      string
	created int64
	model   string
}

func (cw *chunkWriter) write(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal SSE payload: %w", err)
	}
	if _, err := fmt.Fprintf(cw.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write SSE data: %w", err)
	}
	cw.flusher.Flush()
	return nil
}

func (cw *chunkWriter) delta(out wireOutput, finish *string) error {
	return cw.write(chatCompletionResponse{
		ID:      cw.id,
		Object:  "chat.completion.chunk",
		Created: cw.created,
		Model:   cw.model,
		Choices: []wireChoice{{Index: 0, Delta: &out, FinishReason: finish}},
	})
}

func (cw *chunkWriter) usage(u unillm.Usage) error {
	wu := wireUsageFrom(u)
	return cw.write(chatCompletionResponse{
		ID:      cw.id,
		Object:  "chat.completion.chunk",
		Created: cw.created,
		Model:   cw.model,
		Choices: []wireChoice{},
		Usage:   &wu,
	})
}

func (cw *chunkWriter) done() error {
	if _, err := io.WriteString(cw.w, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("write SSE terminator: %w", err)
	}
	cw.flusher.Flush()
	return nil
}

// writeChatStream forwards a stream as OpenAI chunks. Tool calls are sent
// once, complete, ahead of the finish chunk. A failure after the headers
// went out is reported as an error frame since the status is already 200.
func (s *Server) writeChatStream(c echo.Context, stream *unillm.ChatStream) error {
	defer stream.Close()

	writer := c.Response().Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		s.logger.Error("http writer does not support flushing")
		return requestError{
			Status:  http.StatusInternalServerError,
			Message: "server does not support streaming responses",
			Type:    "server_error",
		}
	}

	header := c.Response().Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	cw := &chunkWriter{
		w:       c.Response(),
		flusher: flusher,
		id:      newCompletionID(),
		created: time.Now().Unix(),
		model:   stream.Model().Name,
	}

	for {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return cw.done()
		}
		if err != nil {
			s.logger.Warn("stream failed", "model", cw.model, "error", err)
			reqErr, _ := toHTTPError(err).(requestError)
			return cw.write(newErrorBody(reqErr))
		}

		switch ev.Kind {
		case unillm.StreamStart:
			err = cw.delta(wireOutput{Role: "assistant"}, nil)
		case unillm.StreamChunk:
			content := ev.Content
			err = cw.delta(wireOutput{Content: &content}, nil)
		case unillm.StreamReasoningChunk:
			err = cw.delta(wireOutput{ReasoningContent: ev.Content}, nil)
		case unillm.StreamToolCallChunk:
			// Replayed whole from the end summary.
		case unillm.StreamEnd:
			err = s.writeStreamEnd(cw, ev.End)
		}
		if err != nil {
			s.logger.Debug("client went away during stream", "error", err)
			return nil
		}
	}
}

func (s *Server) writeStreamEnd(cw *chunkWriter, end *unillm.StreamEndData) error {
	if end == nil {
		end = &unillm.StreamEndData{}
	}
	if len(end.CapturedToolCalls) > 0 {
		if err := cw.delta(wireOutput{ToolCalls: wireToolCalls(end.CapturedToolCalls, true)}, nil); err != nil {
			return err
		}
	}
	finish := finishReason(end.FinishReason, len(end.CapturedToolCalls) > 0)
	if err := cw.delta(wireOutput{}, &finish); err != nil {
		return err
	}
	if end.CapturedUsage != nil {
		return cw.usage(*end.CapturedUsage)
	}
	return nil
}
