package unillm

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ---------------------------------------------------------------------------
// StreamCallbacks & CollectStream
// ---------------------------------------------------------------------------

// StreamCallbacks provides optional per-event handlers during stream collection.
type StreamCallbacks struct {
	OnStart     func()
	OnContent   func(string)
	OnReasoning func(string)

	// OnToolCall receives every snapshot of a call; arguments grow as
	// fragments arrive.
	OnToolCall func(ToolCall)
	OnEnd      func(StreamEndData)
}

// CollectStream drains a ChatStream into a ChatResponse. Content, reasoning
// and tool calls are gathered from the events themselves, so the result is
// complete even when the capture flags were off; usage is only known when
// CaptureUsage was set. The stream is closed on return.
func CollectStream(stream *ChatStream) (*ChatResponse, error) {
	return CollectStreamWithCallbacks(stream, StreamCallbacks{})
}

// CollectStreamWithCallbacks is CollectStream with per-event handlers.
func CollectStreamWithCallbacks(stream *ChatStream, callbacks StreamCallbacks) (*ChatResponse, error) {
	if stream == nil {
		return nil, fmt.Errorf("stream cannot be nil")
	}
	defer stream.Close()

	var (
		content   strings.Builder
		reasoning strings.Builder
		calls     = newToolCallCollector()
		resp      = ChatResponse{Model: stream.Model(), ProviderModel: stream.Model()}
	)

	for {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch ev.Kind {
		case StreamStart:
			if callbacks.OnStart != nil {
				callbacks.OnStart()
			}
		case StreamChunk:
			content.WriteString(ev.Content)
			if callbacks.OnContent != nil {
				callbacks.OnContent(ev.Content)
			}
		case StreamReasoningChunk:
			reasoning.WriteString(ev.Content)
			if callbacks.OnReasoning != nil {
				callbacks.OnReasoning(ev.Content)
			}
		case StreamToolCallChunk:
			if ev.ToolCall == nil {
				continue
			}
			calls.apply(*ev.ToolCall)
			if callbacks.OnToolCall != nil {
				callbacks.OnToolCall(*ev.ToolCall)
			}
		case StreamEnd:
			if ev.End != nil {
				resp.FinishReason = ev.End.FinishReason
				if ev.End.CapturedUsage != nil {
					resp.Usage = *ev.End.CapturedUsage
				}
				if callbacks.OnEnd != nil {
					callbacks.OnEnd(*ev.End)
				}
			}
		}
	}

	resp.Content = content.String()
	resp.ReasoningContent = reasoning.String()
	resp.ToolCalls = calls.build()
	return &resp, nil
}

// toolCallCollector keeps the latest snapshot of each call in first-seen order.
type toolCallCollector struct {
	order []string
	byID  map[string]ToolCall
}

func newToolCallCollector() *toolCallCollector {
	return &toolCallCollector{byID: make(map[string]ToolCall)}
}

func (c *toolCallCollector) apply(call ToolCall) {
	if _, seen := c.byID[call.CallID]; !seen {
		c.order = append(c.order, call.CallID)
	}
	c.byID[call.CallID] = call
}

func (c *toolCallCollector) build() []ToolCall {
	if len(c.order) == 0 {
		return nil
	}
	out := make([]ToolCall, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}
