package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/voocel/unillm/transport"
)

// ---------------------------------------------------------------------------
// ChatStream: pull-based normalizer over a transport event source
// ---------------------------------------------------------------------------

type streamState int

const (
	stateIdle streamState = iota
	stateStarted
	stateStreaming
	stateDone
)

// ChatStream turns provider SSE frames into one ordered StreamEvent
// sequence: exactly one StreamStart first, exactly one StreamEnd last.
// It does no work until Next is called and is not safe for concurrent use.
type ChatStream struct {
	kind   AdapterKind
	model  ModelIden
	compat *Compat
	opts   ChatOptions
	source transport.EventSource

	state   streamState
	pending []StreamEvent

	content       strings.Builder
	reasoning     strings.Builder
	usage         *Usage
	calls         *toolCallAccumulator
	finishReason  string
	finishPending bool
}

// NewChatStream wraps an already open event source. Adapters use it from
// OpenStream; it is exported so tests and custom transports can drive the
// normalizer directly.
func NewChatStream(kind AdapterKind, model ModelIden, source transport.EventSource, opts ChatOptions) *ChatStream {
	c := compatTable[kind]
	if c == nil {
		c = &Compat{}
	}
	return &ChatStream{
		kind:   kind,
		model:  model,
		compat: c,
		opts:   opts,
		source: source,
		calls:  newToolCallAccumulator(),
	}
}

// Model returns the identity the stream was opened for.
func (s *ChatStream) Model() ModelIden { return s.model }

// Next returns the next event. After the StreamEnd event, or after an
// error, it returns io.EOF.
func (s *ChatStream) Next() (StreamEvent, error) {
	for {
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			return ev, nil
		}
		if s.state == stateDone {
			return StreamEvent{}, io.EOF
		}
		if err := s.poll(); err != nil {
			return StreamEvent{}, err
		}
	}
}

// Close abandons the stream. The connection and buffers are released and
// no StreamEnd is emitted. Closing a finished stream is a no-op.
func (s *ChatStream) Close() error {
	if s.state == stateDone && s.source == nil {
		return nil
	}
	s.state = stateDone
	s.pending = nil
	s.reset()
	return s.release()
}

// poll reads one transport event and queues whatever it produces.
func (s *ChatStream) poll() error {
	ev, err := s.source.Next()
	if err != nil {
		// The model already finished; a lost usage frame does not undo that.
		if s.finishPending {
			s.finish()
			return nil
		}
		s.terminate()
		if errors.Is(err, io.EOF) {
			return &Error{
				Type:     ErrorTypeTransport,
				Provider: s.kind.String(),
				Model:    s.model.Name,
				Message:  "stream closed before completion",
			}
		}
		return NewTransportError(s.kind, err)
	}

	switch ev.Kind {
	case transport.EventOpen:
		s.start()
		return nil
	case transport.EventMessage:
		s.start()
		data := strings.TrimSpace(ev.Data)
		switch data {
		case "":
			return nil
		case "[DONE]":
			s.finish()
			return nil
		}
		return s.handleFrame(data)
	default:
		return nil
	}
}

func (s *ChatStream) start() {
	if s.state != stateIdle {
		return
	}
	s.state = stateStarted
	s.pending = append(s.pending, StreamEvent{Kind: StreamStart})
}

// ---------------------------------------------------------------------------
// Frame handling
// ---------------------------------------------------------------------------

type compatStreamFrame struct {
	Model   string               `json:"model"`
	Choices []compatStreamChoice `json:"choices"`
	Usage   json.RawMessage      `json:"usage,omitempty"`
	XGroq   *struct {
		Usage json.RawMessage `json:"usage,omitempty"`
	} `json:"x_groq,omitempty"`
}

type compatStreamChoice struct {
	Delta struct {
		Content          *string               `json:"content"`
		ReasoningContent *string               `json:"reasoning_content"`
		Reasoning        *string               `json:"reasoning"`
		ToolCalls        []compatToolCallDelta `json:"tool_calls"`
	} `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

type compatToolCallDelta struct {
	Index    *int   `json:"index"`
	ID       string `json:"id"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

func (s *ChatStream) handleFrame(data string) error {
	var frame compatStreamFrame
	if err := json.Unmarshal([]byte(data), &frame); err != nil {
		if s.finishPending {
			s.finish()
			return nil
		}
		s.terminate()
		return NewStreamDecodeError(s.kind, s.model.Name, err)
	}
	s.state = stateStreaming

	s.applyUsage(frame.Usage)
	if frame.XGroq != nil {
		s.applyUsage(frame.XGroq.Usage)
	}

	// Past the finish frame only usage is accepted.
	if len(frame.Choices) > 0 && !s.finishPending {
		choice := frame.Choices[0]
		delta := choice.Delta

		if delta.Content != nil && *delta.Content != "" {
			if s.opts.captureContent() {
				s.content.WriteString(*delta.Content)
			}
			s.pending = append(s.pending, StreamEvent{Kind: StreamChunk, Content: *delta.Content})
		}

		if r := firstNonEmpty(delta.ReasoningContent, delta.Reasoning); r != "" {
			if s.opts.captureReasoning() {
				s.reasoning.WriteString(r)
			}
			s.pending = append(s.pending, StreamEvent{Kind: StreamReasoningChunk, Content: r})
		}

		for _, frag := range delta.ToolCalls {
			if call, ok := s.calls.apply(frag); ok {
				s.pending = append(s.pending, StreamEvent{Kind: StreamToolCallChunk, ToolCall: &call})
			}
		}

		if choice.FinishReason != nil && *choice.FinishReason != "" {
			s.finishReason = NormalizeFinishReason(*choice.FinishReason)
			s.finishPending = true
		}
	}

	// With usage capture on, providers send usage in a frame of its own
	// after the finish frame; End waits for it.
	if s.finishPending && (s.usage != nil || !s.opts.captureUsage()) {
		s.finish()
	}
	return nil
}

func (s *ChatStream) applyUsage(raw json.RawMessage) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return
	}
	u := parseUsage(raw, s.compat)
	s.usage = &u
}

func firstNonEmpty(vals ...*string) string {
	for _, v := range vals {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}

// ---------------------------------------------------------------------------
// Termination
// ---------------------------------------------------------------------------

// finish emits StreamEnd and closes the source; frames after it are never read.
func (s *ChatStream) finish() {
	end := &StreamEndData{FinishReason: s.finishReason}
	if s.opts.captureUsage() && s.usage != nil {
		u := *s.usage
		end.CapturedUsage = &u
	}
	if s.opts.captureContent() {
		text := s.content.String()
		end.CapturedTextContent = &text
	}
	if s.opts.captureReasoning() {
		text := s.reasoning.String()
		end.CapturedReasoningContent = &text
	}
	if s.opts.captureToolCalls() {
		end.CapturedToolCalls = s.calls.build()
	}

	s.pending = append(s.pending, StreamEvent{Kind: StreamEnd, End: end})
	s.state = stateDone
	s.finishPending = false
	s.reset()
	_ = s.release()
}

// terminate ends the stream after an error without emitting StreamEnd.
func (s *ChatStream) terminate() {
	s.state = stateDone
	s.pending = nil
	s.reset()
	_ = s.release()
}

func (s *ChatStream) reset() {
	s.content.Reset()
	s.reasoning.Reset()
	s.calls = newToolCallAccumulator()
	s.usage = nil
}

func (s *ChatStream) release() error {
	if s.source == nil {
		return nil
	}
	src := s.source
	s.source = nil
	return src.Close()
}

// ---------------------------------------------------------------------------
// toolCallAccumulator: tool call fragment reconstruction
// ---------------------------------------------------------------------------

type toolCallEntry struct {
	id   string
	name string
	args strings.Builder
}

// toolCallAccumulator merges streamed tool-call fragments. Fragments are
// keyed by index when the provider sends one, otherwise by call id, and a
// fragment carrying neither continues the most recent call.
type toolCallAccumulator struct {
	order   []*toolCallEntry
	byIndex map[int]*toolCallEntry
	byID    map[string]*toolCallEntry
	last    *toolCallEntry
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{
		byIndex: make(map[int]*toolCallEntry),
		byID:    make(map[string]*toolCallEntry),
	}
}

// apply merges one fragment and returns a snapshot of its call once both an
// id and a function name are known.
func (a *toolCallAccumulator) apply(frag compatToolCallDelta) (ToolCall, bool) {
	e := a.lookup(frag)
	if frag.ID != "" {
		e.id = frag.ID
		a.byID[frag.ID] = e
	}
	if frag.Function.Name != "" {
		e.name = frag.Function.Name
	}
	e.args.WriteString(argumentsFragment(frag.Function.Arguments))
	a.last = e

	if e.id == "" || e.name == "" {
		return ToolCall{}, false
	}
	return e.snapshot(), true
}

func (a *toolCallAccumulator) lookup(frag compatToolCallDelta) *toolCallEntry {
	if frag.Index != nil {
		if e, ok := a.byIndex[*frag.Index]; ok {
			return e
		}
		e := a.add()
		a.byIndex[*frag.Index] = e
		return e
	}
	if frag.ID != "" {
		if e, ok := a.byID[frag.ID]; ok {
			return e
		}
		// A name can arrive before the id that identifies it.
		if a.last != nil && a.last.id == "" {
			return a.last
		}
		return a.add()
	}
	if a.last != nil {
		return a.last
	}
	return a.add()
}

func (a *toolCallAccumulator) add() *toolCallEntry {
	e := &toolCallEntry{}
	a.order = append(a.order, e)
	return e
}

// build returns the completed calls in first-seen order. It is never nil.
func (a *toolCallAccumulator) build() []ToolCall {
	out := make([]ToolCall, 0, len(a.order))
	for _, e := range a.order {
		if e.id != "" && e.name != "" {
			out = append(out, e.snapshot())
		}
	}
	return out
}

func (e *toolCallEntry) snapshot() ToolCall {
	args := json.RawMessage("{}")
	if raw := strings.TrimSpace(e.args.String()); raw != "" && json.Valid([]byte(raw)) {
		args = json.RawMessage(raw)
	}
	return ToolCall{CallID: e.id, FnName: e.name, FnArguments: args}
}

// argumentsFragment returns the raw text of an arguments fragment. Most
// providers stream a string; some send the whole object at once.
func argumentsFragment(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// ---------------------------------------------------------------------------
// OpenStream
// ---------------------------------------------------------------------------

func (a *compatAdapter) OpenStream(ctx context.Context, model ModelIden, data *WebRequestData, opts ChatOptions) (*ChatStream, error) {
	if data == nil {
		return nil, NewValidationError(a.kind, "stream request data is required")
	}
	headers := make(map[string]string, len(data.Headers)+1)
	for k, v := range data.Headers {
		headers[k] = v
	}
	headers["Accept"] = "text/event-stream"

	src, err := a.deps.Transport.OpenEventSource(ctx, &transport.Request{
		Method:  http.MethodPost,
		URL:     data.URL,
		Headers: headers,
		Payload: data.Payload,
	})
	if err != nil {
		return nil, NewTransportError(a.kind, err)
	}
	return NewChatStream(a.kind, model, src, opts), nil
}

