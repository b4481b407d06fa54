package transport

import (
	"bufio"
	"io"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// Decoder: line-oriented SSE frame decoder
// ---------------------------------------------------------------------------

// Decoder splits an SSE byte stream into dispatched events. Multi-line data
// fields are joined with "\n"; comment lines and the retry field are ignored.
type Decoder struct {
	scanner *bufio.Scanner
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	return &Decoder{scanner: scanner}
}

// Next returns the next message event, or io.EOF when the input is exhausted.
func (d *Decoder) Next() (Event, error) {
	var (
		data    []string
		name    string
		id      string
		hasData bool
	)

	for d.scanner.Scan() {
		line := d.scanner.Text()

		if line == "" {
			if hasData {
				return Event{Kind: EventMessage, Name: name, ID: id, Data: strings.Join(data, "\n")}, nil
			}
			name, id = "", ""
			continue
		}
		if line[0] == ':' {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			data = append(data, value)
			hasData = true
		case "event":
			name = value
		case "id":
			id = value
		}
	}

	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}

	// Some servers close the connection without a trailing blank line.
	if hasData {
		return Event{Kind: EventMessage, Name: name, ID: id, Data: strings.Join(data, "\n")}, nil
	}
	return Event{}, io.EOF
}

// ---------------------------------------------------------------------------
// readerEventSource: EventSource over any ReadCloser
// ---------------------------------------------------------------------------

type readerEventSource struct {
	body      io.ReadCloser
	dec       *Decoder
	opened    bool
	closeOnce sync.Once
	closeErr  error
}

// NewReaderEventSource wraps an already-established SSE body. The first call
// to Next yields EventOpen.
func NewReaderEventSource(body io.ReadCloser) EventSource {
	return &readerEventSource{body: body, dec: NewDecoder(body)}
}

func (s *readerEventSource) Next() (Event, error) {
	if !s.opened {
		s.opened = true
		return Event{Kind: EventOpen}, nil
	}
	return s.dec.Next()
}

func (s *readerEventSource) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
