// Package sse incrementally parses server-sent event streams into their
// data payloads. Input arrives in arbitrary network-sized chunks; the framer
// buffers partial lines so that payloads are never split or duplicated
// regardless of where chunk boundaries fall.
package sse

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	"unicode/utf8"
)

// Done is the sentinel payload providers emit to terminate a stream. It is
// passed through verbatim, never parsed as JSON.
const Done = "[DONE]"

// Framer accumulates raw stream bytes and yields complete event payloads.
// The zero value is ready to use.
type Framer struct {
	pending []byte
}

// Feed appends a chunk of raw bytes and returns the payloads of all events
// completed by it. A trailing partial line is retained for the next call.
func (f *Framer) Feed(chunk []byte) []string {
	f.pending = append(f.pending, chunk...)

	var events []string
	for {
		i := bytes.IndexByte(f.pending, '\n')
		if i < 0 {
			break
		}
		line := f.pending[:i]
		f.pending = f.pending[i+1:]

		if payload, ok := parseLine(decode(line)); ok {
			events = append(events, payload)
		}
	}
	return events
}

// Flush drains any buffered partial line at end of stream and returns its
// payload, if the remainder forms one.
func (f *Framer) Flush() []string {
	if len(f.pending) == 0 {
		return nil
	}
	line := f.pending
	f.pending = nil

	if payload, ok := parseLine(decode(line)); ok {
		return []string{payload}
	}
	return nil
}

// parseLine extracts the payload from a single SSE line. A "data: " or
// "data:" prefix is stripped; a line without one is forwarded whole, so
// event framing fields collapse into bare payloads. Blank lines are
// discarded.
func parseLine(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}

	switch {
	case strings.HasPrefix(line, "data: "):
		line = line[len("data: "):]
	case strings.HasPrefix(line, "data:"):
		line = line[len("data:"):]
	}

	if line == "" {
		return "", false
	}
	return line, true
}

// decode converts raw bytes to a string, replacing invalid UTF-8 sequences
// rather than failing the stream.
func decode(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}

// Events reads an SSE stream and sends each payload on the returned
// channel. The channel is closed when the stream ends or ctx is cancelled;
// any read error other than EOF is delivered on the error channel.
func Events(ctx context.Context, r io.Reader) (<-chan string, <-chan error) {
	out := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		var f Framer
		br := bufio.NewReader(r)
		buf := make([]byte, 4096)

		emit := func(payloads []string) bool {
			for _, p := range payloads {
				select {
				case out <- p:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}

		for {
			n, err := br.Read(buf)
			if n > 0 {
				if !emit(f.Feed(buf[:n])) {
					return
				}
			}
			if err != nil {
				if err == io.EOF {
					emit(f.Flush())
				} else {
					errc <- err
				}
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}()

	return out, errc
}
