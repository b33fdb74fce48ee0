package ai

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// ReplyKind tags how a capability produced its answer.
type ReplyKind int

const (
	// ReplySingle is a complete answer delivered as one value.
	ReplySingle ReplyKind = iota
	// ReplyStream is an answer delivered as ordered text fragments.
	ReplyStream
)

// Reply is the result of an inference call: either a single text or a lazy
// fragment stream. Use Collect to normalise both to the final text.
type Reply struct {
	kind   ReplyKind
	text   string
	stream *schema.StreamReader[string]
	onDone func(full string)
}

// SingleReply wraps a complete answer.
func SingleReply(text string) Reply {
	return Reply{kind: ReplySingle, text: text}
}

// StreamReply wraps a fragment stream. onDone, when set, receives the full
// text after the stream has been drained successfully.
func StreamReply(stream *schema.StreamReader[string], onDone func(full string)) Reply {
	return Reply{kind: ReplyStream, stream: stream, onDone: onDone}
}

// Kind reports which variant the reply holds.
func (r Reply) Kind() ReplyKind {
	return r.kind
}

// Collect returns the final answer. Streams are read to EOF and their
// fragments concatenated in arrival order; a stream error aborts collection
// and is returned without a partial answer.
func (r Reply) Collect() (string, error) {
	switch r.kind {
	case ReplySingle:
		if r.onDone != nil {
			r.onDone(r.text)
		}
		return r.text, nil

	case ReplyStream:
		if r.stream == nil {
			return "", fmt.Errorf("stream reply without reader")
		}
		defer r.stream.Close()

		var builder strings.Builder
		for {
			fragment, err := r.stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return "", fmt.Errorf("stream interrupted: %w", err)
			}
			builder.WriteString(fragment)
		}

		full := builder.String()
		if r.onDone != nil {
			r.onDone(full)
		}
		return full, nil

	default:
		return "", fmt.Errorf("unknown reply kind %d", r.kind)
	}
}

// withDone attaches a completion hook to a single reply.
func (r Reply) withDone(fn func(full string)) Reply {
	r.onDone = fn
	return r
}
