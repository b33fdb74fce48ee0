package ai

import (
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
)

func TestSingleReplyCollect(t *testing.T) {
	reply := SingleReply("hello there")
	if reply.Kind() != ReplySingle {
		t.Fatalf("expected single reply, got %d", reply.Kind())
	}

	got, err := reply.Collect()
	if err != nil {
		t.Fatalf("Collect err: %v", err)
	}
	if got != "hello there" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestStreamReplyConcatenatesInOrder(t *testing.T) {
	fragments := []string{"The ", "quick ", "", "brown ", "fox"}
	var done []string

	reply := StreamReply(schema.StreamReaderFromArray(fragments), func(full string) {
		done = append(done, full)
	})
	if reply.Kind() != ReplyStream {
		t.Fatalf("expected stream reply, got %d", reply.Kind())
	}

	got, err := reply.Collect()
	if err != nil {
		t.Fatalf("Collect err: %v", err)
	}
	if got != "The quick brown fox" {
		t.Fatalf("unexpected concatenation %q", got)
	}
	if len(done) != 1 || done[0] != got {
		t.Fatalf("completion hook calls = %v", done)
	}
}

func TestStreamReplyErrorSkipsCompletion(t *testing.T) {
	reader, writer := schema.Pipe[string](3)
	writer.Send("partial", nil)
	writer.Send("", errors.New("connection reset"))
	writer.Close()

	called := false
	reply := StreamReply(reader, func(string) { called = true })

	got, err := reply.Collect()
	if err == nil {
		t.Fatal("expected stream error")
	}
	if got != "" {
		t.Fatalf("partial answer leaked: %q", got)
	}
	if called {
		t.Fatal("completion hook must not run after a stream error")
	}
}

func TestStreamReplyWithoutReader(t *testing.T) {
	if _, err := StreamReply(nil, nil).Collect(); err == nil {
		t.Fatal("expected error for stream reply without reader")
	}
}
