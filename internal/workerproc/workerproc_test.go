package workerproc

import (
	"context"
	"errors"
	"testing"

	"coach-backend/internal/queue"
)

type recordingProcessor struct {
	got []queue.Message
	err error
}

func (p *recordingProcessor) Ingest(_ context.Context, msg queue.Message) error {
	p.got = append(p.got, msg)
	return p.err
}

func encode(t *testing.T, msg queue.Message) string {
	t.Helper()
	raw, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(raw)
}

func TestParseMessage(t *testing.T) {
	if _, _, err := ParseMessage("  "); !errors.As(err, &ErrEmptyBody{}) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}
	if _, meta, err := ParseMessage("{nope"); !errors.As(err, &ErrDecode{}) || meta.BodySHA == "" {
		t.Fatalf("expected ErrDecode with meta, got %v %+v", err, meta)
	}
	body := encode(t, queue.Message{UserID: "user-1", RequestID: "req-1"})
	var missing ErrMissingEventID
	if _, _, err := ParseMessage(body); !errors.As(err, &missing) || missing.RequestID != "req-1" {
		t.Fatalf("expected ErrMissingEventID, got %v", err)
	}
	msg, _, err := ParseMessage(encode(t, queue.Message{EventID: "01HX", UserID: "user-1", AnalysisID: "a-1"}))
	if err != nil || msg.Version != queue.MessageVersion {
		t.Fatalf("unexpected parse result %+v %v", msg, err)
	}
}

func TestHandleMessage(t *testing.T) {
	proc := &recordingProcessor{}
	body := encode(t, queue.Message{EventID: "01HX", UserID: "user-1", AnalysisID: "a-1"})
	if err := HandleMessage(context.Background(), proc, body); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(proc.got) != 1 || proc.got[0].AnalysisID != "a-1" {
		t.Fatalf("unexpected ingest calls: %+v", proc.got)
	}
}

func TestHandleMessageUsesParsedMessage(t *testing.T) {
	proc := &recordingProcessor{}
	ctx := WithParsedMessage(context.Background(), queue.Message{EventID: "01HY", UserID: "user-2"})
	if err := HandleMessage(ctx, proc, "ignored"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(proc.got) != 1 || proc.got[0].EventID != "01HY" {
		t.Fatalf("expected parsed message to be reused, got %+v", proc.got)
	}
}

func TestHandleMessageWrapsProcessError(t *testing.T) {
	boom := errors.New("db down")
	proc := &recordingProcessor{err: boom}
	err := HandleMessage(context.Background(), proc, encode(t, queue.Message{EventID: "01HX", UserID: "user-1", AnalysisID: "a-1"}))
	var procErr ErrProcess
	if !errors.As(err, &procErr) || procErr.EventID != "01HX" || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped ErrProcess, got %v", err)
	}
	if Unrecoverable(err) {
		t.Fatalf("process errors should be retried")
	}
	if !Unrecoverable(ErrDecode{}) {
		t.Fatalf("decode errors are unrecoverable")
	}
}
