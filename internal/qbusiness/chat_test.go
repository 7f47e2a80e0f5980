package qbusiness

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/qbusiness/types"
	"github.com/rs/zerolog"
)

// fakeStream is a scripted chat event stream.
type fakeStream struct {
	sent    []types.ChatInputStream
	events  chan types.ChatOutputStream
	sendErr error
	err     error
}

func newFakeStream(events ...types.ChatOutputStream) *fakeStream {
	ch := make(chan types.ChatOutputStream, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return &fakeStream{events: ch}
}

func (f *fakeStream) Send(_ context.Context, event types.ChatInputStream) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, event)
	return nil
}

func (f *fakeStream) Events() <-chan types.ChatOutputStream { return f.events }
func (f *fakeStream) Err() error                            { return f.err }

// recordingSink captures frames in order.
type recordingSink struct {
	frames []string
	texts  []TextFrame
	comp   *CompleteFrame
	errMsg string
}

func (r *recordingSink) Text(f TextFrame) error {
	r.frames = append(r.frames, "text")
	r.texts = append(r.texts, f)
	return nil
}

func (r *recordingSink) Metadata(f MetadataFrame) error {
	r.frames = append(r.frames, "metadata")
	return nil
}

func (r *recordingSink) Complete(f CompleteFrame) error {
	r.frames = append(r.frames, "complete")
	r.comp = &f
	return nil
}

func (r *recordingSink) Error(msg string) error {
	r.frames = append(r.frames, "error")
	r.errMsg = msg
	return nil
}

func textEvent(msg, convID, sysID string) types.ChatOutputStream {
	return &types.ChatOutputStreamMemberTextEvent{Value: types.TextOutputEvent{
		SystemMessage:   aws.String(msg),
		ConversationId:  aws.String(convID),
		SystemMessageId: aws.String(sysID),
	}}
}

func metadataEvent(titles ...string) types.ChatOutputStream {
	var attrs []*types.SourceAttribution
	for i, title := range titles {
		attrs = append(attrs, &types.SourceAttribution{
			Title:          aws.String(title),
			CitationNumber: aws.Int32(int32(i + 1)),
		})
	}
	return &types.ChatOutputStreamMemberMetadataEvent{Value: types.MetadataEvent{
		SourceAttributions: attrs,
	}}
}

func testService() *Service {
	return NewService(nil, zerolog.Nop())
}

func TestRelayEmitsCompleteLast(t *testing.T) {
	stream := newFakeStream(
		textEvent("a", "conv-1", "msg-1"),
		textEvent("b", "conv-1", "msg-1"),
		metadataEvent("Doc One", "Doc Two"),
	)
	sink := &recordingSink{}

	err := testService().relay(context.Background(), stream, ChatRequest{
		ApplicationID: "app-1",
		UserMessage:   "hello",
	}, sink)
	if err != nil {
		t.Fatalf("relay: %v", err)
	}

	if len(sink.frames) == 0 || sink.frames[len(sink.frames)-1] != "complete" {
		t.Fatalf("frames = %v, want complete last", sink.frames)
	}
	if n := countFrames(sink.frames, "complete"); n != 1 {
		t.Fatalf("complete frames = %d, want exactly 1", n)
	}

	var b strings.Builder
	for _, f := range sink.texts {
		b.WriteString(f.Message)
	}
	if b.String() != "ab" {
		t.Errorf("concatenated text = %q, want %q", b.String(), "ab")
	}

	if sink.comp.ConversationID != "conv-1" || sink.comp.SystemMessageID != "msg-1" {
		t.Errorf("complete frame ids = %s/%s", sink.comp.ConversationID, sink.comp.SystemMessageID)
	}
	if len(sink.comp.Citations) != 2 || sink.comp.Citations[0].Title != "Doc One" {
		t.Errorf("accumulated citations = %+v", sink.comp.Citations)
	}
}

func TestRelaySendsConfigurationThenTextThenEndOfInput(t *testing.T) {
	stream := newFakeStream()
	sink := &recordingSink{}

	err := testService().relay(context.Background(), stream, ChatRequest{
		ApplicationID:   "app-1",
		UserMessage:     "hello",
		AttributeFilter: &AttributeFilter{EqualsTo: &AttributeCondition{Name: "_data_source_id", StringValue: "ds-1"}},
	}, sink)
	if err != nil {
		t.Fatalf("relay: %v", err)
	}

	if len(stream.sent) != 3 {
		t.Fatalf("sent %d input events, want 3", len(stream.sent))
	}
	config, ok := stream.sent[0].(*types.ChatInputStreamMemberConfigurationEvent)
	if !ok {
		t.Fatalf("first event = %T, want configuration", stream.sent[0])
	}
	if config.Value.AttributeFilter == nil || config.Value.ChatModeConfiguration != nil {
		t.Error("retrieval-mode configuration should carry the filter and no plugin config")
	}
	if _, ok := stream.sent[1].(*types.ChatInputStreamMemberTextEvent); !ok {
		t.Errorf("second event = %T, want text", stream.sent[1])
	}
	if _, ok := stream.sent[2].(*types.ChatInputStreamMemberEndOfInputEvent); !ok {
		t.Errorf("third event = %T, want end-of-input", stream.sent[2])
	}
}

func TestRelayPluginModeConfiguration(t *testing.T) {
	stream := newFakeStream()
	err := testService().relay(context.Background(), stream, ChatRequest{
		ApplicationID: "app-1",
		UserMessage:   "hello",
		PluginID:      "plugin-1",
	}, &recordingSink{})
	if err != nil {
		t.Fatalf("relay: %v", err)
	}

	config := stream.sent[0].(*types.ChatInputStreamMemberConfigurationEvent)
	if config.Value.ChatMode != types.ChatModePluginMode {
		t.Errorf("chat mode = %s, want plugin mode", config.Value.ChatMode)
	}
	if config.Value.AttributeFilter != nil {
		t.Error("plugin-mode configuration must not carry an attribute filter")
	}
}

func TestRelayStreamErrorEmitsErrorFrame(t *testing.T) {
	stream := newFakeStream(textEvent("partial", "conv-1", "msg-1"))
	stream.err = errors.New("upstream failed")
	sink := &recordingSink{}

	err := testService().relay(context.Background(), stream, ChatRequest{ApplicationID: "app", UserMessage: "hi"}, sink)
	if err == nil {
		t.Fatal("expected relay error")
	}
	if sink.frames[len(sink.frames)-1] != "error" {
		t.Fatalf("frames = %v, want error last", sink.frames)
	}
	if sink.comp != nil {
		t.Error("no complete frame may follow a stream error")
	}
}

func TestRelaySendErrorTerminates(t *testing.T) {
	stream := newFakeStream()
	stream.sendErr = errors.New("write failed")
	sink := &recordingSink{}

	err := testService().relay(context.Background(), stream, ChatRequest{ApplicationID: "app", UserMessage: "hi"}, sink)
	if err == nil {
		t.Fatal("expected relay error")
	}
	if sink.errMsg == "" {
		t.Error("expected an error frame")
	}
}

func TestRelayContextCancellation(t *testing.T) {
	// An open, never-closing stream: cancellation must end the relay.
	stream := &fakeStream{events: make(chan types.ChatOutputStream)}
	sink := &recordingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := testService().relay(ctx, stream, ChatRequest{ApplicationID: "app", UserMessage: "hi"}, sink)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if sink.frames[len(sink.frames)-1] != "error" {
		t.Errorf("frames = %v, want error last", sink.frames)
	}
}

func countFrames(frames []string, kind string) int {
	n := 0
	for _, f := range frames {
		if f == kind {
			n++
		}
	}
	return n
}
