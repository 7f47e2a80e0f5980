package qbusiness

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/qbusiness"
	"github.com/aws/aws-sdk-go-v2/service/qbusiness/types"
	"github.com/google/uuid"
)

// ChatRequest carries one user turn of a conversation.
type ChatRequest struct {
	ApplicationID   string
	UserMessage     string
	ConversationID  string
	ParentMessageID string

	// AttributeFilter and PluginID are mutually exclusive chat modes;
	// callers validate before reaching this package. When a filter is
	// present it wins.
	AttributeFilter *AttributeFilter
	PluginID        string
}

// AttributeFilter is the console's document attribute filter shape,
// convertible to the SDK filter.
type AttributeFilter struct {
	AndAllFilters []AttributeFilter   `json:"andAllFilters,omitempty"`
	EqualsTo      *AttributeCondition `json:"equalsTo,omitempty"`
}

// AttributeCondition names one document attribute and its expected value.
type AttributeCondition struct {
	Name            string   `json:"name"`
	StringValue     string   `json:"stringValue,omitempty"`
	StringListValue []string `json:"stringListValue,omitempty"`
}

// Citation is a reshaped source attribution.
type Citation struct {
	Title          string `json:"title,omitempty"`
	Snippet        string `json:"snippet,omitempty"`
	URL            string `json:"url,omitempty"`
	CitationNumber int32  `json:"citationNumber,omitempty"`
}

// ChatReply is the reshaped synchronous chat result.
type ChatReply struct {
	ChatID          string     `json:"chatId"`
	Message         string     `json:"message"`
	SystemMessageID string     `json:"systemMessageId,omitempty"`
	UserMessageID   string     `json:"userMessageId,omitempty"`
	Citations       []Citation `json:"citations"`
}

// TextFrame is one incremental chat chunk.
type TextFrame struct {
	Message         string `json:"message"`
	ConversationID  string `json:"conversationId,omitempty"`
	SystemMessageID string `json:"systemMessageId,omitempty"`
}

// MetadataFrame carries source attributions observed mid-stream.
type MetadataFrame struct {
	Citations       []Citation `json:"citations"`
	ConversationID  string     `json:"conversationId,omitempty"`
	SystemMessageID string     `json:"systemMessageId,omitempty"`
}

// CompleteFrame terminates a successful stream with the accumulated
// attributions.
type CompleteFrame struct {
	ConversationID  string     `json:"conversationId,omitempty"`
	SystemMessageID string     `json:"systemMessageId,omitempty"`
	Citations       []Citation `json:"citations"`
}

// Sink receives relay frames. The HTTP boundary implements it over SSE;
// tests implement it over a slice.
type Sink interface {
	Text(TextFrame) error
	Metadata(MetadataFrame) error
	Complete(CompleteFrame) error
	Error(message string) error
}

// ChatSync performs one synchronous conversation turn.
func (s *Service) ChatSync(ctx context.Context, req ChatRequest) (*ChatReply, error) {
	input := &qbusiness.ChatSyncInput{
		ApplicationId: aws.String(req.ApplicationID),
		UserMessage:   aws.String(req.UserMessage),
		ClientToken:   aws.String(uuid.New().String()),
	}
	if req.ConversationID != "" {
		input.ConversationId = aws.String(req.ConversationID)
	}
	if req.ParentMessageID != "" {
		input.ParentMessageId = aws.String(req.ParentMessageID)
	}
	if req.AttributeFilter != nil {
		input.AttributeFilter = req.AttributeFilter.toSDK()
		input.ChatMode = types.ChatModeRetrievalMode
	} else if req.PluginID != "" {
		input.ChatMode = types.ChatModePluginMode
		input.ChatModeConfiguration = &types.ChatModeConfigurationMemberPluginConfiguration{
			Value: types.PluginConfiguration{PluginId: aws.String(req.PluginID)},
		}
	}

	out, err := s.client.ChatSync(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("ChatSync: %w", err)
	}

	return &ChatReply{
		ChatID:          aws.ToString(out.ConversationId),
		Message:         aws.ToString(out.SystemMessage),
		SystemMessageID: aws.ToString(out.SystemMessageId),
		UserMessageID:   aws.ToString(out.UserMessageId),
		Citations:       reshapeCitations(out.SourceAttributions),
	}, nil
}

// chatStream is the duplex event stream surface the relay drives. The SDK's
// generated chat event stream satisfies it.
type chatStream interface {
	Send(ctx context.Context, event types.ChatInputStream) error
	Events() <-chan types.ChatOutputStream
	Err() error
}

// StreamChat opens the chat event stream and relays it into the sink. The
// response stream is always terminated with either a complete or an error
// frame. Caller-side cancellation (ctx) stops the relay.
func (s *Service) StreamChat(ctx context.Context, req ChatRequest, sink Sink) error {
	input := &qbusiness.ChatInput{
		ApplicationId: aws.String(req.ApplicationID),
		ClientToken:   aws.String(uuid.New().String()),
	}
	if req.ConversationID != "" {
		input.ConversationId = aws.String(req.ConversationID)
	}
	if req.ParentMessageID != "" {
		input.ParentMessageId = aws.String(req.ParentMessageID)
	}

	out, err := s.client.Chat(ctx, input)
	if err != nil {
		sink.Error(err.Error())
		return fmt.Errorf("Chat: %w", err)
	}

	stream := out.GetStream()
	defer stream.Close()

	return s.relay(ctx, stream, req, sink)
}

// relay writes the configuration, text and end-of-input events, then re-emits
// every inbound chunk, tracking the first-seen conversation and message ids
// and accumulating source attributions for the terminal frame.
func (s *Service) relay(ctx context.Context, stream chatStream, req ChatRequest, sink Sink) error {
	config := types.ConfigurationEvent{ChatMode: types.ChatModeRetrievalMode}
	if req.AttributeFilter != nil {
		config.AttributeFilter = req.AttributeFilter.toSDK()
	} else if req.PluginID != "" {
		config.ChatMode = types.ChatModePluginMode
		config.ChatModeConfiguration = &types.ChatModeConfigurationMemberPluginConfiguration{
			Value: types.PluginConfiguration{PluginId: aws.String(req.PluginID)},
		}
	}

	inputEvents := []types.ChatInputStream{
		&types.ChatInputStreamMemberConfigurationEvent{Value: config},
		&types.ChatInputStreamMemberTextEvent{Value: types.TextInputEvent{UserMessage: aws.String(req.UserMessage)}},
		&types.ChatInputStreamMemberEndOfInputEvent{Value: types.EndOfInputEvent{}},
	}
	for _, ev := range inputEvents {
		if err := stream.Send(ctx, ev); err != nil {
			sink.Error(err.Error())
			return fmt.Errorf("sending chat input event: %w", err)
		}
	}

	var conversationID, systemMessageID string
	var citations []Citation

	for {
		select {
		case <-ctx.Done():
			sink.Error("stream cancelled")
			return ctx.Err()

		case event, ok := <-stream.Events():
			if !ok {
				if err := stream.Err(); err != nil {
					sink.Error(err.Error())
					return fmt.Errorf("chat stream: %w", err)
				}
				return sink.Complete(CompleteFrame{
					ConversationID:  conversationID,
					SystemMessageID: systemMessageID,
					Citations:       citations,
				})
			}

			switch ev := event.(type) {
			case *types.ChatOutputStreamMemberTextEvent:
				if conversationID == "" {
					conversationID = aws.ToString(ev.Value.ConversationId)
				}
				if systemMessageID == "" {
					systemMessageID = aws.ToString(ev.Value.SystemMessageId)
				}
				if err := sink.Text(TextFrame{
					Message:         aws.ToString(ev.Value.SystemMessage),
					ConversationID:  conversationID,
					SystemMessageID: systemMessageID,
				}); err != nil {
					return fmt.Errorf("emitting text frame: %w", err)
				}

			case *types.ChatOutputStreamMemberMetadataEvent:
				if conversationID == "" {
					conversationID = aws.ToString(ev.Value.ConversationId)
				}
				if systemMessageID == "" {
					systemMessageID = aws.ToString(ev.Value.SystemMessageId)
				}
				frame := MetadataFrame{
					Citations:       reshapeCitations(ev.Value.SourceAttributions),
					ConversationID:  conversationID,
					SystemMessageID: systemMessageID,
				}
				citations = append(citations, frame.Citations...)
				if err := sink.Metadata(frame); err != nil {
					return fmt.Errorf("emitting metadata frame: %w", err)
				}

			default:
				s.logger.Debug().Type("event", event).Msg("ignoring chat output event")
			}
		}
	}
}

func (f *AttributeFilter) toSDK() *types.AttributeFilter {
	if f == nil {
		return nil
	}
	out := &types.AttributeFilter{}
	if f.EqualsTo != nil {
		attr := &types.DocumentAttribute{Name: aws.String(f.EqualsTo.Name)}
		if len(f.EqualsTo.StringListValue) > 0 {
			attr.Value = &types.DocumentAttributeValueMemberStringListValue{Value: f.EqualsTo.StringListValue}
		} else {
			attr.Value = &types.DocumentAttributeValueMemberStringValue{Value: f.EqualsTo.StringValue}
		}
		out.EqualsTo = attr
	}
	for i := range f.AndAllFilters {
		out.AndAllFilters = append(out.AndAllFilters, *f.AndAllFilters[i].toSDK())
	}
	return out
}

func reshapeCitations(attributions []*types.SourceAttribution) []Citation {
	citations := make([]Citation, 0, len(attributions))
	for _, a := range attributions {
		citations = append(citations, Citation{
			Title:          aws.ToString(a.Title),
			Snippet:        aws.ToString(a.Snippet),
			URL:            aws.ToString(a.Url),
			CitationNumber: aws.ToInt32(a.CitationNumber),
		})
	}
	return citations
}
