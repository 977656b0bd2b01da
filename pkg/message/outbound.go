package message

// OutboundMessage represents a reply to be sent through a channel.
type OutboundMessage struct {
	Channel   string `json:"channel"`
	Chat      Chat   `json:"chat"`
	ReplyToID string `json:"reply_to_id,omitempty"`
	Text      string `json:"text"`
}

// NewReply builds an outbound message answering in. The reply references the
// inbound message ID so channels can thread it.
func NewReply(in InboundMessage, text string) OutboundMessage {
	return OutboundMessage{
		Channel:   in.Channel,
		Chat:      in.Chat,
		ReplyToID: in.ID,
		Text:      text,
	}
}
