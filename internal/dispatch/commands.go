package dispatch

import (
	"context"
	"fmt"
	"slices"

	"github.com/flemzord/almond/pkg/message"
)

// handleCommand runs admin chat commands. It reports false for anything
// that is not a known command from an admin, which is then handled as a
// normal message.
func (p *Pipeline) handleCommand(ctx context.Context, msg message.InboundMessage) (bool, error) {
	name, _, ok := msg.Command()
	if !ok || !slices.Contains(p.cfg.Admins, msg.Sender.ID) {
		return false, nil
	}

	var text string
	switch name {
	case "forget":
		res, err := p.mem.Forget(ctx)
		if err != nil {
			text = fmt.Sprintf("Forget sweep failed: %v", err)
		} else {
			text = fmt.Sprintf("Forget sweep done: examined %d, removed %d, failed %d.",
				res.Examined, res.Removed, res.Failed)
		}
	case "stats":
		lanes := 0
		if p.lanes != nil {
			lanes = p.lanes.LaneCount()
		}
		text = fmt.Sprintf("Lanes: %d, conversations: %d, tracked fragments: %d.",
			lanes, len(p.mem.Conversations()), p.mem.Usage().Len())
	default:
		return false, nil
	}

	p.logger.Info("dispatch: admin command",
		"command", name,
		"sender", msg.Sender.ID,
		"conversation_id", msg.ConversationID(),
	)
	if err := p.sender.Send(ctx, message.NewReply(msg, text)); err != nil {
		return true, fmt.Errorf("dispatch: sending command reply: %w", err)
	}
	return true, nil
}
