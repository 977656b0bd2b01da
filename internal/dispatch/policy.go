package dispatch

import (
	"slices"

	"github.com/flemzord/almond/pkg/message"
)

// GroupPolicyMode defines how group messages are handled.
type GroupPolicyMode string

const (
	// GroupPolicyRequireMention answers group messages only when the
	// assistant is addressed.
	GroupPolicyRequireMention GroupPolicyMode = "require_mention"
	// GroupPolicyAllowAll answers every group message.
	GroupPolicyAllowAll GroupPolicyMode = "allow_all"
)

// GroupPolicy controls which messages are accepted for processing.
type GroupPolicy struct {
	Mode GroupPolicyMode `yaml:"mode"`

	// Allowlist holds sender IDs answered in groups without a mention.
	Allowlist []string `yaml:"allowlist"`

	// Denylist holds sender IDs never answered in groups.
	Denylist []string `yaml:"denylist"`
}

// ShouldProcess reports whether msg should be processed. Direct chats are
// always processed. An unset mode behaves as require_mention.
func (p GroupPolicy) ShouldProcess(msg message.InboundMessage) bool {
	if !msg.Chat.IsGroup() {
		return true
	}
	if slices.Contains(p.Denylist, msg.Sender.ID) {
		return false
	}

	switch p.Mode {
	case GroupPolicyAllowAll:
		return true
	case GroupPolicyRequireMention, "":
		return msg.Mentioned || slices.Contains(p.Allowlist, msg.Sender.ID)
	default:
		return false
	}
}
