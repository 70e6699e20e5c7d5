package domain

import (
	"time"

	"github.com/google/uuid"
)

// Channel names an external conversation channel.
type Channel string

const (
	ChannelChat  Channel = "chat"
	ChannelEmail Channel = "email"
)

// IdentityMapping links an external actor to an internal user on one channel.
type IdentityMapping struct {
	ID          int64
	Channel     Channel
	ExternalID  string
	UserID      uuid.UUID
	DisplayName string
	CreatedAt   time.Time
}

// ActorInfo is what an external directory knows about one of its actors.
type ActorInfo struct {
	ExternalID  string
	Username    string
	RealName    string
	DisplayName string
	Email       string
}

// PreferredName is the name used for matching: display name, else real name.
func (a ActorInfo) PreferredName() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.RealName
}

// ConversationHandle identifies an external conversation that belongs to a ticket.
// For chat Ref is the thread marker; for email it is the subject line or tag.
type ConversationHandle struct {
	Channel Channel
	Ref     string
}

func ChatThread(ref string) ConversationHandle {
	return ConversationHandle{Channel: ChannelChat, Ref: ref}
}

func EmailSubject(subject string) ConversationHandle {
	return ConversationHandle{Channel: ChannelEmail, Ref: subject}
}
