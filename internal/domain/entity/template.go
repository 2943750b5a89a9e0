package entity

import "time"

// NotificationTemplate holds per-channel content sources for rendering.
// Templates are immutable once referenced by a sent notification: rendering is
// a pure function of (template, data), so re-rendering with the same inputs
// always yields the same content.
type NotificationTemplate struct {
	ID           string
	Name         string
	EmailSubject string
	EmailBody    string
	PushTitle    string
	PushBody     string
	SMSBody      string
	ChatBody     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SubjectFor returns the template's title source for the channel.
func (t *NotificationTemplate) SubjectFor(channel Channel) string {
	switch channel {
	case ChannelEmail:
		return t.EmailSubject
	case ChannelPush:
		return t.PushTitle
	}
	// SMS and chat content carries no separate title.
	return ""
}

// BodyFor returns the template's body source for the channel.
func (t *NotificationTemplate) BodyFor(channel Channel) string {
	switch channel {
	case ChannelEmail:
		return t.EmailBody
	case ChannelPush:
		return t.PushBody
	case ChannelSMS:
		return t.SMSBody
	case ChannelChat:
		return t.ChatBody
	}
	return ""
}
