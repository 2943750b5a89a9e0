package entity

import (
	"fmt"
	"time"
)

// NotificationPreference holds a user's per-channel and per-category delivery
// gates. A missing preference record is equivalent to DefaultPreference.
//
// Resolution order for a (category, channel) pair:
//  1. The fine-grained override map, if it has an entry for the pair,
//     decides alone.
//  2. Otherwise the channel's global enable flag must be on, and
//  3. the category-specific flag for the channel must be on.
//
// The system category has no category flag: it is allowed whenever the channel
// is globally enabled. Lifecycle and transactional notifications are gated by
// a transactional flag on email only; other channels carry them whenever
// globally enabled.
type NotificationPreference struct {
	UserID string

	EmailEnabled bool
	PushEnabled  bool
	SMSEnabled   bool
	ChatEnabled  bool

	EmailTransactional bool

	EmailReminders bool
	PushReminders  bool
	SMSReminders   bool
	ChatReminders  bool

	EmailProgress bool
	PushProgress  bool
	SMSProgress   bool
	ChatProgress  bool

	EmailMarketing bool
	PushMarketing  bool
	SMSMarketing   bool
	ChatMarketing  bool

	// Overrides maps "<category>/<channel>" to an explicit allow/deny that
	// takes precedence over the coarser flags above.
	Overrides map[string]bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultPreference returns the default-allow preference set used when a user
// has no stored preference record: email, push and chat globally enabled, SMS
// off, and every category flag on.
func DefaultPreference(userID string) *NotificationPreference {
	return &NotificationPreference{
		UserID: userID,

		EmailEnabled: true,
		PushEnabled:  true,
		SMSEnabled:   false,
		ChatEnabled:  true,

		EmailTransactional: true,

		EmailReminders: true,
		PushReminders:  true,
		SMSReminders:   true,
		ChatReminders:  true,

		EmailProgress: true,
		PushProgress:  true,
		SMSProgress:   true,
		ChatProgress:  true,

		EmailMarketing: true,
		PushMarketing:  true,
		SMSMarketing:   true,
		ChatMarketing:  true,
	}
}

// OverrideKey builds the key used in the Overrides map for a
// (category, channel) pair.
func OverrideKey(category Category, channel Channel) string {
	return fmt.Sprintf("%s/%s", category, channel)
}

// ChannelEnabled reports the channel's global enable flag.
func (p *NotificationPreference) ChannelEnabled(channel Channel) bool {
	switch channel {
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelPush:
		return p.PushEnabled
	case ChannelSMS:
		return p.SMSEnabled
	case ChannelChat:
		return p.ChatEnabled
	}
	return false
}

// categoryFlag returns the category-specific gate for the channel. Categories
// without a gate on the channel return true so that the global flag decides.
func (p *NotificationPreference) categoryFlag(category Category, channel Channel) bool {
	switch category {
	case CategoryLifecycle, CategoryTransactional:
		// Only email gates transactional traffic; other channels always
		// carry it when globally enabled.
		if channel == ChannelEmail {
			return p.EmailTransactional
		}
		return true
	case CategoryReminder:
		switch channel {
		case ChannelEmail:
			return p.EmailReminders
		case ChannelPush:
			return p.PushReminders
		case ChannelSMS:
			return p.SMSReminders
		case ChannelChat:
			return p.ChatReminders
		}
	case CategoryProgress:
		switch channel {
		case ChannelEmail:
			return p.EmailProgress
		case ChannelPush:
			return p.PushProgress
		case ChannelSMS:
			return p.SMSProgress
		case ChannelChat:
			return p.ChatProgress
		}
	case CategoryMarketing:
		switch channel {
		case ChannelEmail:
			return p.EmailMarketing
		case ChannelPush:
			return p.PushMarketing
		case ChannelSMS:
			return p.SMSMarketing
		case ChannelChat:
			return p.ChatMarketing
		}
	case CategorySystem:
		return true
	}
	return false
}

// Allows reports whether a notification of the given category may be delivered
// on the given channel under this preference set.
func (p *NotificationPreference) Allows(category Category, channel Channel) bool {
	if p.Overrides != nil {
		if allowed, ok := p.Overrides[OverrideKey(category, channel)]; ok {
			return allowed
		}
	}
	if !p.ChannelEnabled(channel) {
		return false
	}
	return p.categoryFlag(category, channel)
}
