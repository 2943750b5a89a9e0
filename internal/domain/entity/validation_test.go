package entity

import (
	"strings"
	"testing"
)

func TestValidateTitle(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		wantErr bool
	}{
		{
			name:    "valid title",
			title:   "Course published",
			wantErr: false,
		},
		{
			name:    "empty title",
			title:   "",
			wantErr: true,
		},
		{
			name:    "whitespace only",
			title:   "   ",
			wantErr: true,
		},
		{
			name:    "title at limit",
			title:   strings.Repeat("a", 255),
			wantErr: false,
		},
		{
			name:    "title over limit",
			title:   strings.Repeat("a", 256),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTitle(tt.title)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTitle(%q) error = %v, wantErr %v", tt.title, err, tt.wantErr)
			}
		})
	}
}

func TestValidateBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{
			name:    "valid body",
			body:    "Your assignment was graded.",
			wantErr: false,
		},
		{
			name:    "empty body",
			body:    "",
			wantErr: true,
		},
		{
			name:    "body over limit",
			body:    strings.Repeat("b", 10001),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBody(tt.body)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBody error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRecipientAddress(t *testing.T) {
	tests := []struct {
		name    string
		channel Channel
		address string
		wantErr bool
	}{
		{
			name:    "valid email",
			channel: ChannelEmail,
			address: "student@example.com",
			wantErr: false,
		},
		{
			name:    "invalid email",
			channel: ChannelEmail,
			address: "not-an-email",
			wantErr: true,
		},
		{
			name:    "empty email",
			channel: ChannelEmail,
			address: "",
			wantErr: true,
		},
		{
			name:    "valid phone with plus",
			channel: ChannelSMS,
			address: "+81312345678",
			wantErr: false,
		},
		{
			name:    "valid phone without plus",
			channel: ChannelSMS,
			address: "81312345678",
			wantErr: false,
		},
		{
			name:    "phone too short",
			channel: ChannelSMS,
			address: "+12345",
			wantErr: true,
		},
		{
			name:    "phone with letters",
			channel: ChannelSMS,
			address: "+81312abc678",
			wantErr: true,
		},
		{
			name:    "push token accepted as-is",
			channel: ChannelPush,
			address: "fcm-token-abc123",
			wantErr: false,
		},
		{
			name:    "empty push token",
			channel: ChannelPush,
			address: "",
			wantErr: true,
		},
		{
			name:    "chat id accepted as-is",
			channel: ChannelChat,
			address: "chat-778899",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecipientAddress(tt.channel, tt.address)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRecipientAddress(%s, %q) error = %v, wantErr %v",
					tt.channel, tt.address, err, tt.wantErr)
			}
		})
	}
}
