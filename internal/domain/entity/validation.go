package entity

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
)

// Content size limits enforced at the creation boundary.
const (
	maxTitleLength = 255
	maxBodyLength  = 10000
)

// ValidateTitle validates notification title content.
// Returns a ValidationError if the title is empty or exceeds the length limit.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return &ValidationError{Field: "title", Message: "is required"}
	}
	if len(title) > maxTitleLength {
		return &ValidationError{
			Field:   "title",
			Message: fmt.Sprintf("must not exceed %d characters", maxTitleLength),
		}
	}
	return nil
}

// ValidateBody validates notification body content.
// Returns a ValidationError if the body is empty or exceeds the length limit.
func ValidateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return &ValidationError{Field: "body", Message: "is required"}
	}
	if len(body) > maxBodyLength {
		return &ValidationError{
			Field:   "body",
			Message: fmt.Sprintf("must not exceed %d characters", maxBodyLength),
		}
	}
	return nil
}

// ValidateRecipientAddress validates a channel-specific recipient address.
// Email addresses must parse per RFC 5322; phone numbers must be E.164-like;
// push tokens and chat ids only need to be non-empty.
func ValidateRecipientAddress(channel Channel, address string) error {
	if address == "" {
		return &ValidationError{Field: "recipientAddress", Message: "is required"}
	}

	switch channel {
	case ChannelEmail:
		if _, err := mail.ParseAddress(address); err != nil {
			return &ValidationError{Field: "recipientAddress", Message: "invalid email address"}
		}
	case ChannelSMS:
		if err := validatePhoneNumber(address); err != nil {
			return err
		}
	}

	return nil
}

// validatePhoneNumber checks for an E.164-style phone number: an optional
// leading plus followed by 7 to 15 digits.
func validatePhoneNumber(number string) error {
	digits := number
	if strings.HasPrefix(digits, "+") {
		digits = digits[1:]
	}
	if len(digits) < 7 || len(digits) > 15 {
		return &ValidationError{Field: "recipientAddress", Message: "invalid phone number length"}
	}
	for _, r := range digits {
		if !unicode.IsDigit(r) {
			return &ValidationError{Field: "recipientAddress", Message: "phone number must contain only digits"}
		}
	}
	return nil
}
