package notify

import "errors"

// Skip reasons recorded when a requested channel is dropped during fan-out.
const (
	SkipReasonPreference = "blocked by user preferences"
	SkipReasonNoAddress  = "no delivery address on file"
	SkipReasonNoTemplate = "template has no content for channel"
	SkipReasonInvalid    = "content failed validation"
)

// ErrNoRecipients is returned by the bulk path when the user list is empty.
var ErrNoRecipients = errors.New("no recipients given")
