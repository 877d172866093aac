package model

import (
	"errors"
	"regexp"
	"time"
)

// MaxMessageLength is the upper bound on message text length.
const MaxMessageLength = 200

var (
	// ErrMessageTooLong is returned when a message text exceeds MaxMessageLength.
	ErrMessageTooLong = errors.New("message text exceeds maximum length of 200 characters")

	// ErrMessageInvalidChars is returned when a message text contains
	// characters outside the allowed set.
	ErrMessageInvalidChars = errors.New("message text contains invalid characters")
)

// messageTextPattern is the allowed character set for message bodies,
// including German umlauts and common punctuation.
var messageTextPattern = regexp.MustCompile(`^[A-Za-zäöüÄÖÜß0-9,.;:#+\-()%$€\s]*$`)

// Message is one entry of a user's append-only inbox.
type Message struct {
	Date      int64  `json:"date"` // ms since epoch, 13 digits
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

// ValidateMessageText checks length and character-set constraints on a
// message body.
func ValidateMessageText(text string) error {
	if len([]rune(text)) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if !messageTextPattern.MatchString(text) {
		return ErrMessageInvalidChars
	}
	return nil
}

// NewMessage validates text and builds a timestamped message.
func NewMessage(sender, recipient, text string) (Message, error) {
	if err := ValidateMessageText(text); err != nil {
		return Message{}, err
	}
	return Message{
		Date:      time.Now().UnixMilli(),
		Sender:    sender,
		Recipient: recipient,
		Text:      text,
	}, nil
}
