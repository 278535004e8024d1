package domain

import (
	"fmt"
	"strings"
)

// MatchStrategy says how a tag's text is compared against a message.
type MatchStrategy int

const (
	// StrategyFuzzy compares the tag text by normalized edit distance.
	StrategyFuzzy MatchStrategy = iota
	// StrategyExact interprets the tag text as a regular expression.
	StrategyExact
)

func (s MatchStrategy) String() string {
	switch s {
	case StrategyExact:
		return "exact"
	case StrategyFuzzy:
		return "fuzzy"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy accepts "exact" (alias "regexp") or "fuzzy" (alias "ordinary").
func ParseStrategy(s string) (MatchStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exact", "regexp":
		return StrategyExact, nil
	case "fuzzy", "ordinary":
		return StrategyFuzzy, nil
	}
	return 0, fmt.Errorf("unknown match strategy %q", s)
}

func (s MatchStrategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *MatchStrategy) UnmarshalText(text []byte) error {
	v, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Scope says what part of a message a tag is evaluated against.
type Scope int

const (
	// ScopePerToken evaluates the tag against every token of the message.
	ScopePerToken Scope = iota
	// ScopeWholeMessage evaluates the tag against the full message text.
	ScopeWholeMessage
)

func (s Scope) String() string {
	switch s {
	case ScopeWholeMessage:
		return "message"
	case ScopePerToken:
		return "token"
	}
	return fmt.Sprintf("scope(%d)", int(s))
}

// ParseScope accepts "message" (alias "whole") or "token".
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "message", "whole":
		return ScopeWholeMessage, nil
	case "token":
		return ScopePerToken, nil
	}
	return 0, fmt.Errorf("unknown scope %q", s)
}

func (s Scope) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Scope) UnmarshalText(text []byte) error {
	v, err := ParseScope(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Tag is a configured trigger mapped to one or more media replies
type Tag struct {
	ID       int64         `json:"id"`
	Text     string        `json:"text"`
	Strategy MatchStrategy `json:"strategy"`
	Scope    Scope         `json:"scope"`
}

// MediaType is the kind of payload a media row holds
type MediaType string

const (
	MediaVoice   MediaType = "voice"
	MediaVideo   MediaType = "video"
	MediaPicture MediaType = "picture"
)

// ParseMediaType validates a media type name
func ParseMediaType(s string) (MediaType, error) {
	switch t := MediaType(strings.ToLower(strings.TrimSpace(s))); t {
	case MediaVoice, MediaVideo, MediaPicture:
		return t, nil
	}
	return "", fmt.Errorf("unknown media type %q", s)
}

// Media describes a stored reply. The payload is loaded separately by name.
type Media struct {
	ID   int64     `json:"id"`
	Name string    `json:"name"`
	Type MediaType `json:"type"`
}

// Feature binds media to a bot behaviour that is not tag driven
type Feature string

// FeatureDuplicateForward marks media sent when a forward was already seen in a chat.
const FeatureDuplicateForward Feature = "duplicate_forward"

// CronJob is a scheduled broadcast of a random media from its linked set
type CronJob struct {
	ID          int64   `json:"id"`
	Pattern     string  `json:"pattern"`
	ChatID      *int64  `json:"chat_id,omitempty"`
	Caption     *string `json:"caption,omitempty"`
	Description *string `json:"description,omitempty"`
}

// ForwardedMessage records the first time a forward was posted to a chat
type ForwardedMessage struct {
	ChatID             int64  `json:"chat_id"`
	ForwardedChatID    int64  `json:"forwarded_chat_id"`
	ForwardedMessageID int64  `json:"forwarded_message_id"`
	MessageURL         string `json:"message_url"`
}
