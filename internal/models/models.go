package models

import (
	"strings"
	"time"
)

type Platform string

const (
	PlatformChatwoot Platform = "chatwoot"
	PlatformTelegram Platform = "telegram"
)

type Country string

const (
	CountryUnset Country = ""
	CountryPH    Country = "PH"
	CountryUS    Country = "US"
)

// ParseCountry accepts only the stored codes; anything else is unset.
func ParseCountry(s string) Country {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PH":
		return CountryPH
	case "US":
		return CountryUS
	default:
		return CountryUnset
	}
}

// User — identity record, external_id is the natural key.
type User struct {
	ID         int64
	ExternalID string
	Username   *string
	ChatroomID *string
	Country    Country
	UpdatedAt  time.Time
}

// MergeUser applies the upsert precedence: incoming values win, but an unset
// username, chatroom id or country never erases a stored one.
func MergeUser(existing *User, incoming User) User {
	if existing == nil {
		return incoming
	}
	out := *existing
	if incoming.Username != nil {
		out.Username = incoming.Username
	}
	if incoming.ChatroomID != nil {
		out.ChatroomID = incoming.ChatroomID
	}
	if incoming.Country != CountryUnset {
		out.Country = incoming.Country
	}
	if !incoming.UpdatedAt.IsZero() {
		out.UpdatedAt = incoming.UpdatedAt
	}
	return out
}

// Evaluation is one ai_eval row joined with its fixture.
type Evaluation struct {
	FixtureID  int64
	Predicted  string
	Actual     *string
	Confidence float64
	Tags       string
	IfBet      bool
	Kickoff    time.Time
	Home       string
	Away       string
	// Success is filled by queries that compute the marker in SQL.
	Success bool
}

func (e Evaluation) Settled() bool {
	return e.Actual != nil && strings.TrimSpace(*e.Actual) != ""
}

type PushType string

const (
	PushYesterday PushType = "yesterday"
	PushPick      PushType = "pick"
)

type PushTarget struct {
	UserID     int64
	ChatroomID string
	Country    Country
}

type ThreadStatus string

const (
	ThreadActive  ThreadStatus = "active"
	ThreadExpired ThreadStatus = "expired"
)

type Thread struct {
	ID             int64
	Platform       Platform
	ChatroomID     string
	AgentThreadID  string
	Subject        *string
	StartedAt      time.Time
	LastActivityAt *time.Time
	ExpiresAt      *time.Time
	Status         ThreadStatus
}

// InboundMessage is the canonical shape both webhooks normalize into.
type InboundMessage struct {
	Platform       Platform
	Text           string
	PlatformUserID string
	DisplayName    string
	ChatHandle     string
	ConversationID *int64
	AccountID      *int64
	InboxID        *int64
	MessageID      string
	SourceID       string
	ContactID      string
	CallbackID     string
	MessageType    string
	IsIncoming     bool
}

// Address returns where replies to this message go.
func (m InboundMessage) Address() Address {
	return Address{
		Platform:       m.Platform,
		ChatHandle:     m.ChatHandle,
		AccountID:      m.AccountID,
		ConversationID: m.ConversationID,
		InboxID:        m.InboxID,
	}
}

type Address struct {
	Platform       Platform
	ChatHandle     string
	AccountID      *int64
	ConversationID *int64
	InboxID        *int64
}

type KeyboardOption struct {
	Label string
	Data  string
}

// LoggedMessage is a chat_messages row.
type LoggedMessage struct {
	ChatroomID     string
	AccountID      *int64
	ConversationID *int64
	UserID         *int64
	Content        string
	MessageType    string
	MessageID      *int64
	SenderID       string
	ContactID      string
	InboxID        *int64
	SourceID       string
}
