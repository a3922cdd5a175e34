package model

import "time"

// ActionKind is the type of external side effect a slot transition requires.
type ActionKind int

const (
	ActionGrantRole ActionKind = iota
	ActionRevokeRole
	ActionRestrictWrites
	ActionRestoreWrites
	ActionNotify
	ActionDeleteResource
)

func (k ActionKind) String() string {
	switch k {
	case ActionGrantRole:
		return "grant-role"
	case ActionRevokeRole:
		return "revoke-role"
	case ActionRestrictWrites:
		return "restrict-writes"
	case ActionRestoreWrites:
		return "restore-writes"
	case ActionNotify:
		return "notify"
	case ActionDeleteResource:
		return "delete-resource"
	default:
		return "unknown"
	}
}

// MessageKind selects the message a notify action delivers.
type MessageKind string

const (
	MessageCreated       MessageKind = "created"
	MessageExtended      MessageKind = "extended"
	MessageExpiryWarning MessageKind = "expiry-warning"
	MessageExpired       MessageKind = "expired"
	MessagePaused        MessageKind = "paused"
	MessageResumed       MessageKind = "resumed"
	MessageWarningIssued MessageKind = "warning-issued"
	MessageBroadcast     MessageKind = "broadcast"
	MessageScamAlert     MessageKind = "scam-alert"
)

// Broadcast audiences accepted by the rate-limited alert.
const (
	AudienceEveryone = "everyone"
	AudienceHere     = "here"
)

// Notice carries what a gateway needs to render a message.
type Notice struct {
	Kind         MessageKind
	OwnerID      string
	ExpiresAt    time.Time
	WarningCount int
	Audience     string
	IssuedBy     string
}

// Action is one external side effect produced by a transition.
type Action struct {
	Kind       ActionKind
	ResourceID string
	UserID     string
	Notice     Notice
}
