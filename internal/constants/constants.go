package constants

import "time"

const (
	ServiceName = "relay"
)

const (
	ShutdownTimeout = 5 * time.Second
	// AccessCheckTimeout bounds each startup chat lookup.
	AccessCheckTimeout = 10 * time.Second
)

const (
	// PreviewLength is the number of runes of message text shown in logs.
	PreviewLength = 50
	// UnknownName is shown for chats whose name cannot be resolved.
	UnknownName = "Unknown"
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
)

const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// Message status labels for relay_messages_total.
const (
	MessageStatusDelivered = "delivered"
	MessageStatusPartial   = "partial"
	MessageStatusFailed    = "failed"
	MessageStatusFiltered  = "filtered"
	MessageStatusNoRoute   = "no_route"
	MessageStatusService   = "service"
	MessageStatusPanic     = "panic"
)
