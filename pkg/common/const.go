package common

const (
	KEY_UNDERLYING_QUOTE   = "underlying_quote:%s"
	KEY_DIAGNOSTICS_REPORT = "diagnostics_report:%d"
)

const (
	KEY_LOG_HOOK_SEND_ALERT = "send_alert"
)

// Locks are keyed per resource kind so position and account ids never collide.
const (
	LOCK_ACCOUNT  = "account:%d"
	LOCK_POSITION = "position:%d"
)
