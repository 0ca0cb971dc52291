package portal

// Session notices shown in the top banner.
const (
	MsgOffline        = "Connection lost. Check your network, then reload the page."
	MsgIdleLogout     = "Session ended due to inactivity (15 minutes)."
	MsgAbsoluteLogout = "Session ended (24 hours). Please log in again."
)

// AuthIssue values.
const (
	MsgSessionTimeout = "Slow or interrupted connection. Try reloading the page."
	MsgAuthError      = "A connection problem occurred. Try reloading the page."
	MsgProfileFailed  = "Could not load your account data. Try reloading the page."
	MsgProfileTimeout = "Loading your account data timed out. Try reloading the page."
)

// Gate hints.
const (
	HintOffline   = "Connection lost. Check your network."
	HintPreparing = "Preparing your account, please wait..."
	HintSlow      = "Still loading. If this takes more than a minute, check your connection."
)
