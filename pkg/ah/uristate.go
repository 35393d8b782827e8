package ah

// PercentState is the percent-decoder sub-state machine's position
// (spec §4.3 "ues"): IDLE -> SEEN_PERCENT -> SEEN_PERCENT_H1 -> IDLE.
type PercentState int

const (
	PercentIdle PercentState = iota
	PercentSeenPercent
	PercentSeenPercentH1
)

// PathState is the path-normalizer sub-state machine's position (spec
// §4.3 "ups"): IDLE -> SEEN_SLASH -> SEEN_SLASH_DOT -> SEEN_SLASH_DOT_DOT -> IDLE.
type PathState int

const (
	PathIdle PathState = iota
	PathSeenSlash
	PathSeenSlashDot
	PathSeenSlashDotDot
)
