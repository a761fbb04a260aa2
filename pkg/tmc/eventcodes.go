package tmc

// eventInfo is the static description and slowdown multiplier associated
// with one ALERT-C-style TMC event code.
type eventInfo struct {
	desc     string
	slowdown float64
}

// eventCodes is a minimal ALERT-C event code table: no example repo or
// the original implementation ships a full one (insert_dummy_events just
// hardcodes a single "kek"/0.24 pair inline), so this is invented the
// same way pkg/access's highway defaults table was invented from the
// spec's own description of severities.
var eventCodes = map[uint32]eventInfo{
	1:   {"queuing traffic", 0.6},
	2:   {"slow traffic", 0.5},
	3:   {"stationary traffic", 0.15},
	4:   {"traffic building up", 0.7},
	11:  {"heavy traffic", 0.45},
	12:  {"congestion", 0.3},
	101: {"accident", 0.3},
	102: {"serious accident", 0.15},
	200: {"roadworks", 0.5},
	201: {"long-term roadworks", 0.6},
	401: {"road closed", 0.02},
	402: {"carriageway closed", 0.02},
}

const (
	unknownEventDesc     = "unknown event"
	unknownEventSlowdown = 0.5
)

// lookupDescription returns the human-readable description for an
// event code, or a generic fallback if the code isn't in the table.
func lookupDescription(code uint32) string {
	if info, ok := eventCodes[code]; ok {
		return info.desc
	}
	return unknownEventDesc
}

// lookupSlowdown returns the slowdown multiplier for an event code, or
// a conservative default if the code isn't in the table.
func lookupSlowdown(code uint32) float64 {
	if info, ok := eventCodes[code]; ok {
		return info.slowdown
	}
	return unknownEventSlowdown
}
