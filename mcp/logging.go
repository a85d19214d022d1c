package mcp

import "fmt"

// LoggingLevel is a per-session log-filter threshold, ordered by severity
// the way syslog severities are: Debug is least severe, Emergency most.
type LoggingLevel int

const (
	LevelDebug LoggingLevel = iota
	LevelInfo
	LevelNotice
	LevelWarning
	LevelError
	LevelCritical
	LevelAlert
	LevelEmergency
)

var levelNames = [...]string{
	LevelDebug:     "debug",
	LevelInfo:      "info",
	LevelNotice:    "notice",
	LevelWarning:   "warning",
	LevelError:     "error",
	LevelCritical:  "critical",
	LevelAlert:     "alert",
	LevelEmergency: "emergency",
}

// Priority returns the numeric severity (0..7), higher is more severe.
func (l LoggingLevel) Priority() int {
	return int(l)
}

func (l LoggingLevel) String() string {
	if l < LevelDebug || l > LevelEmergency {
		return "unknown"
	}
	return levelNames[l]
}

// ParseLoggingLevel parses the wire string form of a logging level.
func ParseLoggingLevel(s string) (LoggingLevel, error) {
	for lvl, name := range levelNames {
		if name == s {
			return LoggingLevel(lvl), nil
		}
	}
	return 0, fmt.Errorf("mcp: unknown logging level %q", s)
}

// ShouldDeliver reports whether a message logged at `msgLevel` passes the
// filter for a session currently set to `sessionLevel`: higher-or-equal
// priority messages are delivered.
func ShouldDeliver(msgLevel, sessionLevel LoggingLevel) bool {
	return msgLevel.Priority() >= sessionLevel.Priority()
}
