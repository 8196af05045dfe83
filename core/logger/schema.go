package logger

import "strings"

// Components emitted by facetbot. Every log line carries exactly one of them.
const (
	CompApp    = "app"
	CompTG     = "tg"
	CompTWire  = "tg.wire"
	CompSender = "tg.sender"
	CompDB     = "db"
	CompMIG    = "db.migrate"
	CompSeed   = "db.seed"
	CompWizard = "wizard"
	CompQuery  = "query"
	CompViews  = "views"
)

const (
	// LevelDebug represents the debug severity level name.
	LevelDebug = "DEBUG"
	// LevelInfo represents the info severity level name.
	LevelInfo = "INFO"
	// LevelWarn represents the warning severity level name.
	LevelWarn = "WARN"
	// LevelError represents the error severity level name.
	LevelError = "ERROR"
)

var levelNames = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

func enumSet(values ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

// status is free-form but the common values are lower-cased and kept stable.
var knownStatus = enumSet("ok", "fail", "skip", "retry", "rate_limited", "cancelled")

// outcome is a closed set: anything else is dropped from the line.
var knownOutcome = enumSet(
	"ok", "fail", "cancelled", "rate_limited",
	"render_failed", "no_prior_state", "not_found", "unknown",
	"outdated", "malformed_range", "query_failed",
)

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if mapped, ok := levelNames[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

func normalizeEnum(v string, set map[string]struct{}) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "", false
	}
	_, ok := set[v]
	return v, ok
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"op",
	"cb_key",
	"position",
	"from",
	"facet",
	"outcome",
	"duration_ms",
	"count",
	"page",
	"pages",
	"product_id",
	"payload",
	"username",
	"mode",
	"listen",
	"public_url",
	"http_code",
	"db",
	"host",
	"port",
	"sql",
	"err",
	"cause",
	"retryable",
	"attempts",
	"backoff_ms",
	"stack",
}
