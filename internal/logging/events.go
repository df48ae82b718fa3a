package logging

import "log/slog"

const (
	defaultErrorHint   = "check the captioner log for details"
	defaultWarnImpact  = "job continues with reduced functionality"
	defaultErrorImpact = "job failed"
)

// WarnWithContext logs a warning that always carries event_type, error_hint,
// and impact. Caller-supplied values win over the defaults.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	logger.Warn(msg, toArgs(withEventDefaults(attrs, eventType, defaultWarnImpact))...)
}

// ErrorWithContext is WarnWithContext at error level.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	logger.Error(msg, toArgs(withEventDefaults(attrs, eventType, defaultErrorImpact))...)
}

func withEventDefaults(attrs []Attr, eventType, impact string) []Attr {
	defaults := []Attr{
		String(FieldEventType, eventType),
		String(FieldErrorHint, defaultErrorHint),
		String(FieldImpact, impact),
	}
	for _, d := range defaults {
		if !hasKey(attrs, d.Key) {
			attrs = append(attrs, d)
		}
	}
	return attrs
}

func hasKey(attrs []Attr, key string) bool {
	for _, a := range attrs {
		if a.Key == key {
			return true
		}
	}
	return false
}
