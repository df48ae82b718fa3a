// Package notifications delivers job lifecycle events via pluggable notifiers.
//
// ntfy receives short human-readable messages; Kafka receives one JSON record
// per event keyed by job id. NewService assembles whichever transports are
// configured and degrades to a no-op when none are. Workflow code depends only
// on the Service interface.
package notifications
