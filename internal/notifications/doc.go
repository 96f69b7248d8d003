// Package notifications delivers pipeline events via ntfy.
//
// The ntfy implementation posts plain-text messages to the configured topic and
// degrades to a no-op when no topic is set. Stage execution and the CLI depend
// only on the Service interface.
package notifications
