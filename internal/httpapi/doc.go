// Package httpapi serves the JSON control surface: health, channels, events,
// job creation and listing, and background pipeline or single-stage runs.
//
// Responses wrap payloads as {"data": ...}; failures use
// {"error": {"code", "message"}}. Every request carries an X-Request-ID that
// flows into stage logs as correlation_id.
package httpapi
