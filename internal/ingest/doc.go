// Package ingest extracts structured events from raw source documents.
//
// HTML pages are flattened to readable text with goquery, the text is split
// into line-aligned chunks, and each chunk is sent to the Generation Service
// with an event-list schema. Every extracted event is offered to the store,
// which reports whether it was inserted or already known.
package ingest
