// Package scriptgen turns an event into a video script.
//
// Writer drafts a short-form script and runs the bounded review/revise loop:
// one draft, then up to MaxRevisions+1 reviews and MaxRevisions revisions.
// The first review whose overall score reaches QualityThreshold ends the
// loop; when the budget runs out the latest script is kept. Non-convergence
// is not an error.
//
// Mapper handles long-form channels: the event's long text is split into
// paragraph-aligned chunks and one generation call assigns an image prompt to
// each chunk. There is no review loop on this branch.
package scriptgen
