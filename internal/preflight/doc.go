// Package preflight provides readiness checks for the directories, binaries
// and remote services the pipeline depends on.
//
// The doctor command prints every result; serve runs the same checks at
// startup and logs failures without refusing to start.
package preflight
