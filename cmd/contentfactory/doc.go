// Package main hosts the contentfactory CLI.
//
// The Cobra command tree covers configuration scaffolding, channel and event
// inspection, event import, job creation, single-stage and whole-pipeline
// runs, the HTTP API server with its optional background worker, and a
// doctor command that runs the preflight checks. Configuration, the job
// store and the logger are resolved once per invocation in commandContext.
package main
