// Package pipeline is the orchestrator: it exposes one entry point per stage
// plus RunPipeline, which drives a job from PENDING to RENDER_COMPLETE and
// halts at the first failure.
//
// Stage transitions are written only by stageexec. Worker polls for PENDING
// jobs and runs them in the background with bounded concurrency.
package pipeline
