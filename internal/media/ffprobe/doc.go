// Package ffprobe measures audio files with ffprobe.
//
// Inspect runs ffprobe and decodes its JSON report; AudioDuration reduces the
// report to the playable length in seconds, which drives frame rebalancing.
package ffprobe
