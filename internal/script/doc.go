// Package script models the video script exchanged between pipeline stages
// and handed to the renderer as props, and implements frame rebalancing of
// scene durations against measured narration length.
package script
