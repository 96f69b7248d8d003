package script

import (
	"fmt"
	"math"

	"contentfactory/internal/services"
)

// DefaultSceneFrames stands in for a missing or non-positive estimate.
const DefaultSceneFrames = 150

// TargetFrames converts a measured narration length into the total frame
// count of the video: ceil((duration + pad) * fps).
func TargetFrames(durationSeconds, padSeconds float64, fps int) int {
	return int(math.Ceil((durationSeconds + padSeconds) * float64(fps)))
}

// maxEstimateRatio caps a scene estimate at this multiple of the target.
const maxEstimateRatio = 1000

// Rebalance rescales scene durations so they sum to target exactly. Each
// scene but the last gets floor(estimate / total * target); the last scene
// takes whatever remains.
func (s *Script) Rebalance(target int) error {
	if len(s.Scenes) == 0 {
		return ErrNoScenes
	}
	if target <= 0 {
		return fmt.Errorf("rebalance: target frames %d: %w", target, services.ErrValidation)
	}

	// Estimates come from the LLM; capping them keeps estimate*target
	// inside int64.
	ceiling := int64(target) * maxEstimateRatio
	estimates := make([]int64, len(s.Scenes))
	var total int64
	for i, scene := range s.Scenes {
		estimate := int64(scene.DurationInFrames)
		if estimate <= 0 {
			estimate = DefaultSceneFrames
		}
		estimate = min(estimate, ceiling)
		estimates[i] = estimate
		total += estimate
	}

	assigned := 0
	last := len(s.Scenes) - 1
	for i := range s.Scenes {
		if i == last {
			s.Scenes[i].DurationInFrames = target - assigned
			break
		}
		share := int(estimates[i] * int64(target) / total)
		s.Scenes[i].DurationInFrames = share
		assigned += share
	}
	return nil
}
