package normalize

import (
	"strings"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
)

// Contextual infers a likely emotion from what the user is doing.
func Contextual(in *domain.ContextualInput) *domain.LayerEstimate {
	if in == nil {
		return nil
	}
	ev := newEvidence()

	if activity := strings.ToLower(strings.TrimSpace(in.ActivityType)); activity != "" {
		ev.observe("activity_type", activity)
		switch activity {
		case "exercise", "workout", "running", "sports":
			ev.vote(domain.EmotionExcited, 0.4)
			ev.vote(domain.EmotionHappy, 0.2)
		case "relaxing", "meditation", "reading", "resting", "sleeping":
			ev.vote(domain.EmotionCalm, 0.6)
		case "socializing", "party", "gaming":
			ev.vote(domain.EmotionHappy, 0.4)
			ev.vote(domain.EmotionExcited, 0.2)
		case "commuting", "traffic":
			ev.vote(domain.EmotionFrustrated, 0.3)
			ev.vote(domain.EmotionAnxious, 0.2)
		}
	}

	if intensity, ok := inRange(in.ActivityIntensity, 0, 1); ok {
		ev.observe("activity_intensity", intensity)
		switch {
		case intensity > 0.7:
			ev.vote(domain.EmotionExcited, 0.4)
		case intensity < 0.2:
			ev.vote(domain.EmotionCalm, 0.3)
		}
	}

	if task, ok := inRange(in.TaskIntensity, 0, 1); ok {
		ev.observe("task_intensity", task)
		switch {
		case task > 0.7:
			ev.vote(domain.EmotionAnxious, 0.4)
			ev.vote(domain.EmotionFrustrated, 0.2)
		case task < 0.3:
			ev.vote(domain.EmotionCalm, 0.3)
		}
	}

	if complexity, ok := inRange(in.TaskComplexity, 0, 1); ok {
		ev.observe("task_complexity", complexity)
		if complexity > 0.7 {
			ev.vote(domain.EmotionFrustrated, 0.5)
		}
	}

	if tod := strings.ToLower(strings.TrimSpace(in.TimeOfDay)); tod != "" {
		ev.features["time_of_day"] = tod
		if tod == "late_night" {
			ev.vote(domain.EmotionAnxious, 0.1)
		}
	}

	return ev.estimate()
}
