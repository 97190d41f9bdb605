package normalize

import (
	"math"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
)

const (
	baseConfidence    = 0.3
	confidencePerVote = 0.25
	maxConfidence     = 0.95
	neutralPerCue     = 0.1
)

// evidence accumulates weighted votes from individual cues.
type evidence struct {
	votes    map[domain.EmotionLabel]float64
	cues     int // features that were present and valid
	features map[string]any
}

func newEvidence() *evidence {
	return &evidence{
		votes:    make(map[domain.EmotionLabel]float64),
		features: make(map[string]any),
	}
}

func (e *evidence) vote(label domain.EmotionLabel, weight float64) {
	e.votes[label] += weight
}

func (e *evidence) observe(name string, value any) {
	e.cues++
	e.features[name] = value
}

// estimate picks the strongest label. Confidence grows with the weight of
// agreeing votes, so one weak cue stays at or below 0.5.
func (e *evidence) estimate() *domain.LayerEstimate {
	if e.cues == 0 {
		return nil
	}

	best := domain.EmotionNeutral
	bestScore := 0.0
	for _, label := range domain.AllEmotions {
		if score := e.votes[label]; score > bestScore {
			best, bestScore = label, score
		}
	}

	var confidence float64
	if bestScore == 0 {
		confidence = baseConfidence + neutralPerCue*math.Min(float64(e.cues), 3)
	} else {
		confidence = baseConfidence + confidencePerVote*bestScore
	}

	return &domain.LayerEstimate{
		Emotion:    best,
		Confidence: clamp(confidence, 0, maxConfidence),
		Features:   e.features,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// inRange returns the value when p is set, finite and within [lo, hi].
func inRange(p *float64, lo, hi float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	v := *p
	if math.IsNaN(v) || math.IsInf(v, 0) || v < lo || v > hi {
		return 0, false
	}
	return v, true
}
