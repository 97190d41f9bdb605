package fusion

import (
	"fmt"
	"maps"
	"math"
	"time"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
)

// scoreEpsilon absorbs float noise when comparing accumulated scores.
const scoreEpsilon = 1e-9

// Renormalize scales the weights of the given channels so they sum to 1.
// Channels not listed get no weight. Negative or non-finite weights, or a
// zero total over the listed channels, yield an *InvalidWeightsError.
func Renormalize(weights domain.LayerWeights, channels []domain.Channel) (map[domain.Channel]float64, error) {
	for _, c := range domain.AllChannels {
		w := weights.For(c)
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, &domain.InvalidWeightsError{Reason: fmt.Sprintf("%s weight is not a finite number", c)}
		}
		if w < 0 {
			return nil, &domain.InvalidWeightsError{Reason: fmt.Sprintf("%s weight is negative", c)}
		}
	}

	present := make(map[domain.Channel]bool, len(channels))
	for _, c := range channels {
		present[c] = true
	}

	total := 0.0
	for _, c := range domain.AllChannels {
		if present[c] {
			total += weights.For(c)
		}
	}
	if total == 0 {
		return nil, &domain.InvalidWeightsError{Reason: "all weights of the present channels are zero"}
	}

	out := make(map[domain.Channel]float64, len(present))
	for _, c := range domain.AllChannels {
		if present[c] {
			out[c] = weights.For(c) / total
		}
	}
	return out, nil
}

// Fuse merges the estimates into a FusedEmotion. The label with the largest
// weighted confidence wins; OverallConfidence is that score over the total
// weight mass. Exact ties go to the label backed by the single most
// confident channel, then to channel priority.
//
// An empty estimates map yields *NoSignalError. The returned value shares
// nothing with the inputs.
func Fuse(estimates map[domain.Channel]domain.LayerEstimate, weights domain.LayerWeights, userID string, at time.Time) (domain.FusedEmotion, error) {
	if len(estimates) == 0 {
		return domain.FusedEmotion{}, &domain.NoSignalError{}
	}

	channels := make([]domain.Channel, 0, len(estimates))
	for _, c := range domain.AllChannels {
		if _, ok := estimates[c]; ok {
			channels = append(channels, c)
		}
	}
	if len(channels) == 0 {
		return domain.FusedEmotion{}, &domain.NoSignalError{}
	}

	normalized, err := Renormalize(weights, channels)
	if err != nil {
		return domain.FusedEmotion{}, err
	}

	scores := make(map[domain.EmotionLabel]float64)
	mass := 0.0
	for _, c := range channels {
		w := normalized[c]
		mass += w
		scores[estimates[c].Emotion] += w * confidenceOf(estimates[c])
	}

	primary, best := pickPrimary(scores, estimates, channels)

	overall := 0.0
	if mass > 0 {
		overall = clamp01(best / mass)
	}

	perLayer := make(map[domain.Channel]domain.LayerEstimate, len(channels))
	var applied domain.LayerWeights
	for _, c := range channels {
		perLayer[c] = copyEstimate(estimates[c])
		applied = applied.With(c, normalized[c])
	}

	return domain.FusedEmotion{
		Primary:           primary,
		OverallConfidence: overall,
		PerLayer:          perLayer,
		Weights:           applied,
		UserID:            userID,
		Timestamp:         at,
	}, nil
}

func pickPrimary(
	scores map[domain.EmotionLabel]float64,
	estimates map[domain.Channel]domain.LayerEstimate,
	channels []domain.Channel,
) (domain.EmotionLabel, float64) {
	best := math.Inf(-1)
	for _, label := range domain.AllEmotions {
		if s, ok := scores[label]; ok && s > best {
			best = s
		}
	}

	tied := make(map[domain.EmotionLabel]bool)
	for _, label := range domain.AllEmotions {
		if s, ok := scores[label]; ok && best-s <= scoreEpsilon {
			tied[label] = true
		}
	}

	// channels is in priority order, so strict > keeps the earlier channel
	// when confidences are equal.
	var (
		winner  domain.EmotionLabel
		topConf = math.Inf(-1)
	)
	for _, c := range channels {
		est := estimates[c]
		if !tied[est.Emotion] {
			continue
		}
		if conf := confidenceOf(est); conf > topConf {
			winner, topConf = est.Emotion, conf
		}
	}

	return winner, scores[winner]
}

func confidenceOf(e domain.LayerEstimate) float64 {
	if math.IsNaN(e.Confidence) {
		return 0
	}
	return clamp01(e.Confidence)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func copyEstimate(e domain.LayerEstimate) domain.LayerEstimate {
	e.Features = maps.Clone(e.Features)
	return e
}
