package normalize

import "github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"

const defaultVisualConfidence = 0.5

// Visual trusts the upstream expression analyser's label. A frame without a
// detected face carries no signal.
func Visual(in *domain.VisualInput) *domain.LayerEstimate {
	if in == nil {
		return nil
	}
	if in.FaceDetected != nil && !*in.FaceDetected {
		return nil
	}

	label, ok := domain.ParseEmotion(in.Emotion)
	if !ok {
		return nil
	}

	confidence, ok := inRange(in.Confidence, 0, 1)
	if !ok {
		confidence = defaultVisualConfidence
	}

	return &domain.LayerEstimate{
		Emotion:    label,
		Confidence: confidence,
		Features: map[string]any{
			"raw_emotion": in.Emotion,
		},
	}
}
