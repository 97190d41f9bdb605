package normalize

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
)

// Text delegates to the external classifier. Without a classifier, or when
// it fails, the text layer is simply absent.
func Text(ctx context.Context, classifier domain.TextClassifier, in *domain.TextInput) *domain.LayerEstimate {
	if in == nil || classifier == nil {
		return nil
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil
	}

	label, confidence, err := classifier.Classify(ctx, text)
	if err != nil {
		slog.WarnContext(ctx, "Text classification failed, dropping text layer", "error", err)
		return nil
	}
	if !label.Valid() || math.IsNaN(confidence) || math.IsInf(confidence, 0) {
		return nil
	}

	return &domain.LayerEstimate{
		Emotion:    label,
		Confidence: clamp(confidence, 0, 1),
		Features: map[string]any{
			"chars": float64(len(text)),
		},
	}
}
