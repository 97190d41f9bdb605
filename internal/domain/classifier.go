package domain

import "context"

// TextClassifier maps free text to an emotion. It is a black box trained
// elsewhere; implementations must be safe for concurrent use.
type TextClassifier interface {
	Classify(ctx context.Context, text string) (EmotionLabel, float64, error)
}
