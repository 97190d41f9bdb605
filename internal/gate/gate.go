// Package gate decides whether a fused verdict deserves an outward reaction.
package gate

import (
	"time"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
)

// The thresholds and windows below are fixed contracts; tests pin them.
const (
	firstInteractionConfidence = 0.7
	strongNegativeConfidence   = 0.7
	strongPositiveConfidence   = 0.8
	periodicCheckConfidence    = 0.75

	strongPositiveCooldown = 10 * time.Second
	periodicCheckInterval  = 30 * time.Second
	neutralCheckInterval   = 60 * time.Second
)

// ShouldRespond applies the response rules to the user's state before the
// new verdict is recorded. The first matching rule wins:
//
//  1. no history: respond to a confident non-neutral emotion
//  2. the emotion changed to something other than neutral
//  3. a confident negative emotion, regardless of timing
//  4. a very confident positive emotion after a short cooldown
//  5. a periodic check-in for a confident non-neutral emotion
//  6. a periodic check-in while neutral
//
// Elapsed time is measured from the last response, or from the last
// interaction when the user was never responded to.
func ShouldRespond(state domain.ConversationState, fused domain.FusedEmotion, now time.Time) domain.GateDecision {
	emotion := fused.Primary
	confidence := fused.OverallConfidence

	if !state.HasHistory() {
		if emotion != domain.EmotionNeutral && confidence > firstInteractionConfidence {
			return respond(domain.ReasonFirstInteraction)
		}
		return silent()
	}

	elapsed := now.Sub(since(state))

	switch {
	case *state.LastEmotion != emotion && emotion != domain.EmotionNeutral:
		return respond(domain.ReasonEmotionChange)
	case emotion.IsNegative() && confidence > strongNegativeConfidence:
		return respond(domain.ReasonStrongNegative)
	case emotion.IsPositive() && confidence > strongPositiveConfidence && elapsed > strongPositiveCooldown:
		return respond(domain.ReasonStrongPositive)
	case elapsed > periodicCheckInterval && emotion != domain.EmotionNeutral && confidence > periodicCheckConfidence:
		return respond(domain.ReasonPeriodicCheck)
	case emotion == domain.EmotionNeutral && elapsed > neutralCheckInterval:
		return respond(domain.ReasonPeriodicNeutralCheck)
	default:
		return silent()
	}
}

func since(state domain.ConversationState) time.Time {
	if state.LastResponseAt != nil {
		return *state.LastResponseAt
	}
	return *state.LastInteractionAt
}

func respond(reason domain.GateReason) domain.GateDecision {
	return domain.GateDecision{Respond: true, Reason: reason}
}

func silent() domain.GateDecision {
	return domain.GateDecision{Respond: false, Reason: domain.ReasonNoTrigger}
}
