// Package response turns a fused verdict into a short supportive message.
package response

import (
	"fmt"
	"strings"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
)

type template struct {
	action   domain.ResponseAction
	new      []string
	repeated []string
}

var templates = map[domain.EmotionLabel]template{
	domain.EmotionHappy: {
		action: domain.ResponseCelebrate,
		new: []string{
			"You seem to be in a great mood. That's wonderful to see!",
			"Something's going well for you. Enjoy it!",
			"Love the positive energy right now.",
		},
		repeated: []string{
			"Still smiling, I see. Keep it going!",
			"Your good mood is holding up nicely.",
		},
	},
	domain.EmotionSad: {
		action: domain.ResponseOfferSupport,
		new: []string{
			"I'm here for you. Would you like to talk about what's on your mind?",
			"It seems like things are a bit heavy right now. I'm listening.",
			"I noticed you might be feeling down. Take all the time you need.",
		},
		repeated: []string{
			"You've seemed down for a while. Would something comforting help?",
			"Still here with you. Maybe reaching out to someone close could help.",
		},
	},
	domain.EmotionAngry: {
		action: domain.ResponseDeescalate,
		new: []string{
			"Let's take a moment. A few slow breaths can help cool things down.",
			"That sounds really frustrating. Let's pause for a second.",
			"I can tell something's bothering you. Step back for a moment if you can.",
		},
		repeated: []string{
			"The tension is still there. How about a short walk?",
			"Let's try to slow things down a little more together.",
		},
	},
	domain.EmotionAnxious: {
		action: domain.ResponseGuideBreathing,
		new: []string{
			"Let's breathe together: in for four, hold for four, out for four.",
			"You seem a little on edge. Try following the light as it slowly pulses.",
			"Take a slow breath. You're doing better than you think.",
		},
		repeated: []string{
			"Still feeling tense? Let's do another round of slow breathing.",
			"One thing at a time. Focus on just the next small step.",
		},
	},
	domain.EmotionCalm: {
		action: domain.ResponseMaintainCalm,
		new: []string{
			"You seem relaxed. I'll keep things peaceful.",
			"Nice and calm. Enjoy the moment.",
			"Everything feels settled right now.",
		},
		repeated: []string{
			"Still calm and steady. Keeping the atmosphere gentle.",
			"Good to see you staying relaxed.",
		},
	},
	domain.EmotionExcited: {
		action: domain.ResponseChannelEnergy,
		new: []string{
			"You're full of energy! Let's put it to good use.",
			"Something exciting is happening. Go for it!",
			"That's a lot of energy. I'll turn things up to match.",
		},
		repeated: []string{
			"The excitement keeps going. Great momentum!",
			"Still buzzing! Channel it into something fun.",
		},
	},
	domain.EmotionFrustrated: {
		action: domain.ResponseSuggestBreak,
		new: []string{
			"This seems frustrating. A short break might give you a fresh view.",
			"Stuck on something? Stepping away for five minutes often helps.",
			"Let's pause. A quick stretch can reset your focus.",
		},
		repeated: []string{
			"Still stuck? It might be a good time for a real break.",
			"Maybe try a different angle after a short pause.",
		},
	},
	domain.EmotionNeutral: {
		action: domain.ResponseCheckIn,
		new: []string{
			"Just checking in. How are you doing?",
			"How's everything going?",
			"Hope your day is going well.",
		},
		repeated: []string{
			"Checking in again. Anything I can do for you?",
			"Still here if you need anything.",
		},
	},
}

// Generate picks the message for the fused emotion. state is the user's
// state before this verdict is recorded. When the latest response was for
// the same emotion the wording rotates, so the same message is never sent
// twice in a row.
func Generate(fused domain.FusedEmotion, state domain.ConversationState, input domain.SignalRequest) domain.Response {
	emotion := fused.Primary
	tmpl, ok := templates[emotion]
	if !ok {
		emotion = domain.EmotionNeutral
		tmpl = templates[emotion]
	}

	pattern := domain.PatternNew
	messages := tmpl.new
	if state.LastEmotion != nil && *state.LastEmotion == emotion {
		pattern = domain.PatternRepeated
		messages = tmpl.repeated
	}

	variant := 0
	if recent := state.RecentResponses(2); len(recent) > 0 && recent[0].Emotion == emotion {
		variant = (recent[0].MessageVariant + 1) % len(messages)
	}

	message := messages[variant]
	if tmpl.action == domain.ResponseSuggestBreak {
		message += activityHint(input)
	}

	return domain.Response{
		Emotion: emotion,
		Message: message,
		Action:  tmpl.action,
		Pattern: pattern,
		Variant: variant,
	}
}

func activityHint(input domain.SignalRequest) string {
	if input.Contextual == nil {
		return ""
	}
	activity := strings.ToLower(strings.TrimSpace(input.Contextual.ActivityType))
	if activity == "" {
		return ""
	}
	return fmt.Sprintf(" You've been at %s for a while.", activity)
}
