package action

import (
	"maps"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
)

// Device ids addressed by the policy table.
const (
	DeviceLivingRoomLight = "living_room_light"
	DeviceAccentLight     = "accent_light"
	DeviceMainSpeaker     = "main_speaker"
	DeviceUserPhone       = "user_phone"
)

type directiveTemplate struct {
	deviceID   string
	actionType domain.ActionType
	params     map[string]any
}

func setLight(color string, brightness int) directiveTemplate {
	return directiveTemplate{
		deviceID:   DeviceLivingRoomLight,
		actionType: domain.ActionSetLight,
		params:     map[string]any{"color": color, "brightness": brightness},
	}
}

func playMusic(playlist string, volume int) directiveTemplate {
	return directiveTemplate{
		deviceID:   DeviceMainSpeaker,
		actionType: domain.ActionPlayMusic,
		params:     map[string]any{"playlist": playlist, "volume": volume},
	}
}

func notify(title, message string) directiveTemplate {
	return directiveTemplate{
		deviceID:   DeviceUserPhone,
		actionType: domain.ActionSendNotification,
		params:     map[string]any{"title": title, "message": message},
	}
}

var policy = map[domain.EmotionLabel][]directiveTemplate{
	domain.EmotionHappy: {
		setLight("warm_yellow", 80),
		playMusic("upbeat", 60),
	},
	domain.EmotionSad: {
		setLight("soft_blue", 40),
		playMusic("calming", 45),
		notify("Thinking of you", "It's okay to feel this way. You're not alone."),
	},
	domain.EmotionAngry: {
		setLight("cool_blue", 30),
		playMusic("calming", 30),
		notify("Take a breath", "Try breathing in slowly for four seconds, then out for six."),
	},
	domain.EmotionAnxious: {
		setLight("soft_purple", 50),
		{
			deviceID:   DeviceAccentLight,
			actionType: domain.ActionLightEffect,
			params:     map[string]any{"effect": "breathing", "color": "soft_purple", "periodSeconds": 8},
		},
		playMusic("ambient", 35),
	},
	domain.EmotionCalm: {
		setLight("soft_green", 50),
		playMusic("ambient", 30),
	},
	domain.EmotionExcited: {
		setLight("vibrant_orange", 90),
		playMusic("energetic", 65),
	},
	domain.EmotionFrustrated: {
		setLight("soft_teal", 45),
		playMusic("focus", 40),
		notify("Time for a break?", "A five minute pause can make the next step easier."),
	},
	domain.EmotionNeutral: {
		setLight("neutral_white", 60),
	},
}

// DirectivesFor returns fresh directives for emotion. Callers may mutate the
// result freely. Undefined labels yield no directives.
func DirectivesFor(emotion domain.EmotionLabel) []domain.ActionDirective {
	templates := policy[emotion]
	out := make([]domain.ActionDirective, 0, len(templates))
	for _, t := range templates {
		out = append(out, domain.ActionDirective{
			DeviceID:          t.deviceID,
			ActionType:        t.actionType,
			Parameters:        maps.Clone(t.params),
			TriggeringEmotion: emotion,
		})
	}
	return out
}
