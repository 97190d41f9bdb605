package domain

import (
	"fmt"
	"strings"
	"time"
)

// EmotionLabel is the closed set of emotions the pipeline reasons about.
type EmotionLabel int

const (
	EmotionNeutral EmotionLabel = iota
	EmotionHappy
	EmotionSad
	EmotionAngry
	EmotionAnxious
	EmotionCalm
	EmotionExcited
	EmotionFrustrated
)

// AllEmotions lists every label in a fixed order. Iterate this instead of maps
// wherever output must be deterministic.
var AllEmotions = []EmotionLabel{
	EmotionHappy,
	EmotionSad,
	EmotionAngry,
	EmotionAnxious,
	EmotionCalm,
	EmotionExcited,
	EmotionFrustrated,
	EmotionNeutral,
}

var emotionNames = map[EmotionLabel]string{
	EmotionNeutral:    "neutral",
	EmotionHappy:      "happy",
	EmotionSad:        "sad",
	EmotionAngry:      "angry",
	EmotionAnxious:    "anxious",
	EmotionCalm:       "calm",
	EmotionExcited:    "excited",
	EmotionFrustrated: "frustrated",
}

func (e EmotionLabel) String() string {
	if name, ok := emotionNames[e]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether e is one of the defined labels.
func (e EmotionLabel) Valid() bool {
	_, ok := emotionNames[e]
	return ok
}

// IsNegative reports whether e is one of the strong negative emotions the
// response gate always reacts to.
func (e EmotionLabel) IsNegative() bool {
	return e == EmotionSad || e == EmotionAnxious || e == EmotionAngry
}

// IsPositive reports whether e is a high-arousal positive emotion.
func (e EmotionLabel) IsPositive() bool {
	return e == EmotionHappy || e == EmotionExcited
}

// ParseEmotion converts a label name (case-insensitive) into an EmotionLabel.
// A few common synonyms produced by upstream classifiers are accepted.
func ParseEmotion(s string) (EmotionLabel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "happy", "joy", "happiness":
		return EmotionHappy, true
	case "sad", "sadness":
		return EmotionSad, true
	case "angry", "anger":
		return EmotionAngry, true
	case "anxious", "anxiety", "fear", "scared", "nervous":
		return EmotionAnxious, true
	case "calm", "relaxed":
		return EmotionCalm, true
	case "excited", "surprise", "excitement":
		return EmotionExcited, true
	case "frustrated", "frustration", "disgust":
		return EmotionFrustrated, true
	case "neutral":
		return EmotionNeutral, true
	default:
		return EmotionNeutral, false
	}
}

func (e EmotionLabel) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("invalid emotion label %d", int(e))
	}
	return []byte(e.String()), nil
}

func (e *EmotionLabel) UnmarshalText(text []byte) error {
	label, ok := ParseEmotion(string(text))
	if !ok {
		return fmt.Errorf("unknown emotion label %q", string(text))
	}
	*e = label
	return nil
}

// Channel identifies one independent source of emotional signal.
type Channel string

const (
	ChannelVisual     Channel = "visual"
	ChannelAudio      Channel = "audio"
	ChannelBiometric  Channel = "biometric"
	ChannelContextual Channel = "contextual"
	ChannelText       Channel = "text"
)

// AllChannels is the canonical channel order. It doubles as the fusion
// tie-break priority: earlier channels win.
var AllChannels = []Channel{
	ChannelVisual,
	ChannelAudio,
	ChannelBiometric,
	ChannelContextual,
	ChannelText,
}

// Priority returns the tie-break rank of c (lower wins).
func (c Channel) Priority() int {
	for i, ch := range AllChannels {
		if ch == c {
			return i
		}
	}
	return len(AllChannels)
}

// LayerEstimate is one channel's normalized verdict.
type LayerEstimate struct {
	Emotion    EmotionLabel   `json:"emotion"`
	Confidence float64        `json:"confidence"`
	Features   map[string]any `json:"features,omitempty"`
}

// LayerWeights controls how much each channel contributes to fusion.
type LayerWeights struct {
	Visual     float64 `json:"visual"`
	Audio      float64 `json:"audio"`
	Biometric  float64 `json:"biometric"`
	Contextual float64 `json:"contextual"`
	Text       float64 `json:"text"`
}

// DefaultLayerWeights returns the stock channel weights.
func DefaultLayerWeights() LayerWeights {
	return LayerWeights{
		Visual:     0.3,
		Audio:      0.3,
		Biometric:  0.2,
		Contextual: 0.2,
		Text:       0.2,
	}
}

// For returns the raw weight of channel c.
func (w LayerWeights) For(c Channel) float64 {
	switch c {
	case ChannelVisual:
		return w.Visual
	case ChannelAudio:
		return w.Audio
	case ChannelBiometric:
		return w.Biometric
	case ChannelContextual:
		return w.Contextual
	case ChannelText:
		return w.Text
	default:
		return 0
	}
}

// With returns a copy of w with channel c set to v.
func (w LayerWeights) With(c Channel, v float64) LayerWeights {
	switch c {
	case ChannelVisual:
		w.Visual = v
	case ChannelAudio:
		w.Audio = v
	case ChannelBiometric:
		w.Biometric = v
	case ChannelContextual:
		w.Contextual = v
	case ChannelText:
		w.Text = v
	}
	return w
}

// FusedEmotion is the single verdict produced from all present layers.
// Treat it as immutable once returned by the fusion engine.
type FusedEmotion struct {
	Primary           EmotionLabel              `json:"primary"`
	OverallConfidence float64                   `json:"overallConfidence"`
	PerLayer          map[Channel]LayerEstimate `json:"perLayer"`
	Weights           LayerWeights              `json:"weights"`
	UserID            string                    `json:"userId"`
	Timestamp         time.Time                 `json:"timestamp"`
}

// Channels returns the channels that contributed, in canonical order.
func (f FusedEmotion) Channels() []Channel {
	out := make([]Channel, 0, len(f.PerLayer))
	for _, c := range AllChannels {
		if _, ok := f.PerLayer[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
