package domain

// VisualInput carries facial expression analysis results.
type VisualInput struct {
	Emotion      string   `json:"emotion,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
	FaceDetected *bool    `json:"faceDetected,omitempty"`
}

// AudioInput carries voice prosody measurements and an optional transcript.
type AudioInput struct {
	Transcript string   `json:"transcript,omitempty"`
	Pitch      *float64 `json:"pitch,omitempty"`      // Hz
	Volume     *float64 `json:"volume,omitempty"`     // 0..1
	SpeechRate *float64 `json:"speechRate,omitempty"` // words per minute
}

// BiometricInput carries wearable sensor readings.
type BiometricInput struct {
	HeartRate        *float64 `json:"heartRate,omitempty"`        // bpm
	HRV              *float64 `json:"hrv,omitempty"`              // ms
	SkinConductivity *float64 `json:"skinConductivity,omitempty"` // µS
	Temperature      *float64 `json:"temperature,omitempty"`      // °C
}

// ContextualInput describes what the user is doing.
type ContextualInput struct {
	ActivityType      string   `json:"activityType,omitempty"`
	ActivityIntensity *float64 `json:"activityIntensity,omitempty"` // 0..1
	TaskIntensity     *float64 `json:"taskIntensity,omitempty"`     // 0..1
	TaskComplexity    *float64 `json:"taskComplexity,omitempty"`    // 0..1
	TimeOfDay         string   `json:"timeOfDay,omitempty"`
}

// TextInput carries free text for the classifier.
type TextInput struct {
	Text string `json:"text,omitempty"`
}

// SignalRequest is one multi-channel observation for a user. Every channel
// is optional and evaluated independently.
type SignalRequest struct {
	UserID     string           `json:"userId"`
	Visual     *VisualInput     `json:"visual,omitempty"`
	Audio      *AudioInput      `json:"audio,omitempty"`
	Biometric  *BiometricInput  `json:"biometric,omitempty"`
	Contextual *ContextualInput `json:"contextual,omitempty"`
	Text       *TextInput       `json:"text,omitempty"`
	Weights    *LayerWeights    `json:"weights,omitempty"`
}

// Channels returns the channels supplied on the request, in canonical order.
func (r SignalRequest) Channels() []Channel {
	var out []Channel
	if r.Visual != nil {
		out = append(out, ChannelVisual)
	}
	if r.Audio != nil {
		out = append(out, ChannelAudio)
	}
	if r.Biometric != nil {
		out = append(out, ChannelBiometric)
	}
	if r.Contextual != nil {
		out = append(out, ChannelContextual)
	}
	if r.Text != nil {
		out = append(out, ChannelText)
	}
	return out
}

// ProcessResult is what one pipeline run produced.
type ProcessResult struct {
	FusedEmotion FusedEmotion    `json:"fusedEmotion"`
	Response     *Response       `json:"response,omitempty"`
	Actions      []ActionOutcome `json:"actions"`
	Responded    bool            `json:"responded"`
	Reason       GateReason      `json:"reason"`
}
