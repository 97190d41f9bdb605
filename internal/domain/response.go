package domain

// ResponseAction tags the intent of an adaptive response.
type ResponseAction string

const (
	ResponseOfferSupport   ResponseAction = "offer_support"
	ResponseGuideBreathing ResponseAction = "guide_breathing"
	ResponseDeescalate     ResponseAction = "deescalate"
	ResponseCelebrate      ResponseAction = "celebrate"
	ResponseChannelEnergy  ResponseAction = "channel_energy"
	ResponseMaintainCalm   ResponseAction = "maintain_calm"
	ResponseSuggestBreak   ResponseAction = "suggest_break"
	ResponseCheckIn        ResponseAction = "check_in"
)

// Pattern says whether the emotion continues a streak or is new.
type Pattern string

const (
	PatternNew      Pattern = "new"
	PatternRepeated Pattern = "repeated"
)

// Response is the message the pipeline sends back when the gate opens.
type Response struct {
	Emotion EmotionLabel   `json:"emotion"`
	Message string         `json:"message"`
	Action  ResponseAction `json:"action"`
	Pattern Pattern        `json:"pattern"`
	Variant int            `json:"variant"`
}

// GateReason explains a response gate decision.
type GateReason string

const (
	ReasonFirstInteraction     GateReason = "first_interaction"
	ReasonEmotionChange        GateReason = "emotion_change"
	ReasonStrongNegative       GateReason = "strong_negative_emotion"
	ReasonStrongPositive       GateReason = "strong_positive_emotion"
	ReasonPeriodicCheck        GateReason = "periodic_check"
	ReasonPeriodicNeutralCheck GateReason = "periodic_neutral_check"
	ReasonNoTrigger            GateReason = "no_trigger"
)

// GateDecision is the output of the response gate.
type GateDecision struct {
	Respond bool       `json:"respond"`
	Reason  GateReason `json:"reason"`
}
