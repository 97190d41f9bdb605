package normalize

import "github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"

// Biometric reads physiological arousal. Elevated heart rate, suppressed
// HRV and high skin conductance point to stress; the opposite to calm.
func Biometric(in *domain.BiometricInput) *domain.LayerEstimate {
	if in == nil {
		return nil
	}
	ev := newEvidence()

	if hr, ok := inRange(in.HeartRate, 30, 220); ok {
		ev.observe("heart_rate", hr)
		switch {
		case hr > 100:
			ev.vote(domain.EmotionAnxious, 0.4)
			ev.vote(domain.EmotionAngry, 0.3)
			ev.vote(domain.EmotionExcited, 0.3)
		case hr > 85:
			ev.vote(domain.EmotionExcited, 0.3)
			ev.vote(domain.EmotionAnxious, 0.2)
		case hr < 60:
			ev.vote(domain.EmotionCalm, 0.5)
		}
	}

	if hrv, ok := inRange(in.HRV, 5, 250); ok {
		ev.observe("hrv", hrv)
		switch {
		case hrv < 30:
			ev.vote(domain.EmotionAnxious, 0.4)
			ev.vote(domain.EmotionFrustrated, 0.3)
		case hrv > 70:
			ev.vote(domain.EmotionCalm, 0.6)
		}
	}

	if sc, ok := inRange(in.SkinConductivity, 0, 50); ok {
		ev.observe("skin_conductivity", sc)
		switch {
		case sc > 10:
			ev.vote(domain.EmotionAnxious, 0.4)
			ev.vote(domain.EmotionExcited, 0.3)
		case sc < 2:
			ev.vote(domain.EmotionCalm, 0.4)
		}
	}

	if temp, ok := inRange(in.Temperature, 30, 43); ok {
		ev.observe("temperature", temp)
		switch {
		case temp > 37.5:
			ev.vote(domain.EmotionAngry, 0.3)
		case temp < 35.5:
			ev.vote(domain.EmotionAnxious, 0.2)
			ev.vote(domain.EmotionSad, 0.2)
		}
	}

	return ev.estimate()
}
