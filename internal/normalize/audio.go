package normalize

import (
	"strings"
	"unicode"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
)

const keywordVote = 0.8

var keywordLexicon = []struct {
	emotion domain.EmotionLabel
	words   []string
}{
	{domain.EmotionHappy, []string{"happy", "great", "glad", "love", "awesome", "wonderful", "good"}},
	{domain.EmotionSad, []string{"sad", "lonely", "down", "depressed", "miss", "cry", "tired"}},
	{domain.EmotionAngry, []string{"angry", "furious", "hate", "mad", "annoyed"}},
	{domain.EmotionAnxious, []string{"worried", "anxious", "nervous", "scared", "afraid", "stress", "stressed"}},
	{domain.EmotionCalm, []string{"calm", "relaxed", "peaceful", "fine"}},
	{domain.EmotionExcited, []string{"excited", "amazing", "wow", "cant wait"}},
	{domain.EmotionFrustrated, []string{"frustrated", "stuck", "ugh", "annoying", "again"}},
}

// Audio reads prosody: pitch, loudness and pace, plus emotional keywords in
// the transcript.
func Audio(in *domain.AudioInput) *domain.LayerEstimate {
	if in == nil {
		return nil
	}
	ev := newEvidence()

	if pitch, ok := inRange(in.Pitch, 50, 500); ok {
		ev.observe("pitch", pitch)
		switch {
		case pitch > 220:
			ev.vote(domain.EmotionExcited, 0.3)
			ev.vote(domain.EmotionAnxious, 0.3)
		case pitch < 120:
			ev.vote(domain.EmotionSad, 0.4)
			ev.vote(domain.EmotionCalm, 0.2)
		}
	}

	if volume, ok := inRange(in.Volume, 0, 1); ok {
		ev.observe("volume", volume)
		switch {
		case volume > 0.75:
			ev.vote(domain.EmotionAngry, 0.5)
			ev.vote(domain.EmotionExcited, 0.3)
		case volume < 0.25:
			ev.vote(domain.EmotionSad, 0.5)
			ev.vote(domain.EmotionCalm, 0.2)
		}
	}

	if rate, ok := inRange(in.SpeechRate, 1, 400); ok {
		ev.observe("speech_rate", rate)
		switch {
		case rate > 180:
			ev.vote(domain.EmotionAnxious, 0.4)
			ev.vote(domain.EmotionExcited, 0.3)
			ev.vote(domain.EmotionAngry, 0.2)
		case rate < 100:
			ev.vote(domain.EmotionSad, 0.4)
			ev.vote(domain.EmotionCalm, 0.4)
		}
	}

	if text := strings.TrimSpace(in.Transcript); text != "" {
		ev.observe("transcript_words", float64(len(strings.Fields(text))))
		if label, ok := keywordEmotion(text); ok {
			ev.features["keyword_emotion"] = label.String()
			ev.vote(label, keywordVote)
		}
	}

	return ev.estimate()
}

// keywordEmotion returns the lexicon emotion with the most hits. Ties go to
// the earlier lexicon entry.
func keywordEmotion(text string) (domain.EmotionLabel, bool) {
	normalized := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, text)
	padded := " " + strings.Join(strings.Fields(normalized), " ") + " "

	best := domain.EmotionNeutral
	bestHits := 0
	for _, entry := range keywordLexicon {
		hits := 0
		for _, w := range entry.words {
			hits += strings.Count(padded, " "+w+" ")
		}
		if hits > bestHits {
			best, bestHits = entry.emotion, hits
		}
	}
	return best, bestHits > 0
}
