package speechkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/yandex-cloud/go-genproto/yandex/cloud/ai/stt/v3"
)

const sampleRate = 16000

// Hypothesis is the top alternative of a recognition update.
type Hypothesis struct {
	Text  string
	Final bool
}

type Handle struct {
	client    stt.Recognizer_RecognizeStreamingClient
	cancel    context.CancelFunc
	languages []string
}

func (h *Handle) Send(content []byte) error {
	var req stt.StreamingRequest
	req.SetChunk(&stt.AudioChunk{
		Data: content,
	})

	return h.client.Send(&req)
}

func (h *Handle) SendConfig() error {
	var audioFormatOpts stt.AudioFormatOptions
	audioFormatOpts.SetRawAudio(&stt.RawAudio{
		AudioEncoding:     stt.RawAudio_LINEAR16_PCM,
		SampleRateHertz:   sampleRate,
		AudioChannelCount: 1,
	})

	var eouClassifier stt.EouClassifierOptions
	eouClassifier.SetDefaultClassifier(&stt.DefaultEouClassifier{
		Type:                       stt.DefaultEouClassifier_HIGH,
		MaxPauseBetweenWordsHintMs: 800,
	})

	var req stt.StreamingRequest
	req.SetSessionOptions(&stt.StreamingOptions{
		RecognitionModel: &stt.RecognitionModelOptions{
			Model:       "general",
			AudioFormat: &audioFormatOpts,
			LanguageRestriction: &stt.LanguageRestrictionOptions{
				RestrictionType: stt.LanguageRestrictionOptions_WHITELIST,
				LanguageCode:    h.languages,
			},
		},
		EouClassifier: &eouClassifier,
	})

	return h.client.Send(&req)
}

// Recv waits for the next partial or final update. Other updates yield an
// empty Hypothesis.
func (h *Handle) Recv() (Hypothesis, error) {
	res, err := h.client.Recv()
	if err != nil {
		return Hypothesis{}, fmt.Errorf("failed to receive stt: %w", err)
	}

	if final := res.GetFinal(); final != nil {
		return Hypothesis{Text: topAlternative(final), Final: true}, nil
	}

	if partial := res.GetPartial(); partial != nil {
		return Hypothesis{Text: topAlternative(partial)}, nil
	}

	return Hypothesis{}, nil
}

func (h *Handle) Close() error {
	h.cancel()
	return nil
}

func topAlternative(update *stt.AlternativeUpdate) string {
	for _, alt := range update.GetAlternatives() {
		if text := strings.TrimSpace(alt.GetText()); text != "" {
			return text
		}
	}

	return ""
}
