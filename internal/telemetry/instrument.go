package telemetry

import (
	"context"

	"github.com/eegflow/scriptcast/provider"
)

type instrumentedChat struct {
	inner provider.Chat
	m     *Metrics
}

// InstrumentChat counts every chat completion by outcome.
func InstrumentChat(inner provider.Chat, m *Metrics) provider.Chat {
	return &instrumentedChat{inner: inner, m: m}
}

func (c *instrumentedChat) ChatCompletion(ctx context.Context, req provider.ChatRequest) (string, error) {
	reply, err := c.inner.ChatCompletion(ctx, req)
	c.m.ModelRequests.WithLabelValues(outcome(err)).Inc()
	return reply, err
}

type instrumentedSpeech struct {
	inner provider.Speech
	m     *Metrics
}

// InstrumentSpeech counts every synthesis request by outcome.
func InstrumentSpeech(inner provider.Speech, m *Metrics) provider.Speech {
	return &instrumentedSpeech{inner: inner, m: m}
}

func (s *instrumentedSpeech) Synthesize(ctx context.Context, text, speaker string) ([]byte, error) {
	wav, err := s.inner.Synthesize(ctx, text, speaker)
	s.m.SpeechRequests.WithLabelValues(outcome(err)).Inc()
	return wav, err
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
