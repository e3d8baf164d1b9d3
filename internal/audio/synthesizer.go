package audio

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/eegflow/scriptcast/config"
	"github.com/eegflow/scriptcast/internal/script"
	"github.com/eegflow/scriptcast/provider"
)

// Segment is one synthesized utterance on disk. Index is the position of
// its dialogue line in the script; the assembly phase pairs audio and
// captions by this index.
type Segment struct {
	Index    int
	Path     string
	Duration float64
}

// Synthesizer turns a script's dialogue into numbered wav files.
type Synthesizer struct {
	speech provider.Speech
	cfg    config.VoicevoxConfig
	logger *log.Logger
}

func NewSynthesizer(speech provider.Speech, cfg config.VoicevoxConfig) *Synthesizer {
	return &Synthesizer{
		speech: speech,
		cfg:    cfg,
		logger: log.New(log.Writer(), "[AUDIO] ", log.LstdFlags),
	}
}

// SynthesizeScript renders every dialogue line into dir as
// NNN_speaker.wav, in script order. Reading annotations are stripped
// before synthesis. A line that fails to synthesize is logged and skipped;
// the assembly phase decides whether the resulting gap is fatal. Returns
// an error only when no line at all could be rendered.
func (s *Synthesizer) SynthesizeScript(ctx context.Context, doc *script.Document, dir string) ([]Segment, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio dir: %w", err)
	}
	segments := make([]Segment, 0, len(doc.Dialogue))
	for i, line := range doc.Dialogue {
		if i > 0 && s.cfg.RequestDelay > 0 {
			select {
			case <-ctx.Done():
				return segments, ctx.Err()
			case <-time.After(s.cfg.RequestDelay):
			}
		}
		text := script.StripAnnotations(line.Text)
		if text == "" {
			s.logger.Printf("line %d empty after annotation strip, skipping", i)
			continue
		}
		wav, err := s.speech.Synthesize(ctx, text, line.Speaker)
		if err != nil {
			s.logger.Printf("line %d (%s) failed: %v", i, line.Speaker, err)
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%03d_%s.wav", i, script.SafeFileName(line.Speaker)))
		if err := os.WriteFile(path, wav, 0o644); err != nil {
			return segments, fmt.Errorf("failed to write %s: %w", path, err)
		}
		duration, err := wavDurationBytes(wav)
		if err != nil {
			s.logger.Printf("line %d: unreadable wav header: %v", i, err)
			continue
		}
		segments = append(segments, Segment{Index: i, Path: path, Duration: duration})
	}
	if len(doc.Dialogue) > 0 && len(segments) == 0 {
		return nil, fmt.Errorf("no dialogue line could be synthesized")
	}
	s.logger.Printf("synthesized %d/%d lines into %s", len(segments), len(doc.Dialogue), dir)
	return segments, nil
}
