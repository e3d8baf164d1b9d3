package video

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/eegflow/scriptcast/config"
	"github.com/eegflow/scriptcast/internal/audio"
	"github.com/eegflow/scriptcast/internal/script"
)

// Assembler renders the final video: concatenated narration audio over a
// plain background, with a caption track aligned to the audio timeline.
type Assembler struct {
	cfg    config.VideoConfig
	logger *log.Logger
}

func NewAssembler(cfg config.VideoConfig) *Assembler {
	return &Assembler{
		cfg:    cfg,
		logger: log.New(log.Writer(), "[VIDEO] ", log.LstdFlags),
	}
}

// LoadSegments rebuilds the segment list from the wav files in dir, sorted
// by their numeric name prefix. Used when assembly runs on a directory
// produced by an earlier run.
func LoadSegments(dir string) ([]audio.Segment, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.wav"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	segments := make([]audio.Segment, 0, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)
		sep := strings.IndexByte(name, '_')
		if sep < 1 {
			continue
		}
		index, err := strconv.Atoi(name[:sep])
		if err != nil {
			continue
		}
		duration, err := audio.WavDuration(path)
		if err != nil {
			return nil, fmt.Errorf("unreadable segment %s: %w", name, err)
		}
		segments = append(segments, audio.Segment{Index: index, Path: path, Duration: duration})
	}
	// Numeric order, not name order: the zero padding runs out at 1000 lines.
	sort.Slice(segments, func(i, j int) bool { return segments[i].Index < segments[j].Index })
	return segments, nil
}

// Assemble produces outPath from the script and its synthesized segments.
// Captions require a strict one-to-one pairing between dialogue lines and
// segments; on a mismatch the behavior follows RequireCaptions: abort, or
// degrade to a caption-less render.
func (a *Assembler) Assemble(ctx context.Context, doc *script.Document, segments []audio.Segment, workDir, outPath string) error {
	if len(segments) == 0 {
		return fmt.Errorf("no audio segments to assemble")
	}
	combined := filepath.Join(workDir, "combined.wav")
	if err := a.concatAudio(ctx, segments, workDir, combined); err != nil {
		return fmt.Errorf("audio concat failed: %w", err)
	}

	srtPath := ""
	intervals, err := a.buildCaptionTimeline(doc, segments)
	if err != nil {
		if a.cfg.RequireCaptions {
			return err
		}
		a.logger.Printf("rendering without captions: %v", err)
	} else {
		srtPath = filepath.Join(workDir, "captions.srt")
		if err := WriteSRT(srtPath, intervals, a.cfg.CaptionWidth); err != nil {
			return err
		}
	}
	if err := a.render(ctx, combined, srtPath, outPath); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	a.logger.Printf("wrote %s", outPath)
	return nil
}

// buildCaptionTimeline pairs each segment with its dialogue line. Segment
// indices must be exactly 0..n-1 over the full dialogue; a skipped line
// upstream surfaces here as a sync error.
func (a *Assembler) buildCaptionTimeline(doc *script.Document, segments []audio.Segment) ([]Interval, error) {
	if len(segments) != len(doc.Dialogue) {
		return nil, &SyncError{AudioCount: len(segments), CaptionCount: len(doc.Dialogue)}
	}
	durations := make([]float64, len(segments))
	captions := make([]string, len(segments))
	for i, seg := range segments {
		if seg.Index != i {
			return nil, &SyncError{
				AudioCount:   len(segments),
				CaptionCount: len(doc.Dialogue),
				Detail:       fmt.Sprintf("segment %d carries index %d", i, seg.Index),
			}
		}
		durations[i] = seg.Duration
		captions[i] = doc.Dialogue[i].Text
	}
	return BuildTimeline(durations, captions)
}

func (a *Assembler) concatAudio(ctx context.Context, segments []audio.Segment, workDir, outPath string) error {
	var list strings.Builder
	for _, seg := range segments {
		abs, err := filepath.Abs(seg.Path)
		if err != nil {
			return err
		}
		fmt.Fprintf(&list, "file '%s'\n", abs)
	}
	listPath := filepath.Join(workDir, "concat.txt")
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}
	return a.runFFmpeg(ctx, "-y", "-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", outPath)
}

func (a *Assembler) render(ctx context.Context, audioPath, srtPath, outPath string) error {
	size := fmt.Sprintf("%dx%d", a.cfg.Width, a.cfg.Height)
	args := []string{
		"-y",
		"-f", "lavfi", "-i", "color=c=black:s=" + size,
		"-i", audioPath,
	}
	if srtPath != "" {
		filter := "subtitles=" + srtPath
		if a.cfg.FontPath != "" {
			filter += ":fontsdir=" + filepath.Dir(a.cfg.FontPath)
		}
		args = append(args, "-vf", filter)
	}
	args = append(args,
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-shortest",
		outPath,
	)
	return a.runFFmpeg(ctx, args...)
}

func (a *Assembler) runFFmpeg(ctx context.Context, args ...string) error {
	bin := a.cfg.FFmpegPath
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", bin, strings.Join(args, " "), err, tail(string(out), 400))
	}
	return nil
}

// tail keeps error output readable when ffmpeg dumps its full log.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
