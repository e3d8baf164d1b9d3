package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eegflow/scriptcast/config"
	"github.com/eegflow/scriptcast/internal/audio"
	"github.com/eegflow/scriptcast/internal/fetch"
	"github.com/eegflow/scriptcast/internal/script"
	"github.com/eegflow/scriptcast/internal/store"
	"github.com/eegflow/scriptcast/internal/telemetry"
	"github.com/eegflow/scriptcast/internal/video"
	"github.com/eegflow/scriptcast/provider"
)

// Source kinds a pipeline run can be driven by.
const (
	SourceWiki   = "wiki"
	SourcePaper  = "paper"
	SourceGithub = "github"
)

const seenURLKey = "scriptcast:seen_urls"

// Pipeline wires the phases end to end: fetch, generate, synthesize,
// assemble. Store and redis are optional; without them runs are not
// recorded and articles are not deduplicated across runs.
type Pipeline struct {
	cfg     *config.Config
	chat    provider.Chat
	gen     *script.Generator
	synth   *audio.Synthesizer
	asm     *video.Assembler
	store   *store.Store
	rdb     *redis.Client
	metrics *telemetry.Metrics
	outDir  string
	logger  *log.Logger
}

func New(cfg *config.Config, chat provider.Chat, speech provider.Speech, st *store.Store, rdb *redis.Client, metrics *telemetry.Metrics, outDir string) *Pipeline {
	if metrics != nil {
		if chat != nil {
			chat = telemetry.InstrumentChat(chat, metrics)
		}
		if speech != nil {
			speech = telemetry.InstrumentSpeech(speech, metrics)
		}
	}
	rewriter := script.NewRewriter(chat, cfg.Generation.RewriteBatchSize)
	return &Pipeline{
		cfg:     cfg,
		chat:    chat,
		gen:     script.NewGenerator(chat, rewriter, cfg.Generation, nil),
		synth:   audio.NewSynthesizer(speech, cfg.Voicevox),
		asm:     video.NewAssembler(cfg.Video),
		store:   st,
		rdb:     rdb,
		metrics: metrics,
		outDir:  outDir,
		logger:  log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags),
	}
}

// RunOnce executes one full pipeline run for the given source kind and
// returns the rendered video path.
func (p *Pipeline) RunOnce(ctx context.Context, source string) (string, error) {
	started := time.Now()
	runID := ""
	if p.store != nil {
		id, err := p.store.CreateRun(ctx, source)
		if err != nil {
			return "", err
		}
		runID = id
	}
	videoPath, err := p.run(ctx, source, runID)
	if p.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		p.metrics.PipelineRuns.WithLabelValues(source, status).Inc()
		p.metrics.PipelineSeconds.Observe(time.Since(started).Seconds())
	}
	if p.store != nil {
		status := store.RunStatusSucceeded
		var errMsg *string
		var vp *string
		if err != nil {
			status = store.RunStatusFailed
			msg := err.Error()
			errMsg = &msg
		} else if videoPath != "" {
			vp = &videoPath
		}
		if ferr := p.store.FinishRun(ctx, runID, status, errMsg, vp); ferr != nil {
			p.logger.Printf("failed to record run %s: %v", runID, ferr)
		}
	}
	return videoPath, err
}

func (p *Pipeline) run(ctx context.Context, source, runID string) (string, error) {
	p.sweepOrphans()

	doc, err := p.produceScript(ctx, source)
	if err != nil {
		return "", fmt.Errorf("%s: %w", source, err)
	}

	workDir, err := p.workDirFor(doc.Title)
	if err != nil {
		return "", err
	}
	audioDir := filepath.Join(workDir, "audio")
	if err := doc.Save(filepath.Join(workDir, "script.json")); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(workDir, "description.txt"), []byte(doc.Description()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write description: %w", err)
	}
	if p.store != nil && runID != "" {
		if err := p.store.SaveScript(ctx, runID, doc.Title, doc); err != nil {
			p.logger.Printf("failed to archive script: %v", err)
		}
	}

	segments, err := p.synth.SynthesizeScript(ctx, doc, audioDir)
	if err != nil {
		return "", err
	}
	if p.metrics != nil {
		p.metrics.LinesSynthesized.Add(float64(len(segments)))
	}

	videoPath := filepath.Join(workDir, "video.mp4")
	if err := p.asm.Assemble(ctx, doc, segments, workDir, videoPath); err != nil {
		return "", err
	}
	return videoPath, nil
}

// sweepOrphans removes temp artifacts left behind by runs that died before
// rendering: any work dir under outDir without a video.mp4 loses its wav
// segments and assembly scratch files. Work dirs get fresh _vN names, so
// only this pass ever reclaims a crashed run's space.
func (p *Pipeline) sweepOrphans() {
	entries, err := os.ReadDir(p.outDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(p.outDir, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, "video.mp4")); err == nil {
			continue
		}
		removed := 0
		for _, target := range []struct{ dir, prefix, ext string }{
			{filepath.Join(dir, "audio"), "", ".wav"},
			{dir, "combined", ".wav"},
			{dir, "concat", ".txt"},
		} {
			n, err := audio.CleanupTempFiles(target.dir, target.prefix, target.ext)
			if err != nil {
				p.logger.Printf("cleanup of %s failed: %v", target.dir, err)
				continue
			}
			removed += n
		}
		if removed > 0 {
			p.logger.Printf("removed %d stale file(s) from %s", removed, dir)
		}
	}
}

// produceScript runs the source-specific fetch and generation phase.
func (p *Pipeline) produceScript(ctx context.Context, source string) (*script.Document, error) {
	switch source {
	case SourceWiki:
		return p.wikiScript(ctx)
	case SourcePaper:
		return p.paperScript(ctx)
	case SourceGithub:
		return p.githubScript(ctx)
	default:
		return nil, fmt.Errorf("unknown source %q", source)
	}
}

func (p *Pipeline) wikiScript(ctx context.Context) (*script.Document, error) {
	fetcher := fetch.NewWikiFetcher(p.cfg.Sources)
	limit := 10
	if p.cfg.Pipeline.TestMode {
		limit = 3
	}
	items, err := fetcher.RecentArticles(ctx, limit)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if p.alreadySeen(ctx, item.URL) {
			continue
		}
		src, err := fetcher.FetchArticle(ctx, item)
		if err != nil {
			p.logger.Printf("skipping %q: %v", item.Title, err)
			continue
		}
		doc, err := p.gen.GenerateFromArticle(ctx, *src)
		if err != nil {
			return nil, err
		}
		p.markSeen(ctx, item.URL)
		return doc, nil
	}
	return nil, fmt.Errorf("no unseen article available")
}

func (p *Pipeline) paperScript(ctx context.Context) (*script.Document, error) {
	fetcher := fetch.NewPaperFetcher(p.cfg.Sources)
	papers, err := fetcher.Recent(ctx)
	if err != nil {
		return nil, err
	}
	if len(papers) == 0 {
		return nil, fmt.Errorf("no papers for query %q", p.cfg.Sources.PaperQuery)
	}
	if p.cfg.Pipeline.TestMode && len(papers) > 1 {
		papers = papers[:1]
	}
	return p.gen.GenerateDigest(ctx, "最新論文紹介",
		fetch.DigestText(papers), fetch.PaperReferences(papers), time.Now())
}

func (p *Pipeline) githubScript(ctx context.Context) (*script.Document, error) {
	fetcher := fetch.NewGithubFetcher(p.cfg.Sources)
	activity, err := fetcher.RecentActivity(ctx, time.Now().AddDate(0, 0, -1))
	if err != nil {
		return nil, err
	}
	if activity.Empty() {
		return nil, fmt.Errorf("no recent activity in %s", p.cfg.Sources.GithubRepo)
	}
	doc, err := p.gen.GenerateDigest(ctx, "開発ダイジェスト",
		fetch.ActivityText(activity), fetch.ActivityReferences(activity), time.Now())
	if err != nil {
		return nil, err
	}
	doc.Repo = activity.Repo
	return doc, nil
}

func (p *Pipeline) alreadySeen(ctx context.Context, url string) bool {
	if p.rdb == nil || url == "" {
		return false
	}
	seen, err := p.rdb.SIsMember(ctx, seenURLKey, url).Result()
	if err != nil {
		return false
	}
	return seen
}

func (p *Pipeline) markSeen(ctx context.Context, url string) {
	if p.rdb == nil || url == "" {
		return
	}
	if err := p.rdb.SAdd(ctx, seenURLKey, url).Err(); err != nil {
		p.logger.Printf("failed to mark %s seen: %v", url, err)
	}
}

// workDirFor creates a fresh output directory for the script title,
// appending _v2, _v3, ... when earlier runs already used the name.
func (p *Pipeline) workDirFor(title string) (string, error) {
	base := filepath.Join(p.outDir, script.SafeFileName(title))
	dir, err := uniquePath(base)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return dir, nil
}

func uniquePath(base string) (string, error) {
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return base, nil
	}
	for n := 2; n < 1000; n++ {
		candidate := fmt.Sprintf("%s_v%d", base, n)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("too many runs named %s", filepath.Base(base))
}
