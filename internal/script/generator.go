package script

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/eegflow/scriptcast/config"
	"github.com/eegflow/scriptcast/internal/textproc"
	"github.com/eegflow/scriptcast/provider"
)

// Generator drives script production: chunked generation over long
// articles, single-shot generation for digests, then cleaning, term
// rewriting, and utterance splitting on everything that comes back.
type Generator struct {
	chat     provider.Chat
	rewriter *Rewriter
	cfg      config.GenerationConfig
	speakers []string
	logger   *log.Logger
}

func NewGenerator(chat provider.Chat, rewriter *Rewriter, cfg config.GenerationConfig, speakers []string) *Generator {
	if len(speakers) == 0 {
		speakers = []string{"ずんだもん", "四国めたん"}
	}
	return &Generator{
		chat:     chat,
		rewriter: rewriter,
		cfg:      cfg,
		speakers: speakers,
		logger:   log.New(log.Writer(), "[GENERATE] ", log.LstdFlags),
	}
}

const dialogueFormatPrompt = `出力は次のJSONオブジェクトのみ。前後に説明文やコードフェンスを付けないでください。
{"title": "動画タイトル", "dialogue": [{"speaker": "話者名", "text": "セリフ"}, ...]}`

func (g *Generator) systemPrompt() string {
	return fmt.Sprintf(`あなたは解説動画の台本作家です。%sと%sの2人が掛け合いで話す、親しみやすい日本語の対話台本を書いてください。
- %sは明るく元気な聞き役、%sは落ち着いた解説役です。
- 1つのセリフは短く、話し言葉で書いてください。
- 専門用語は噛み砕いて説明してください。
%s`, g.speakers[0], g.speakers[1], g.speakers[0], g.speakers[1], dialogueFormatPrompt)
}

func chunkInstruction(role ChunkRole, title string) string {
	switch role {
	case RoleIntro:
		return fmt.Sprintf("これは「%s」についての動画の冒頭部分です。挨拶とテーマの紹介から始めてください。", title)
	case RoleOutro:
		return fmt.Sprintf("これは「%s」についての動画の最終部分です。内容をまとめて、締めの挨拶で終えてください。", title)
	default:
		return fmt.Sprintf("これは「%s」についての動画の途中部分です。挨拶や導入は入れず、本文の解説を続けてください。", title)
	}
}

// GenerateFromArticle produces a script from a long source document by
// splitting it into chunks and generating dialogue for each in order. The
// title comes from the first chunk's reply; later titles are ignored.
func (g *Generator) GenerateFromArticle(ctx context.Context, src SourceDocument) (*Document, error) {
	pieces := textproc.ChunkSource(src.Body, g.cfg.MaxChunkChars)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("source %q has no usable text", src.Title)
	}
	chunks := BuildChunks(pieces)
	g.logger.Printf("generating script for %q in %d chunk(s)", src.Title, len(chunks))

	doc := &Document{SourceURL: src.URL}
	for _, chunk := range chunks {
		user := chunkInstruction(chunk.Role, src.Title) + "\n\n題材:\n" + chunk.Text
		reply, err := g.generateWithRetry(ctx, user)
		if err != nil {
			return nil, fmt.Errorf("chunk %d failed: %w", chunk.Ordinal, err)
		}
		if doc.Title == "" && reply.Title != "" {
			doc.Title = reply.Title
		}
		doc.Dialogue = append(doc.Dialogue, CleanDialogue(reply.Dialogue, g.speakers[0])...)
	}
	if doc.Title == "" {
		doc.Title = src.Title
	}
	g.finish(ctx, doc)
	return doc, nil
}

// GenerateDigest produces a script from pre-formatted digest text in a
// single request, carrying references and the broadcast date into the
// document.
func (g *Generator) GenerateDigest(ctx context.Context, topic, body string, refs []Reference, date time.Time) (*Document, error) {
	user := fmt.Sprintf("今日のテーマは「%s」です。以下の内容を紹介する台本を書いてください。\n\n%s", topic, body)
	reply, err := g.generateWithRetry(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("digest generation failed: %w", err)
	}
	doc := &Document{
		Title:      reply.Title,
		Dialogue:   CleanDialogue(reply.Dialogue, g.speakers[0]),
		References: refs,
		Date:       FormatDate(date),
	}
	if doc.Title == "" {
		doc.Title = topic
	}
	g.finish(ctx, doc)
	return doc, nil
}

// generateWithRetry asks the model for a structured reply, retrying a
// bounded number of times. A transport error retries as-is; an extraction
// error appends a corrective reminder so the next attempt sees what went
// wrong with the last one.
func (g *Generator) generateWithRetry(ctx context.Context, user string) (*ReplyObject, error) {
	var lastErr error
	prompt := user
	for attempt := 1; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			g.logger.Printf("attempt %d/%d: %v", attempt, g.cfg.MaxRetries, lastErr)
		}
		raw, err := g.chat.ChatCompletion(ctx, provider.ChatRequest{
			System:      g.systemPrompt(),
			User:        prompt,
			Temperature: g.cfg.Temperature,
			MaxTokens:   g.cfg.MaxTokens,
		})
		if err != nil {
			lastErr = err
			continue
		}
		reply, err := ExtractReply(raw)
		if err != nil {
			lastErr = err
			var extractErr *ExtractionError
			if errors.As(err, &extractErr) {
				prompt = user + "\n\n前回の出力はJSONとして解釈できませんでした。" + dialogueFormatPrompt
			}
			continue
		}
		if len(reply.Dialogue) == 0 {
			lastErr = &ExtractionError{Reason: ReasonMalformed, Detail: "empty dialogue"}
			continue
		}
		return reply, nil
	}
	return nil, fmt.Errorf("no usable reply after %d attempts: %w", g.cfg.MaxRetries, lastErr)
}

// finish applies the post-generation passes: term rewriting, then splitting
// of utterances that exceed the display bound. The splitter treats reading
// annotations as atomic, so the bound holds on the spoken text even after
// readings lengthen a line; each resulting line keeps its source line's
// speaker.
func (g *Generator) finish(ctx context.Context, doc *Document) {
	out := make([]DialogueLine, 0, len(doc.Dialogue))
	for _, line := range doc.Dialogue {
		rewritten := g.rewriter.Rewrite(ctx, line.Text)
		for _, piece := range textproc.SplitUtterance(rewritten, g.cfg.MaxUtteranceChars) {
			out = append(out, DialogueLine{Speaker: line.Speaker, Text: piece})
		}
	}
	doc.Dialogue = out
}

// FormatDate renders a date the way the opening line reads it out.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d年%d月%d日", t.Year(), int(t.Month()), t.Day())
}

// SafeFileName flattens a title into something usable as a directory or
// file name component.
func SafeFileName(title string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_", "　", "_",
	)
	name := replacer.Replace(strings.TrimSpace(title))
	if name == "" {
		name = "untitled"
	}
	const maxLen = 80
	runes := []rune(name)
	if len(runes) > maxLen {
		name = string(runes[:maxLen])
	}
	return name
}
