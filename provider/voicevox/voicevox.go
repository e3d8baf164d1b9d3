package voicevox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/eegflow/scriptcast/config"
	"github.com/eegflow/scriptcast/provider"
)

// Client talks to a VOICEVOX engine. Synthesis is the engine's two-step
// protocol: build an audio query for the text, then synthesize it. The
// speaker table (name -> style id) is resolved once per run from /speakers
// and never invalidated.
type Client struct {
	cfg        config.VoicevoxConfig
	httpClient *http.Client
	logger     *log.Logger

	mu       sync.Mutex
	speakers map[string]int
}

// New creates a new VOICEVOX client.
func New(cfg config.VoicevoxConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log.New(log.Writer(), "[VOICEVOX] ", log.LstdFlags),
	}
}

// Speakers resolves the speaker table from the engine, preferring each
// speaker's "ノーマル" style and falling back to its first style.
func (c *Client) Speakers(ctx context.Context) (map[string]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.speakers != nil {
		return c.speakers, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/speakers", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list speakers: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speakers endpoint returned status: %d", resp.StatusCode)
	}

	var listing []struct {
		Name   string `json:"name"`
		Styles []struct {
			Name string `json:"name"`
			ID   int    `json:"id"`
		} `json:"styles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("failed to parse speakers: %w", err)
	}

	table := make(map[string]int, len(listing))
	for _, sp := range listing {
		if len(sp.Styles) == 0 {
			continue
		}
		styleID := sp.Styles[0].ID
		for _, st := range sp.Styles {
			if st.Name == "ノーマル" {
				styleID = st.ID
				break
			}
		}
		table[sp.Name] = styleID
	}
	c.speakers = table
	c.logger.Printf("resolved %d speakers", len(table))
	return table, nil
}

// styleFor maps a speaker name to a style id, falling back to the
// configured default when the name is unknown or the table is unavailable.
func (c *Client) styleFor(ctx context.Context, speaker string) int {
	table, err := c.Speakers(ctx)
	if err != nil {
		c.logger.Printf("speaker table unavailable, using default style %d: %v", c.cfg.DefaultStyleID, err)
		return c.cfg.DefaultStyleID
	}
	if id, ok := table[speaker]; ok {
		return id
	}
	return c.cfg.DefaultStyleID
}

// Synthesize converts one utterance to WAV bytes.
func (c *Client) Synthesize(ctx context.Context, text, speaker string) ([]byte, error) {
	styleID := c.styleFor(ctx, speaker)

	query, err := c.audioQuery(ctx, text, styleID)
	if err != nil {
		return nil, fmt.Errorf("audio query for %s: %w", speaker, err)
	}
	wav, err := c.synthesis(ctx, query, styleID)
	if err != nil {
		return nil, fmt.Errorf("synthesis for %s: %w", speaker, err)
	}
	return wav, nil
}

func (c *Client) audioQuery(ctx context.Context, text string, styleID int) ([]byte, error) {
	params := url.Values{}
	params.Set("text", text)
	params.Set("speaker", strconv.Itoa(styleID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/audio_query?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audio_query returned status: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) synthesis(ctx context.Context, query []byte, styleID int) ([]byte, error) {
	params := url.Values{}
	params.Set("speaker", strconv.Itoa(styleID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/synthesis?"+params.Encode(), bytes.NewReader(query))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("synthesis returned status: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

var _ provider.Speech = (*Client)(nil)
