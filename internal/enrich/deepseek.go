package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Leejhua/concert-calendar/internal/config"
	"github.com/Leejhua/concert-calendar/internal/util"
)

const classifyPrompt = `You are a music data expert. Extract the main artist/performer from the following concert titles.
Return ONLY a valid JSON object where keys are the EXACT titles provided and values are objects with:
- "artist": string (the artist name, or "Unknown")
- "is_tribute": boolean (true if it's a tribute, memorial, imitation, "Candlelight", or fan meeting/Gala where the original artist is NOT performing)
- "is_famous": boolean (true if the artist is a well-known professional singer/band; false for amateur, obscure, local performers, or non-concert events like fan meetings)

Rules:
1. STRICTLY identify tribute acts and non-concert events. For these, set "is_tribute": true and "artist": "Unknown".
2. If it's a music festival or multi-artist event, set "artist": "群星".
3. If the performer is not a famous commercial artist, set "is_famous": false.
4. Return JSON ONLY. No markdown.

Titles:
`

// DeepSeekClassifier talks to a chat-completions endpoint in JSON-object
// mode and parses the returned map of title -> classification.
type DeepSeekClassifier struct {
	base   string
	apiKey string
	model  string
	client *http.Client
}

func NewDeepSeekClassifier(cfg config.EnrichConfig) *DeepSeekClassifier {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.deepseek.com"
	}
	mdl := cfg.Model
	if mdl == "" {
		mdl = "deepseek-chat"
	}
	to := cfg.Timeout
	if to == 0 {
		to = 60 * time.Second
	}
	return &DeepSeekClassifier{
		base:   base,
		apiKey: cfg.APIKey,
		model:  mdl,
		client: util.NewHTTPClient(to),
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (d *DeepSeekClassifier) Classify(ctx context.Context, titles []string) (map[string]Classification, error) {
	titleJSON, err := json.Marshal(titles)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(map[string]any{
		"model": d.model,
		"messages": []map[string]string{
			{"role": "system", "content": "You are a helpful assistant that extracts artist names and filters low-value events."},
			{"role": "user", "content": classifyPrompt + string(titleJSON)},
		},
		"stream":          false,
		"response_format": map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = util.Retry(ctx, 2, 500*time.Millisecond, 5*time.Second, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.base+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
		resp, err := d.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return fmt.Errorf("classifier %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
		raw, err = io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		return err
	})
	if err != nil {
		return nil, err
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, fmt.Errorf("classifier response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("classifier response: no choices")
	}
	var verdicts map[string]Classification
	if err := json.Unmarshal([]byte(cr.Choices[0].Message.Content), &verdicts); err != nil {
		return nil, fmt.Errorf("classifier content: %w", err)
	}
	return verdicts, nil
}
