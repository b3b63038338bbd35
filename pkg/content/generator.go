package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/smartreview/platform/pkg/common/logger"
)

const reviewPrompt = `You are an affiliate review writer.
Return ONLY valid JSON.
Write practical, product-specific content.
Do not copy listing bullets verbatim.
Schema:
{
  "title": "string",
  "excerpt": "1-2 sentence summary",
  "listingHighlights": ["4-6 rewritten highlights; do NOT copy source bullets verbatim"],
  "pros": ["5 items"],
  "cons": ["3 items"],
  "bestFor": ["3 items"],
  "notFor": ["2 items"],
  "bodyParagraphs": ["3-5 short paragraphs"]
}`

const strictRetryPrefix = "IMPORTANT: RETURN STRICT JSON ONLY, NO MARKDOWN, NO EXTRA TEXT.\n"

// GeneratorInput is what the model sees about a product.
type GeneratorInput struct {
	Category    string   `json:"category"`
	ASIN        string   `json:"asin"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Bullets     []string `json:"bullets"`
}

// GenerationMeta carries bookkeeping about one model call for the audit log.
type GenerationMeta struct {
	ResponseID string                 `json:"responseId,omitempty"`
	Usage      map[string]interface{} `json:"usage,omitempty"`
}

// Generator produces structured reviews through an OpenAI-compatible
// responses endpoint. A parse failure triggers exactly one strict retry.
type Generator struct {
	client      *http.Client
	apiKey      string
	baseURL     string
	model       string
	temperature float64
}

func NewGenerator(apiKey, baseURL, model string, temperature float64) *Generator {
	return &Generator{
		client:      &http.Client{Timeout: 90 * time.Second},
		apiKey:      apiKey,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		model:       model,
		temperature: temperature,
	}
}

// Enabled reports whether an API key is configured at all.
func (g *Generator) Enabled() bool {
	return g != nil && g.apiKey != ""
}

// Generate asks the model for a review. A nil review with a nil error means
// the model answered but nothing parseable came back; the caller decides
// whether to fall back or skip.
func (g *Generator) Generate(ctx context.Context, input GeneratorInput) (*Review, *GenerationMeta, error) {
	if !g.Enabled() {
		return nil, nil, nil
	}
	review, meta, err := g.call(ctx, input, "")
	if err != nil {
		return nil, meta, err
	}
	if review != nil {
		return review, meta, nil
	}
	logger.Log.WithField("asin", input.ASIN).Warn("Model output was not valid JSON, retrying with strict instruction")
	return g.call(ctx, input, strictRetryPrefix)
}

type responsesRequest struct {
	Model       string  `json:"model"`
	Input       string  `json:"input"`
	Temperature float64 `json:"temperature"`
}

type responsesReply struct {
	ID         string                 `json:"id"`
	OutputText string                 `json:"output_text"`
	Output     []responsesOutputItem  `json:"output"`
	Usage      map[string]interface{} `json:"usage"`
}

type responsesOutputItem struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (g *Generator) call(ctx context.Context, input GeneratorInput, prefix string) (*Review, *GenerationMeta, error) {
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal generator input: %w", err)
	}
	payload := responsesRequest{
		Model:       g.model,
		Input:       fmt.Sprintf("%s%s\n\nINPUT_JSON:\n%s", prefix, reviewPrompt, inputJSON),
		Temperature: g.temperature,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("build model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("model request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("model request: status %d", resp.StatusCode)
	}

	var reply responsesReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, nil, fmt.Errorf("decode model reply: %w", err)
	}
	meta := &GenerationMeta{ResponseID: reply.ID, Usage: reply.Usage}

	text := strings.TrimSpace(reply.OutputText)
	if text == "" {
		var parts []string
		for _, item := range reply.Output {
			for _, chunk := range item.Content {
				if chunk.Text != "" {
					parts = append(parts, chunk.Text)
				}
			}
		}
		text = strings.TrimSpace(strings.Join(parts, "\n"))
	}

	review := parseReviewJSON(text)
	return review, meta, nil
}

// parseReviewJSON tolerates prose around the payload by slicing from the
// first opening brace to the last closing one.
func parseReviewJSON(text string) *Review {
	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first < 0 || last <= first {
		return nil
	}
	var review Review
	if err := json.Unmarshal([]byte(text[first:last+1]), &review); err != nil {
		return nil
	}
	return &review
}
