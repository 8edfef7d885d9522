package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/contractline/backend/internal/models"
)

const systemPrompt = `You are a construction contract specialist. Extract project metadata from voice messages into structured JSON. Only return valid JSON, no explanations.

Required fields to extract:
- business_name: Company name (string)
- project_type: Type of project (string)
- project_address: Full address (string)
- scope: Project description (string)
- budget: Total cost (string with $)
- payment_terms: Payment structure (string)
- materials_by: "client" or "contractor" (string)
- license_number: GC license if mentioned (string or null)
- start_date: Project start date (string or null)
- end_date: Project end date (string or null)
- preferred_contact_method: "SMS" or "email" (string or null)

Rules:
- If field not mentioned, use null
- Keep original wording for addresses and scope
- Extract dollar amounts as "$X,XXX" format
- Payment terms as "X%/Y%/Z% split" or "monthly" etc.
- Dates as "Month Day" or "Month Year" format`

// RateLimitError marks a 429 from the extraction endpoint so the retry
// decorator can classify it as retryable.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (r *RateLimitError) Error() string {
	if r.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", r.RetryAfter)
	}
	return "rate limited"
}

// ServiceError marks a 5xx-class failure from the extraction endpoint.
type ServiceError struct {
	Status int
}

func (s *ServiceError) Error() string {
	return fmt.Sprintf("extraction service error: status %d", s.Status)
}

// HTTPExtractor calls an OpenAI-compatible chat completion endpoint.
type HTTPExtractor struct {
	BaseURL string
	Model   string
	APIKey  string
	Client  *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (e HTTPExtractor) ExtractFields(ctx context.Context, transcript string) (models.ExtractedFields, int64, error) {
	if e.Client == nil {
		e.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if strings.TrimSpace(e.BaseURL) == "" {
		return models.ExtractedFields{}, 0, errors.New("EXTRACTOR_URL is not set")
	}

	userPrompt := fmt.Sprintf("Extract project metadata from this voice message:\n\n%q\n\nReturn only valid JSON with the required fields.", transcript)
	payload := chatRequest{
		Model: e.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.1,
		MaxTokens:   500,
	}
	b, _ := json.Marshal(payload)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(e.BaseURL, "/")+"/v1/chat/completions", bytes.NewBuffer(b))
	if err != nil {
		return models.ExtractedFields{}, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return models.ExtractedFields{}, time.Since(start).Milliseconds(), err
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := time.Duration(0)
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if d, parseErr := time.ParseDuration(ra + "s"); parseErr == nil {
				retryAfter = d
			}
		}
		return models.ExtractedFields{}, latency, &RateLimitError{RetryAfter: retryAfter}
	case resp.StatusCode >= 500:
		return models.ExtractedFields{}, latency, &ServiceError{Status: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return models.ExtractedFields{}, latency, fmt.Errorf("extraction request rejected: status %d", resp.StatusCode)
	}

	var r chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return models.ExtractedFields{}, latency, err
	}
	if len(r.Choices) == 0 {
		return models.ExtractedFields{}, latency, errors.New("extraction returned no choices")
	}

	fields, err := ParseModelOutput(r.Choices[0].Message.Content)
	return fields, latency, err
}

// ParseModelOutput parses the model's JSON reply, tolerating code fences and
// surrounding prose. JSON null values decode to absent fields.
func ParseModelOutput(content string) (models.ExtractedFields, error) {
	content = strings.TrimSpace(content)
	if i := strings.Index(content, "{"); i >= 0 {
		if j := strings.LastIndex(content, "}"); j > i {
			content = content[i : j+1]
		}
	}

	var fields models.ExtractedFields
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		return models.ExtractedFields{}, fmt.Errorf("unparseable extraction output: %w", err)
	}
	return fields, nil
}
