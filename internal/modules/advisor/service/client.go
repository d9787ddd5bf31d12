package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"liquidation_bot/internal/models"
	"liquidation_bot/internal/modules/config"
	"liquidation_bot/pkg/logger"
	"liquidation_bot/pkg/ratelimit"

	"github.com/bytedance/sonic"
)

// ErrAdvisorUnavailable — советника нет ответа; движок берёт тип ордера из конфига.
var ErrAdvisorUnavailable = errors.New("advisor unavailable")

const systemPrompt = `You advise how to sell a small crypto balance into a stablecoin.
Reply with one JSON object only:
{"strategy":"market|limit|twap|iceberg|adaptive","parameters":{},"reasoning":"<one sentence>","confidence":0.0}`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Client — OpenAI-совместимый chat/completions со своим окном лимитов.
type Client struct {
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	http      *http.Client
	limiter   *ratelimit.Window
}

func NewClient(cfg *config.Config) *Client {
	a := cfg.Advisor
	return New(a.BaseURL, a.APIKey, a.Model, a.MaxTokens, a.Timeout,
		ratelimit.New(a.RequestsPerMin, a.TokensPerMin))
}

func New(baseURL, apiKey, model string, maxTokens int, timeout time.Duration, limiter *ratelimit.Window) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		http:      &http.Client{Timeout: timeout},
		limiter:   limiter,
	}
}

// estimateTokens — грубо 4 символа на токен плюс потолок ответа.
func (c *Client) estimateTokens(prompt string) int {
	return (len(systemPrompt)+len(prompt))/4 + c.maxTokens
}

// Advise — любая ошибка оборачивает ErrAdvisorUnavailable.
func (c *Client) Advise(ctx context.Context, req models.AdviceRequest) (models.Advice, error) {
	prompt, err := sonic.MarshalString(req)
	if err != nil {
		return models.Advice{}, fmt.Errorf("%w: encode request: %v", ErrAdvisorUnavailable, err)
	}

	// резервируем по верхней оценке, после ответа сверяем с usage
	estimate := c.estimateTokens(prompt)
	if !c.limiter.Reserve(estimate) {
		return models.Advice{}, fmt.Errorf("%w: rate limited", ErrAdvisorUnavailable)
	}

	body, err := sonic.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:      c.maxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return models.Advice{}, fmt.Errorf("%w: encode body: %v", ErrAdvisorUnavailable, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return models.Advice{}, fmt.Errorf("%w: %v", ErrAdvisorUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return models.Advice{}, fmt.Errorf("%w: %v", ErrAdvisorUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Advice{}, fmt.Errorf("%w: read body: %v", ErrAdvisorUnavailable, err)
	}
	if resp.StatusCode/100 != 2 {
		logger.Warn("[ADVISOR] http %d: %s", resp.StatusCode, string(raw))
		return models.Advice{}, fmt.Errorf("%w: http %d", ErrAdvisorUnavailable, resp.StatusCode)
	}

	var out chatResponse
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return models.Advice{}, fmt.Errorf("%w: decode response: %v", ErrAdvisorUnavailable, err)
	}
	if len(out.Choices) == 0 {
		return models.Advice{}, fmt.Errorf("%w: empty choices", ErrAdvisorUnavailable)
	}
	if used := out.Usage.TotalTokens; used > 0 {
		c.limiter.Settle(estimate, used)
		logger.Debug("[ADVISOR] %s used %d tokens (reserved %d)", req.Currency, used, estimate)
	}

	return parseAdvice(out.Choices[0].Message.Content)
}

// parseAdvice принимает JSON, в том числе обёрнутый в ```json ... ```.
func parseAdvice(content string) (models.Advice, error) {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	var a models.Advice
	if err := sonic.UnmarshalString(s, &a); err != nil {
		return models.Advice{}, fmt.Errorf("%w: advice is not json: %v", ErrAdvisorUnavailable, err)
	}
	a.Strategy = models.Strategy(strings.ToLower(strings.TrimSpace(string(a.Strategy))))
	if !a.Strategy.Known() {
		return models.Advice{}, fmt.Errorf("%w: unknown strategy %q", ErrAdvisorUnavailable, a.Strategy)
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		a.Confidence = min(max(a.Confidence, 0), 1)
	}
	return a, nil
}
