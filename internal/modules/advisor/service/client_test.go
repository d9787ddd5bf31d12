package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"liquidation_bot/internal/models"
	"liquidation_bot/pkg/ratelimit"

	"github.com/bytedance/sonic"
)

func chatServer(t *testing.T, status int, content string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth header = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var req chatRequest
		if err := sonic.Unmarshal(body, &req); err != nil || len(req.Messages) != 2 {
			t.Errorf("bad request %s: %v", body, err)
		}
		if !strings.Contains(req.Messages[1].Content, `"currency":"nock"`) {
			t.Errorf("user prompt lacks currency: %s", req.Messages[1].Content)
		}

		w.WriteHeader(status)
		resp, _ := sonic.Marshal(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
			"usage":   map[string]int{"total_tokens": 120},
		})
		_, _ = w.Write(resp)
	}))
}

var nockReq = models.AdviceRequest{Currency: "nock", Balance: 174.8, CurrentPrice: 0.14, Spread: 0.01}

func TestAdvise(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		content  string
		want     models.Strategy
		wantConf float64
		wantErr  bool
	}{
		{name: "plain json", status: 200, content: `{"strategy":"limit","reasoning":"thin book","confidence":0.7}`, want: models.StrategyLimit, wantConf: 0.7},
		{name: "fenced json", status: 200, content: "```json\n{\"strategy\":\"MARKET\",\"confidence\":1.5}\n```", want: models.StrategyMarket, wantConf: 1},
		{name: "unknown strategy", status: 200, content: `{"strategy":"yolo"}`, wantErr: true},
		{name: "not json", status: 200, content: `sell it all`, wantErr: true},
		{name: "http error", status: 500, content: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := chatServer(t, tt.status, tt.content, &calls)
			defer srv.Close()

			c := New(srv.URL, "sk-test", "gpt-test", 100, time.Second, nil)
			got, err := c.Advise(context.Background(), nockReq)
			if tt.wantErr {
				if !errors.Is(err, ErrAdvisorUnavailable) {
					t.Fatalf("want ErrAdvisorUnavailable, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Advise: %v", err)
			}
			if got.Strategy != tt.want || got.Confidence != tt.wantConf {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestAdvise_RateLimitedWithoutCall(t *testing.T) {
	var calls atomic.Int32
	srv := chatServer(t, 200, `{"strategy":"market"}`, &calls)
	defer srv.Close()

	c := New(srv.URL, "sk-test", "gpt-test", 100, time.Second, ratelimit.New(1, 0))

	if _, err := c.Advise(context.Background(), nockReq); err != nil {
		t.Fatalf("first call: %v", err)
	}
	_, err := c.Advise(context.Background(), nockReq)
	if !errors.Is(err, ErrAdvisorUnavailable) || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("want rate limited, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("server called %d times", n)
	}
}

func TestAdvise_TokenBudget(t *testing.T) {
	var calls atomic.Int32
	srv := chatServer(t, 200, `{"strategy":"market"}`, &calls)
	defer srv.Close()

	// бюджет меньше одного запроса с max_tokens=500
	c := New(srv.URL, "sk-test", "gpt-test", 500, time.Second, ratelimit.New(0, 400))
	if _, err := c.Advise(context.Background(), nockReq); !errors.Is(err, ErrAdvisorUnavailable) {
		t.Fatalf("want denial, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatal("server must not be called")
	}
}

func TestAdvise_SettlesWindowWithReportedUsage(t *testing.T) {
	var calls atomic.Int32
	srv := chatServer(t, 200, `{"strategy":"market"}`, &calls)
	defer srv.Close()

	w := ratelimit.New(0, 10_000)
	c := New(srv.URL, "sk-test", "gpt-test", 500, time.Second, w)
	if _, err := c.Advise(context.Background(), nockReq); err != nil {
		t.Fatalf("Advise: %v", err)
	}

	// сервер отвечает usage.total_tokens=120, оценка была больше 500
	if _, tokens := w.Usage(); tokens != 120 {
		t.Fatalf("tokens in window = %d, want 120", tokens)
	}
}
