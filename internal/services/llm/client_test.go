package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"contentfactory/internal/services"
)

type verdict struct {
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

func completionServer(t *testing.T, choice map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewEncoder(w).Encode(map[string]any{"choices": []any{choice}}); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func testPrompt() Prompt {
	return Prompt{System: "system", User: "user", Temperature: 0.3}
}

func TestClientHealthCheck(t *testing.T) {
	server := completionServer(t, map[string]any{
		"message": map[string]any{"content": `{"ok":true}`},
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	err := client.HealthCheck(context.Background())
	if err == nil {
		t.Fatal("expected health check to fail")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration marker for 401, got %v", err)
	}
}

func TestGenerateRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	if _, err := client.Generate(context.Background(), testPrompt()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestGenerateSendsSchemaAndTemperature(t *testing.T) {
	var captured chatCompletionRequest
	var rawFormat map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected auth header %q", got)
		}
		var body map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.Unmarshal(body["temperature"], &captured.Temperature)
		_ = json.Unmarshal(body["messages"], &captured.Messages)
		_ = json.Unmarshal(body["response_format"], &rawFormat)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"score":8}`}}},
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	prompt := testPrompt()
	prompt.Temperature = 0.8
	prompt.SchemaName = "verdict"
	prompt.Schema = map[string]any{"type": "object"}
	if _, err := client.Generate(context.Background(), prompt); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if captured.Temperature != 0.8 {
		t.Fatalf("expected temperature 0.8, got %v", captured.Temperature)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[1].Content != "user" {
		t.Fatalf("unexpected messages: %#v", captured.Messages)
	}
	if rawFormat["type"] != "json_schema" {
		t.Fatalf("expected json_schema response format, got %#v", rawFormat)
	}
	schema, _ := rawFormat["json_schema"].(map[string]any)
	if schema["name"] != "verdict" {
		t.Fatalf("expected schema name verdict, got %#v", schema)
	}
}

func TestGenerateIntoCodeFence(t *testing.T) {
	server := completionServer(t, map[string]any{
		"message": map[string]any{"content": "```json\n{\"score\":8,\"reason\":\"demo\"}\n```"},
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	var got verdict
	raw, err := client.GenerateInto(context.Background(), testPrompt(), &got)
	if err != nil {
		t.Fatalf("GenerateInto returned error: %v", err)
	}
	if got.Score != 8 || got.Reason != "demo" {
		t.Fatalf("unexpected verdict %+v", got)
	}
	if !strings.Contains(raw, "```") {
		t.Fatalf("expected raw payload to retain code fence, got %q", raw)
	}
}

func TestGenerateIntoToolCallsArguments(t *testing.T) {
	server := completionServer(t, map[string]any{
		"finish_reason": "tool_calls",
		"message": map[string]any{
			"content": "",
			"tool_calls": []any{
				map[string]any{
					"type": "function",
					"id":   "call_1",
					"function": map[string]any{
						"name":      "review",
						"arguments": `{"score":9,"reason":"tool"}`,
					},
				},
			},
		},
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	var got verdict
	if _, err := client.GenerateInto(context.Background(), testPrompt(), &got); err != nil {
		t.Fatalf("GenerateInto returned error: %v", err)
	}
	if got.Score != 9 {
		t.Fatalf("expected score 9, got %+v", got)
	}
}

func TestGenerateDeltaAndLegacyText(t *testing.T) {
	choices := []map[string]any{
		{"delta": map[string]any{"content": `{"score":4}`}},
		{"finish_reason": "stop", "text": `{"score":4}`},
	}
	for _, choice := range choices {
		server := completionServer(t, choice)
		client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
		var got verdict
		if _, err := client.GenerateInto(context.Background(), testPrompt(), &got); err != nil {
			t.Fatalf("GenerateInto returned error: %v", err)
		}
		if got.Score != 4 {
			t.Fatalf("expected score 4, got %+v", got)
		}
	}
}

func TestGenerateEmptyContentHasSnippet(t *testing.T) {
	server := completionServer(t, map[string]any{
		"finish_reason": "stop",
		"message":       map[string]any{"content": ""},
	})

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
	)
	_, err := client.Generate(context.Background(), testPrompt())
	if err == nil {
		t.Fatal("expected generate to fail")
	}
	if !strings.Contains(err.Error(), "empty content") || !strings.Contains(err.Error(), "response_snippet=") {
		t.Fatalf("expected empty-content error to include snippet, got %v", err)
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected exhausted retries to be transient, got %v", err)
	}
}

func TestGenerateIntoMalformedPayloadIsValidation(t *testing.T) {
	server := completionServer(t, map[string]any{
		"message": map[string]any{"content": "not json at all"},
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	var got verdict
	if _, err := client.GenerateInto(context.Background(), testPrompt(), &got); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"score":7}`}}},
		})
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
	)
	var got verdict
	if _, err := client.GenerateInto(context.Background(), testPrompt(), &got); err != nil {
		t.Fatalf("GenerateInto returned error: %v", err)
	}
	if got.Score != 7 {
		t.Fatalf("expected score 7, got %+v", got)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientDoesNotRetryOnBadRequest(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(time.Duration) {}),
	)
	if _, err := client.Generate(context.Background(), testPrompt()); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestClientRetriesOnEmptyContentThenSucceeds(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		content := ""
		if calls >= 3 {
			content = `{"score":6}`
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"finish_reason": "stop", "message": map[string]any{"content": content}}},
		})
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
		WithRetryMaxAttempts(5),
	)
	var got verdict
	if _, err := client.GenerateInto(context.Background(), testPrompt(), &got); err != nil {
		t.Fatalf("GenerateInto returned error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	client := NewClient(Config{}, WithRetryBackoff(time.Second, 5*time.Second))
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, expected := range want {
		if got := client.backoffDelay(i + 1); got != expected {
			t.Fatalf("attempt %d: got %s, want %s", i+1, got, expected)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := parseRetryAfter("3"); !ok || d != 3*time.Second {
		t.Fatalf("expected 3s, got %v %v", d, ok)
	}
	if _, ok := parseRetryAfter("-1"); ok {
		t.Fatal("expected negative value to be rejected")
	}
	if _, ok := parseRetryAfter("soon"); ok {
		t.Fatal("expected garbage to be rejected")
	}
}
