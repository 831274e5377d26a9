package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"
)

func jsonHandler(t *testing.T, status int, body any, inspect func(r *http.Request, payload map[string]any)) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("bad request body: %v", err)
		}

		if inspect != nil {
			inspect(r, payload)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func TestLLMClient_Ollama(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, http.StatusOK, map[string]any{"response": " Two sentences. Done. "},
		func(r *http.Request, payload map[string]any) {
			if r.Method != http.MethodPost {
				t.Errorf("method = %s", r.Method)
			}

			if payload["model"] != "llama3.1" || payload["stream"] != false {
				t.Errorf("payload = %v", payload)
			}

			if !strings.Contains(payload["prompt"].(string), "Use between 10 and 50 words.") {
				t.Errorf("prompt missing bounds: %q", payload["prompt"])
			}

			opts, _ := payload["options"].(map[string]any)
			if opts["num_predict"] != float64(116) {
				t.Errorf("options = %v", opts)
			}
		}))
	defer srv.Close()

	client, err := NewLLMClient(ProviderOllama, srv.URL+"/api/generate", "llama3.1", "", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	got, err := NewLLMSummarizer(client).Summarize(context.Background(), "Event: X", 10, 50)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	if got != "Two sentences. Done." {
		t.Errorf("Summarize() = %q", got)
	}
}

func TestLLMClient_OpenAI(t *testing.T) {
	reply := map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": "Hello there."}}},
	}

	srv := httptest.NewServer(jsonHandler(t, http.StatusOK, reply, func(r *http.Request, payload map[string]any) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}

		msgs, _ := payload["messages"].([]any)
		if len(msgs) != 1 {
			t.Errorf("messages = %v", payload["messages"])
		}
	}))
	defer srv.Close()

	client, err := NewLLMClient(ProviderOpenAI, srv.URL+"/v1/chat/completions", "gpt-4o-mini", "sk-test", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	got, err := client.Complete(context.Background(), "hi", 0)
	if err != nil || got != "Hello there." {
		t.Errorf("Complete() = %q, %v", got, err)
	}
}

func TestLLMClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		status   int
		body     any
	}{
		{"ollama 500", ProviderOllama, http.StatusInternalServerError, map[string]any{"error": "model not found"}},
		{"openai 429", ProviderOpenAI, http.StatusTooManyRequests, map[string]any{}},
		{"openai no choices", ProviderOpenAI, http.StatusOK, map[string]any{"choices": []any{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(jsonHandler(t, tt.status, tt.body, nil))
			defer srv.Close()

			client, err := NewLLMClient(tt.provider, srv.URL, "m", "", 5*time.Second)
			if err != nil {
				t.Fatal(err)
			}

			if _, err := client.Complete(context.Background(), "p", 10); !errors.Is(err, ErrEnrichment) {
				t.Errorf("error = %v, want ErrEnrichment", err)
			}
		})
	}
}

func TestNewLLMClient_Validation(t *testing.T) {
	if _, err := NewLLMClient("bard", "http://x", "m", "", time.Second); err == nil {
		t.Error("expected error for unknown provider")
	}

	if _, err := NewLLMClient(ProviderOllama, "", "m", "", time.Second); err == nil {
		t.Error("expected error for empty endpoint")
	}
}

func TestLLMKeywordExtractor(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, http.StatusOK,
		map[string]any{"response": "1. Jazz Night, blue note\n- music; jazz night, Greenwich Village NYC"}, nil))
	defer srv.Close()

	client, err := NewLLMClient(ProviderOllama, srv.URL, "m", "", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	got, err := NewLLMKeywordExtractor(client).Extract(context.Background(), "Jazz Night at Blue Note", 5)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"Jazz Night", "blue note", "music", "Greenwich Village"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %v, want %v", got, want)
	}
}
