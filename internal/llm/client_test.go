package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCompleteSendsHeaders(t *testing.T) {
	var gotAuth, gotReferer, gotTitle, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReferer = r.Header.Get("HTTP-Referer")
		gotTitle = r.Header.Get("X-Title")
		gotContentType = r.Header.Get("Content-Type")
		json.NewEncoder(w).Encode(ChatResponse{
			ID:      "gen-1",
			Choices: []Choice{{Message: AssistantMessage("hello"), FinishReason: "stop"}},
		})
	}))
	defer srv.Close()

	c := New(Options{
		BaseURL: srv.URL,
		APIKey:  "sk-test",
		Referer: "http://localhost:3000",
		Title:   "OpenCode CLI",
	})

	resp, err := c.Complete(context.Background(), ChatRequest{
		Model:    "test/model",
		Messages: []Message{UserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReferer != "http://localhost:3000" {
		t.Errorf("HTTP-Referer = %q", gotReferer)
	}
	if gotTitle != "OpenCode CLI" {
		t.Errorf("X-Title = %q", gotTitle)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if resp.First().Content != "hello" {
		t.Errorf("First().Content = %q", resp.First().Content)
	}
}

func TestCompleteForcesStreamOff(t *testing.T) {
	var gotBody ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(ChatResponse{})
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, APIKey: "k"})
	_, err := c.Complete(context.Background(), ChatRequest{Model: "m", Stream: true})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if gotBody.Stream {
		t.Error("Complete() sent stream=true")
	}
}

func TestCompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"bad key"}}`)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, APIKey: "bad"})
	_, err := c.Complete(context.Background(), ChatRequest{Model: "m"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Complete() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
	}
}

func TestStreamCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("StreamCompletion() sent stream=false")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, sampleStream)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, APIKey: "k"})
	stream, err := c.StreamCompletion(context.Background(), ChatRequest{
		Model:    "test/model",
		Messages: []Message{UserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("StreamCompletion() error: %v", err)
	}
	defer stream.Close()

	var content string
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv() error: %v", err)
		}
		content += chunk.Content()
	}
	if content != "Hello" {
		t.Errorf("streamed content = %q, want Hello", content)
	}
}
