package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestNewElevenLabsTTS(t *testing.T) {
	logger := zaptest.NewLogger(t)

	if _, err := NewElevenLabsTTS(ElevenLabsConfig{}, logger); err == nil {
		t.Error("Expected error when API key is not set")
	}
	if _, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "k", Stability: 1.5}, logger); err == nil {
		t.Error("Expected error for stability out of range")
	}

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key"}, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}
	if tts.cfg.VoiceID != defaultVoiceID {
		t.Errorf("Expected default voice ID '%s', got '%s'", defaultVoiceID, tts.cfg.VoiceID)
	}
	if tts.cfg.ChunkSize != defaultChunkSize {
		t.Errorf("Expected default chunk size %d, got %d", defaultChunkSize, tts.cfg.ChunkSize)
	}
}

func TestConvertTextToSpeech(t *testing.T) {
	audio := bytes.Repeat([]byte{0xAB}, 10)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "test-api-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/text-to-speech/voice-1/stream") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}

		var req ttsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Text != "flower" {
			t.Errorf("Expected text flower, got %q", req.Text)
		}

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(audio)
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{
		APIKey:     "test-api-key",
		APIBaseURL: server.URL,
		VoiceID:    "voice-1",
		ChunkSize:  4,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	ch, err := tts.ConvertTextToSpeech(context.Background(), "flower")
	if err != nil {
		t.Fatalf("ConvertTextToSpeech() error = %v", err)
	}

	var got []byte
	for chunk := range ch {
		if len(chunk) > 4 {
			t.Errorf("Chunk larger than configured size: %d", len(chunk))
		}
		got = append(got, chunk...)
	}
	if !bytes.Equal(got, audio) {
		t.Errorf("Expected %d audio bytes, got %d", len(audio), len(got))
	}
}

func TestConvertTextToSpeechAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"invalid key"}`))
	}))
	defer server.Close()

	tts, _ := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "bad", APIBaseURL: server.URL}, zaptest.NewLogger(t))

	_, err := tts.ConvertTextToSpeech(context.Background(), "cat")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("Expected 401 error, got %v", err)
	}

	if _, err := tts.ConvertTextToSpeech(context.Background(), "  "); err == nil {
		t.Error("Expected error for empty text")
	}
}

func TestMockTextToSpeech(t *testing.T) {
	mock := NewMockTextToSpeech(zaptest.NewLogger(t))

	ch, err := mock.ConvertTextToSpeech(context.Background(), "butterfly")
	if err != nil {
		t.Fatalf("ConvertTextToSpeech() error = %v", err)
	}

	var got []byte
	for chunk := range ch {
		got = append(got, chunk...)
	}
	if string(got) != "butterfly" {
		t.Errorf("Expected butterfly, got %q", got)
	}
}
