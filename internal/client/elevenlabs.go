package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/quizreel/api/internal/config"
	"github.com/quizreel/api/internal/model"
)

// SpeechSynthesizer defines the interface for narration generation
type SpeechSynthesizer interface {
	GenerateIntroAudio(ctx context.Context, topic, outputDir string) (model.AudioWithDuration, error)
	GenerateQuestionAudio(ctx context.Context, question string, index int, outputDir string) (model.AudioWithDuration, error)
	GenerateAnswerAudio(ctx context.Context, answer string, index int, outputDir string) (model.AudioWithDuration, error)
	GenerateOutroAudio(ctx context.Context, outputDir string) (model.AudioWithDuration, error)
}

// ElevenLabsClient implements SpeechSynthesizer for the ElevenLabs TTS API
type ElevenLabsClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	voiceID    string
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// NewElevenLabsClient creates a new ElevenLabs client
func NewElevenLabsClient(cfg *config.ElevenLabsConfig) *ElevenLabsClient {
	return &ElevenLabsClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		voiceID: cfg.VoiceID,
	}
}

// IsConfigured returns true when an API key is present
func (c *ElevenLabsClient) IsConfigured() bool {
	return c.apiKey != ""
}

// GenerateIntroAudio synthesizes the intro hook line
func (c *ElevenLabsClient) GenerateIntroAudio(ctx context.Context, topic, outputDir string) (model.AudioWithDuration, error) {
	text := fmt.Sprintf("Nie zgadniesz, odpadasz - %s", topic)
	return c.generateAndSaveAudio(ctx, text, outputDir, "intro")
}

// GenerateQuestionAudio synthesizes one question
func (c *ElevenLabsClient) GenerateQuestionAudio(ctx context.Context, question string, index int, outputDir string) (model.AudioWithDuration, error) {
	return c.generateAndSaveAudio(ctx, question, outputDir, fmt.Sprintf("question-%d", index+1))
}

// GenerateAnswerAudio synthesizes one answer reveal
func (c *ElevenLabsClient) GenerateAnswerAudio(ctx context.Context, answer string, index int, outputDir string) (model.AudioWithDuration, error) {
	text := fmt.Sprintf("Odpowiedź to: %s", answer)
	return c.generateAndSaveAudio(ctx, text, outputDir, fmt.Sprintf("answer-%d", index+1))
}

// GenerateOutroAudio synthesizes the fixed outro line
func (c *ElevenLabsClient) GenerateOutroAudio(ctx context.Context, outputDir string) (model.AudioWithDuration, error) {
	text := "I jak Ci poszło? Podziel się swoim wynikiem w komentarzu"
	return c.generateAndSaveAudio(ctx, text, outputDir, "outro")
}

// generateAndSaveAudio synthesizes one segment into the job directory and
// returns the file together with its spoken duration.
func (c *ElevenLabsClient) generateAndSaveAudio(ctx context.Context, text, outputDir, filename string) (model.AudioWithDuration, error) {
	outputPath := filepath.Join(outputDir, filename+".mp3")

	if !c.IsConfigured() {
		if err := os.WriteFile(outputPath, placeholderMP3, 0o644); err != nil {
			return model.AudioWithDuration{}, fmt.Errorf("failed to write placeholder audio: %w", err)
		}
		log.Printf("[ElevenLabs API] mock audio: %s", outputPath)
		return model.AudioWithDuration{Path: outputPath, Duration: EstimateDuration(text)}, nil
	}

	reqBody := ttsRequest{
		Text:    text,
		ModelID: "eleven_multilingual_v2",
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.8,
			Style:           0.3,
			UseSpeakerBoost: true,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return model.AudioWithDuration{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, c.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return model.AudioWithDuration{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.apiKey)

	log.Printf("[ElevenLabs API] → POST %s (%s)", endpoint, filename)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.AudioWithDuration{}, &ProviderError{Provider: "ElevenLabs", Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return model.AudioWithDuration{}, &ProviderError{
			Provider:   "ElevenLabs",
			StatusCode: resp.StatusCode,
			Message:    extractDetail(respBody),
		}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.AudioWithDuration{}, fmt.Errorf("failed to read audio body: %w", err)
	}
	if err := os.WriteFile(outputPath, audio, 0o644); err != nil {
		return model.AudioWithDuration{}, fmt.Errorf("failed to write audio: %w", err)
	}

	// Real decoded length if ffprobe can measure it, estimate otherwise.
	duration, err := probeAudioDuration(outputPath)
	if err != nil {
		log.Printf("[ElevenLabs API] duration probe failed for %s, using estimate: %v", filename, err)
		duration = EstimateDuration(text)
	}

	log.Printf("[ElevenLabs API] audio saved: %s (%.2fs)", outputPath, duration)
	return model.AudioWithDuration{Path: outputPath, Duration: duration}, nil
}

// probeAudioDuration reads the decoded stream length via ffprobe
func probeAudioDuration(path string) (float64, error) {
	out, err := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, err
	}
	var dur float64
	_, err = fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &dur)
	return dur, err
}

// EstimateDuration approximates spoken length from word count
// (~150 words per minute, never below one second).
func EstimateDuration(text string) float64 {
	words := len(strings.Fields(text))
	seconds := float64(words) / 150.0 * 60.0
	return math.Max(1, math.Ceil(seconds))
}

// Minimal MP3 frame used by the unconfigured fallback.
var placeholderMP3 = append([]byte{0xFF, 0xFB, 0x90, 0x00}, bytes.Repeat([]byte{0x00}, 417)...)
