package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/quizreel/api/internal/config"
)

// ImageGenerator defines the interface for background image generation
type ImageGenerator interface {
	GenerateIntroBackground(ctx context.Context, topic, outputDir string) (string, error)
	GenerateQuestionBackground(ctx context.Context, question string, index int, outputDir string) (string, error)
}

// FalClient implements ImageGenerator against the fal.ai Ideogram v3 API
type FalClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type falImageRequest struct {
	Prompt         string `json:"prompt"`
	ImageSize      string `json:"image_size"`
	NumImages      int    `json:"num_images"`
	ExpandPrompt   bool   `json:"expand_prompt"`
	RenderingSpeed string `json:"rendering_speed"`
	Style          string `json:"style"`
}

type falImageResponse struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// NewFalClient creates a new fal.ai client
func NewFalClient(cfg *config.FalConfig) *FalClient {
	return &FalClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

// IsConfigured returns true when an API key is present
func (c *FalClient) IsConfigured() bool {
	return c.apiKey != ""
}

// GenerateIntroBackground generates the background for the intro scene
func (c *FalClient) GenerateIntroBackground(ctx context.Context, topic, outputDir string) (string, error) {
	prompt := fmt.Sprintf("Vibrant modern social media background for a quiz about %q. "+
		"Bold colors, gradients, abstract elements related to the topic. "+
		"Vertical 9:16 format, no text, no people.", topic)
	return c.generateAndSaveImage(ctx, prompt, outputDir, "intro-bg")
}

// GenerateQuestionBackground generates the background for one question scene
func (c *FalClient) GenerateQuestionBackground(ctx context.Context, question string, index int, outputDir string) (string, error) {
	prompt := fmt.Sprintf("Modern dynamic background image themed around %q. "+
		"Subtle patterns or gradients that complement the question without distracting. "+
		"Vertical 9:16 format, abstract only, no text.", question)
	return c.generateAndSaveImage(ctx, prompt, outputDir, fmt.Sprintf("question-%d-bg", index+1))
}

// generateAndSaveImage requests one image and writes it into the job directory.
// The output path is deterministic for a given outputDir/filename.
func (c *FalClient) generateAndSaveImage(ctx context.Context, prompt, outputDir, filename string) (string, error) {
	outputPath := filepath.Join(outputDir, filename+".jpg")

	if !c.IsConfigured() {
		// Dev mode without an API key: write a placeholder so the rest
		// of the pipeline stays exercisable.
		if err := os.WriteFile(outputPath, placeholderJPEG, 0o644); err != nil {
			return "", fmt.Errorf("failed to write placeholder image: %w", err)
		}
		log.Printf("[Fal API] mock image: %s", outputPath)
		return outputPath, nil
	}

	reqBody := falImageRequest{
		Prompt:         prompt,
		ImageSize:      "portrait_16_9",
		NumImages:      1,
		ExpandPrompt:   true,
		RenderingSpeed: "BALANCED",
		Style:          "DESIGN",
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+c.apiKey)

	log.Printf("[Fal API] → POST %s (%s)", c.baseURL, filename)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: "Fal", Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderError{Provider: "Fal", StatusCode: resp.StatusCode, Message: extractDetail(respBody)}
	}

	var result falImageResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(result.Images) == 0 || result.Images[0].URL == "" {
		return "", &ProviderError{Provider: "Fal", StatusCode: resp.StatusCode, Message: "no images in response"}
	}

	if err := c.downloadImage(ctx, result.Images[0].URL, outputPath); err != nil {
		return "", err
	}

	log.Printf("[Fal API] image saved: %s", outputPath)
	return outputPath, nil
}

// downloadImage fetches the generated image URL onto local disk
func (c *FalClient) downloadImage(ctx context.Context, imageURL, outputPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ProviderError{Provider: "Fal", Message: "image download: " + err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ProviderError{Provider: "Fal", StatusCode: resp.StatusCode, Message: "image download failed"}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read image body: %w", err)
	}
	if len(data) < 100 {
		return &ProviderError{Provider: "Fal", Message: fmt.Sprintf("image response too small (%d bytes)", len(data))}
	}

	return os.WriteFile(outputPath, data, 0o644)
}

// extractDetail pulls a human-readable message out of an error body
func extractDetail(body []byte) string {
	var parsed struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Detail) > 0 {
		var s string
		if json.Unmarshal(parsed.Detail, &s) == nil {
			return s
		}
		return string(parsed.Detail)
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}

// Minimal valid JPEG used by the unconfigured fallback.
var placeholderJPEG = append([]byte{
	0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00,
	0x01, 0x01, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00,
}, append(bytes.Repeat([]byte{0x00}, 256), 0xFF, 0xD9)...)
