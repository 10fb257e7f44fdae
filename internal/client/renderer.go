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
	"strings"
	"time"

	"github.com/quizreel/api/internal/config"
	"github.com/quizreel/api/internal/model"
)

// VideoRenderer defines the contract with the external render service:
// validate a composition, then turn it into a file at outputPath while
// reporting fractional progress.
type VideoRenderer interface {
	Prepare(ctx context.Context, input *model.CompositionInput) error
	Render(ctx context.Context, input *model.CompositionInput, outputPath string, progress chan<- float64) error
}

// RendererClient implements VideoRenderer against the render microservice.
// Render closes the progress channel before returning; callers own
// draining it. When no service URL is configured, a mock render writes a
// stub file so the full pipeline works in development.
type RendererClient struct {
	httpClient *http.Client
	baseURL    string
}

type renderRequest struct {
	Composition *model.CompositionInput `json:"composition"`
	OutputPath  string                  `json:"output_path"`
}

// renderEvent is one NDJSON line streamed back by the render service.
type renderEvent struct {
	Progress float64 `json:"progress"`
	Done     bool    `json:"done"`
	Error    string  `json:"error,omitempty"`
}

// NewRendererClient creates a new renderer client
func NewRendererClient(cfg *config.RendererConfig) *RendererClient {
	return &RendererClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.ServiceURL,
	}
}

// IsConfigured returns true when a render service URL is present
func (c *RendererClient) IsConfigured() bool {
	return c.baseURL != ""
}

// Prepare validates the composition before any encode work starts:
// timing arrays must line up with the questions, there must be one
// background per question plus the intro, and every referenced asset
// must be reachable.
func (c *RendererClient) Prepare(ctx context.Context, input *model.CompositionInput) error {
	n := len(input.Questions)

	if len(input.Timing.Questions) != n {
		return &AssetMismatchError{Reason: fmt.Sprintf("%d question timings for %d questions", len(input.Timing.Questions), n)}
	}
	if len(input.Timing.Answers) != n {
		return &AssetMismatchError{Reason: fmt.Sprintf("%d answer timings for %d questions", len(input.Timing.Answers), n)}
	}
	if len(input.BackgroundImages) < n+1 {
		return &AssetMismatchError{Reason: fmt.Sprintf("need %d background images, got %d", n+1, len(input.BackgroundImages))}
	}

	for _, img := range input.BackgroundImages {
		if err := c.checkReachable(ctx, img); err != nil {
			return &AssetMismatchError{Reason: "background image not found: " + img}
		}
	}
	audio := input.AudioFiles
	if audio.Intro != nil {
		if err := c.checkReachable(ctx, audio.Intro.Path); err != nil {
			return &AssetMismatchError{Reason: "intro audio not found: " + audio.Intro.Path}
		}
	}
	for _, a := range append(append([]model.AudioWithDuration{}, audio.Questions...), audio.Answers...) {
		if err := c.checkReachable(ctx, a.Path); err != nil {
			return &AssetMismatchError{Reason: "narration audio not found: " + a.Path}
		}
	}
	if audio.Outro != nil {
		if err := c.checkReachable(ctx, audio.Outro.Path); err != nil {
			return &AssetMismatchError{Reason: "outro audio not found: " + audio.Outro.Path}
		}
	}

	return nil
}

// checkReachable stats local paths and HEADs remote URLs
func (c *RendererClient) checkReachable(ctx context.Context, ref string) error {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, ref, nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return nil
	}
	_, err := os.Stat(ref)
	return err
}

// Render performs the encode, forwarding the service's fractional
// progress onto the channel. The channel is closed on return. Progress
// values are monotonically increasing in [0,1].
func (c *RendererClient) Render(ctx context.Context, input *model.CompositionInput, outputPath string, progress chan<- float64) error {
	defer close(progress)

	if !c.IsConfigured() {
		return c.renderMock(ctx, outputPath, progress)
	}

	reqBody := renderRequest{Composition: input, OutputPath: outputPath}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	log.Printf("[Renderer] → POST %s/render", c.baseURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RenderError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return &RenderError{Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, extractDetail(respBody))}
	}

	// The service streams progress events as JSON lines and finishes
	// with a done event once the file is on disk.
	dec := json.NewDecoder(resp.Body)
	for {
		var ev renderEvent
		if err := dec.Decode(&ev); err != nil {
			if err == io.EOF {
				break
			}
			return &RenderError{Message: "progress stream: " + err.Error()}
		}
		if ev.Error != "" {
			return &RenderError{Message: ev.Error}
		}
		if ev.Progress > 0 {
			select {
			case progress <- ev.Progress:
			case <-ctx.Done():
				return &RenderError{Message: ctx.Err().Error()}
			}
		}
		if ev.Done {
			break
		}
	}

	if _, err := os.Stat(outputPath); err != nil {
		return &RenderError{Message: "no output file at " + outputPath}
	}

	log.Printf("[Renderer] video rendered: %s", outputPath)
	return nil
}

// renderMock simulates an encode: ticks progress and writes a stub file
func (c *RendererClient) renderMock(ctx context.Context, outputPath string, progress chan<- float64) error {
	const steps = 10
	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return &RenderError{Message: ctx.Err().Error()}
		case <-time.After(50 * time.Millisecond):
		}
		select {
		case progress <- float64(i) / steps:
		default:
		}
	}

	stub := append([]byte("\x00\x00\x00\x18ftypmp42"), bytes.Repeat([]byte{0x00}, 1024)...)
	if err := os.WriteFile(outputPath, stub, 0o644); err != nil {
		return &RenderError{Message: "failed to write mock output: " + err.Error()}
	}

	log.Printf("[Renderer] mock video rendered: %s", outputPath)
	return nil
}
