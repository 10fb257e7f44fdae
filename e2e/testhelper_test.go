package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hibiken/asynq"

	"github.com/quizreel/api/internal/auth"
	"github.com/quizreel/api/internal/client"
	"github.com/quizreel/api/internal/config"
	"github.com/quizreel/api/internal/handler"
	"github.com/quizreel/api/internal/middleware"
	"github.com/quizreel/api/internal/service"
	"github.com/quizreel/api/internal/store"
	"github.com/quizreel/api/internal/worker"
	ws "github.com/quizreel/api/internal/websocket"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing
type testApp struct {
	app      *fiber.App
	service  *service.VideoService
	enqueuer *inlineEnqueuer
}

// inlineEnqueuer runs each enqueued task through the worker in a
// goroutine, so the full async pipeline is exercised without a queue
// broker behind it.
type inlineEnqueuer struct {
	mu     sync.Mutex
	worker *worker.VideoWorker
	count  int
}

func (e *inlineEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	e.mu.Lock()
	e.count++
	w := e.worker
	e.mu.Unlock()

	go w.ProcessTask(context.Background(), task)
	return &asynq.TaskInfo{ID: "inline", Type: task.Type()}, nil
}

func (e *inlineEnqueuer) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

// setupApp creates a Fiber app identical to main.go but with unconfigured
// external clients. This triggers mock/fallback responses in all generation
// stages, so jobs run end to end on placeholder assets.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	validate := validator.New()

	// External clients — all unconfigured so the pipeline uses mocks
	falClient := client.NewFalClient(&config.FalConfig{})
	elevenLabsClient := client.NewElevenLabsClient(&config.ElevenLabsConfig{})
	rendererClient := client.NewRendererClient(&config.RendererConfig{Timeout: 60})

	hub := ws.NewHub()
	go hub.Run()

	jobStore := store.NewJobStore()
	enqueuer := &inlineEnqueuer{}
	videoService := service.NewVideoService(jobStore, enqueuer,
		&config.StorageConfig{OutputDir: t.TempDir()},
		&config.RetentionConfig{MaxAgeHours: 24},
	)
	enqueuer.worker = worker.NewVideoWorker(videoService, falClient, elevenLabsClient, rendererClient, hub)

	videoHandler := handler.NewVideoHandler(videoService, validate)
	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": 1234567890})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"fal":        falClient.IsConfigured(),
				"elevenlabs": elevenLabsClient.IsConfigured(),
				"renderer":   rendererClient.IsConfigured(),
				"jobs":       jobStore.Len(),
			},
		})
	})

	// Rate limiting is skipped here; it needs a live Redis and is covered
	// by its own middleware behavior (allow on backend failure).
	api := app.Group("/api", authMiddleware.Authenticate())
	videos := api.Group("/videos")
	videos.Post("/generate", videoHandler.Generate)
	videos.Get("/status/:jobId", videoHandler.Status)
	videos.Get("/download/:jobId", videoHandler.Download)
	videos.Get("/assets/:jobId/:filename", videoHandler.Asset)
	videos.Delete("/:jobId", videoHandler.Delete)

	return &testApp{app: app, service: videoService, enqueuer: enqueuer}
}

// generateToken creates an HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	claims := auth.Claims{
		UserID: "test-user-123",
		Email:  "test@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "quizreel-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// waitForTerminal polls the status endpoint until the job leaves its
// active states or the deadline passes, returning the final status body.
func waitForTerminal(t *testing.T, ta *testApp, jobID string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := doAuthRequest(t, ta.app, "GET", "/api/videos/status/"+jobID, "")
		if err != nil {
			t.Fatalf("status request failed: %v", err)
		}
		body := parseJSON(t, resp)
		status, _ := body["status"].(string)
		if status == "completed" || status == "failed" {
			return body
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", jobID)
	return nil
}
