// Command progresswatch follows the progress socket of a running API and
// prints every event. When a job finishes it fetches the stored record so
// the final video and thumbnail references are shown.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/SkelleTu/UltraPix/internal/domain"
	"github.com/SkelleTu/UltraPix/internal/infra"
	"github.com/SkelleTu/UltraPix/internal/progress"
)

func main() {
	_ = godotenv.Load()

	var (
		wsURL   = flag.String("url", getenv("PROGRESS_URL", "ws://localhost:8080/ws/progress"), "progress websocket URL")
		apiBase = flag.String("api", getenv("API_BASE_URL", "http://localhost:8080"), "API base URL used to refetch finished jobs")
		token   = flag.String("token", os.Getenv("API_TOKEN"), "bearer token for job lookups")
		seed    = flag.Duration("backoff", progress.DefaultBackoffSeed, "first reconnect delay")
		verbose = flag.Bool("v", false, "log connection attempts")
	)
	flag.Parse()

	level := "production"
	if *verbose {
		level = "development"
	}
	logger := infra.NewLogger(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher := &jobFetcher{
		base:   strings.TrimRight(*apiBase, "/"),
		token:  *token,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	client := progress.NewClient(progress.ClientOptions{
		URL:    *wsURL,
		Seed:   *seed,
		Logger: &logger,
		OnProgress: func(ev domain.ProgressEvent) {
			fmt.Printf("%s %-12s %3d%% %s\n", ev.JobID, ev.Stage, ev.Progress, ev.Message)
		},
		OnInvalidate: func(jobID string) {
			go fetcher.report(ctx, jobID)
		},
	})
	client.Start()
	defer client.Close()

	<-ctx.Done()
}

type jobFetcher struct {
	base   string
	token  string
	client *http.Client
}

func (f *jobFetcher) report(ctx context.Context, jobID string) {
	if f.token == "" {
		fmt.Printf("%s finished (no token, skipping lookup)\n", jobID)
		return
	}
	job, err := f.fetch(ctx, jobID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: lookup failed: %v\n", jobID, err)
		return
	}
	switch job.Status {
	case domain.JobStatusCompleted:
		fmt.Printf("%s completed video=%s thumbnail=%s\n", job.ID, job.VideoRef, job.ThumbnailRef)
	default:
		fmt.Printf("%s %s %s\n", job.ID, job.Status, job.ErrorMessage())
	}
}

func (f *jobFetcher) fetch(ctx context.Context, jobID string) (*domain.Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.base+"/api/videos/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+f.token)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var job domain.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
