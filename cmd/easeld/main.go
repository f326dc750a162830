package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/easelhq/easel/internal/canvasstore"
	"github.com/easelhq/easel/internal/captcha"
	"github.com/easelhq/easel/internal/clock"
	"github.com/easelhq/easel/internal/config"
	"github.com/easelhq/easel/internal/noise"
	"github.com/easelhq/easel/internal/session"
	"github.com/easelhq/easel/internal/settle"
	"github.com/easelhq/easel/pkg/board"
)

func main() {
	// 1. Load environment variables
	instanceName := os.Getenv("EASEL_INSTANCE_NAME")
	redisURL := os.Getenv("REDIS_URL")

	if instanceName == "" || redisURL == "" {
		fmt.Fprintf(os.Stderr, "Error: EASEL_INSTANCE_NAME and REDIS_URL must be set\n")
		os.Exit(1)
	}

	configPath := os.Getenv("EASEL_CONFIG")
	if configPath == "" {
		configPath = "easel.yml"
	}

	// 2. Parse Redis URL
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid REDIS_URL: %v\n", err)
		os.Exit(1)
	}

	// 3. Create board and canvas store clients
	boardClient, err := board.NewClient(redisOpts, instanceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create board client: %v\n", err)
		os.Exit(1)
	}
	defer boardClient.Close()

	canvases, err := canvasstore.NewClient(redisOpts, instanceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create canvas store client: %v\n", err)
		os.Exit(1)
	}
	defer canvases.Close()

	settlement, err := settle.NewClient(redisOpts, instanceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create settlement client: %v\n", err)
		os.Exit(1)
	}
	defer settlement.Close()

	// 4. Verify Redis connectivity
	ctx := context.Background()
	if err := boardClient.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Redis not accessible: %v\n", err)
		os.Exit(1)
	}

	// 5. Load easel.yml configuration; fall back to defaults when absent
	cfg, err := config.Load(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Error: Failed to load %s: %v\n", configPath, err)
			os.Exit(1)
		}
		cfg = config.Default()
		fmt.Printf("No %s found, using default configuration\n", configPath)
	}

	fmt.Printf("Engine starting for instance '%s'\n", instanceName)

	scheduler := clock.New()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	// 6. Wire the challenge gate when enabled
	var gate captcha.Gate
	if cfg.Captcha.Enabled {
		palette, err := noise.GeneratePalette(rng, *cfg.Session.PaletteSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to generate challenge palette: %v\n", err)
			os.Exit(1)
		}
		gate, err = captcha.NewPaletteMatch(rng, scheduler, palette)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to create challenge gate: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Challenge gate enabled")
	}

	// 7. Create the session engine
	engine, err := session.NewEngine(boardClient, canvases, scheduler, settlement, nil, gate, cfg, rng, instanceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create engine: %v\n", err)
		os.Exit(1)
	}

	// 8. Setup graceful shutdown
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	// 9. Start engine in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- engine.Run(runCtx)
	}()

	// 10. Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		fmt.Printf("Received signal %v, shutting down gracefully...\n", sig)
		cancel()
		<-errCh
	case runErr := <-errCh:
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "Engine error: %v\n", runErr)
			os.Exit(1)
		}
	}

	fmt.Println("Engine stopped")
}
