package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	genchatwebui "github.com/ferrywell/genchat-web-ui"
	"github.com/ferrywell/genchat-web-ui/internal/handlers"
	"github.com/ferrywell/genchat-web-ui/internal/session"
	"gopkg.in/yaml.v3"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	sess := session.NewController(
		cfg.LLM.factory(cfg.SystemPrompt, logger),
		cfg.WelcomeMessage,
		logger,
	)

	m, err := handlers.NewMain(sess, logger)
	if err != nil {
		log.Fatal(fmt.Errorf("error creating handlers: %w", err))
	}

	// Serve static files
	staticFS, err := fs.Sub(genchatwebui.StaticFS, "static")
	if err != nil {
		log.Fatal(err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	// Create custom mux
	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/credential", m.HandleCredential)
	mux.HandleFunc("/chats", m.HandleChats)
	mux.HandleFunc("/sse/messages", m.HandleSSE)

	// Create custom server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		// Stop applying fragments, then drain the in-flight stream before
		// taking the SSE server down.
		sess.Close()
		sess.Wait()

		if err := m.Shutdown(context.Background()); err != nil {
			log.Printf("Failed to shutdown sse server: %v", err)
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Println("Server starting on :" + cfg.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		log.Printf("Server error: %v", err)

	case sig := <-shutdown:
		log.Printf("Start shutdown, signal: %v", sig)

		// Create context with timeout for shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Gracefully shutdown the server
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Graceful shutdown failed: %v", err)
			if err := srv.Close(); err != nil {
				log.Printf("Forcing server close: %v", err)
			}
		}
	}
}

// loadConfig reads the YAML config from the user config dir. A missing file
// is not an error; the built-in Gemini defaults apply so the widget runs with
// zero setup. The provider credential never comes from config or environment.
func loadConfig() (config, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return config{}, fmt.Errorf("error getting user config dir: %w", err)
	}

	cfgFilePath := filepath.Join(cfgDir, "genchat", "config.yaml")
	cfgFile, err := os.Open(cfgFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}
	defer cfgFile.Close()

	cfg := config{}
	if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		return config{}, fmt.Errorf("error decoding config file: %w", err)
	}
	return cfg, nil
}
