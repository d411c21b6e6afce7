// Package main is the companion CLI: chat with your companion and manage its
// personality, memories and backstory.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/adk/model"

	"github.com/easeaico/companion/internal/backstory"
	"github.com/easeaico/companion/internal/chat"
	"github.com/easeaico/companion/internal/companion"
	"github.com/easeaico/companion/internal/config"
	"github.com/easeaico/companion/internal/memory"
	"github.com/easeaico/companion/internal/models"
	"github.com/easeaico/companion/internal/storage"
)

var (
	userID  string
	version = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "companion",
	Short: "Chat with your AI companion",
	Long: `companion talks to a personality-configurable AI companion that remembers
what you tell it. Configuration is read from the environment and an optional .env file.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.SlogLevel(),
		})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&userID, "user", "local", "user ID to act as")
}

// app holds the wired services for one command invocation.
type app struct {
	cfg        config.Config
	store      *storage.Store
	companions *companion.Service
	memories   *memory.Service
	chat       *chat.Service
	backstory  *backstory.Evaluator
}

// openApp wires the services for one command. withModel also creates the
// rate-limited chat model and requires the full configuration; without it only
// DATABASE_URL is needed and chat.Send must not be called.
func openApp(ctx context.Context, withModel bool) (*app, error) {
	cfg := config.Load()
	if withModel {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	} else if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	var llm model.LLM
	if withModel {
		var err error
		if llm, err = newModel(ctx, cfg); err != nil {
			return nil, err
		}
	}

	var embedder memory.Embedder
	if cfg.EmbeddingsEnabled() {
		e, err := memory.NewEmbedder(ctx, cfg.GoogleAPIKey, cfg.EmbeddingModel)
		if err != nil {
			return nil, err
		}
		embedder = e
	} else {
		slog.Debug("embeddings disabled, GOOGLE_API_KEY not set")
	}

	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	a := &app{
		cfg:        cfg,
		store:      store,
		companions: companion.NewService(store.Companions),
		memories:   memory.NewService(store.Memories, embedder, cfg.TopK, cfg.SimilarityThreshold),
	}
	a.chat = chat.NewService(chat.Deps{
		Companions:    a.companions,
		Conversations: store.Conversations,
		Messages:      store.Messages,
		Memories:      a.memories,
		LLM:           llm,
	}, chat.Options{
		Model:        cfg.ChatModel,
		Temperature:  float32(cfg.ChatTemperature),
		MaxTokens:    int32(cfg.ChatMaxTokens),
		HistoryLimit: cfg.HistoryLimit,
	})
	if llm != nil {
		a.backstory = backstory.NewEvaluator(llm, cfg.ChatModel)
		slog.Debug("chat model ready", "provider", cfg.LLMProvider, "chat_model", cfg.ChatModel)
	}
	return a, nil
}

func newModel(ctx context.Context, cfg config.Config) (model.LLM, error) {
	llm, err := models.New(ctx, cfg.LLMProvider, cfg.ChatModel, cfg.LLMAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return models.WithRateLimit(llm, cfg.LLMRateLimit, cfg.LLMRateBurst), nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}
