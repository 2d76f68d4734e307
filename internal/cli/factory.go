// Package cli holds the wiring shared by the dugout subcommands.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	backend "github.com/redis/go-redis/v9"

	"github.com/dugoutlabs/dugout"
	"github.com/dugoutlabs/dugout/internal/config"
	genaiadapter "github.com/dugoutlabs/dugout/pkg/adapters/genai"
	"github.com/dugoutlabs/dugout/pkg/adapters/memory"
	"github.com/dugoutlabs/dugout/pkg/adapters/mlb"
	redisadapter "github.com/dugoutlabs/dugout/pkg/adapters/redis"
	"github.com/dugoutlabs/dugout/pkg/ports"
)

// BuildAgent assembles a fully wired agent from configuration: the Gemini
// client for language tasks, the Stats API client for baseball data, and the
// configured checkpoint backend. The returned closer releases the backend
// connection and must be called when the agent is no longer needed.
func BuildAgent(ctx context.Context, cfg *config.Config, logger *slog.Logger, extra ...dugout.Option) (*dugout.Agent, func(), error) {
	llm, err := genaiadapter.New(ctx, cfg.GenAI.APIKey,
		genaiadapter.WithModel(cfg.GenAI.Model),
		genaiadapter.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("init genai client: %w", err)
	}

	ballpark := mlb.New(
		mlb.WithBaseURL(cfg.MLB.BaseURL),
		mlb.WithLogger(logger),
	)

	opts := []dugout.Option{
		dugout.WithLogger(logger),
		dugout.WithMaxReplans(cfg.MaxReplans),
	}

	closer := func() {}
	switch cfg.Store {
	case config.StoreRedis:
		// One client backs both the store and the locker.
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := redisadapter.NewFromClient(client, redisadapter.WithTTL(cfg.Redis.SessionTTL))
		opts = append(opts,
			dugout.WithStore(store),
			dugout.WithLocker(redisadapter.NewLocker(client, "dugout:")),
		)
		closer = func() { _ = client.Close() }
	case config.StoreMemory:
		opts = append(opts, dugout.WithStore(memory.NewStore()))
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	opts = append(opts, extra...)

	agent, err := dugout.New(dugout.Collaborators{
		Directory:  ballpark,
		Stats:      ballpark,
		Documents:  llm,
		Ledger:     ballpark,
		Judge:      llm,
		Classifier: llm,
		Responder:  llm,
		Planner:    llm,
	}, opts...)
	if err != nil {
		closer()
		return nil, nil, err
	}

	return agent, closer, nil
}

// BuildStore constructs the configured checkpoint backend without the rest of
// the agent. Session maintenance commands use it to inspect and remove
// sessions directly.
func BuildStore(cfg *config.Config) (ports.CheckpointStore, func(), error) {
	switch cfg.Store {
	case config.StoreRedis:
		store := redisadapter.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redisadapter.WithTTL(cfg.Redis.SessionTTL),
		)
		return store, func() { _ = store.Close() }, nil
	case config.StoreMemory:
		return memory.NewStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
