package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/diveops-backend/internal/pkg/logger"
	"github.com/yungbote/diveops-backend/internal/platform/deckgen"
	"github.com/yungbote/diveops-backend/internal/platform/gcp"
	"github.com/yungbote/diveops-backend/internal/platform/locks"
	"github.com/yungbote/diveops-backend/internal/platform/openai"
)

// Clients are the external backends, built once and injected.
type Clients struct {
	OpenAI openai.Client
	Deck   deckgen.Client
	Mirror gcp.ArtifactMirror
	Locker locks.TrackLocker

	closers []func() error
}

func (c Clients) Close() error {
	var errs []error
	for _, fn := range c.closers {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// OpenAI (script + speech). Missing credentials leave generation disabled.
	if cfg.OpenAI.APIKey != "" {
		c, err := openai.NewClient(log, cfg.OpenAI)
		if err != nil {
			return Clients{}, fmt.Errorf("init openai: %w", err)
		}
		out.OpenAI = c
	} else {
		log.Warn("OPENAI_API_KEY not set; podcast generation disabled")
	}

	// Document backend
	if cfg.Deck.APIKey != "" {
		c, err := deckgen.NewClient(log, cfg.Deck)
		if err != nil {
			return Clients{}, fmt.Errorf("init deck client: %w", err)
		}
		out.Deck = c
	} else {
		log.Warn("DECK_API_KEY not set; PDF generation disabled")
	}

	// Artifact mirror
	mirror, err := resolveArtifactMirror(ctx, log)
	if err != nil {
		return Clients{}, err
	}
	out.Mirror = mirror

	// Restore locks
	if cfg.RedisAddr != "" {
		l, err := locks.NewRedis(log, locks.RedisConfig{Addr: cfg.RedisAddr})
		if err != nil {
			return Clients{}, fmt.Errorf("init redis locks: %w", err)
		}
		out.Locker = l
		out.closers = append(out.closers, l.Close)
	} else {
		out.Locker = locks.NewLocal()
	}
	return out, nil
}
