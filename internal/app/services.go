package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/diveops-backend/internal/data/repos"
	"github.com/yungbote/diveops-backend/internal/jobs/scheduler"
	"github.com/yungbote/diveops-backend/internal/modules/content/artifacts"
	"github.com/yungbote/diveops-backend/internal/modules/content/generation"
	"github.com/yungbote/diveops-backend/internal/modules/content/script"
	"github.com/yungbote/diveops-backend/internal/modules/integrity"
	"github.com/yungbote/diveops-backend/internal/observability"
	"github.com/yungbote/diveops-backend/internal/pkg/logger"
)

type Services struct {
	Artifacts *artifacts.Persister
	Podcasts  *generation.PodcastService
	Decks     *generation.DeckService
	Registry  *integrity.Registry
	Auditor   *integrity.Auditor
	Scheduler *scheduler.Scheduler
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r repos.Repos, c Clients) (Services, error) {
	log.Info("Wiring services...")

	var opts []artifacts.Option
	if c.Mirror != nil {
		opts = append(opts, artifacts.WithMirror(c.Mirror))
	}
	persister, err := artifacts.NewPersister(log, cfg.Artifact, opts...)
	if err != nil {
		return Services{}, fmt.Errorf("init artifact persister: %w", err)
	}

	podcasts := generation.NewPodcastService(generation.PodcastDeps{
		Log:               log,
		Tracks:            r.Tracks,
		Lessons:           r.Lessons,
		Logs:              r.GenerationLogs,
		Speech:            c.OpenAI,
		Synthesizer:       script.NewSynthesizer(log, c.OpenAI),
		Store:             persister,
		ScriptMode:        cfg.ScriptMode,
		SpeechConcurrency: cfg.SpeechConcurrency,
	})
	decks := generation.NewDeckService(generation.DeckDeps{
		Log:     log,
		Tracks:  r.Tracks,
		Lessons: r.Lessons,
		Quizzes: r.Quizzes,
		Logs:    r.GenerationLogs,
		Deck:    c.Deck,
		Store:   persister,
	})

	registry, err := integrity.LoadRegistry(cfg.IntegrityBackupPath)
	if err != nil {
		return Services{}, fmt.Errorf("load integrity registry: %w", err)
	}

	deps := integrity.Deps{
		DB:        db,
		Log:       log,
		Tracks:    r.Tracks,
		Lessons:   r.Lessons,
		Quizzes:   r.Quizzes,
		Registry:  registry,
		Artifacts: persister,
		Locker:    c.Locker,
		Media:     &generation.Regenerator{Podcasts: podcasts, Decks: decks},
		Tracer:    observability.NewAuditTracer(log, nil),
	}
	if alerts := observability.NewAlertSender(log, cfg.AlertWebhookURL); alerts != nil {
		deps.Alerts = alerts
	}
	auditor, err := integrity.NewAuditor(deps)
	if err != nil {
		return Services{}, fmt.Errorf("init integrity auditor: %w", err)
	}

	sched := scheduler.New(log, auditor, scheduler.Config{
		Interval:  cfg.IntegrityInterval,
		OnStartup: cfg.IntegrityOnStartup,
		Options:   scheduler.DefaultOptions(),
	})

	return Services{
		Artifacts: persister,
		Podcasts:  podcasts,
		Decks:     decks,
		Registry:  registry,
		Auditor:   auditor,
		Scheduler: sched,
	}, nil
}
