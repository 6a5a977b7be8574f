package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ent0n29/intervue/internal/agentbackend"
	"github.com/ent0n29/intervue/internal/catalog"
	"github.com/ent0n29/intervue/internal/config"
	"github.com/ent0n29/intervue/internal/httpapi"
	"github.com/ent0n29/intervue/internal/interview"
	"github.com/ent0n29/intervue/internal/media"
	"github.com/ent0n29/intervue/internal/observability"
	"github.com/ent0n29/intervue/internal/presence"
	"github.com/ent0n29/intervue/internal/session"
	"github.com/ent0n29/intervue/internal/signaling"
	"github.com/ent0n29/intervue/internal/transcript"
)

type BackendInfo struct {
	Media        string
	AgentBackend string
}

type BuildResult struct {
	Config     config.Config
	API        *httpapi.Server
	Controller *interview.Controller
	Hub        *signaling.Hub
	Metrics    *observability.Metrics
	Backends   BackendInfo

	// FakeRooms is set in MEDIA_MODE=mock.
	FakeRooms *media.FakeRoomService

	// Cleanup should be called on shutdown to release external resources (DB, redis, mongo).
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	var closers []func() error
	fail := func(err error) (*BuildResult, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	tmpl, err := catalog.LoadTemplateFile(cfg.PromptTemplatePath)
	if err != nil {
		return nil, fmt.Errorf("prompt template: %w", err)
	}

	sessions, err := session.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fail(fmt.Errorf("session store init failed: %w", err))
	}
	closers = append(closers, sessions.Close)

	cat, err := catalog.NewCatalog(ctx, cfg.DatabaseURL)
	if err != nil {
		return fail(fmt.Errorf("catalog init failed: %w", err))
	}
	closers = append(closers, cat.Close)
	if mem, ok := cat.(*catalog.InMemoryCatalog); ok {
		mem.PutTemplate(tmpl)
	}

	transcripts, err := transcript.NewStore(ctx, transcript.Options{
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
		DatabaseURL:   cfg.DatabaseURL,
	})
	if err != nil {
		return fail(fmt.Errorf("transcript store init failed: %w", err))
	}
	closers = append(closers, transcripts.Close)

	mediaSetup, err := resolveMedia(cfg)
	if err != nil {
		return fail(err)
	}
	backend, backendDetail, err := resolveAgentBackend(cfg, mediaSetup.fake)
	if err != nil {
		return fail(err)
	}

	ledger, err := agentbackend.NewLedger(ctx, cfg.RedisAddr, cfg.SummonLedgerTTL)
	if err != nil {
		return fail(fmt.Errorf("summon ledger init failed: %w", err))
	}
	notifier := agentbackend.NewBestEffortNotifier(backend, ledger, metrics, cfg.AgentSummonTimeout, cfg.AgentDetailsTimeout)
	closers = append(closers, notifier.Close)

	hub := signaling.NewHub(0, metrics)
	reconciler := presence.NewReconciler(
		mediaSetup.rooms,
		presence.NewClassifier(cfg.AgentIdentityMarker, cfg.CandidateIdentityMarker),
		metrics,
	)

	ctrl := interview.NewController(interview.Deps{
		Sessions:    sessions,
		Catalog:     cat,
		Provisioner: media.NewProvisioner(mediaSetup.rooms, cfg.RoomEmptyTimeout, cfg.RoomMaxParticipants),
		Tokens:      mediaSetup.tokens,
		Presence:    reconciler,
		Notifier:    notifier,
		Transcripts: transcripts,
		Publisher:   hub,
		Metrics:     metrics,
	}, interview.Options{
		MediaURL:         mediaSetup.mediaURL,
		AgentMarker:      cfg.AgentIdentityMarker,
		CandidateMarker:  cfg.CandidateIdentityMarker,
		SummonReplyWait:  cfg.AgentSummonReplyWait,
		AgentWaitTimeout: cfg.AgentWaitTimeout,
		DefaultTemplate:  tmpl,
	})
	runner := signaling.NewRunner(ctrl, hub, reconciler, cfg.PresencePollInterval, metrics)
	api := httpapi.New(cfg, ctrl, runner, metrics)

	cleanup := func() error {
		var errs []string
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err.Error())
			}
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:     cfg,
		API:        api,
		Controller: ctrl,
		Hub:        hub,
		Metrics:    metrics,
		Backends: BackendInfo{
			Media:        mediaSetup.detail,
			AgentBackend: backendDetail,
		},
		FakeRooms: mediaSetup.fake,
		Cleanup:   cleanup,
	}, nil
}
