package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	authmemory "github.com/PabloGalante/nota-agent/internal/adapters/auth/memory"
	"github.com/PabloGalante/nota-agent/internal/adapters/auth/redisauth"
	httpadapter "github.com/PabloGalante/nota-agent/internal/adapters/http"
	"github.com/PabloGalante/nota-agent/internal/adapters/llm"
	firestorestore "github.com/PabloGalante/nota-agent/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/nota-agent/internal/adapters/storage/memory"
	pgstore "github.com/PabloGalante/nota-agent/internal/adapters/storage/postgres"
	"github.com/PabloGalante/nota-agent/internal/app/conversation"
	"github.com/PabloGalante/nota-agent/internal/app/legislation"
	"github.com/PabloGalante/nota-agent/internal/app/notes"
	"github.com/PabloGalante/nota-agent/internal/app/planner"
	"github.com/PabloGalante/nota-agent/internal/app/session"
	"github.com/PabloGalante/nota-agent/internal/config"
	"github.com/PabloGalante/nota-agent/internal/domain"
	"github.com/PabloGalante/nota-agent/internal/observability"
)

// authBackend is an identity provider the API can also sign users in and
// out of.
type authBackend interface {
	domain.AuthProvider
	domain.SessionWriter
}

type stores struct {
	chats    domain.ChatStore
	messages domain.MessageStore
	notes    domain.NoteStore
	events   domain.EventStore
	close    func()
}

func main() {
	// .env is optional; real env vars win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		observability.Logger().Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	observability.Setup(os.Stdout, cfg.LogLevel)
	log := observability.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := newGateway(ctx, cfg)
	if err != nil {
		log.Error("error initializing generation gateway", "error", err)
		os.Exit(1)
	}

	st, err := newStores(ctx, cfg)
	if err != nil {
		log.Error("error initializing storage", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	defer st.close()

	auth, err := newAuthProvider(ctx, cfg)
	if err != nil {
		log.Error("error initializing auth provider", "backend", cfg.AuthBackend, "error", err)
		os.Exit(1)
	}

	monitor := session.NewMonitor(auth)
	monitor.Bootstrap(ctx)
	defer monitor.Teardown()

	handler := httpadapter.NewServer(httpadapter.Deps{
		Chats:       conversation.NewService(gw, st.chats, st.messages),
		Planner:     planner.NewService(gw, st.events),
		Notes:       notes.NewService(st.notes),
		Legislation: legislation.DefaultCatalog(),
		Monitor:     monitor,
		Sessions:    auth,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
	}()

	log.Info("Nota API listening", "port", cfg.Port, "mode", cfg.Mode, "view", monitor.View())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
	log.Info("Nota API stopped")
}

func newGateway(ctx context.Context, cfg *config.Config) (domain.GenerationGateway, error) {
	log := observability.Logger()

	var gw domain.GenerationGateway
	if cfg.UseMockLLM {
		log.Info("using mock generation gateway")
		gw = llm.NewMockGateway()
	} else {
		log.Info("using gemini generation gateway", "model", cfg.ModelName, "vertex", cfg.GeminiAPIKey == "")
		gemini, err := llm.NewGeminiGateway(ctx, llm.GeminiConfig{
			APIKey:   cfg.GeminiAPIKey,
			Project:  cfg.GCPProjectID,
			Location: cfg.GCPLocation,
			Model:    cfg.ModelName,
		})
		if err != nil {
			return nil, err
		}
		gw = gemini
	}

	return llm.WithMetrics(llm.WithTimeout(gw, cfg.GenerationTimeout)), nil
}

func newStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	log := observability.Logger()

	switch cfg.StorageBackend {
	case "firestore":
		log.Info("using firestore storage", "project", cfg.GCPProjectID)
		fs, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, err
		}
		// 1 store, implements every store interface
		return &stores{chats: fs, messages: fs, notes: fs, events: fs, close: func() { _ = fs.Close() }}, nil

	case "postgres":
		log.Info("using postgres storage")
		pg, err := pgstore.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return &stores{chats: pg, messages: pg, notes: pg, events: pg, close: pg.Close}, nil

	default:
		log.Info("using in-memory storage")
		return &stores{
			chats:    memstore.NewChatStore(),
			messages: memstore.NewMessageStore(),
			notes:    memstore.NewNoteStore(),
			events:   memstore.NewEventStore(),
			close:    func() {},
		}, nil
	}
}

func newAuthProvider(ctx context.Context, cfg *config.Config) (authBackend, error) {
	if cfg.AuthBackend == "redis" {
		observability.Logger().Info("using redis auth provider", "addr", cfg.RedisAddr)
		return redisauth.NewProvider(ctx, redisauth.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
			Channel:  cfg.RedisChannel,
		})
	}

	provider := authmemory.NewProvider()
	if cfg.DevUserEmail != "" {
		if err := provider.SignIn(ctx, session.LocalIdentity(cfg.DevUserEmail)); err != nil {
			return nil, err
		}
		observability.Logger().Info("signed in local user", "email", cfg.DevUserEmail)
	}
	return provider, nil
}
