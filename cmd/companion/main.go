// Command companion is the process entrypoint: load configuration, open both
// store tiers, build every core component, preload the configured roles, and
// serve the HTTP surface. Grounded on the teacher's cmd/server main.go wiring
// order (config -> stores -> services -> router -> graceful shutdown).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/kiosk404/soulgraph/internal/companion/analyzer"
	"github.com/kiosk404/soulgraph/internal/companion/clock"
	"github.com/kiosk404/soulgraph/internal/companion/config"
	"github.com/kiosk404/soulgraph/internal/companion/dialogue"
	"github.com/kiosk404/soulgraph/internal/companion/domain"
	"github.com/kiosk404/soulgraph/internal/companion/httpapi"
	"github.com/kiosk404/soulgraph/internal/companion/lifestory"
	"github.com/kiosk404/soulgraph/internal/companion/llm"
	"github.com/kiosk404/soulgraph/internal/companion/log"
	"github.com/kiosk404/soulgraph/internal/companion/mood"
	"github.com/kiosk404/soulgraph/internal/companion/orchestrator"
	"github.com/kiosk404/soulgraph/internal/companion/persona"
	"github.com/kiosk404/soulgraph/internal/companion/plotgen"
	"github.com/kiosk404/soulgraph/internal/companion/plotwindow"
	"github.com/kiosk404/soulgraph/internal/companion/session"
	"github.com/kiosk404/soulgraph/internal/companion/store/durable"
	"github.com/kiosk404/soulgraph/internal/companion/store/hot"
	"github.com/kiosk404/soulgraph/internal/companion/thought"
	"github.com/kiosk404/soulgraph/internal/companion/tools"
)

var logger = log.For("main")

func main() {
	if err := run(); err != nil {
		logger.WithError(err).Fatal("companion exited with error")
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := durable.Open(cfg.Store.BoltPath)
	if err != nil {
		return fmt.Errorf("durable store: %w", err)
	}
	defer db.Close()

	hotStore := hot.New(cfg.Store)
	defer hotStore.Close()

	personas := persona.New(cfg.Paths)
	if err := preloadRoles(personas, cfg.Roles); err != nil {
		return err
	}

	clk := clock.New(hotStore, cfg.Clock)

	replyProvider, err := llm.Build(ctx, cfg.Model.Reply)
	if err != nil {
		return fmt.Errorf("llm reply provider: %w", err)
	}
	analysisProvider, err := llm.Build(ctx, cfg.Model.Analysis)
	if err != nil {
		return fmt.Errorf("llm analysis provider: %w", err)
	}

	initialMood := func(roleID string) domain.Mood {
		p, err := personas.Get(roleID)
		if err != nil {
			return domain.Mood{}
		}
		return p.InitialMood
	}
	moods := mood.New(hotStore, db, cfg.Mood, initialMood)
	moodEngine := mood.NewEngine(analysisProvider)

	az := analyzer.New(analysisProvider)
	th := thought.New(analysisProvider)
	pw := plotwindow.New(cfg.Paths)
	dl := dialogue.New(hotStore, db, cfg.Dialogue)
	sessions := session.New(db, clk)

	toolProvider, closeTools, err := buildToolProvider(ctx, cfg.Tools)
	if err != nil {
		return fmt.Errorf("tool provider: %w", err)
	}
	defer closeTools()

	orch := orchestrator.New(personas, moods, moodEngine, az, th, pw, dl, toolProvider, replyProvider, clk, cfg.Model)

	gen := plotgen.New(analysisProvider, cfg.Paths)
	lifeStory := lifestory.New(db, personas, gen, cfg.Paths)

	deps := &httpapi.Deps{
		Personas:     personas,
		Moods:        moods,
		PlotWindow:   pw,
		Sessions:     sessions,
		Dialogue:     dl,
		Orchestrator: orch,
		LifeStory:    lifeStory,
		Clock:        clk,
	}

	go runDailyAdvance(ctx, lifeStory, clk)

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: httpapi.NewRouter(deps)}
	return serveUntilSignal(ctx, srv)
}

// loadConfig wires viper to an optional config file and environment
// overrides, falling back to config.Default() when none is present.
func loadConfig() (*config.Config, error) {
	v := viper.New()
	v.SetConfigName("companion")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("companion")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		logger.Info("no companion.yaml found, using defaults")
	}
	return config.Load(v)
}

// preloadRoles loads every configured role's persona at startup. A missing
// persona file is fatal (spec §4.C) rather than deferred to first request.
func preloadRoles(store *persona.Store, roles []config.RoleConfig) error {
	for _, r := range roles {
		desc := persona.Descriptor{
			RoleID:   r.RoleID,
			RoleName: r.RoleName,
			Age:      r.Age,
			InitialMood: domain.Mood{
				Valence:     r.InitialValence,
				Arousal:     r.InitialArousal,
				Intensity:   r.InitialIntensity,
				Description: r.InitialDescription,
			},
		}
		if r.InitialTags != "" {
			desc.InitialMood.Tags = []string{r.InitialTags}
		}
		desc.InitialMood.Clamp()
		if _, err := store.Load(desc); err != nil {
			return fmt.Errorf("preload role %q: %w", r.RoleID, err)
		}
		logger.WithField("role_id", r.RoleID).Info("persona loaded")
	}
	return nil
}

// buildToolProvider connects every configured MCP server and exposes their
// discovered tools to the orchestrator; with none configured the orchestrator
// runs tool-free behind an empty static provider.
func buildToolProvider(ctx context.Context, cfg config.ToolsConfig) (tools.Provider, func(), error) {
	if len(cfg.MCPServers) == 0 {
		return tools.NewStatic(nil), func() {}, nil
	}
	registry := tools.NewMCPRegistry()
	for _, s := range cfg.MCPServers {
		if err := registry.Connect(ctx, s.Name, s.Command, s.Args, s.Env); err != nil {
			registry.Close()
			return nil, nil, err
		}
	}
	return registry, registry.Close, nil
}

// runDailyAdvance polls the Life-Story State Machine once an hour, checking
// whether the civil date has turned over since the last advance (spec §4.K).
// Grounded on the teacher's background-ticker pattern for periodic
// maintenance passes.
func runDailyAdvance(ctx context.Context, m *lifestory.Machine, clk *clock.Clock) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fired, err := m.Advance(ctx, clk.Now(ctx))
			if err != nil {
				logger.WithError(err).Warn("life story advance failed")
				continue
			}
			if fired {
				logger.Info("life story advanced for a new day")
			}
		}
	}
}

func serveUntilSignal(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Info("companion http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Info("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
