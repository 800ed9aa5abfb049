package main

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/superbryn/echo-agent/agent/contract"
	"github.com/superbryn/echo-agent/agent/orchestrator"
	"github.com/superbryn/echo-agent/agent/prompt"
	"github.com/superbryn/echo-agent/agent/scheduling"
	"github.com/superbryn/echo-agent/agent/store"
	"github.com/superbryn/echo-agent/agent/summary"
	"github.com/superbryn/echo-agent/agent/tool"
	configx "github.com/superbryn/echo-agent/pkg/config"
	eventsx "github.com/superbryn/echo-agent/pkg/events"
	_ "github.com/superbryn/echo-agent/pkg/logger/autoload"
	openaix "github.com/superbryn/echo-agent/pkg/openai"
)

type AppConfig struct {
	// DatabaseURL is the Postgres DSN. Empty runs the agent on the
	// in-memory store, which is enough for local conversations.
	DatabaseURL string `envconfig:"DATABASE_URL"`
}

func main() {
	ctx := context.Background()

	appCfg := configx.MustNew[AppConfig]("")

	var st contract.Store
	if dsn := strings.TrimSpace(appCfg.DatabaseURL); dsn != "" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		db := bun.NewDB(sqldb, pgdialect.New())
		pg := store.NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("store migration failed")
		}
		st = pg
		log.Info().Msg("using postgres store")
	} else {
		st = store.NewMemory()
		log.Info().Msg("no DATABASE_URL set, using in-memory store")
	}

	engine := scheduling.NewEngine(st)

	prompts := prompt.LoadPromptSet()

	openaiCfg := configx.MustNew[openaix.Config]("OPENAI")
	openaiClient := openaix.NewClient(*openaiCfg)

	summarizer := summary.New(st,
		summary.WithGenerator(summary.NewOpenAIGenerator(openaiClient, *openaiCfg, prompts.Summary)),
		summary.WithTimeout(openaiCfg.Timeout))

	eventsCfg := configx.MustNew[eventsx.Config]("EVENTS")
	eventsClient := eventsx.MustNew(*eventsCfg)

	// Compile one orchestrator up front so a broken graph fails at boot, not
	// on the first call. Real orchestrators are created per call by the voice
	// layer with the same components.
	if _, err := orchestrator.New(uuid.NewString(), st, engine, summarizer,
		orchestrator.WithEvents(eventsClient)); err != nil {
		log.Fatal().Err(err).Msg("orchestrator graph compilation failed")
	}

	log.Info().
		Int("tools", len(tool.Catalog())).
		Bool("summaries", openaiClient != nil).
		Bool("events", eventsClient != nil).
		Msg("agent components ready; orchestrators are created per call")
}
