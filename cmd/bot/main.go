// Package main is the entry point for the Discord claim bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"discord-claim-bot/internal/bot"
	"discord-claim-bot/internal/config"
	"discord-claim-bot/internal/dedup"
	"discord-claim-bot/internal/pkg/db"
	"discord-claim-bot/internal/pkg/ratelimit"
	"discord-claim-bot/internal/repository"
	"discord-claim-bot/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	playerRepo := repository.NewPlayerRepository(dbPool.Pool)
	guildRepo := repository.NewGuildRepository(dbPool.Pool)
	balanceRepo := repository.NewBalanceRepository(dbPool.Pool)

	// Process-owned shared state: fingerprint cache and outbound throttle
	fingerprints := dedup.NewCache(cfg.Claims.DedupTTL)
	limiter := ratelimit.New(cfg.RateLimit.Window, cfg.RateLimit.MaxRequests)

	// Hourly fingerprint eviction
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(time.Hour),
		gocron.NewTask(func() {
			fingerprints.Evict()
		}),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule fingerprint eviction")
	}
	// Periodic pool health check
	_, err = scheduler.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() {
			if err := dbPool.HealthCheck(ctx); err != nil {
				log.Error().Err(err).Msg("Database health check failed")
				return
			}
			stats := dbPool.Stats()
			log.Debug().
				Int32("total_conns", stats.TotalConns()).
				Int32("idle_conns", stats.IdleConns()).
				Int32("acquired_conns", stats.AcquiredConns()).
				Msg("Database pool healthy")
		}),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule database health check")
	}
	scheduler.Start()
	defer func() { _ = scheduler.Shutdown() }()

	// The Discord session is needed by the resolver/messenger/role
	// adapters, so services are wired in two steps: services first with
	// late-bound adapters, then the bot.
	summonService := service.NewSummonService(service.SummonConfig{
		GuildID:        cfg.Summon.GuildID,
		WindowDuration: cfg.Summon.WindowDuration,
		BoosterRoleID:  cfg.Summon.BoosterRoleID,
		ClanRoleID:     cfg.Summon.ClanRoleID,
	}, balanceRepo, nil, nil)

	claimService := service.NewClaimService(fingerprints, nil, playerRepo, guildRepo)

	deps := &bot.Dependencies{
		Config:        cfg,
		ClaimService:  claimService,
		SummonService: summonService,
	}

	discordBot, err := bot.New(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	// Bind the session-backed adapters now that the session exists
	claimService.SetResolver(bot.NewMemberResolver(discordBot.Session()))
	summonService.SetRoleChecker(bot.NewGuildRoleChecker(discordBot.Session()))
	summonService.SetMessenger(bot.NewThrottledMessenger(discordBot.Session(), limiter))

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := discordBot.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start bot")
	}

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	discordBot.Stop()
	log.Info().Msg("Bot stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Player and guild aggregate roots
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS players (
			user_id VARCHAR(32) NOT NULL,
			guild_id VARCHAR(32) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, guild_id)
		);
		CREATE TABLE IF NOT EXISTS guilds (
			guild_id VARCHAR(32) PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: aggregate root tables created")

	// Migration 2: Bounded claim lists with the idempotency constraint
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS player_claims (
			id BIGSERIAL PRIMARY KEY,
			user_id VARCHAR(32) NOT NULL,
			guild_id VARCHAR(32) NOT NULL,
			tier SMALLINT NOT NULL,
			claimed_id TEXT NOT NULL,
			card_id BIGINT NOT NULL,
			card_name TEXT NOT NULL,
			owner TEXT NOT NULL DEFAULT '',
			artist TEXT NOT NULL DEFAULT '',
			print_number INT NOT NULL,
			manual BOOLEAN NOT NULL DEFAULT FALSE,
			claimed_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, guild_id, claimed_id, card_id, claimed_at)
		);
		CREATE INDEX IF NOT EXISTS idx_player_claims_tier ON player_claims(user_id, guild_id, tier, claimed_at DESC);
		CREATE TABLE IF NOT EXISTS guild_claims (
			id BIGSERIAL PRIMARY KEY,
			guild_id VARCHAR(32) NOT NULL,
			user_id VARCHAR(32) NOT NULL,
			tier SMALLINT NOT NULL,
			claimed_id TEXT NOT NULL,
			card_id BIGINT NOT NULL,
			card_name TEXT NOT NULL,
			owner TEXT NOT NULL DEFAULT '',
			artist TEXT NOT NULL DEFAULT '',
			print_number INT NOT NULL,
			claimed_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (guild_id, claimed_id, card_id, claimed_at)
		);
		CREATE INDEX IF NOT EXISTS idx_guild_claims_tier ON guild_claims(guild_id, tier, claimed_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: claim list tables created")

	// Migration 3: Per-tier counters
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS player_tier_counts (
			user_id VARCHAR(32) NOT NULL,
			guild_id VARCHAR(32) NOT NULL,
			tier SMALLINT NOT NULL,
			count BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, guild_id, tier)
		);
		CREATE TABLE IF NOT EXISTS guild_tier_counts (
			guild_id VARCHAR(32) NOT NULL,
			tier SMALLINT NOT NULL,
			count BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (guild_id, tier)
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: tier counter tables created")

	// Migration 4: Capped token balances
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS balances (
			user_id VARCHAR(32) PRIMARY KEY,
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0 AND balance <= 30000),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: balances table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
