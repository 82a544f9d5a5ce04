package main

import (
	"context"
	"fmt"
	"fraud_monitor/internal/auth"
	"fraud_monitor/internal/config"
	"fraud_monitor/internal/domain"
	"fraud_monitor/internal/embedding"
	"fraud_monitor/internal/events"
	"fraud_monitor/internal/llm"
	"fraud_monitor/internal/processor"
	"fraud_monitor/internal/repository"
	"fraud_monitor/internal/repository/jsonfile"
	"fraud_monitor/internal/repository/memory"
	"fraud_monitor/internal/repository/sqlstore"
	"fraud_monitor/internal/seed"
	"fraud_monitor/internal/service"
	"fraud_monitor/pkg/crypto"
	"log/slog"
)

func openStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (repository.Store, error) {
	var (
		store repository.Store
		err   error
	)
	switch cfg.ResolvedDriver() {
	case config.DriverPostgres:
		store, err = sqlstore.OpenPostgres(ctx, cfg.DatabaseURL, logger)
	case config.DriverSQLite:
		store, err = sqlstore.OpenSQLite(ctx, cfg.SQLitePath, logger)
	case config.DriverJSON:
		store, err = jsonfile.Open(cfg.DataDir, logger)
	default:
		logger.Warn("Using in-memory storage, data is lost on restart")
		store = memory.NewStore()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.ResolvedDriver(), err)
	}
	return store, nil
}

// newModel prefers OpenAI, then Gemini. A nil model means heuristic scoring only.
func newModel(cfg config.AIConfig, logger *slog.Logger) llm.Model {
	switch {
	case cfg.OpenAIAPIKey != "":
		logger.Info("Using OpenAI for fraud analysis")
		return llm.NewOpenAIClient(cfg.OpenAIAPIKey,
			llm.WithBaseURL(cfg.OpenAIBaseURL),
			llm.WithModel(cfg.OpenAIModel),
			llm.WithMaxAttempts(cfg.MaxAttempts))
	case cfg.GeminiAPIKey != "":
		logger.Info("Using Gemini for fraud analysis")
		return llm.NewGeminiClient(cfg.GeminiAPIKey,
			llm.WithModel(cfg.GeminiModel),
			llm.WithMaxAttempts(cfg.MaxAttempts))
	}
	logger.Warn("No model API key set, using heuristic analysis")
	return nil
}

func newEmbedder(cfg config.AIConfig, logger *slog.Logger) embedding.Embedder {
	hash := embedding.NewHashEmbedder(embedding.DefaultDimensions)
	if cfg.OpenAIAPIKey == "" {
		return hash
	}
	return embedding.NewFallback(
		embedding.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel),
		hash,
		logger,
	)
}

func newCascade(cfg config.AlertsConfig, logger *slog.Logger) service.Cascade {
	log := service.NewLogProvider(logger)

	slack := []service.Provider{}
	if cfg.SlackWebhookURL != "" {
		slack = append(slack, service.NewSlackWebhookProvider(cfg.SlackWebhookURL))
	}

	email := []service.Provider{}
	if cfg.EmailAPIKey != "" {
		email = append(email, service.NewEmailAPIProvider(cfg.EmailAPIKey, cfg.EmailAPIURL, cfg.EmailFrom, cfg.EmailTo))
	}
	if cfg.SMTPHost != "" {
		email = append(email, service.NewSMTPProvider(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.EmailFrom, cfg.EmailTo))
	}

	notion := []service.Provider{}
	if cfg.NotionAPIKey != "" && cfg.NotionDatabaseID != "" {
		notion = append(notion, service.NewNotionProvider(cfg.NotionAPIKey, cfg.NotionDatabaseID, cfg.NotionBaseURL))
	}

	return service.Cascade{
		domain.ChannelSlack:  append(slack, log),
		domain.ChannelEmail:  append(email, log),
		domain.ChannelNotion: append(notion, log),
	}
}

func newPublisher(cfg config.EventsConfig, logger *slog.Logger) (events.Publisher, error) {
	var signer *crypto.Signer
	if cfg.SigningKey != "" {
		signer = crypto.NewSigner(cfg.SigningKey, logger)
	}

	switch {
	case len(cfg.KafkaBrokers) > 0:
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, signer, logger), nil
	case cfg.RabbitMQURL != "":
		publisher, err := events.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange, signer, logger)
		if err != nil {
			return nil, err
		}
		return publisher, nil
	}
	return events.NewNoopPublisher(logger), nil
}

func newSessionStore(ctx context.Context, cfg config.AuthConfig, logger *slog.Logger) (auth.SessionStore, func(), error) {
	if cfg.RedisURL == "" {
		return auth.NewMemorySessionStore(), func() {}, nil
	}
	client, err := auth.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Using Redis session store")
	return auth.NewRedisSessionStore(client), func() { client.Close() }, nil
}

func newRuleEngine(cfg config.PipelineConfig, logger *slog.Logger) (*processor.RuleEngine, error) {
	rules := processor.DefaultRules()
	if cfg.RulesFile != "" {
		loaded, err := processor.LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}
	engine, err := processor.NewRuleEngine(rules, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid escalation rules: %w", err)
	}
	logger.Info("Escalation rules loaded", slog.Int("rules", engine.Len()))
	return engine, nil
}

func runSeed(ctx context.Context, cfg *config.Config, logger *slog.Logger, password string) error {
	store, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := seed.NewSeeder(store, newEmbedder(cfg.AI, logger), logger).Run(ctx, password)
	if err != nil {
		return err
	}
	if result.Skipped {
		fmt.Println("Demo data already present, nothing to do")
		return nil
	}
	fmt.Printf("Seeded %d users, %d transactions, %d reports, %d alerts\n",
		result.Users, result.Transactions, result.Reports, result.Alerts)
	fmt.Printf("Demo accounts: %s (COMPLIANCE), %s (MANAGER)\n", seed.OfficerEmail, seed.ManagerEmail)
	return nil
}
