package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"travel-funnel/handler"
	"travel-funnel/internal/integrations/coris"
	"travel-funnel/internal/integrations/paramstore"
	"travel-funnel/internal/usecase"
)

func main() {
	ctx := context.Background()
	setupLogger("quote")

	// ---- Configuration (read only here) ----
	paramPrefix := mustEnv("PARAM_PREFIX")
	maxConcurrent := envInt("MAX_CONCURRENT_PRICING", 10)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}

	var corisOpts []coris.Option
	if u := os.Getenv("CORIS_URL"); u != "" {
		corisOpts = append(corisOpts, coris.WithBaseURL(u))
	}
	corisClient, err := coris.NewClient(ssmClient, paramPrefix, corisOpts...)
	if err != nil {
		slog.Error("failed to create insurance client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	quoteService, err := usecase.NewQuoteService(corisClient, maxConcurrent)
	if err != nil {
		slog.Error("failed to create quote service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewQuoteHandler(quoteService)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func setupLogger(service string) {
	base := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", service)
	slog.SetDefault(base)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
