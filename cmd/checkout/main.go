package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"travel-funnel/handler"
	"travel-funnel/internal/integrations/coris"
	"travel-funnel/internal/integrations/esim"
	"travel-funnel/internal/integrations/paramstore"
	"travel-funnel/internal/integrations/payments"
	"travel-funnel/internal/repository"
	"travel-funnel/internal/usecase"
)

func main() {
	ctx := context.Background()
	setupLogger("checkout")

	// ---- Configuration (read only here) ----
	leadsTable := mustEnv("LEADS_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	paymentIngestURL := mustEnv("PAYMENT_INGEST_URL")
	paymentTenantID := mustEnv("PAYMENT_TENANT_ID")
	esimTargetPlan := mustEnv("ESIM_TARGET_PLAN")

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
	leadsClient, err := repository.New(awsdynamodb.NewFromConfig(cfg), leadsTable)
	if err != nil {
		slog.Error("failed to create leads client", "err", err)
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

	var esimOpts []esim.Option
	if u := os.Getenv("ESIM_API_URL"); u != "" {
		esimOpts = append(esimOpts, esim.WithBaseURL(u))
	}
	esimClient, err := esim.NewClient(ssmClient, paramPrefix, esimTargetPlan, esimOpts...)
	if err != nil {
		slog.Error("failed to create esim client", "err", err)
		os.Exit(1)
	}

	paymentsClient, err := payments.NewClient(paymentIngestURL, paymentTenantID)
	if err != nil {
		slog.Error("failed to create payments client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	checkoutService, err := usecase.NewCheckoutService(paymentsClient, corisClient, esimClient, leadsClient)
	if err != nil {
		slog.Error("failed to create checkout service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewCheckoutHandler(checkoutService)
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
