package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"clancha/handler"
	"clancha/internal/integrations/gemini"
	"clancha/internal/integrations/openai"
	"clancha/internal/integrations/paramstore"
	"clancha/internal/metrics"
	"clancha/internal/ratelimit"
	"clancha/internal/repository"
	"clancha/internal/usecase"
)

// SSMAPI is satisfied by *ssm.Client.
type SSMAPI interface {
	GetParameter(ctx context.Context, in *awsssm.GetParameterInput, optFns ...func(*awsssm.Options)) (*awsssm.GetParameterOutput, error)
}

// DynamoDBAPI is satisfied by *dynamodb.Client.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, in *awsdynamodb.GetItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *awsdynamodb.PutItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.PutItemOutput, error)
}

type Deps struct {
	SSM SSMAPI
	// DynamoDB is only used when Config.RateTable is set.
	DynamoDB DynamoDBAPI
	Logger   *slog.Logger
	// GeneratorBaseURL overrides the provider endpoint.
	GeneratorBaseURL string
}

type App struct {
	Handler *handler.Handler
	Metrics *metrics.Recorder
}

// AWSDeps loads the default AWS configuration and creates the SDK clients cfg
// needs.
func AWSDeps(ctx context.Context, cfg Config, logger *slog.Logger) (Deps, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return Deps{}, fmt.Errorf("bootstrap: load AWS config: %w", err)
	}
	return depsFromAWS(awsCfg, cfg, logger), nil
}

func depsFromAWS(awsCfg aws.Config, cfg Config, logger *slog.Logger) Deps {
	deps := Deps{
		SSM:    awsssm.NewFromConfig(awsCfg),
		Logger: logger,
	}
	if cfg.RateTable != "" {
		deps.DynamoDB = awsdynamodb.NewFromConfig(awsCfg)
	}
	return deps
}

// Build wires the rate gate, safeguard, generator and handler.
func Build(cfg Config, deps Deps) (*App, error) {
	if deps.SSM == nil {
		return nil, errors.New("bootstrap: SSM client must not be nil")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	params, err := paramstore.New(deps.SSM)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create param store: %w", err)
	}

	store, err := rateStore(cfg, deps)
	if err != nil {
		return nil, err
	}
	gate, err := ratelimit.NewGate(store)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create rate gate: %w", err)
	}

	generator, err := newGenerator(cfg, deps, params)
	if err != nil {
		return nil, err
	}

	rec, err := metrics.New()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create metrics: %w", err)
	}

	svc, err := usecase.NewRewriteService(params, generator, cfg.ParamPrefix, usecase.WithRecorder(rec))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create rewrite service: %w", err)
	}

	h, err := handler.NewHandler(gate, svc, handler.WithLogger(logger), handler.WithMetrics(rec))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create handler: %w", err)
	}

	logger.Info("rewrite endpoint configured",
		"provider", cfg.Provider,
		"rateStore", storeName(cfg),
		"generatorTimeout", cfg.GeneratorTimeout.String(),
	)
	return &App{Handler: h, Metrics: rec}, nil
}

func rateStore(cfg Config, deps Deps) (ratelimit.Store, error) {
	if cfg.RateTable == "" {
		return ratelimit.NewMemoryStore(), nil
	}
	if deps.DynamoDB == nil {
		return nil, errors.New("bootstrap: RATE_TABLE is set but no DynamoDB client was provided")
	}
	store, err := repository.New(deps.DynamoDB, cfg.RateTable)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create rate store: %w", err)
	}
	return store, nil
}

func storeName(cfg Config) string {
	if cfg.RateTable == "" {
		return "memory"
	}
	return "dynamodb"
}

func newGenerator(cfg Config, deps Deps, params paramstore.Getter) (usecase.Generator, error) {
	timeout := cfg.GeneratorTimeout
	if timeout <= 0 {
		timeout = defaultGeneratorTimeout
	}
	httpClient := &http.Client{Timeout: timeout}

	switch cfg.Provider {
	case ProviderGemini:
		opts := []gemini.Option{gemini.WithHTTPClient(httpClient)}
		if deps.GeneratorBaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(deps.GeneratorBaseURL))
		}
		c, err := gemini.NewClient(params, cfg.ParamPrefix, opts...)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: create gemini client: %w", err)
		}
		return c, nil
	case ProviderOpenAI, "":
		opts := []openai.Option{openai.WithHTTPClient(httpClient)}
		if deps.GeneratorBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(deps.GeneratorBaseURL))
		}
		c, err := openai.NewClient(params, cfg.ParamPrefix, opts...)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: create openai client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown provider %q", cfg.Provider)
	}
}
