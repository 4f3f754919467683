package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

func env(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"PARAM_PREFIX": "/clancha"}))
	require.NoError(t, err)
	require.Equal(t, Config{
		ParamPrefix:      "/clancha",
		Provider:         ProviderOpenAI,
		GeneratorTimeout: 10 * time.Second,
		LogLevel:         slog.LevelInfo,
	}, cfg)
}

func TestFromEnv_AllSet(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"PARAM_PREFIX":       "/clancha",
		"GENERATOR_PROVIDER": " Gemini ",
		"GENERATOR_TIMEOUT":  "3s",
		"RATE_TABLE":         "clancha-rate",
		"LOG_LEVEL":          "debug",
	}))
	require.NoError(t, err)
	require.Equal(t, ProviderGemini, cfg.Provider)
	require.Equal(t, 3*time.Second, cfg.GeneratorTimeout)
	require.Equal(t, "clancha-rate", cfg.RateTable)
	require.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestFromEnv_Errors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing prefix", map[string]string{}, "PARAM_PREFIX"},
		{"unknown provider", map[string]string{"PARAM_PREFIX": "/p", "GENERATOR_PROVIDER": "bard"}, "GENERATOR_PROVIDER"},
		{"bad timeout", map[string]string{"PARAM_PREFIX": "/p", "GENERATOR_TIMEOUT": "soon"}, "GENERATOR_TIMEOUT"},
		{"negative timeout", map[string]string{"PARAM_PREFIX": "/p", "GENERATOR_TIMEOUT": "-1s"}, "GENERATOR_TIMEOUT"},
		{"bad level", map[string]string{"PARAM_PREFIX": "/p", "LOG_LEVEL": "loud"}, "LOG_LEVEL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromEnv(env(tc.env))
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestNewLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)
	logger.Info("hidden")
	logger.Warn("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"msg":"shown"`)
}

type fakeSSM struct {
	values map[string]string
}

func (f *fakeSSM) GetParameter(_ context.Context, in *awsssm.GetParameterInput, _ ...func(*awsssm.Options)) (*awsssm.GetParameterOutput, error) {
	v, ok := f.values[aws.ToString(in.Name)]
	if !ok {
		return nil, errors.New("ParameterNotFound")
	}
	return &awsssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Name: in.Name, Value: aws.String(v)}}, nil
}

// fakeDynamo keeps the last written item per partition key. Conditions are
// not evaluated; the repository tests cover them.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	puts  int
}

func (f *fakeDynamo) GetItem(_ context.Context, in *awsdynamodb.GetItemInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk := in.Key["PK"].(*types.AttributeValueMemberS).Value
	return &awsdynamodb.GetItemOutput{Item: f.items[pk]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *awsdynamodb.PutItemInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.items == nil {
		f.items = map[string]map[string]types.AttributeValue{}
	}
	pk := in.Item["PK"].(*types.AttributeValueMemberS).Value
	f.items[pk] = in.Item
	f.puts++
	return &awsdynamodb.PutItemOutput{}, nil
}

func params(provider string) *fakeSSM {
	return &fakeSSM{values: map[string]string{
		"/clancha/config/model":  provider + "-model",
		"/clancha/open-ai-token": `{"token":"sk-test"}`,
		"/clancha/gemini-token":  `{"token":"g-test"}`,
	}}
}

func TestBuild_OpenAIWithMemoryStore(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"See you at 5."}}]}`))
	}))
	defer srv.Close()

	cfg := Config{ParamPrefix: "/clancha", Provider: ProviderOpenAI, GeneratorTimeout: time.Second}
	app, err := Build(cfg, Deps{SSM: params("openai"), GeneratorBaseURL: srv.URL})
	require.NoError(t, err)
	require.NotNil(t, app.Metrics)

	resp, err := app.Handler.Handle(context.Background(), events.APIGatewayProxyRequest{Body: `{"text":"see u at 5"}`})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"rewrittenText":"See you at 5."}`, resp.Body)
	require.Equal(t, "Bearer sk-test", auth)
}

func TestBuild_GeminiWithDynamoStore(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"See you at 5."}]}}]}`))
	}))
	defer srv.Close()

	dynamo := &fakeDynamo{}
	cfg := Config{ParamPrefix: "/clancha", Provider: ProviderGemini, RateTable: "clancha-rate"}
	app, err := Build(cfg, Deps{SSM: params("gemini"), DynamoDB: dynamo, GeneratorBaseURL: srv.URL})
	require.NoError(t, err)

	resp, err := app.Handler.Handle(context.Background(), events.APIGatewayProxyRequest{
		Headers: map[string]string{"X-Forwarded-For": "203.0.113.7"},
		Body:    `{"text":"see u at 5","style":"Firm & Fair"}`,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"rewrittenText":"See you at 5."}`, resp.Body)
	require.Contains(t, path, "gemini-model")
	require.Equal(t, 1, dynamo.puts)
	require.Contains(t, dynamo.items, "RATE#203.0.113.7")
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(Config{ParamPrefix: "/clancha"}, Deps{})
	require.ErrorContains(t, err, "SSM")

	_, err = Build(Config{ParamPrefix: "/clancha", RateTable: "t"}, Deps{SSM: params("openai")})
	require.ErrorContains(t, err, "RATE_TABLE")

	_, err = Build(Config{ParamPrefix: "/clancha", Provider: "bard"}, Deps{SSM: params("openai")})
	require.ErrorContains(t, err, "unknown provider")
}

func TestDepsFromAWS(t *testing.T) {
	deps := depsFromAWS(aws.Config{Region: "eu-west-2"}, Config{}, nil)
	require.NotNil(t, deps.SSM)
	require.Nil(t, deps.DynamoDB)

	deps = depsFromAWS(aws.Config{Region: "eu-west-2"}, Config{RateTable: "t"}, nil)
	require.NotNil(t, deps.DynamoDB)
}
