// Package handler adapts API Gateway proxy events onto the rewrite flow.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"clancha/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	forwardedHeader   = "X-Forwarded-For"
	defaultRateKey    = "127.0.0.1"
)

type RateGate interface {
	Check(ctx context.Context, key string) (bool, error)
}

type Rewriter interface {
	Rewrite(ctx context.Context, in usecase.RewriteInput) (usecase.RewriteOutput, error)
}

// Metrics is satisfied by *metrics.Recorder.
type Metrics interface {
	Admission(admitted bool)
	ObserveRequest(status int, d time.Duration)
}

type Handler struct {
	gate     RateGate
	rewriter Rewriter
	logger   *slog.Logger
	metrics  Metrics
	now      func() time.Time
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

type rewriteRequest struct {
	Text  string `json:"text"`
	Style string `json:"style"`
}

type rewriteResponse struct {
	RewrittenText string `json:"rewrittenText"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func NewHandler(gate RateGate, rewriter Rewriter, opts ...Option) (*Handler, error) {
	if gate == nil {
		return nil, errors.New("handler: rate gate must not be nil")
	}
	if rewriter == nil {
		return nil, errors.New("handler: rewriter must not be nil")
	}
	h := &Handler{
		gate:     gate,
		rewriter: rewriter,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle serves POST /api/rewrite-message. Failures are always reported in
// the response; the returned error is reserved for the Lambda runtime and is
// nil.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	start := h.now()
	correlationID := headerValue(req, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := h.logger.With("correlationId", correlationID)

	status, body, err := h.serve(ctx, req)
	if h.metrics != nil {
		h.metrics.ObserveRequest(status, h.now().Sub(start))
	}
	logOutcome(ctx, log, status, err)

	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: body,
	}, nil
}

func (h *Handler) serve(ctx context.Context, req events.APIGatewayProxyRequest) (int, string, error) {
	admitted, err := h.gate.Check(ctx, RateKey(req))
	if err != nil {
		return writeError(usecase.NewInternal(usecase.ReasonRateStoreError, err))
	}
	if h.metrics != nil {
		h.metrics.Admission(admitted)
	}
	if !admitted {
		return writeError(usecase.NewRateLimited())
	}

	in, err := decodeBody(req)
	if err != nil {
		return writeError(&usecase.Error{
			Code:    usecase.ErrorInvalidInput,
			Reason:  "malformed_body",
			Message: "Request body must be a JSON object with a text field.",
			Err:     err,
		})
	}

	out, err := h.rewriter.Rewrite(ctx, in)
	if err != nil {
		return writeError(err)
	}
	return http.StatusOK, mustJSON(rewriteResponse{RewrittenText: out.RewrittenText}), nil
}

func decodeBody(req events.APIGatewayProxyRequest) (usecase.RewriteInput, error) {
	raw := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return usecase.RewriteInput{}, err
		}
		raw = decoded
	}
	var body rewriteRequest
	if err := json.Unmarshal(raw, &body); err != nil {
		return usecase.RewriteInput{}, err
	}
	return usecase.RewriteInput{Text: body.Text, Style: body.Style}, nil
}

func writeError(err error) (int, string, error) {
	var uerr *usecase.Error
	if !errors.As(err, &uerr) {
		uerr = usecase.NewInternal("unexpected_error", err)
	}
	message := uerr.Message
	if message == "" {
		message = usecase.MessageGeneric
	}
	return statusFor(uerr.Code), mustJSON(errorResponse{Error: message, Code: string(uerr.Code)}), uerr
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput, usecase.ErrorUnsafeContent:
		return http.StatusBadRequest
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func logOutcome(ctx context.Context, log *slog.Logger, status int, err error) {
	if err == nil {
		log.InfoContext(ctx, "rewrite completed", "status", status)
		return
	}
	var uerr *usecase.Error
	errors.As(err, &uerr)
	attrs := []any{"status", status, "code", uerr.Code, "reason", uerr.Reason}
	if status >= http.StatusInternalServerError {
		if uerr.Err != nil {
			attrs = append(attrs, "error", uerr.Err.Error())
		}
		log.ErrorContext(ctx, "rewrite failed", attrs...)
		return
	}
	log.InfoContext(ctx, "rewrite rejected", attrs...)
}

// RateKey identifies the caller: the first X-Forwarded-For address, then the
// API Gateway source IP, then the loopback address.
func RateKey(req events.APIGatewayProxyRequest) string {
	if fwd := headerValue(req, forwardedHeader); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(req.RequestContext.Identity.SourceIP); ip != "" {
		return ip
	}
	return defaultRateKey
}

func headerValue(req events.APIGatewayProxyRequest, name string) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	for k, vs := range req.MultiValueHeaders {
		if strings.EqualFold(k, name) && len(vs) > 0 {
			return strings.TrimSpace(vs[0])
		}
	}
	return ""
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{"error":"` + usecase.MessageGeneric + `","code":"` + string(usecase.ErrorInternal) + `"}`
	}
	return string(b)
}
