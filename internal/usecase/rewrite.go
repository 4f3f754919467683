package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"clancha/internal/domain"
	"clancha/internal/replyshape"
	"clancha/internal/safeguard"
)

type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Generator produces the text of the first candidate for req.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (string, error)
}

type Classifier interface {
	Classify(text string) domain.SafeguardVerdict
}

// Recorder receives rewrite outcomes and generator call counts.
type Recorder interface {
	RewriteOutcome(outcome string)
	GeneratorCall(attempt string)
}

// Outcome labels reported for successful rewrites. Failures report their
// ErrorCode.
const (
	OutcomeAccepted    = "accepted"
	OutcomeRegenerated = "regenerated"
)

type rewriteState int

const (
	stateDraft rewriteState = iota
	stateGenerated
	stateRegenerating
	stateAccepted
)

type RewriteService struct {
	params      ParamGetter
	generator   Generator
	classifier  Classifier
	recorder    Recorder
	paramPrefix string

	cacheMu     sync.RWMutex
	cacheLoaded bool
	model       string
}

type Option func(*RewriteService)

// WithClassifier replaces the classifier compiled from the embedded catalogue.
func WithClassifier(c Classifier) Option {
	return func(s *RewriteService) {
		if c != nil {
			s.classifier = c
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *RewriteService) {
		s.recorder = r
	}
}

type RewriteInput struct {
	Text  string
	Style string
}

type RewriteOutput struct {
	RewrittenText string
	Regenerated   bool
}

func NewRewriteService(p ParamGetter, gen Generator, paramPrefix string, opts ...Option) (*RewriteService, error) {
	if p == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	if gen == nil {
		return nil, errors.New("usecase: generator must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	s := &RewriteService{
		params:      p,
		generator:   gen,
		classifier:  safeguard.Default(),
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Rewrite validates and safeguards the draft, then asks the generator for a
// rewrite. The generator is called at most twice, and never when the draft
// is rejected.
func (s *RewriteService) Rewrite(ctx context.Context, in RewriteInput) (RewriteOutput, error) {
	out, err := s.rewrite(ctx, in)
	if err != nil {
		var uerr *Error
		if errors.As(err, &uerr) {
			s.recordOutcome(string(uerr.Code))
		}
		return RewriteOutput{}, err
	}
	if out.Regenerated {
		s.recordOutcome(OutcomeRegenerated)
	} else {
		s.recordOutcome(OutcomeAccepted)
	}
	return out, nil
}

func (s *RewriteService) rewrite(ctx context.Context, in RewriteInput) (RewriteOutput, error) {
	if in.Text == "" {
		return RewriteOutput{}, newError(ErrorInvalidInput, ReasonEmptyText, MessageTextRequired, nil)
	}
	stripped := strings.TrimSpace(safeguard.StripEmoji(in.Text))
	if stripped == "" {
		return RewriteOutput{}, newError(ErrorInvalidInput, ReasonNoMeaningfulContent, MessageNoContent, nil)
	}

	verdict := s.classifier.Classify(stripped)
	if !verdict.Safe {
		return RewriteOutput{}, rejection(verdict)
	}
	cleaned := strings.TrimSpace(verdict.CleanedText)
	if cleaned == "" {
		return RewriteOutput{}, newError(ErrorInvalidInput, ReasonNoMeaningfulContent, MessageNoContent, nil)
	}

	if err := s.ensureConfig(ctx); err != nil {
		return RewriteOutput{}, newError(ErrorInternal, ReasonParamLoadError, MessageGeneric, err)
	}

	req := buildGenerationRequest(s.model, domain.ParseStyle(in.Style), cleaned)

	var (
		text        string
		regenerated bool
	)
	state := stateDraft
	for state != stateAccepted {
		switch state {
		case stateDraft:
			first, err := s.generate(ctx, req, "first")
			if err != nil {
				return RewriteOutput{}, newError(ErrorGenerationFailed, ReasonGeneratorError, MessageGeneric, err)
			}
			if first == "" {
				return RewriteOutput{}, newError(ErrorGenerationFailed, ReasonEmptyGeneration, MessageGeneric, nil)
			}
			text = first
			state = stateGenerated
		case stateGenerated:
			if replyshape.LooksLikeReply(text) {
				state = stateRegenerating
			} else {
				state = stateAccepted
			}
		case stateRegenerating:
			second, err := s.generate(ctx, withViolationNotice(req), "regeneration")
			if err != nil {
				return RewriteOutput{}, newError(ErrorGenerationFailed, ReasonGeneratorError, MessageGeneric, err)
			}
			if second != "" {
				text = second
				regenerated = true
			}
			state = stateAccepted
		}
	}

	return RewriteOutput{RewrittenText: text, Regenerated: regenerated}, nil
}

func (s *RewriteService) generate(ctx context.Context, req domain.GenerationRequest, attempt string) (string, error) {
	if s.recorder != nil {
		s.recorder.GeneratorCall(attempt)
	}
	out, err := s.generator.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (s *RewriteService) recordOutcome(outcome string) {
	if s.recorder != nil {
		s.recorder.RewriteOutcome(outcome)
	}
}

func rejection(v domain.SafeguardVerdict) *Error {
	message := v.Reason
	if message == "" {
		message = messageUnsafeDefault
	}
	reason := ReasonSafeguardInvalid
	switch v.Rule {
	case domain.RuleThreat:
		reason = ReasonSafeguardThreat
	case domain.RuleAttachment:
		reason = ReasonSafeguardAttachment
	case domain.RuleTooLong:
		reason = ReasonSafeguardTooLong
	}
	return newError(ErrorUnsafeContent, reason, message, nil)
}

func (s *RewriteService) ensureConfig(ctx context.Context) error {
	s.cacheMu.RLock()
	if s.cacheLoaded {
		s.cacheMu.RUnlock()
		return nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheLoaded {
		return nil
	}

	model, err := s.params.GetParameter(ctx, s.paramPrefix+"/config/model")
	if err != nil {
		return fmt.Errorf("usecase: load model: %w", err)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return errors.New("usecase: model parameter is empty")
	}

	s.model = model
	s.cacheLoaded = true
	return nil
}
