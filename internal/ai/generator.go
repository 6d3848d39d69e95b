package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"multi-industry-rag/internal/config"
	"multi-industry-rag/internal/logger"
)

// Generator produces a grounded answer for a question given retrieved
// context from a single industry.
type Generator interface {
	GenerateAnswer(ctx context.Context, industry, contextText, question string) (string, error)
}

// GeminiGenerator calls the Gemini generation API at temperature zero.
// The remote call sits behind a circuit breaker and a client-side RPM
// limiter sized to the configured API tier.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	timeout     time.Duration
	maxTries    uint
}

type rateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

func getRateLimits(tier string) rateLimits {
	switch tier {
	case "free":
		return rateLimits{RPM: 10, TPM: 250000, RPD: 250}
	case "tier1":
		return rateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return rateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return rateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

func NewGeminiGenerator(client *genai.Client, cfg *config.Config) *GeminiGenerator {
	limits := getRateLimits(cfg.GeminiTier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	burst := limits.RPM / 10
	if burst < 1 {
		burst = 1
	}
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), burst)

	return &GeminiGenerator{
		client:      client,
		model:       cfg.GenerationModel,
		breaker:     breaker,
		rateLimiter: rateLimiter,
		timeout:     time.Duration(cfg.GenerateTimeoutSec) * time.Second,
		maxTries:    uint(cfg.MaxRetries),
	}
}

// GenerateAnswer builds the grounding prompt and calls the model.
func (g *GeminiGenerator) GenerateAnswer(ctx context.Context, industry, contextText, question string) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate_answer")
	defer span.End()

	prompt := BuildPrompt(industry, contextText, question)

	span.SetAttributes(
		attribute.String("gemini.model", g.model),
		attribute.String("gemini.industry", industry),
		attribute.Int("gemini.estimated_tokens", estimateTokens(prompt)),
	)

	if err := g.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", err
	}

	answer, err := backoff.Retry(ctx, func() (string, error) {
		result, err := g.breaker.Execute(func() (interface{}, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
			defer cancel()

			model := g.client.GenerativeModel(g.model)
			// Zero temperature: the answer must be determined by the
			// retrieved context, not by sampling.
			model.SetTemperature(0)

			resp, err := model.GenerateContent(attemptCtx, genai.Text(prompt))
			if err != nil {
				return nil, err
			}
			text := responseText(resp)
			if text == "" {
				return nil, fmt.Errorf("model returned no text candidates")
			}
			return text, nil
		})
		if err != nil {
			if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
				span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
				return "", backoff.Permanent(fmt.Errorf("generation temporarily unavailable: %w", err))
			}
			return "", err
		}
		return result.(string), nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(g.maxTries))

	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", err
	}

	span.SetAttributes(attribute.Bool("gemini.success", true))
	return answer, nil
}

// BuildPrompt constructs the deterministic instruction prompt. The model is
// told to answer only from the supplied context and to state inability when
// the answer is absent.
func BuildPrompt(industry, contextText, question string) string {
	return fmt.Sprintf(`You are a specialist in %s.
Use ONLY the context below to answer the question accurately.
If the answer is not in the context, say "I don't have enough information to answer that."

Context: %s

Question: %s

Answer:`, industry, contextText, question)
}

// responseText flattens the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}

// estimateTokens is a rough pre-call estimate: 1 token is about 4 characters.
func estimateTokens(prompt string) int {
	n := len(prompt) / 4
	if n < 1 {
		n = 1
	}
	return n
}
