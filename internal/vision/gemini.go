package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/shelfscan/internal/book"
)

// Prompt asks the model for a bare JSON array of spine readings.
const Prompt = "You are a book spine recognition expert. Analyze the image and extract book information. " +
	"Return ONLY a valid JSON array of objects. Each object must have keys: 'title', 'author', 'publisher'. " +
	"If info is missing, use empty string. Do NOT use markdown code blocks, just return the raw JSON."

// Config configures the Gemini extractor.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini implements book.Extractor.
type Gemini struct {
	client  *genai.Client
	model   generator
	timeout time.Duration
	logger  *zap.Logger
}

var _ book.Extractor = (*Gemini)(nil)

// NewGemini creates the client. Close releases it.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("vision.api_key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	name := cfg.Model
	if name == "" {
		name = "gemini-2.0-flash"
	}
	model := client.GenerativeModel(name)
	model.ResponseMIMEType = "application/json"

	g := newWithGenerator(model, cfg.Timeout, cfg.Logger)
	g.client = client
	return g, nil
}

func newWithGenerator(model generator, timeout time.Duration, logger *zap.Logger) *Gemini {
	if timeout <= 0 {
		timeout = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gemini{model: model, timeout: timeout, logger: logger.Named("vision")}
}

// Extract sends the photo with the prompt and parses the returned candidates.
func (g *Gemini) Extract(ctx context.Context, image []byte, mimeType string) ([]book.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.model.GenerateContent(ctx, genai.Text(Prompt), genai.Blob{MIMEType: mimeType, Data: image})
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}
	candidates, err := ParseCandidates(text)
	if err != nil {
		g.logger.Error("unparseable vision output", zap.String("raw", truncate(text, 200)), zap.Error(err))
		return nil, err
	}
	g.logger.Info("shelf analyzed",
		zap.Int("candidates", len(candidates)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return candidates, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	if err := g.client.Close(); err != nil {
		return fmt.Errorf("close gemini client: %w", err)
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates returned from Gemini", book.ErrVisionParse)
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty content returned from Gemini", book.ErrVisionParse)
	}
	var sb strings.Builder
	for _, p := range content.Parts {
		if txt, ok := p.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: unexpected response format from Gemini", book.ErrVisionParse)
	}
	return sb.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
