package gemini

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/revivephoto/revive-api/internal/config"
	"github.com/revivephoto/revive-api/internal/domain"
	"github.com/revivephoto/revive-api/internal/platform/logger"
	"github.com/revivephoto/revive-api/internal/provider"
)

// Generator implements provider.Provider using Google's Gemini API for
// image generation and transformation.
type Generator struct {
	client    *genai.Client
	model     string
	outputDir string
}

var _ provider.Provider = (*Generator)(nil)

// NewGenerator creates a Generator from provider configuration. The output
// directory is created if it does not exist.
func NewGenerator(ctx context.Context, cfg config.ProviderConfig) (*Generator, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}
	if cfg.ModelName == "" {
		return nil, errors.New("model name cannot be empty")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("output directory cannot be empty")
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Generator{
		client:    client,
		model:     cfg.ModelName,
		outputDir: cfg.OutputDir,
	}, nil
}

// Generate runs one provider call for the given task kind and payload. It
// performs no retries of its own; the retry tiers own that decision. All
// failures are returned as *provider.Error so callers can classify them.
func (g *Generator) Generate(ctx context.Context, kind domain.TaskKind, payload domain.TaskPayload) (*provider.Output, error) {
	log := logger.FromContext(ctx)

	contents, err := g.buildContents(kind, payload)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return nil, mapAPIError(err)
	}

	if err := checkBlocked(resp); err != nil {
		return nil, err
	}

	image := firstImagePart(resp)
	if image == nil {
		return nil, provider.NewError(provider.KindUnknown, "response contained no image data", nil)
	}

	ref, err := g.saveResult(image)
	if err != nil {
		return nil, provider.NewError(provider.KindUnknown, "persisting result image", err)
	}

	log.Debug("gemini generation succeeded", "kind", kind, "result", ref)
	return &provider.Output{ResultRef: ref, Model: g.model}, nil
}

// buildContents assembles the prompt and, when the payload references a
// source image, its bytes. An unreadable source image is the caller's
// mistake and never worth retrying.
func (g *Generator) buildContents(kind domain.TaskKind, payload domain.TaskPayload) ([]*genai.Content, error) {
	parts := []*genai.Part{{Text: promptFor(kind, payload)}}

	if payload.SourceImageRef != "" {
		data, err := os.ReadFile(payload.SourceImageRef)
		if err != nil {
			return nil, provider.NewError(provider.KindMalformedInput,
				fmt.Sprintf("reading source image %q", payload.SourceImageRef), err)
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: mimeTypeFor(payload.SourceImageRef),
				Data:     data,
			},
		})
	}

	return []*genai.Content{{Role: genai.RoleUser, Parts: parts}}, nil
}

// promptFor renders the instruction text for a task kind.
func promptFor(kind domain.TaskKind, payload domain.TaskPayload) string {
	var b strings.Builder

	switch kind {
	case domain.TaskKindRestore:
		b.WriteString("Restore this old photograph. Repair damage, scratches and fading while preserving the original subjects and composition.")
	case domain.TaskKindStylize:
		b.WriteString("Re-render this photograph in the following artistic style: ")
		b.WriteString(payload.Style)
	case domain.TaskKindEraTransform:
		b.WriteString("Transform this photograph so it looks like it was taken in the following era: ")
		b.WriteString(payload.Era)
	case domain.TaskKindPoetComposite:
		b.WriteString("Create an artistic composite of this photograph with the following poem rendered into the scene: ")
		b.WriteString(payload.Prompt)
	default:
		b.WriteString("Generate an image from the following description.")
	}

	if payload.Prompt != "" && kind != domain.TaskKindPoetComposite {
		b.WriteString("\n\nAdditional instructions: ")
		b.WriteString(payload.Prompt)
	}

	return b.String()
}

func mimeTypeFor(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "image/jpeg"
}

// checkBlocked translates safety and recitation outcomes into terminal
// provider errors.
func checkBlocked(resp *genai.GenerateContentResponse) error {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return provider.NewError(provider.KindContentBlocked,
			fmt.Sprintf("prompt blocked: %s", resp.PromptFeedback.BlockReason), nil)
	}

	if len(resp.Candidates) == 0 {
		return provider.NewError(provider.KindUnknown, "response contained no candidates", nil)
	}

	switch resp.Candidates[0].FinishReason {
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent:
		return provider.NewError(provider.KindContentBlocked, "content blocked by safety filters", nil)
	case genai.FinishReasonRecitation:
		return provider.NewError(provider.KindCopyrightBlocked, "content blocked for recitation", nil)
	}
	return nil
}

func firstImagePart(resp *genai.GenerateContentResponse) *genai.Blob {
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData
			}
		}
	}
	return nil
}

func (g *Generator) saveResult(image *genai.Blob) (string, error) {
	ext := ".png"
	if exts, err := mime.ExtensionsByType(image.MIMEType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}

	path := filepath.Join(g.outputDir, uuid.New().String()+ext)
	if err := os.WriteFile(path, image.Data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// mapAPIError converts a Gemini client error into a classified
// *provider.Error using its HTTP status code when available.
func mapAPIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return provider.NewHTTPError(apiErr.Code, apiErr.Message, err)
	}
	return provider.NewError(provider.KindUnknown, "gemini call failed", err)
}
