package shared

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Generator runs the prompt-to-shader pipeline: template, backend, parse,
// lineage, persist. Each call is independent.
type Generator struct {
	Select          BackendSelector
	Store           ShaderStore
	IDs             IDGenerator
	Now             func() time.Time
	Timeout         time.Duration
	MaxOutputTokens int
	DefaultModel    string
	Logger          *zap.Logger
}

// NewGenerator wires a generator from configuration.
func NewGenerator(cfg Config, store ShaderStore, logger *zap.Logger) *Generator {
	return &Generator{
		Select:          Selector(cfg.Credentials()),
		Store:           store,
		Timeout:         cfg.GenerationTimeout,
		MaxOutputTokens: cfg.MaxOutputTokens,
		DefaultModel:    cfg.DefaultModel,
		Logger:          logger,
	}
}

func (g *Generator) logger() *zap.Logger {
	if g.Logger == nil {
		return zap.NewNop()
	}
	return g.Logger.Named("generate")
}

// Generate validates req, calls the selected model once and stores the
// resulting shader. Nothing is persisted on failure.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (*Shader, error) {
	log := g.logger()

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, &ValidationError{Field: "prompt", Message: "Prompt is required"}
	}
	creatorID := strings.TrimSpace(req.CreatorID)
	if creatorID == "" {
		return nil, &ValidationError{Field: "creator_id", Message: "Creator ID is required"}
	}

	model := req.Model
	if model == "" {
		model = g.DefaultModel
	}
	if model == "" {
		model = DefaultModel
	}

	parent, err := g.resolveParent(ctx, req.ParentShader)
	if err != nil {
		return nil, err
	}

	client, err := g.Select(model)
	if err != nil {
		log.Warn("backend selection failed", zap.String("model", model), zap.Error(err))
		return nil, err
	}

	var parentArtifact *Artifact
	if parent != nil {
		a := parent.Artifact()
		parentArtifact = &a
	}
	fullPrompt := BuildShaderPrompt(req.Prompt, parentArtifact)

	log.Info("calling model",
		zap.String("model", model),
		zap.String("creator_id", creatorID),
		zap.Bool("remix", parent != nil),
		zap.Int("prompt_length", len(fullPrompt)))

	raw, err := g.complete(ctx, client, model, fullPrompt)
	if err != nil {
		log.Error("model call failed", zap.String("model", model), zap.Error(err))
		return nil, err
	}

	artifact, err := ParseShaderResponse(raw)
	if err != nil {
		log.Error("could not parse model response",
			zap.String("model", model),
			zap.Error(err),
			zap.String("raw", raw))
		return nil, err
	}

	log.Info("parsed response",
		zap.Int("html_length", len(artifact.HTML)),
		zap.Strings("config_keys", artifact.Config.Keys()))

	shader := AttachLineage(*artifact, creatorID, req.Prompt, parent, g.IDs, g.Now)
	shader.Metadata[MetadataModel] = model
	shader.Metadata[MetadataHTMLReport] = InspectHTML(artifact.HTML).Metadata()

	if err := g.Store.Insert(ctx, &shader); err != nil {
		log.Error("insert failed", zap.String("id", shader.ID), zap.Error(err))
		return nil, err
	}

	log.Info("shader created",
		zap.String("id", shader.ID),
		zap.String("lineage_id", shader.LineageID),
		zap.String("parent_id", shader.ParentID))
	return &shader, nil
}

// resolveParent loads the stored parent so lineage comes from the store,
// never from client-supplied fields.
func (g *Generator) resolveParent(ctx context.Context, ref *Shader) (*Shader, error) {
	if ref == nil {
		return nil, nil
	}
	if ref.ID == "" {
		return nil, &ValidationError{Field: "parent_shader", Message: "Parent shader id is required"}
	}
	parent, err := g.Store.GetByID(ctx, ref.ID)
	if errors.Is(err, ErrNotFound) {
		return nil, &ValidationError{Field: "parent_shader", Message: "Parent shader not found"}
	}
	if err != nil {
		return nil, err
	}
	return parent, nil
}

func (g *Generator) complete(ctx context.Context, client CompletionClient, model, prompt string) (string, error) {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultGenerationTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := client.Complete(callCtx, prompt, g.maxOutputTokens())
	if err == nil {
		return raw, nil
	}

	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		upstream.Timeout = upstream.Timeout || timedOut
		return "", upstream
	}
	provider := Provider("")
	if b, ok := Backends[model]; ok {
		provider = b.Provider
	}
	return "", &UpstreamError{Provider: provider, Timeout: timedOut, Err: err}
}

func (g *Generator) maxOutputTokens() int {
	if g.MaxOutputTokens > 0 {
		return g.MaxOutputTokens
	}
	return DefaultMaxOutputTokens
}
