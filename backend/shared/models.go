package shared

import "time"

// Shader is a persisted generation result. It is written once and never
// updated; a remix is a new Shader whose ParentID points at its source.
type Shader struct {
	ID        string                 `json:"id" dynamodbav:"id"`
	CreatedAt time.Time              `json:"created_at" dynamodbav:"createdAt"`
	CreatorID string                 `json:"creator_id" dynamodbav:"creatorId"`
	LineageID string                 `json:"lineage_id" dynamodbav:"lineageId"`
	ParentID  string                 `json:"parent_id,omitempty" dynamodbav:"parentId,omitempty"`
	HTML      string                 `json:"html" dynamodbav:"html"`
	JSON      ControlConfig          `json:"json" dynamodbav:"json"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" dynamodbav:"metadata,omitempty"`
}

// IsRoot reports whether the shader starts its own lineage.
func (s *Shader) IsRoot() bool {
	return s.ParentID == ""
}

// Prompt returns the originating request text recorded in metadata.
func (s *Shader) Prompt() string {
	if s.Metadata == nil {
		return ""
	}
	p, _ := s.Metadata[MetadataPrompt].(string)
	return p
}

// Artifact returns the generated pair carried by the shader.
func (s *Shader) Artifact() Artifact {
	return Artifact{HTML: s.HTML, Config: s.JSON}
}

// Artifact is the generated {html, config} pair before persistence.
type Artifact struct {
	HTML   string
	Config ControlConfig
}

// Metadata keys written by the generation pipeline.
const (
	MetadataPrompt     = "prompt"
	MetadataModel      = "model"
	MetadataHTMLReport = "html_report"
)

// APIResponse is a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// GenerateRequest is the body of the generation endpoint.
type GenerateRequest struct {
	Prompt       string  `json:"prompt"`
	Model        string  `json:"model,omitempty"`
	CreatorID    string  `json:"creator_id"`
	ParentShader *Shader `json:"parent_shader,omitempty"`
}

// RecentShadersResponse is the data of the listing endpoint.
type RecentShadersResponse struct {
	Shaders []Shader `json:"shaders"`
}

// Supported model identifiers
const (
	ModelClaude35Sonnet = "claude-3-5-sonnet-20241022"
	ModelClaudeSonnet4  = "claude-sonnet-4-20250514"
	ModelMistralSmall   = "mistral-small-2503"
	ModelGeminiFlash    = "gemini-2.0-flash-exp"
	DefaultModel        = ModelClaude35Sonnet
)

// ValidModels is the list of valid model identifiers
var ValidModels = map[string]bool{
	ModelClaude35Sonnet: true,
	ModelClaudeSonnet4:  true,
	ModelMistralSmall:   true,
	ModelGeminiFlash:    true,
}

// GetModelDisplayName returns a human-readable name for the model
func GetModelDisplayName(model string) string {
	switch model {
	case ModelClaude35Sonnet:
		return "Claude 3.5 Sonnet"
	case ModelClaudeSonnet4:
		return "Claude Sonnet 4"
	case ModelMistralSmall:
		return "Mistral Small"
	case ModelGeminiFlash:
		return "Gemini 2.0 Flash"
	default:
		return model
	}
}

// DefaultMaxOutputTokens bounds every completion call.
const DefaultMaxOutputTokens = 4096
