package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"shaderland/backend/api"
	"shaderland/backend/shared"
	"shaderland/frontend/bridge"
	"shaderland/frontend/middleware"
)

// Handlers serves the web app. API calls go to APIEndpoint when it is set and
// to the in-process API handler otherwise.
type Handlers struct {
	Store       shared.ShaderStore
	API         *api.Handler
	APIEndpoint string
	HTTPClient  *http.Client
	Logs        LogsAPI
	LogGroup    string
	Logger      *zap.Logger
}

// ShaderCard is a list entry on the index and shader pages.
type ShaderCard struct {
	ID        string
	Prompt    string
	CreatedAt time.Time
	Remix     bool
}

// GroupView is one group of server-rendered controls.
type GroupView struct {
	Name     string
	Controls []ControlView
}

// ControlView carries everything a control input needs.
type ControlView struct {
	Name    string
	Label   string
	Widget  string
	Value   string
	Min     string
	Max     string
	Step    string
	Options []OptionView
}

type OptionView struct {
	Label    string
	Value    string
	Selected bool
}

type modelView struct {
	ID       string
	Selected bool
}

var now = time.Now

func hoursDuration(hours int) time.Duration { return time.Duration(hours) * time.Hour }

func (h *Handlers) log() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// IndexHandler renders the homepage: the starter shader, the caller's own
// shaders and the global feed.
func (h *Handlers) IndexHandler(c *fiber.Ctx) error {
	creatorID := middleware.CreatorID(c)

	// each part degrades on its own: a failed list renders empty and a failed
	// featured load falls back to the built-in starter shader
	var featured *shared.Shader
	var mine, recent []shared.Shader
	var g errgroup.Group
	ctx := c.UserContext()
	g.Go(func() error {
		s, err := h.loadShader(ctx, shared.DefaultShaderID)
		if err != nil {
			h.log().Warn("starter shader load failed", zap.Error(err))
			def := shared.DefaultShader()
			s = &def
		}
		featured = s
		return nil
	})
	g.Go(func() error {
		var err error
		mine, err = h.Store.Recent(ctx, shared.RecentFilter{CreatorID: creatorID})
		if err != nil {
			h.log().Warn("recent for creator failed", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		var err error
		recent, err = h.Store.Recent(ctx, shared.RecentFilter{})
		if err != nil {
			h.log().Warn("recent feed failed", zap.Error(err))
		}
		return nil
	})
	_ = g.Wait()

	groups, _ := controlGroups(featured.JSON)
	return c.Render("templates/index", fiber.Map{
		"Title":   "Shaderland",
		"Shader":  featured,
		"Config":  featured.JSON.String(),
		"Groups":  groups,
		"Mine":    cards(mine),
		"Recent":  cards(recent),
		"Models":  models(""),
		"Creator": creatorID,
	})
}

// ShaderPageHandler renders one shader with its controls.
func (h *Handlers) ShaderPageHandler(c *fiber.Ctx) error {
	id := c.Params("id")
	creatorID := middleware.CreatorID(c)

	var shader *shared.Shader
	var mine []shared.Shader
	g, ctx := errgroup.WithContext(c.UserContext())
	g.Go(func() error {
		var err error
		shader, err = h.loadShader(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		mine, err = h.Store.Recent(ctx, shared.RecentFilter{CreatorID: creatorID})
		if err != nil {
			h.log().Warn("recent for creator failed", zap.Error(err))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return h.renderError(c, err)
	}

	groups, err := controlGroups(shader.JSON)
	controlsError := ""
	if err != nil {
		controlsError = err.Error()
	}

	return c.Render("templates/shader", fiber.Map{
		"Title":         shader.Prompt(),
		"Shader":        shader,
		"Config":        shader.JSON.String(),
		"Groups":        groups,
		"ControlsError": controlsError,
		"Mine":          cards(mine),
		"Models":        models(stringMeta(shader, shared.MetadataModel)),
		"Remix":         true,
		"Creator":       creatorID,
	})
}

// RawShaderHandler serves the shader document itself for the sandboxed frame.
// The document runs in an opaque origin so it never sees the app's cookies.
func (h *Handlers) RawShaderHandler(c *fiber.Ctx) error {
	shader, err := h.loadShader(c.UserContext(), c.Params("id"))
	if err != nil {
		status, _, message := shared.ClassifyError(err)
		return c.Status(status).SendString(message)
	}

	sum := blake2b.Sum256([]byte(shader.HTML))
	etag := `"` + hex.EncodeToString(sum[:16]) + `"`

	c.Set(fiber.HeaderETag, etag)
	c.Set(fiber.HeaderCacheControl, "public, max-age=300")
	c.Set(fiber.HeaderContentSecurityPolicy, "sandbox allow-scripts")
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	if c.Get(fiber.HeaderIfNoneMatch) == etag {
		return c.SendStatus(fiber.StatusNotModified)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(shader.HTML)
}

// APIHandler forwards /api requests to the shader API.
func (h *Handlers) APIHandler(c *fiber.Ctx) error {
	if h.APIEndpoint != "" {
		return h.proxyRequest(c)
	}
	if h.API == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(shared.APIResponse{
			Success: false,
			Error:   "API not configured",
		})
	}

	resp, err := h.API.Handle(c.UserContext(), toProxyRequest(c))
	if err != nil {
		h.log().Error("api handler failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(shared.APIResponse{
			Success: false,
			Error:   "Internal server error",
		})
	}
	return writeProxyResponse(c, resp)
}

func (h *Handlers) proxyRequest(c *fiber.Ctx) error {
	url := strings.TrimSuffix(h.APIEndpoint, "/") + c.OriginalURL()

	var body io.Reader
	if len(c.Body()) > 0 {
		body = bytes.NewReader(c.Body())
	}
	req, err := http.NewRequestWithContext(c.UserContext(), c.Method(), url, body)
	if err != nil {
		return c.Status(500).JSON(shared.APIResponse{Success: false, Error: "Failed to create request"})
	}
	req.Header.Set("Content-Type", "application/json")

	client := h.HTTPClient
	if client == nil {
		// generation can take as long as the backend's own deadline
		client = &http.Client{Timeout: shared.DefaultGenerationTimeout + 10*time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		h.log().Error("proxy request failed", zap.String("url", url), zap.Error(err))
		return c.Status(502).JSON(shared.APIResponse{Success: false, Error: "Failed to send request"})
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.Status(502).JSON(shared.APIResponse{Success: false, Error: "Failed to read response"})
	}

	c.Set("Content-Type", "application/json")
	return c.Status(resp.StatusCode).Send(respBody)
}

func toProxyRequest(c *fiber.Ctx) events.APIGatewayProxyRequest {
	req := events.APIGatewayProxyRequest{
		HTTPMethod:            c.Method(),
		Path:                  c.Path(),
		Headers:               map[string]string{},
		QueryStringParameters: map[string]string{},
		Body:                  string(c.Body()),
	}
	c.Request().Header.VisitAll(func(k, v []byte) {
		req.Headers[string(k)] = string(v)
	})
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		req.QueryStringParameters[string(k)] = string(v)
	})
	return req
}

func writeProxyResponse(c *fiber.Ctx, resp events.APIGatewayProxyResponse) error {
	for k, v := range resp.Headers {
		c.Set(k, v)
	}
	body := []byte(resp.Body)
	if resp.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(resp.Body)
		if err == nil {
			body = decoded
		}
	}
	return c.Status(resp.StatusCode).Send(body)
}

// loadShader falls back to the built-in starter shader when it has not been
// seeded into the store.
func (h *Handlers) loadShader(ctx context.Context, id string) (*shared.Shader, error) {
	shader, err := h.Store.GetByID(ctx, id)
	if errors.Is(err, shared.ErrNotFound) && id == shared.DefaultShaderID {
		def := shared.DefaultShader()
		return &def, nil
	}
	return shader, err
}

func (h *Handlers) renderError(c *fiber.Ctx, err error) error {
	status, _, message := shared.ClassifyError(err)
	if status >= 500 {
		h.log().Error("page load failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).Render("templates/error", fiber.Map{
		"Title":   message,
		"Status":  status,
		"Message": message,
	})
}

func controlGroups(cfg shared.ControlConfig) ([]GroupView, error) {
	panel, err := bridge.NewPanel(cfg)
	if err != nil {
		return nil, err
	}

	var groups []GroupView
	for _, b := range panel.Bindings() {
		if len(groups) == 0 || groups[len(groups)-1].Name != b.Group {
			groups = append(groups, GroupView{Name: b.Group})
		}
		g := &groups[len(groups)-1]
		g.Controls = append(g.Controls, controlView(b))
	}
	return groups, nil
}

func controlView(b bridge.Binding) ControlView {
	v := ControlView{
		Name:   b.Name(),
		Label:  b.Control.DisplayLabel(),
		Widget: b.Widget.String(),
		Value:  formatValue(b.Value),
		Min:    formatBound(b.Control.Min),
		Max:    formatBound(b.Control.Max),
		Step:   formatBound(b.Control.Step),
	}
	for _, opt := range b.Control.Options {
		v.Options = append(v.Options, OptionView{
			Label:    opt.Label,
			Value:    formatValue(opt.Value),
			Selected: opt.Value.Equal(b.Value),
		})
	}
	return v
}

func formatValue(v shared.ControlValue) string {
	switch v.Kind {
	case shared.ValueNumber:
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	case shared.ValueNumbers:
		parts := make([]string, len(v.Numbers))
		for i, f := range v.Numbers {
			parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return strings.Join(parts, ",")
	case shared.ValueStrings:
		return strings.Join(v.Strs, ",")
	default:
		return v.Str
	}
}

func formatBound(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'g', -1, 64)
}

func cards(shaders []shared.Shader) []ShaderCard {
	out := make([]ShaderCard, 0, len(shaders))
	for i := range shaders {
		s := &shaders[i]
		out = append(out, ShaderCard{
			ID:        s.ID,
			Prompt:    s.Prompt(),
			CreatedAt: s.CreatedAt,
			Remix:     !s.IsRoot(),
		})
	}
	return out
}

func models(selected string) []modelView {
	if selected == "" {
		selected = shared.DefaultModel
	}
	ids := make([]string, 0, len(shared.Backends))
	for id := range shared.Backends {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]modelView, len(ids))
	for i, id := range ids {
		out[i] = modelView{ID: id, Selected: id == selected}
	}
	return out
}

func stringMeta(s *shared.Shader, key string) string {
	v, _ := s.Metadata[key].(string)
	return v
}
