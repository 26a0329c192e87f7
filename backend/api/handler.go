// Package api serves the shader endpoints as API Gateway proxy events.
package api

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"shaderland/backend/shared"
)

// Route paths.
const (
	PathGenerate = "/api/generate-shader"
	PathShader   = "/api/shader/"
	PathRecent   = "/api/recent-shaders"
)

// Handler routes API requests to the generation pipeline and the store.
type Handler struct {
	Generator *shared.Generator
	Store     shared.ShaderStore
	Logger    *zap.Logger
}

func NewHandler(gen *shared.Generator, store shared.ShaderStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Generator: gen, Store: store, Logger: logger.Named("api")}
}

// Handle is the Lambda entry point.
func (h *Handler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	log := h.Logger.With(
		zap.String("request_id", shared.NewRequestID()),
		zap.String("method", request.HTTPMethod),
		zap.String("path", request.Path))
	log.Debug("request")

	path := strings.TrimSuffix(request.Path, "/")
	method := request.HTTPMethod

	switch {
	case method == "OPTIONS":
		return shared.CreateResponse(204, nil), nil
	case path == PathGenerate && method == "POST":
		return h.handleGenerate(ctx, log, request)
	case strings.HasPrefix(path, PathShader) && method == "GET":
		id := request.PathParameters["id"]
		if id == "" {
			id = strings.TrimPrefix(path, PathShader)
		}
		return h.handleGetShader(ctx, log, id)
	case path == PathRecent && method == "GET":
		return h.handleRecent(ctx, log, request)
	default:
		log.Info("no matching route")
		return shared.CreateErrorResponse(404, "Not found"), nil
	}
}

func (h *Handler) handleGenerate(ctx context.Context, log *zap.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var req shared.GenerateRequest
	if err := json.Unmarshal([]byte(shared.GetRequestBody(request)), &req); err != nil {
		log.Info("invalid request body", zap.Error(err))
		return shared.CreateClassifiedErrorResponse(&shared.ValidationError{Field: "body", Message: "Invalid request body"}), nil
	}

	shader, err := h.Generator.Generate(ctx, req)
	if err != nil {
		status, code, _ := shared.ClassifyError(err)
		log.Warn("generation failed", zap.Int("status", status), zap.String("code", code), zap.Error(err))
		return shared.CreateClassifiedErrorResponse(err), nil
	}

	return shared.CreateSuccessResponse(200, shader), nil
}

func (h *Handler) handleGetShader(ctx context.Context, log *zap.Logger, id string) (events.APIGatewayProxyResponse, error) {
	if id == "" || strings.Contains(id, "/") {
		return shared.CreateClassifiedErrorResponse(shared.ErrNotFound), nil
	}

	shader, err := h.Store.GetByID(ctx, id)
	if err != nil {
		log.Info("get shader failed", zap.String("id", id), zap.Error(err))
		return shared.CreateClassifiedErrorResponse(err), nil
	}
	return shared.CreateSuccessResponse(200, shader), nil
}

func (h *Handler) handleRecent(ctx context.Context, log *zap.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	filter := shared.RecentFilter{CreatorID: request.QueryStringParameters["creator_id"]}

	if raw, ok := request.QueryStringParameters["limit"]; ok && raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return shared.CreateClassifiedErrorResponse(&shared.ValidationError{Field: "limit", Message: "Invalid limit parameter"}), nil
		}
		filter.Limit = limit
	}

	shaders, err := h.Store.Recent(ctx, filter)
	if err != nil {
		log.Error("recent shaders failed", zap.Error(err))
		return shared.CreateClassifiedErrorResponse(err), nil
	}
	return shared.CreateSuccessResponse(200, shared.RecentShadersResponse{Shaders: shaders}), nil
}
