package api

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shaderland/backend/shared"
)

const pulsingCircle = `<SHADER_HTML>
<!DOCTYPE html><html><body><canvas id="shader-canvas"></canvas><script>/* UPDATE_PARAMS */</script></body></html>
</SHADER_HTML>
<TWEAKPANE_CONFIG>
{"Circle":{"pulse":{"value":1,"min":0,"max":4},"color":{"value":"#ff0000"}}}
</TWEAKPANE_CONFIG>`

type stubClient struct {
	text  string
	calls int
}

func (s *stubClient) Complete(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	s.calls++
	return s.text, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func setupHandler(t *testing.T, selector shared.BackendSelector) (*Handler, shared.ShaderStore) {
	t.Helper()
	store, err := shared.OpenSQLiteShaderStore(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	gen := &shared.Generator{
		Select: selector,
		Store:  store,
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	}
	return NewHandler(gen, store, nil), store
}

func decode(t *testing.T, resp events.APIGatewayProxyResponse) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &env))
	return env
}

func generateRequest(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{HTTPMethod: "POST", Path: PathGenerate, Body: body}
}

func TestGenerateShaderSuccess(t *testing.T) {
	client := &stubClient{text: pulsingCircle}
	h, _ := setupHandler(t, func(string) (shared.CompletionClient, error) { return client, nil })

	resp, err := h.Handle(context.Background(), generateRequest(`{"prompt":"a pulsing red circle","creator_id":"u1"}`))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode, resp.Body)

	env := decode(t, resp)
	assert.True(t, env.Success)

	var shader shared.Shader
	require.NoError(t, json.Unmarshal(env.Data, &shader))
	assert.Len(t, shader.ID, shared.ShaderIDLength)
	assert.Equal(t, shader.ID, shader.LineageID)
	assert.Equal(t, "u1", shader.CreatorID)
	assert.Contains(t, shader.HTML, "shader-canvas")
	assert.Equal(t, `{"Circle":{"pulse":{"value":1,"min":0,"max":4},"color":{"value":"#ff0000"}}}`, shader.JSON.String())
	assert.Equal(t, "a pulsing red circle", shader.Prompt())

	// the stored row is what GET returns
	resp, err = h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: "GET", Path: PathShader + shader.ID, PathParameters: map[string]string{"id": shader.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestGenerateShaderEmptyPrompt(t *testing.T) {
	client := &stubClient{text: pulsingCircle}
	h, _ := setupHandler(t, func(string) (shared.CompletionClient, error) { return client, nil })

	resp, err := h.Handle(context.Background(), generateRequest(`{"prompt":"","creator_id":"u1"}`))
	require.NoError(t, err)

	assert.Equal(t, 400, resp.StatusCode)
	env := decode(t, resp)
	assert.False(t, env.Success)
	assert.Equal(t, "Prompt is required", env.Error)
	assert.Equal(t, shared.CodeValidation, env.Code)
	assert.Zero(t, client.calls)
}

func TestGenerateShaderMissingCredential(t *testing.T) {
	h, store := setupHandler(t, shared.Selector(shared.Credentials{}))

	resp, err := h.Handle(context.Background(), generateRequest(`{"prompt":"x","creator_id":"u1","model":"mistral-small-2503"}`))
	require.NoError(t, err)

	assert.Equal(t, 500, resp.StatusCode)
	env := decode(t, resp)
	assert.Equal(t, "MISTRAL_API_KEY not configured", env.Error)
	assert.Equal(t, shared.CodeConfiguration, env.Code)

	recent, err := store.Recent(context.Background(), shared.RecentFilter{})
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestGenerateShaderUnsupportedModel(t *testing.T) {
	h, _ := setupHandler(t, shared.Selector(shared.Credentials{}))

	resp, err := h.Handle(context.Background(), generateRequest(`{"prompt":"x","creator_id":"u1","model":"gpt-9"}`))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "Unsupported model", decode(t, resp).Error)
}

func TestGenerateShaderMalformedBody(t *testing.T) {
	h, _ := setupHandler(t, shared.Selector(shared.Credentials{}))

	resp, err := h.Handle(context.Background(), generateRequest(`{"prompt":`))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestGenerateShaderBase64Body(t *testing.T) {
	client := &stubClient{text: pulsingCircle}
	h, _ := setupHandler(t, func(string) (shared.CompletionClient, error) { return client, nil })

	req := generateRequest("eyJwcm9tcHQiOiJ3YXZlcyIsImNyZWF0b3JfaWQiOiJ1MSJ9") // {"prompt":"waves","creator_id":"u1"}
	req.IsBase64Encoded = true

	resp, err := h.Handle(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode, resp.Body)
}

func TestGetShaderNotFound(t *testing.T) {
	h, _ := setupHandler(t, shared.Selector(shared.Credentials{}))

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: "GET", Path: PathShader + "missing"})
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, "Shader not found", decode(t, resp).Error)
}

func TestRecentShaders(t *testing.T) {
	client := &stubClient{text: pulsingCircle}
	h, _ := setupHandler(t, func(string) (shared.CompletionClient, error) { return client, nil })
	ctx := context.Background()

	var ids []string
	for i, creator := range []string{"a", "b", "a"} {
		resp, err := h.Handle(ctx, generateRequest(`{"prompt":"p`+string(rune('0'+i))+`","creator_id":"`+creator+`"}`))
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode)
		var shader shared.Shader
		require.NoError(t, json.Unmarshal(decode(t, resp).Data, &shader))
		ids = append(ids, shader.ID)
	}

	list := func(query map[string]string) []shared.Shader {
		resp, err := h.Handle(ctx, events.APIGatewayProxyRequest{HTTPMethod: "GET", Path: PathRecent, QueryStringParameters: query})
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode, resp.Body)
		var out shared.RecentShadersResponse
		require.NoError(t, json.Unmarshal(decode(t, resp).Data, &out))
		return out.Shaders
	}

	all := list(nil)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)
	assert.Equal(t, ids[0], all[2].ID)

	mine := list(map[string]string{"creator_id": "a", "limit": "1"})
	require.Len(t, mine, 1)
	assert.Equal(t, ids[2], mine[0].ID)
}

func TestRecentShadersBadLimit(t *testing.T) {
	h, _ := setupHandler(t, shared.Selector(shared.Credentials{}))

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: "GET", Path: PathRecent, QueryStringParameters: map[string]string{"limit": "five"},
	})
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "Invalid limit parameter", decode(t, resp).Error)
}

func TestUnknownRoute(t *testing.T) {
	h, _ := setupHandler(t, shared.Selector(shared.Credentials{}))

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: "DELETE", Path: PathGenerate})
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}
