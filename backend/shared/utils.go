package shared

import (
	"encoding/base64"
	"encoding/json"
	"os"

	"github.com/aws/aws-lambda-go/events"
)

// GetEnv retrieves an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// CreateResponse creates a standard API Gateway response
func CreateResponse(statusCode int, body interface{}) events.APIGatewayProxyResponse {
	jsonBody, _ := json.Marshal(body)
	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers: map[string]string{
			"Content-Type":                 "application/json",
			"Access-Control-Allow-Origin":  "*",
			"Access-Control-Allow-Methods": "GET,POST,OPTIONS",
			"Access-Control-Allow-Headers": "Content-Type",
		},
		Body: string(jsonBody),
	}
}

// CreateSuccessResponse creates a success response
func CreateSuccessResponse(statusCode int, data interface{}) events.APIGatewayProxyResponse {
	response := APIResponse{
		Success: true,
		Data:    data,
	}
	return CreateResponse(statusCode, response)
}

// CreateErrorResponse creates an error response
func CreateErrorResponse(statusCode int, message string) events.APIGatewayProxyResponse {
	response := APIResponse{
		Success: false,
		Error:   message,
	}
	return CreateResponse(statusCode, response)
}

// CreateClassifiedErrorResponse renders err with the status, code and public
// message ClassifyError assigns to it.
func CreateClassifiedErrorResponse(err error) events.APIGatewayProxyResponse {
	status, code, message := ClassifyError(err)
	return CreateResponse(status, APIResponse{
		Success: false,
		Error:   message,
		Code:    code,
	})
}

// GetRequestBody returns the request body, decoding from base64 if needed
func GetRequestBody(request events.APIGatewayProxyRequest) string {
	body := request.Body

	if request.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err == nil {
			return string(decoded)
		}
	}

	return body
}
