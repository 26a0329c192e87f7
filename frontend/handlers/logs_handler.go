package handlers

import (
	"errors"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"shaderland/backend/shared"
)

// LogsAPI is the part of the CloudWatch Logs client the logs page uses.
type LogsAPI interface {
	cloudwatchlogs.FilterLogEventsAPIClient
}

// LogEntry represents a single log entry
type LogEntry struct {
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"message"`
	LogStream string `json:"logStream"`
}

const (
	maxLogPages  = 3
	maxLogHours  = 168
	logPageLimit = 500
)

// failureCodes are the error codes a generation failure can be filtered by.
var failureCodes = map[string]bool{
	shared.CodeValidation:        true,
	shared.CodeUnsupportedModel:  true,
	shared.CodeConfiguration:     true,
	shared.CodeUpstream:          true,
	shared.CodeMalformedResponse: true,
	shared.CodeInvalidConfigJSON: true,
	shared.CodeStorage:           true,
}

// FilterPattern selects the structured log lines of failed generations,
// optionally narrowed to one error code.
func FilterPattern(code string) string {
	if code == "" {
		return `{ $.msg = "generation failed" || $.msg = "could not parse model response" }`
	}
	return `{ $.code = "` + code + `" }`
}

// GetLogsHandler fetches recent generation failures from CloudWatch so
// malformed model output can be reviewed.
func (h *Handlers) GetLogsHandler(c *fiber.Ctx) error {
	if h.Logs == nil || h.LogGroup == "" {
		return c.Status(503).JSON(shared.APIResponse{
			Success: false,
			Error:   "Log review is not configured",
		})
	}

	hours, err := strconv.Atoi(c.Query("hours", "1"))
	if err != nil || hours < 1 || hours > maxLogHours {
		hours = 1
	}
	code := c.Query("code")
	if code != "" && !failureCodes[code] {
		return c.Status(400).JSON(shared.APIResponse{
			Success: false,
			Error:   "Unknown error code",
			Code:    shared.CodeValidation,
		})
	}

	ctx := c.UserContext()
	endTime := now()
	startTime := endTime.Add(-hoursDuration(hours))

	input := &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName:  aws.String(h.LogGroup),
		FilterPattern: aws.String(FilterPattern(code)),
		StartTime:     aws.Int64(startTime.UnixMilli()),
		EndTime:       aws.Int64(endTime.UnixMilli()),
		Limit:         aws.Int32(logPageLimit),
	}

	allEvents := []LogEntry{}
	paginator := cloudwatchlogs.NewFilterLogEventsPaginator(h.Logs, input)

	// at most maxLogPages pages
	for pageCount := 0; paginator.HasMorePages() && pageCount < maxLogPages; pageCount++ {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			var notFound *types.ResourceNotFoundException
			if errors.As(err, &notFound) {
				return c.JSON(shared.APIResponse{
					Success: true,
					Message: "No logs found - log group does not exist yet",
					Data: fiber.Map{
						"logs":         allEvents,
						"logGroupName": h.LogGroup,
						"hours":        hours,
						"count":        0,
					},
				})
			}
			h.log().Error("filter log events failed", zap.String("log_group", h.LogGroup), zap.Error(err))
			return c.Status(500).JSON(shared.APIResponse{
				Success: false,
				Error:   "Failed to fetch logs",
			})
		}

		for _, event := range page.Events {
			allEvents = append(allEvents, LogEntry{
				Timestamp: aws.ToInt64(event.Timestamp),
				Message:   aws.ToString(event.Message),
				LogStream: aws.ToString(event.LogStreamName),
			})
		}
	}

	// newest first
	sort.Slice(allEvents, func(i, j int) bool {
		return allEvents[i].Timestamp > allEvents[j].Timestamp
	})

	return c.JSON(shared.APIResponse{
		Success: true,
		Data: fiber.Map{
			"logs":         allEvents,
			"logGroupName": h.LogGroup,
			"hours":        hours,
			"count":        len(allEvents),
		},
	})
}
