package tools

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"resty.dev/v3"

	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

const weatherToolName = "get_weather"

// WeatherTool fetches current conditions from an Open-Meteo compatible API.
type WeatherTool struct {
	client  *resty.Client
	baseURL string
}

func NewWeatherTool(client *resty.Client, baseURL string) *WeatherTool {
	return &WeatherTool{client: client, baseURL: baseURL}
}

func (t *WeatherTool) Name() string {
	return weatherToolName
}

func (t *WeatherTool) Definition() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        weatherToolName,
			Description: "Get the current weather at a location",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"latitude":  {"type": "number", "description": "Latitude of the location"},
					"longitude": {"type": "number", "description": "Longitude of the location"}
				},
				"required": ["latitude", "longitude"]
			}`),
		},
	}
}

type weatherArgs struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (t *WeatherTool) Execute(ctx context.Context, arguments string) (string, error) {
	var args weatherArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeValidation, "invalid weather tool arguments", err, "")
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"latitude":  fmt.Sprintf("%.4f", args.Latitude),
			"longitude": fmt.Sprintf("%.4f", args.Longitude),
			"current":   "temperature_2m,weather_code,wind_speed_10m",
			"hourly":    "temperature_2m",
		}).
		Get(t.baseURL + "/forecast")
	if err != nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, "weather request failed", err, "")
	}
	if resp.IsError() {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, fmt.Sprintf("weather request failed: status %d", resp.StatusCode()), nil, "")
	}

	return resp.String(), nil
}
