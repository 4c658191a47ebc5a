package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/abelzeko/dwlr-dashboard/internal/log"
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Commands the agent may answer with
const (
	CommandSelectStation    = "SelectStation"
	CommandShowForecast     = "ShowForecast"
	CommandShowHistory      = "ShowHistory"
	CommandShowAvailability = "ShowAvailability"
	CommandShowAlerts       = "ShowAlerts"
	CommandShowZones        = "ShowZones"
	CommandRunScenario      = "RunScenario"
	CommandGeneralQuery     = "GeneralQuery"
)

// AgentResponse defines the structured output from the OpenAI agent.
type AgentResponse struct {
	CommandName    string  `json:"command_name" jsonschema_description:"The dashboard command to execute, e.g. ShowForecast or GeneralQuery"`
	StationID      string  `json:"station_id" jsonschema_description:"The station id from the known list the user refers to, or an empty string"`
	RainfallFactor float64 `json:"rainfall_factor" jsonschema_description:"Rainfall multiplier between 0.5 and 1.2 for RunScenario, otherwise 1.0"`
	DemandFactor   float64 `json:"demand_factor" jsonschema_description:"Demand multiplier between 0.8 and 1.5 for RunScenario, otherwise 1.0"`
	UserMessage    string  `json:"user_message" jsonschema_description:"A message to show back to the user in their original language"`
}

// OpenAIService defines the interface for interacting with the OpenAI agent.
type OpenAIService interface {
	InterpretUserQuery(ctx context.Context, userMessage string, knownStations []string) (*AgentResponse, error)
}

// openAIServiceImpl implements the OpenAIService interface.
type openAIServiceImpl struct {
	client openai.Client
	schema interface{}
}

// GenerateSchema generates a JSON schema for a given type.
func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}

// NewOpenAIService creates and initializes a new OpenAIService.
func NewOpenAIService(apiKey string) (OpenAIService, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key not set")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	schema := GenerateSchema[AgentResponse]()

	return &openAIServiceImpl{
		client: client,
		schema: schema,
	}, nil
}

// InterpretUserQuery sends a message to the OpenAI agent and returns the structured response.
func (s *openAIServiceImpl) InterpretUserQuery(ctx context.Context, userMessage string, knownStations []string) (*AgentResponse, error) {
	systemPrompt := fmt.Sprintf(`You are the assistant of a groundwater monitoring dashboard for India. The dashboard shows
Digital Water Level Recorder (DWLR) stations, their water level in metres below ground level,
a 30-day trend, a forecast, recharge/demand availability, a what-if scenario and live alerts.

Known station ids: %s

Behavior:
1. If the user wants to switch to a station: command_name = "SelectStation", station_id = the matching id.
2. If the user asks for the forecast, the history/trend, or water availability of a station:
   command_name = "ShowForecast", "ShowHistory" or "ShowAvailability"; station_id = the matching id,
   or an empty string for the currently selected station.
3. If the user asks about alerts or critical stations: command_name = "ShowAlerts".
4. If the user asks about zones or the map: command_name = "ShowZones".
5. If the user asks what happens with more or less rain or water demand: command_name = "RunScenario",
   rainfall_factor in [0.5, 1.2], demand_factor in [0.8, 1.5] (e.g. "20%% less rain" = 0.8).
6. Anything else: command_name = "GeneralQuery", station_id = "".

Use 1.0 for factors that do not apply. user_message: one short line in the user's language.

Output **strictly** in JSON.`, strings.Join(knownStations, ", "))

	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "agent_response",
		Description: openai.String("Structured response containing a dashboard command, station id, scenario factors and user message"),
		Schema:      s.schema,
		Strict:      openai.Bool(true),
	}

	respFormat := openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
	}

	chat, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userMessage),
		},
		ResponseFormat: respFormat,
		Model:          openai.ChatModelGPT4o,
	})

	if err != nil {
		return nil, fmt.Errorf("error calling OpenAI API: %w", err)
	}

	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return nil, errors.New("received empty response from OpenAI")
	}

	var agentResp AgentResponse
	err = json.Unmarshal([]byte(chat.Choices[0].Message.Content), &agentResp)
	if err != nil {
		log.Errorw("Failed to unmarshal OpenAI response", "error", err, "raw", chat.Choices[0].Message.Content)
		return nil, fmt.Errorf("error unmarshalling OpenAI response: %w", err)
	}

	return &agentResp, nil
}
