package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/abelzeko/dwlr-dashboard/internal/entities"
	"github.com/abelzeko/dwlr-dashboard/internal/integration/openai"
)

// IntentKind is what a free-text message asks the dashboard to do
type IntentKind string

const (
	IntentSelectStation    IntentKind = openai.CommandSelectStation
	IntentShowForecast     IntentKind = openai.CommandShowForecast
	IntentShowHistory      IntentKind = openai.CommandShowHistory
	IntentShowAvailability IntentKind = openai.CommandShowAvailability
	IntentShowAlerts       IntentKind = openai.CommandShowAlerts
	IntentShowZones        IntentKind = openai.CommandShowZones
	IntentRunScenario      IntentKind = openai.CommandRunScenario
	IntentGeneralQuery     IntentKind = openai.CommandGeneralQuery
)

// Intent is an interpreted user message
type Intent struct {
	Kind           IntentKind
	StationID      string
	RainfallFactor float64
	DemandFactor   float64
	Message        string
}

// Assistant turns free text into dashboard intents
type Assistant struct {
	agent openai.OpenAIService
}

// NewAssistant creates an assistant backed by agent
func NewAssistant(agent openai.OpenAIService) *Assistant {
	return &Assistant{agent: agent}
}

// Interpret asks the agent what text means in terms of the given stations.
// Station ids the agent invents are dropped, unknown commands become
// IntentGeneralQuery.
func (a *Assistant) Interpret(ctx context.Context, text string, stations []entities.Station) (*Intent, error) {
	ids := make([]string, 0, len(stations))
	for _, s := range stations {
		ids = append(ids, s.StationID)
	}

	resp, err := a.agent.InterpretUserQuery(ctx, text, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to interpret message: %w", err)
	}

	intent := &Intent{
		Kind:           IntentKind(resp.CommandName),
		StationID:      strings.TrimSpace(resp.StationID),
		RainfallFactor: resp.RainfallFactor,
		DemandFactor:   resp.DemandFactor,
		Message:        resp.UserMessage,
	}
	if intent.StationID != "" && !listed(stations, intent.StationID) {
		intent.StationID = ""
	}
	switch intent.Kind {
	case IntentSelectStation, IntentShowForecast, IntentShowHistory, IntentShowAvailability,
		IntentShowAlerts, IntentShowZones, IntentRunScenario:
	default:
		intent.Kind = IntentGeneralQuery
	}
	if intent.Kind == IntentSelectStation && intent.StationID == "" {
		intent.Kind = IntentGeneralQuery
	}
	return intent, nil
}

// Apply performs the state changes an intent implies on d: selecting the
// named station and, for scenarios, setting both factors.
func (i *Intent) Apply(d *Dashboard) error {
	if i.StationID != "" && i.StationID != d.ActiveStation() {
		if err := d.Select(i.StationID); err != nil {
			return err
		}
	}
	if i.Kind == IntentRunScenario {
		return d.RunScenario(i.RainfallFactor, i.DemandFactor)
	}
	return nil
}
