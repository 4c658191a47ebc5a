package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/abelzeko/dwlr-dashboard/internal/entities"
	"github.com/abelzeko/dwlr-dashboard/internal/presentation"
	"github.com/abelzeko/dwlr-dashboard/internal/usecases"
	"go.uber.org/zap"
)

const (
	welcomeText = "Welcome to the Groundwater Dashboard bot! Use /stations to see the DWLR stations or /help for more information."
	helpText    = "Available commands:\n" +
		"/start - Start the bot\n" +
		"/stations - Show the list of stations\n" +
		"/station [id] - Select a station and show its latest reading\n" +
		"/summary - Show the headline numbers\n" +
		"/history - 30-day trend of the selected station\n" +
		"/forecast - Trend and forecast of the selected station\n" +
		"/availability - Recharge and demand balance of the selected station\n" +
		"/scenario [rainfall] [demand] - What-if projection, e.g. /scenario 0.8 1.2\n" +
		"/alerts - Stations that need attention\n" +
		"/zones - Zone classification\n" +
		"/help - Show this help message"
	unknownText = "I don't understand. Use /help to see available commands."
)

// CommandHandler answers bot commands against one dashboard per chat
type CommandHandler struct {
	sessions  *usecases.Sessions
	assistant *usecases.Assistant
	logger    *zap.SugaredLogger
}

// NewCommandHandler creates a handler. assistant may be nil, in which case
// free text gets a help hint.
func NewCommandHandler(sessions *usecases.Sessions, assistant *usecases.Assistant, logger *zap.SugaredLogger) *CommandHandler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &CommandHandler{
		sessions:  sessions,
		assistant: assistant,
		logger:    logger,
	}
}

func chatKey(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}

// HandleCommand answers a slash command
func (h *CommandHandler) HandleCommand(chatID int64, command, args string) string {
	args = strings.TrimSpace(args)

	switch command {
	case "start":
		h.sessions.Get(chatKey(chatID))
		return welcomeText
	case "help":
		return helpText
	}

	d := h.sessions.Get(chatKey(chatID))
	switch command {
	case "stations":
		return h.stations(d)
	case "station":
		return h.selectStation(d, args)
	case "summary":
		return h.summary(d)
	case "history":
		return h.history(d)
	case "forecast":
		return h.forecast(d)
	case "availability":
		return h.availability(d)
	case "scenario":
		return h.scenario(d, args)
	case "alerts":
		return h.alerts(d)
	case "zones":
		return h.zones(d)
	default:
		h.logger.Infow("Unknown command", "command", command, "chat", chatID)
		return "Unknown command. Use /help to see available commands."
	}
}

// HandleText answers a free-text message through the assistant
func (h *CommandHandler) HandleText(ctx context.Context, chatID int64, text string) string {
	if h.assistant == nil {
		return unknownText
	}

	d := h.sessions.Get(chatKey(chatID))
	d.Wait()

	intent, err := h.assistant.Interpret(ctx, text, d.Stations())
	if err != nil {
		h.logger.Errorw("Assistant failed", "chat", chatID, "error", err)
		return unknownText
	}
	h.logger.Debugw("Interpreted message", "chat", chatID, "intent", intent.Kind, "station", intent.StationID)

	if err := intent.Apply(d); err != nil {
		return describeError(err)
	}

	var body string
	switch intent.Kind {
	case usecases.IntentSelectStation:
		body = h.describeActive(d)
	case usecases.IntentShowForecast:
		body = h.forecast(d)
	case usecases.IntentShowHistory:
		body = h.history(d)
	case usecases.IntentShowAvailability:
		body = h.availability(d)
	case usecases.IntentShowAlerts:
		body = h.alerts(d)
	case usecases.IntentShowZones:
		body = h.zones(d)
	case usecases.IntentRunScenario:
		body = h.scenarioResult(d)
	default:
		if intent.Message != "" {
			return intent.Message
		}
		return unknownText
	}

	if intent.Message != "" {
		return intent.Message + "\n\n" + body
	}
	return body
}

func (h *CommandHandler) stations(d *usecases.Dashboard) string {
	d.Wait()
	view := d.Snapshot()
	if !view.Stations.Ready {
		return presentation.PlaceholderUnavailable
	}
	return presentation.FormatStations(view.Stations.Data, view.ActiveStation)
}

func (h *CommandHandler) selectStation(d *usecases.Dashboard, id string) string {
	if id == "" {
		return "Please specify a station id. Example: /station DWLR_001"
	}
	d.Wait()
	if err := d.Select(id); err != nil {
		if errors.Is(err, usecases.ErrUnknownStation) {
			return fmt.Sprintf("No station found with id '%s'. Use /stations to see the available stations.", id)
		}
		return describeError(err)
	}
	return h.describeActive(d)
}

func (h *CommandHandler) describeActive(d *usecases.Dashboard) string {
	station, ok := d.Station(d.ActiveStation())
	if !ok {
		return presentation.PlaceholderNoStation
	}
	return presentation.FormatStation(station)
}

func (h *CommandHandler) summary(d *usecases.Dashboard) string {
	d.Wait()
	view := d.Snapshot().Summary
	return render(view, "", func(s *entities.Summary) string {
		return presentation.FormatSummary(*s)
	})
}

func (h *CommandHandler) history(d *usecases.Dashboard) string {
	active := d.ActiveStation()
	if active == "" {
		return presentation.PlaceholderNoStation
	}
	d.History.Wait()
	return render(d.History.View(), active, func(points []entities.HistoryPoint) string {
		return presentation.FormatHistory(active, points)
	})
}

func (h *CommandHandler) forecast(d *usecases.Dashboard) string {
	active := d.ActiveStation()
	if active == "" {
		return presentation.PlaceholderNoStation
	}
	d.Forecast.Wait()
	return render(d.Forecast.View(), active, func(tf usecases.TrendForecast) string {
		return presentation.FormatForecast(active, tf.History, tf.Forecast)
	})
}

func (h *CommandHandler) availability(d *usecases.Dashboard) string {
	active := d.ActiveStation()
	if active == "" {
		return presentation.PlaceholderNoStation
	}
	d.Availability.Wait()
	return render(d.Availability.View(), active, func(a *entities.Availability) string {
		return presentation.FormatAvailability(active, *a)
	})
}

func (h *CommandHandler) scenario(d *usecases.Dashboard, args string) string {
	if args != "" {
		fields := strings.Fields(args)
		if len(fields) != 2 {
			return "Usage: /scenario [rainfall] [demand], e.g. /scenario 0.8 1.2"
		}
		rainfall, err1 := strconv.ParseFloat(fields[0], 64)
		demand, err2 := strconv.ParseFloat(fields[1], 64)
		if err1 != nil || err2 != nil {
			return "Factors must be numbers, e.g. /scenario 0.8 1.2"
		}
		d.Wait()
		if err := d.RunScenario(rainfall, demand); err != nil {
			return describeError(err)
		}
	}
	return h.scenarioResult(d)
}

func (h *CommandHandler) scenarioResult(d *usecases.Dashboard) string {
	active := d.ActiveStation()
	if active == "" {
		return presentation.PlaceholderNoStation
	}
	d.Scenario.Wait()
	return render(d.Scenario.View(), active, func(o usecases.ScenarioOutcome) string {
		return presentation.FormatScenario(o.Params.StationID, o.Params.RainfallFactor, o.Params.DemandFactor, o.Result)
	})
}

func (h *CommandHandler) alerts(d *usecases.Dashboard) string {
	d.Alerts.Wait()
	view := d.Alerts.View()
	if view.Unavailable {
		return presentation.PlaceholderUnavailable
	}
	panel := presentation.NewAlertsPanel(view.Data, !view.Ready)
	return presentation.FormatAlerts(panel, view.UpdatedAt)
}

func (h *CommandHandler) zones(d *usecases.Dashboard) string {
	d.Zones.Wait()
	return render(d.Zones.View(), "", presentation.FormatZones)
}

// render shows a widget's data if it belongs to key, and a placeholder
// otherwise. Data kept from before a failed refresh is marked as such.
func render[T any](v usecases.View[T], key string, format func(T) string) string {
	switch {
	case v.Ready && v.StationID == key:
		text := format(v.Data)
		if v.Error != "" {
			text += "\n\n⚠️ Refresh failed, showing last known data."
		}
		return text
	case v.Loading:
		return presentation.PlaceholderLoading
	default:
		return presentation.PlaceholderUnavailable
	}
}

func describeError(err error) string {
	switch {
	case errors.Is(err, usecases.ErrNoStation):
		return presentation.PlaceholderNoStation
	case errors.Is(err, usecases.ErrUnknownStation):
		return "That station is not in the list. Use /stations to see the available stations."
	case errors.Is(err, usecases.ErrFactorOutOfRange):
		return fmt.Sprintf("Rainfall must be between %v and %v, demand between %v and %v.",
			usecases.MinRainfallFactor, usecases.MaxRainfallFactor,
			usecases.MinDemandFactor, usecases.MaxDemandFactor)
	default:
		return "Something went wrong. Please try again later."
	}
}
