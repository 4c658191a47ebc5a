package usecases

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryWidgetDiscardsStaleResponse(t *testing.T) {
	api := newFakeAPI("A", "B")
	api.ignoreCancel = true
	releaseA := api.gate("history/A")

	w := NewHistoryWidget(api, nil)
	defer w.Close()

	w.SetStation("A")
	w.SetStation("B")

	require.Eventually(t, func() bool {
		v := w.View()
		return v.Ready && v.StationID == "B"
	}, time.Second, 5*time.Millisecond)

	// A answers after B was applied
	close(releaseA)
	w.Wait()

	v := w.View()
	assert.Equal(t, "B", v.StationID)
	require.Len(t, v.Data, 1)
	assert.Equal(t, level("B"), v.Data[0].WaterLevelMBGL)
	assert.False(t, v.Loading)
	assert.Equal(t, uint64(2), w.loader.sequence())
}

func TestHistoryWidgetCancelsSupersededFetch(t *testing.T) {
	api := newFakeAPI("A", "B")
	api.gate("history/A")

	w := NewHistoryWidget(api, nil)
	defer w.Close()

	w.SetStation("A")
	w.SetStation("B")
	w.Wait()

	v := w.View()
	assert.Equal(t, "B", v.StationID)
	assert.Empty(t, v.Error, "cancellation of A must not surface as an error")
	assert.Equal(t, 1, api.count("history/A"))
	assert.Equal(t, 1, api.count("history/B"))
}

func TestEmptyStationIssuesNoFetch(t *testing.T) {
	api := newFakeAPI("A")

	history := NewHistoryWidget(api, nil)
	forecast := NewForecastWidget(api, nil)
	availability := NewAvailabilityWidget(api, nil)
	scenario := NewScenarioWidget(api, nil)
	defer history.Close()
	defer forecast.Close()
	defer availability.Close()
	defer scenario.Close()

	history.SetStation("")
	forecast.SetStation("")
	availability.SetStation("")
	scenario.SetStation("")
	require.NoError(t, scenario.SetFactors(0.5, 1.5))
	history.Wait()
	forecast.Wait()
	availability.Wait()
	scenario.Wait()

	assert.Empty(t, api.callLog())
	assert.False(t, history.View().Ready)
	assert.False(t, scenario.View().Ready)
}

func TestEmptyStationClearsDisplay(t *testing.T) {
	api := newFakeAPI("A")
	w := NewAvailabilityWidget(api, nil)
	defer w.Close()

	w.SetStation("A")
	w.Wait()
	require.True(t, w.View().Ready)

	w.SetStation("")
	v := w.View()
	assert.False(t, v.Ready)
	assert.Nil(t, v.Data)
	assert.Equal(t, 1, api.count("availability/A"))
}

func TestOneFetchPerStationChange(t *testing.T) {
	api := newFakeAPI("A", "B")
	history := NewHistoryWidget(api, nil)
	forecast := NewForecastWidget(api, nil)
	availability := NewAvailabilityWidget(api, nil)
	defer history.Close()
	defer forecast.Close()
	defer availability.Close()

	for _, id := range []string{"A", "A", "B"} {
		history.SetStation(id)
		forecast.SetStation(id)
		availability.SetStation(id)
		history.Wait()
		forecast.Wait()
		availability.Wait()
	}

	assert.Equal(t, 1, api.count("availability/A"))
	assert.Equal(t, 1, api.count("availability/B"))
	assert.Equal(t, 1, api.count("forecast/A"))
	assert.Equal(t, 1, api.count("forecast/B"))
	// the forecast widget fetches history too
	assert.Equal(t, 2, api.count("history/A"))
	assert.Equal(t, 2, api.count("history/B"))
}

func TestForecastWidgetMergesHistoryAndForecast(t *testing.T) {
	api := newFakeAPI("A")
	w := NewForecastWidget(api, nil)
	defer w.Close()

	w.SetStation("A")
	w.Wait()

	assert.Equal(t, []string{"history/A", "forecast/A"}, api.callLog())
	v := w.View()
	require.True(t, v.Ready)
	require.Len(t, v.Data.History, 1)
	require.Len(t, v.Data.Forecast, 1)
	assert.Equal(t, level("A")+1, v.Data.Forecast[0].WaterLevelMBGL)
}

func TestForecastWidgetSkipsForecastWhenHistoryFails(t *testing.T) {
	api := newFakeAPI("A")
	api.fail("history/A", errBackendDown)
	w := NewForecastWidget(api, nil)
	defer w.Close()

	w.SetStation("A")
	w.Wait()

	assert.Equal(t, []string{"history/A"}, api.callLog())
	v := w.View()
	assert.True(t, v.Unavailable)
	assert.Contains(t, v.Error, "backend down")
}

func TestWidgetKeepsLastKnownGoodOnFailure(t *testing.T) {
	api := newFakeAPI("A", "B")
	api.fail("availability/B", errBackendDown)
	w := NewAvailabilityWidget(api, nil)
	defer w.Close()

	w.SetStation("A")
	w.Wait()
	w.SetStation("B")
	w.Wait()

	v := w.View()
	assert.True(t, v.Ready)
	assert.False(t, v.Unavailable)
	assert.False(t, v.Loading)
	assert.Equal(t, "A", v.StationID, "data still belongs to the last good station")
	require.NotNil(t, v.Data)
	assert.Equal(t, level("A"), v.Data.AvailableGroundwaterMM)
	assert.Equal(t, "backend down", v.Error)
}

func TestWidgetRefresh(t *testing.T) {
	api := newFakeAPI("A")
	w := NewHistoryWidget(api, nil)
	defer w.Close()

	w.SetStation("A")
	w.Wait()
	w.Refresh()
	w.Wait()

	assert.Equal(t, 2, api.count("history/A"))
	assert.Equal(t, "A", w.Station())
}

func TestWidgetDropsResponsesAfterClose(t *testing.T) {
	api := newFakeAPI("A")
	api.ignoreCancel = true
	release := api.gate("history/A")
	w := NewHistoryWidget(api, nil)

	w.SetStation("A")
	done := make(chan struct{})
	go func() {
		w.Close()
		close(done)
	}()
	require.Eventually(t, func() bool {
		w.loader.mu.Lock()
		defer w.loader.mu.Unlock()
		return w.loader.closed
	}, time.Second, 5*time.Millisecond)
	close(release)
	<-done

	assert.False(t, w.View().Ready)
	w.SetStation("B")
	w.Wait()
	assert.Equal(t, 0, api.count("history/B"))
}

func TestScenarioWidgetPostsCurrentTriple(t *testing.T) {
	api := newFakeAPI("S1", "S2")
	w := NewScenarioWidget(api, nil)
	defer w.Close()

	w.SetStation("S1")
	w.Wait()
	require.NoError(t, w.SetRainfallFactor(0.5))
	w.Wait()
	require.NoError(t, w.SetDemandFactor(1.3))
	w.Wait()
	w.SetStation("S2")
	w.Wait()

	assert.Equal(t, []string{
		"scenario/S1/1.0/1.0",
		"scenario/S1/0.5/1.0",
		"scenario/S1/0.5/1.3",
		"scenario/S2/0.5/1.3",
	}, api.callLog())

	v := w.View()
	require.True(t, v.Ready)
	assert.Equal(t, ScenarioParams{StationID: "S2", RainfallFactor: 0.5, DemandFactor: 1.3}, v.Data.Params)
	assert.Equal(t, "Low", v.Data.Result.RiskLevel)
}

func TestScenarioWidgetUnchangedTripleIssuesNoRequest(t *testing.T) {
	api := newFakeAPI("S1")
	w := NewScenarioWidget(api, nil)
	defer w.Close()

	w.SetStation("S1")
	w.Wait()
	w.SetStation("S1")
	require.NoError(t, w.SetFactors(1.0, 1.0))
	w.Wait()

	assert.Equal(t, 1, len(api.callLog()))
}

func TestScenarioWidgetRejectsOutOfRangeFactors(t *testing.T) {
	api := newFakeAPI("S1")
	w := NewScenarioWidget(api, nil)
	defer w.Close()

	w.SetStation("S1")
	w.Wait()

	cases := []struct {
		rainfall, demand float64
	}{
		{0.4, 1.0},
		{1.3, 1.0},
		{1.0, 0.7},
		{1.0, 1.6},
	}
	for _, c := range cases {
		err := w.SetFactors(c.rainfall, c.demand)
		assert.Truef(t, errors.Is(err, ErrFactorOutOfRange), "factors %v/%v: got %v", c.rainfall, c.demand, err)
	}
	w.Wait()

	assert.Equal(t, 1, len(api.callLog()))
	assert.Equal(t, ScenarioParams{StationID: "S1", RainfallFactor: 1, DemandFactor: 1}, w.Params())

	// bounds are inclusive
	require.NoError(t, w.SetFactors(MinRainfallFactor, MaxDemandFactor))
	require.NoError(t, w.SetFactors(MaxRainfallFactor, MinDemandFactor))
	w.Wait()
	assert.Equal(t, 3, len(api.callLog()))
}

func TestScenarioWidgetConcurrentFactorChangesBothApply(t *testing.T) {
	api := newFakeAPI("S1")
	w := NewScenarioWidget(api, nil)
	defer w.Close()

	w.SetStation("S1")
	for i := 0; i < 50; i++ {
		require.NoError(t, w.SetFactors(DefaultFactor, DefaultFactor))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, w.SetRainfallFactor(0.5))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, w.SetDemandFactor(1.3))
		}()
		wg.Wait()

		require.Equal(t, ScenarioParams{StationID: "S1", RainfallFactor: 0.5, DemandFactor: 1.3}, w.Params(), "round %d", i)
	}
	w.Wait()
}
