package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jereantequera/Autocann/internal/models"
)

func TestRange_AllStages(t *testing.T) {
	cases := []struct {
		stage  models.GrowthStage
		metric Metric
		low    float64
		high   float64
	}{
		{models.StageEarlyVeg, MetricVPD, 0.6, 1.0},
		{models.StageLateVeg, MetricVPD, 0.8, 1.2},
		{models.StageFlowering, MetricVPD, 1.2, 1.5},
		{models.StageDry, MetricHumidity, 60, 65},
	}
	for _, tc := range cases {
		t.Run(string(tc.stage), func(t *testing.T) {
			r, err := Range(tc.stage)
			require.NoError(t, err)
			assert.Equal(t, tc.metric, r.Metric)
			assert.Equal(t, tc.low, r.Low)
			assert.Equal(t, tc.high, r.High)
			assert.Less(t, r.Low, r.High)
		})
	}
}

func TestRange_UnknownStage(t *testing.T) {
	_, err := Range(models.GrowthStage("germination"))
	require.Error(t, err)
	var unknown *ErrUnknownStage
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, models.GrowthStage("germination"), unknown.Stage)
}

func TestControlBand_DryIsDirect(t *testing.T) {
	band, err := ControlBand(models.StageDry, 21)
	require.NoError(t, err)
	assert.Equal(t, TargetRange{Metric: MetricHumidity, Low: 60, High: 65}, band)
}

func TestControlBand_VPDStagesInvert(t *testing.T) {
	// At 25°C svp ≈ 3.17 kPa. flowering VPD [1.2,1.5] maps to a humidity
	// band where the low VPD bound becomes the high humidity bound.
	band, err := ControlBand(models.StageFlowering, 25)
	require.NoError(t, err)
	assert.Equal(t, MetricHumidity, band.Metric)
	assert.Less(t, band.Low, band.High)
	assert.InDelta(t, 52.6, band.Low, 0.5)
	assert.InDelta(t, 62.1, band.High, 0.5)
}

func TestTargetHumidity_IsBandMidpoint(t *testing.T) {
	target, err := TargetHumidity(models.StageDry, 20)
	require.NoError(t, err)
	assert.Equal(t, 62.5, target)

	band, err := ControlBand(models.StageLateVeg, 24)
	require.NoError(t, err)
	target, err = TargetHumidity(models.StageLateVeg, 24)
	require.NoError(t, err)
	assert.Equal(t, (band.Low+band.High)/2, target)
}

func TestContains(t *testing.T) {
	r := TargetRange{Metric: MetricVPD, Low: 0.8, High: 1.2}
	assert.True(t, r.Contains(0.8))
	assert.True(t, r.Contains(1.2))
	assert.True(t, r.Contains(1.0))
	assert.False(t, r.Contains(0.79))
	assert.False(t, r.Contains(1.21))
}
