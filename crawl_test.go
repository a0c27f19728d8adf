package harvest_test

import (
	"testing"

	"github.com/fwojciec/harvest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrawlConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := harvest.CrawlConfig{Depth: 1, Workers: 1, SiteCap: harvest.Unbounded}
	assert.NoError(t, valid.Validate())

	capped := valid
	capped.SiteCap = 1
	assert.NoError(t, capped.Validate())

	for name, cfg := range map[string]harvest.CrawlConfig{
		"zero depth":        {Depth: 0, Workers: 1, SiteCap: harvest.Unbounded},
		"negative workers":  {Depth: 1, Workers: -1, SiteCap: harvest.Unbounded},
		"zero site cap":     {Depth: 1, Workers: 1, SiteCap: 0},
		"negative site cap": {Depth: 1, Workers: 1, SiteCap: -2},
	} {
		err := cfg.Validate()
		assert.Equal(t, harvest.EINVALID, harvest.ErrorCode(err), name)
	}
}

func TestCrawlEventType_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "wave_started", harvest.WaveStarted.String())
	assert.Equal(t, "page_visited", harvest.PageVisited.String())
	assert.Equal(t, "page_failed", harvest.PageFailed.String())
	assert.Equal(t, "cap_reached", harvest.CapReached.String())
	assert.Equal(t, "wave_finished", harvest.WaveFinished.String())
	assert.Equal(t, "unknown", harvest.CrawlEventType(99).String())
}

func TestParseCapPolicy(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]harvest.CapPolicy{
		"":              harvest.CapFinishWave,
		"finish-wave":   harvest.CapFinishWave,
		"stop-dispatch": harvest.CapStopDispatch,
		" STOP ":        harvest.CapStopDispatch,
	} {
		got, err := harvest.ParseCapPolicy(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := harvest.ParseCapPolicy("eventually")
	assert.Equal(t, harvest.EINVALID, harvest.ErrorCode(err))

	for _, p := range []harvest.CapPolicy{harvest.CapFinishWave, harvest.CapStopDispatch} {
		got, err := harvest.ParseCapPolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}
