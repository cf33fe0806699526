package style

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLegend(t *testing.T) {
	legend := BuildLegend(LegendBounds())
	require.Len(t, legend.Entries, 5)

	labels := make([]string, 0, len(legend.Entries))
	for _, e := range legend.Entries {
		labels = append(labels, e.Label)
	}
	assert.Equal(t, []string{"-10–10", "10–30", "30–50", "50–70", "70+"}, labels)

	last := legend.Entries[len(legend.Entries)-1]
	assert.True(t, strings.HasSuffix(last.Label, "+"))
	for _, e := range legend.Entries[:len(legend.Entries)-1] {
		assert.Contains(t, e.Label, "–")
	}

	colors := []string{"#c4b7a6", "#405d27", "#c1946a", "#82b74b", "#3e4444"}
	for i, e := range legend.Entries {
		assert.Equal(t, colors[i], e.Color, "entry %d", i)
	}
	assert.Equal(t, "bottomright", legend.Position)
}

func TestLegendHTML(t *testing.T) {
	out := BuildLegend(LegendBounds()).HTML()

	assert.True(t, strings.HasPrefix(out, `<div class="info legend">`))
	assert.Equal(t, 5, strings.Count(out, "<li>"))
	assert.Contains(t, out, `background-color:#3e4444`)
	assert.Contains(t, out, `<span>70+</span>`)
	assert.Contains(t, out, `<span>-10–10</span>`)
}

func TestBuildLegendEmpty(t *testing.T) {
	legend := BuildLegend(nil)
	assert.Empty(t, legend.Entries)
	assert.NotContains(t, legend.HTML(), "<li>")
}
