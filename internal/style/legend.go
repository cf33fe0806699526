package style

import (
	"html"
	"slices"
	"strconv"
	"strings"
)

var legendBounds = []float64{-10, 10, 30, 50, 70}

// LegendBounds returns the lower bounds of the legend swatches, shallowest first.
func LegendBounds() []float64 {
	return slices.Clone(legendBounds)
}

// LegendEntry is a single swatch of the depth legend.
type LegendEntry struct {
	Label string  `json:"label" yaml:"label"`
	Color string  `json:"color" yaml:"color"`
	Lower float64 `json:"lower" yaml:"lower"`
}

// Legend is the static depth legend control.
type Legend struct {
	Title    string        `json:"title" yaml:"title"`
	Position string        `json:"position" yaml:"position"`
	Entries  []LegendEntry `json:"entries" yaml:"entries"`
}

// BuildLegend creates one entry per bound. Interior entries are labeled
// "lower–upper" with an en dash, the last one "lower+".
func BuildLegend(bounds []float64) Legend {
	entries := make([]LegendEntry, 0, len(bounds))
	for i, lower := range bounds {
		label := formatDepth(lower) + "+"
		if i+1 < len(bounds) {
			label = formatDepth(lower) + "–" + formatDepth(bounds[i+1])
		}

		entries = append(entries, LegendEntry{
			Lower: lower,
			Label: label,
			Color: ChooseColor(lower + 1),
		})
	}

	return Legend{
		Title:    "Depth (km)",
		Position: "bottomright",
		Entries:  entries,
	}
}

// HTML renders the legend body mounted into the map control.
func (l Legend) HTML() string {
	var b strings.Builder
	b.WriteString(`<div class="info legend">`)
	if l.Title != "" {
		b.WriteString(`<h4>`)
		b.WriteString(html.EscapeString(l.Title))
		b.WriteString(`</h4>`)
	}
	b.WriteString(`<ul>`)
	for _, e := range l.Entries {
		b.WriteString(`<li><i style="background-color:`)
		b.WriteString(html.EscapeString(e.Color))
		b.WriteString(`"></i><span>`)
		b.WriteString(html.EscapeString(e.Label))
		b.WriteString(`</span></li>`)
	}
	b.WriteString(`</ul></div>`)

	return b.String()
}

func formatDepth(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
