package leaderboardservice

import (
	"bytes"
	"context"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"

	scoringdomain "github.com/SaveSquad-App/gamify-engine/app/modules/scoring/domain"
)

// RenderChart renders the top of one board as a PNG bar chart.
func (s *Service) RenderChart(ctx context.Context, category scoringdomain.Category, scope Scope, country string, limit int) ([]byte, error) {
	entries, err := s.Leaderboard(ctx, category, scope, country, limit)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return renderPlaceholder(category)
	}

	bars := make([]chart.Value, 0, len(entries))
	for _, e := range entries {
		bars = append(bars, chart.Value{Label: e.UserID, Value: e.Value})
	}

	title := fmt.Sprintf("Top %s", category)
	if scope == ScopeCountry {
		title = fmt.Sprintf("Top %s (%s)", category, country)
	}
	graph := chart.BarChart{
		Title:      title,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		Height:     512,
		BarWidth:   60,
		Bars:       bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("leaderboardservice.RenderChart: %w", err)
	}
	return buf.Bytes(), nil
}

// renderPlaceholder produces an image for an empty board so chart consumers
// always get a PNG back.
func renderPlaceholder(category scoringdomain.Category) ([]byte, error) {
	graph := chart.BarChart{
		Title:      fmt.Sprintf("Top %s", category),
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		Height:     512,
		BarWidth:   60,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: 1},
		},
		Bars: []chart.Value{{Label: "no data yet", Value: 1}},
	}
	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("leaderboardservice.renderPlaceholder: %w", err)
	}
	return buf.Bytes(), nil
}
