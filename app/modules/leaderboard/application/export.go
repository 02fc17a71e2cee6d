package leaderboardservice

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	scoringdomain "github.com/SaveSquad-App/gamify-engine/app/modules/scoring/domain"
)

// ExportXLSX writes one full board to an xlsx workbook for offline review.
func (s *Service) ExportXLSX(ctx context.Context, category scoringdomain.Category, scope Scope, country string) ([]byte, error) {
	entries, err := s.Leaderboard(ctx, category, scope, country, 0)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Leaderboard"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("leaderboardservice.ExportXLSX: %w", err)
	}

	headers := []string{"Rank", "User", "Country", string(category), "Reached At"}
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("leaderboardservice.ExportXLSX: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("leaderboardservice.ExportXLSX: %w", err)
		}
	}

	for row, e := range entries {
		values := []any{e.Rank, e.UserID, e.CountryCode, e.Value, e.ReachedAt.UTC().Format(time.RFC3339)}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, fmt.Errorf("leaderboardservice.ExportXLSX: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("leaderboardservice.ExportXLSX: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("leaderboardservice.ExportXLSX: %w", err)
	}
	return buf.Bytes(), nil
}
