package density

import (
	"fmt"
	"path/filepath"

	"lidarflow/internal/logging"
	"lidarflow/internal/manifest"
)

// BudgetError reports a tile holding more points than the tile budget.
type BudgetError struct {
	Tile   string
	Points int64
	Budget int64
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("tile %s holds %d points, budget is %d", filepath.Base(e.Tile), e.Points, e.Budget)
}

// TileCount is the point count of one tile.
type TileCount struct {
	File   string
	Points int64
}

// Census reads the point count of every point-cloud file in dir from its
// lasinfo report.
func Census(dir string) ([]TileCount, error) {
	files, err := manifest.List(dir)
	if err != nil {
		return nil, err
	}
	counts := make([]TileCount, 0, len(files))
	for _, file := range files {
		n, err := readReport(ReportPath(file), ParsePointCount)
		if err != nil {
			return nil, err
		}
		counts = append(counts, TileCount{File: file, Points: n})
	}
	return counts, nil
}

// CheckBudget fails with *BudgetError on the first tile in dir exceeding
// budget points.
func CheckBudget(dir string, budget int64) error {
	counts, err := Census(dir)
	if err != nil {
		return err
	}
	var largest int64
	for _, c := range counts {
		if c.Points > budget {
			return &BudgetError{Tile: c.File, Points: c.Points, Budget: budget}
		}
		if c.Points > largest {
			largest = c.Points
		}
	}
	logging.Density("%d tiles within budget (largest %d of %d points)", len(counts), largest, budget)
	return nil
}
