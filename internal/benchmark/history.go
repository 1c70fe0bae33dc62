package benchmark

import "time"

// CellPoint is one cell's result within a stored run.
type CellPoint struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Commit    string    `json:"commit,omitempty"`
	Result    Result    `json:"result"`
}

// CellHistorian is implemented by stores that can query one cell across
// runs without loading every run.
type CellHistorian interface {
	CellHistory(cell string) ([]CellPoint, error)
}

// CellHistory collects the results for cell from runs, oldest first.
// Runs that did not execute the cell are skipped.
func CellHistory(runs []Run, cell string) []CellPoint {
	var points []CellPoint
	for _, run := range runs {
		for _, r := range run.Results {
			if r.Name != cell {
				continue
			}
			points = append(points, CellPoint{
				RunID:     run.ID,
				Timestamp: run.Timestamp,
				Commit:    run.Commit,
				Result:    r,
			})
			break
		}
	}
	return points
}

// HistoryFor answers from store directly when it supports cell queries.
func HistoryFor(store Store, cell string) ([]CellPoint, error) {
	if h, ok := store.(CellHistorian); ok {
		return h.CellHistory(cell)
	}
	runs, err := store.LoadAll()
	if err != nil {
		return nil, err
	}
	return CellHistory(runs, cell), nil
}
