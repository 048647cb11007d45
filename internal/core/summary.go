package core

type (
	// Statistics summarises sales for a month.
	Statistics struct {
		TotalSaleAmount float64 `json:"totalSaleAmount"`
		SoldItems       int64   `json:"soldItems"`
		NotSoldItems    int64   `json:"notSoldItems"`
	}

	// BarChartEntry is the record count for one price bucket.
	BarChartEntry struct {
		Range string `json:"range"`
		Count int64  `json:"count"`
	}

	// PieChartEntry is the record count for one category.
	PieChartEntry struct {
		Category string `json:"category"`
		Count    int64  `json:"count"`
	}

	// CombinedReport merges the three month aggregates.
	CombinedReport struct {
		Statistics Statistics      `json:"statistics"`
		BarChart   []BarChartEntry `json:"barChart"`
		PieChart   []PieChartEntry `json:"pieChart"`
	}
)
