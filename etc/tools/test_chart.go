package main

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"xsn-monitor/internal/charts"
	"xsn-monitor/internal/store"
)

// go run etc/tools/test_chart.go
// Renders a sample balance chart so the layout can be eyeballed
// without a real monitor history.
func main() {
	fmt.Println("Generating test chart...")

	points := make([]store.BalancePoint, 0, 14)
	balance := decimal.NewFromFloat(120.5)
	now := time.Now()
	for i := 13; i >= 0; i-- {
		balance = balance.Add(decimal.NewFromFloat(float64(i%5) - 1.5))
		points = append(points, store.BalancePoint{
			Balance:    balance,
			RecordedAt: now.Add(-time.Duration(i) * 24 * time.Hour),
		})
	}

	chartPath, err := charts.GenerateBalanceChart("sample", points)
	if err != nil {
		fmt.Printf("Error generating chart: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Chart generated successfully: %s\n", chartPath)
	fmt.Println("Open the file to see the result!")
}
