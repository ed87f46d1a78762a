package main

import (
	"fmt"
	"os"

	"payout-engine/internal/features/tg_charts"
	"payout-engine/internal/audit"
)

// go run etc/tools/chart_preview.go [run-key]
// Renders the chart for an audit record into data_out/charts/payout_chart.png.
// With no argument it uses the most recent record.
func main() {
	fmt.Println("Rendering payout chart...")

	writer := audit.NewWriter("data_out")

	key := ""
	if len(os.Args) > 1 {
		key = os.Args[1]
	} else {
		latest, err := writer.Latest()
		if err != nil {
			fmt.Printf("Error listing audit records: %v\n", err)
			os.Exit(1)
		}
		if latest == "" {
			fmt.Println("No audit records found in data_out, run a payout first")
			os.Exit(1)
		}
		key = latest
	}

	report, err := writer.Load(key)
	if err != nil {
		fmt.Printf("Error loading audit record %s: %v\n", key, err)
		os.Exit(1)
	}

	chartPath, err := tg_charts.GeneratePayoutChart(report, "data_out/charts")
	if err != nil {
		fmt.Printf("Error generating chart: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Chart generated successfully: %s\n", chartPath)
	fmt.Println("Open the file to see the result!")
}
