// Package tg_charts renders payout run charts for Telegram delivery.
package tg_charts

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"

	"github.com/fogleman/gg"
	"go.uber.org/zap"

	logging "payout-engine/internal/infra/log"
	"payout-engine/internal/payout"
)

const (
	chartWidth  = 1600
	chartHeight = 900

	titleX     = 60.0
	titleY     = 80.0
	subtitleY  = 130.0
	legendY    = 170.0
	legendStep = 220.0

	chartAreaLeft   = 120.0
	chartAreaRight  = 1540.0
	chartAreaTop    = 230.0
	chartAreaBottom = 790.0

	maxBars    = 10
	barSpacing = 24.0

	gridLinesCount = 4
	gridLabelPadX  = 12.0

	titleFontSize    = 42.0
	subtitleFontSize = 26.0
	axisFontSize     = 22.0
	barValueFontSize = 24.0
	accountFontSize  = 22.0

	barValueOffsetY = 14.0
	accountOffsetY  = 34.0

	// Hive account names run up to 16 characters, which overflows a bar
	// on a full 10-bar chart.
	accountMaxChars = 12

	chartFileName = "payout_chart.png"
)

var (
	colorBackground = color.Black
	colorText       = color.White
	colorGrid       = color.RGBA{60, 60, 60, 255}
	colorSent       = color.RGBA{0, 200, 83, 255}
	colorFailed     = color.RGBA{229, 57, 53, 255}
	colorSkipped    = color.RGBA{128, 128, 128, 255}
)

// GeneratePayoutChart renders the largest payouts of a run as a bar
// chart and writes it under chartsDir. Bars are colored by outcome:
// green sent, red failed, gray skipped (dry run). Returns the PNG path.
func GeneratePayoutChart(report *payout.Report, chartsDir string) (string, error) {
	if report == nil || len(report.Outcomes) == 0 {
		return "", fmt.Errorf("no payout outcomes to chart")
	}

	top := make([]payout.Outcome, len(report.Outcomes))
	copy(top, report.Outcomes)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Amount.GreaterThan(top[j].Amount)
	})
	if len(top) > maxBars {
		top = top[:maxBars]
	}

	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetColor(colorBackground)
	dc.Clear()

	fontPath, fontLoaded := loadChartFont(dc, titleFontSize)

	setFace := func(size float64) {
		if fontLoaded {
			dc.LoadFontFace(fontPath, size)
		}
	}

	summary := report.Summary()
	title := fmt.Sprintf("%s payout %s", report.TokenSymbol, summary.StartedAt.Format("02 Jan 2006"))
	if report.DryRun {
		title += " (dry run)"
	}
	dc.SetColor(colorText)
	dc.DrawString(title, titleX, titleY)

	setFace(subtitleFontSize)
	subtitle := fmt.Sprintf("%d holders, %s %s paid out", summary.Attempted, summary.TotalAmountSent.String(), report.TokenSymbol)
	if report.DryRun {
		subtitle = fmt.Sprintf("%d holders in plan", summary.Attempted)
	}
	dc.DrawString(subtitle, titleX, subtitleY)

	drawLegend(dc, report.DryRun)

	// Scale the axis off the tallest bar with headroom so its value
	// label stays inside the canvas.
	axisMax := top[0].Amount.InexactFloat64() * 1.15
	if axisMax <= 0 {
		axisMax = 1.0
	}

	chartAreaHeight := chartAreaBottom - chartAreaTop
	dc.SetLineWidth(1)
	setFace(axisFontSize)
	for i := 0; i <= gridLinesCount; i++ {
		value := axisMax * float64(i) / float64(gridLinesCount)
		y := chartAreaBottom - (value/axisMax)*chartAreaHeight
		dc.SetColor(colorGrid)
		dc.DrawLine(chartAreaLeft, y, chartAreaRight, y)
		dc.Stroke()

		dc.SetColor(colorText)
		label := fmt.Sprintf("%.2f", value)
		labelWidth, _ := dc.MeasureString(label)
		dc.DrawString(label, chartAreaLeft-labelWidth-gridLabelPadX, y+axisFontSize/3)
	}

	barWidth := (chartAreaRight - chartAreaLeft - barSpacing*float64(len(top)+1)) / float64(len(top))

	for i, outcome := range top {
		barX := chartAreaLeft + barSpacing + float64(i)*(barWidth+barSpacing)
		barHeight := (outcome.Amount.InexactFloat64() / axisMax) * chartAreaHeight
		barY := chartAreaBottom - barHeight

		dc.SetColor(barColor(outcome.Status))
		dc.DrawRectangle(barX, barY, barWidth, barHeight)
		dc.Fill()

		dc.SetColor(colorText)
		setFace(barValueFontSize)
		valueText := outcome.Amount.String()
		valueWidth, _ := dc.MeasureString(valueText)
		dc.DrawString(valueText, barX+(barWidth-valueWidth)/2, barY-barValueOffsetY)

		setFace(accountFontSize)
		accountText := truncateAccount(outcome.Account)
		accountWidth, _ := dc.MeasureString(accountText)
		dc.DrawString(accountText, barX+(barWidth-accountWidth)/2, chartAreaBottom+accountOffsetY)
	}

	if err := os.MkdirAll(chartsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create charts directory: %w", err)
	}

	filename := filepath.Join(chartsDir, chartFileName)
	if err := dc.SavePNG(filename); err != nil {
		return "", fmt.Errorf("failed to save chart: %w", err)
	}

	fileInfo, err := os.Stat(filename)
	if err != nil {
		return "", fmt.Errorf("failed to stat chart file: %w", err)
	}
	if fileInfo.Size() == 0 {
		os.Remove(filename)
		logging.LogError("Chart file is empty after rendering", zap.String("filename", filename))
		return "", fmt.Errorf("chart file is empty after rendering")
	}

	logging.LogInfo("Payout chart generated",
		zap.String("filename", filename),
		zap.Int64("fileSize", fileInfo.Size()),
		zap.Int("barsCount", len(top)))

	return filename, nil
}

func drawLegend(dc *gg.Context, dryRun bool) {
	type item struct {
		label string
		color color.RGBA
	}
	items := []item{{"sent", colorSent}, {"failed", colorFailed}}
	if dryRun {
		items = []item{{"planned", colorSkipped}}
	}

	for i, it := range items {
		x := titleX + float64(i)*legendStep
		dc.SetColor(it.color)
		dc.DrawRectangle(x, legendY-16, 20, 20)
		dc.Fill()
		dc.SetColor(colorText)
		dc.DrawString(it.label, x+30, legendY)
	}
}

func barColor(status payout.Status) color.RGBA {
	switch status {
	case payout.StatusSent:
		return colorSent
	case payout.StatusFailed:
		return colorFailed
	default:
		return colorSkipped
	}
}

func truncateAccount(account string) string {
	if len(account) <= accountMaxChars {
		return account
	}
	return account[:accountMaxChars-2] + ".."
}

// loadChartFont tries the bundled font first, then common system
// locations. gg falls back to its built-in face when none load.
func loadChartFont(dc *gg.Context, size float64) (string, bool) {
	fontPaths := []string{
		filepath.Join("etc", "fonts", "Inter-Regular.ttf"),
		filepath.Join("etc", "fonts", "DejaVuSans.ttf"),
		"/usr/share/fonts/truetype/inter/Inter-Regular.ttf",
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
		"/System/Library/Fonts/Supplemental/Arial.ttf",
	}
	for _, fontPath := range fontPaths {
		if _, err := os.Stat(fontPath); err != nil {
			continue
		}
		if err := dc.LoadFontFace(fontPath, size); err != nil {
			logging.LogWarn("Font file exists but failed to load",
				zap.String("path", fontPath),
				zap.Error(err))
			continue
		}
		return fontPath, true
	}
	logging.LogWarn("No chart font found, using default system font",
		zap.Int("paths_checked", len(fontPaths)))
	return "", false
}
