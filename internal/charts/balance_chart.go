package charts

// Renders a monitor's recent balance history as a bar chart PNG for
// Telegram.

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"

	"xsn-monitor/internal/monitor"
	"xsn-monitor/internal/store"
)

const (
	// MaxPoints caps how many history snapshots one chart shows.
	MaxPoints = 30

	chartWidth  = 1200
	chartHeight = 700

	chartAreaLeft   = 100.0
	chartAreaRight  = 1150.0
	chartAreaTop    = 120.0
	chartAreaBottom = 620.0

	titleFontSize = 28.0
	labelFontSize = 16.0

	barGap = 6.0

	gridLinesCount = 4
)

var (
	backgroundColor = color.RGBA{R: 24, G: 26, B: 32, A: 255}
	barColor        = color.RGBA{R: 66, G: 133, B: 244, A: 255}
	gridColor       = color.RGBA{R: 70, G: 74, B: 84, A: 255}
	textColor       = color.RGBA{R: 235, G: 235, B: 235, A: 255}
)

// GenerateBalanceChart draws the balance points (oldest first) and returns
// the path of the written PNG. The caller removes the file after sending.
func GenerateBalanceChart(name string, points []store.BalancePoint) (string, error) {
	if len(points) == 0 {
		return "", fmt.Errorf("no balance history to chart")
	}
	if len(points) > MaxPoints {
		points = points[len(points)-MaxPoints:]
	}

	dc := gg.NewContext(chartWidth, chartHeight)

	dc.SetColor(backgroundColor)
	dc.Clear()

	maxBalance := 0.0
	for _, p := range points {
		if v, _ := p.Balance.Float64(); v > maxBalance {
			maxBalance = v
		}
	}
	if maxBalance == 0 {
		maxBalance = 1
	}

	dc.SetColor(textColor)
	if err := dc.LoadFontFace("/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf", titleFontSize); err == nil {
		dc.DrawStringAnchored(fmt.Sprintf("Balance history: %s", name),
			chartWidth/2, chartAreaTop/2, 0.5, 0.5)
	}

	// Horizontal grid with axis labels.
	dc.SetColor(gridColor)
	dc.SetLineWidth(1)
	for i := 0; i <= gridLinesCount; i++ {
		y := chartAreaBottom - (chartAreaBottom-chartAreaTop)*float64(i)/float64(gridLinesCount)
		dc.DrawLine(chartAreaLeft, y, chartAreaRight, y)
		dc.Stroke()
	}

	if err := dc.LoadFontFace("/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf", labelFontSize); err == nil {
		dc.SetColor(textColor)
		for i := 0; i <= gridLinesCount; i++ {
			y := chartAreaBottom - (chartAreaBottom-chartAreaTop)*float64(i)/float64(gridLinesCount)
			value := maxBalance * float64(i) / float64(gridLinesCount)
			dc.DrawStringAnchored(fmt.Sprintf("%.2f", value), chartAreaLeft-10, y, 1, 0.5)
		}
	}

	// Bars, oldest to newest.
	barWidth := (chartAreaRight - chartAreaLeft) / float64(len(points))
	dc.SetColor(barColor)
	for i, p := range points {
		v, _ := p.Balance.Float64()
		h := (chartAreaBottom - chartAreaTop) * v / maxBalance
		x := chartAreaLeft + float64(i)*barWidth
		dc.DrawRectangle(x+barGap/2, chartAreaBottom-h, barWidth-barGap, h)
		dc.Fill()
	}

	// Date labels on the first and last bar.
	if err := dc.LoadFontFace("/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf", labelFontSize); err == nil {
		dc.SetColor(textColor)
		first := points[0].RecordedAt.UTC().Format(monitor.DateFormat)
		last := points[len(points)-1].RecordedAt.UTC().Format(monitor.DateFormat)
		dc.DrawStringAnchored(first, chartAreaLeft, chartAreaBottom+25, 0, 0.5)
		dc.DrawStringAnchored(last, chartAreaRight, chartAreaBottom+25, 1, 0.5)
	}

	out, err := os.CreateTemp("", "balance_chart_*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create chart file: %w", err)
	}
	path := out.Name()
	out.Close()

	if err := dc.SavePNG(path); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to save chart: %w", err)
	}
	return filepath.Clean(path), nil
}
