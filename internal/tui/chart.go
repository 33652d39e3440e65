package tui

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"sleepywoodpecker/plant-monitor/internal/processing"
)

const (
	minChartWidth  = 10
	minChartHeight = 3
	axisLabelWidth = 6
	axisSeparator  = " │"
	markerRune     = '┆'
	currentRune    = '●'
)

type cellKind uint8

const (
	cellEmpty cellKind = iota
	cellMarker
	cellTrace
	cellAnomaly
	cellCurrent
)

type chartCell struct {
	mask uint8
	kind cellKind
}

// chartAxisWidth is the number of columns taken by the value axis.
func chartAxisWidth() int {
	return axisLabelWidth + runewidth.StringWidth(axisSeparator)
}

// chartWidthFor computes a plot width that fits within the total available width.
func chartWidthFor(totalWidth int) int {
	width := totalWidth - chartAxisWidth()
	if width < minChartWidth {
		width = minChartWidth
	}
	return width
}

// renderChart draws the window as a braille strip chart of width x height
// cells plus the value axis. Samples outside the fixed band are drawn as
// separate dots and break the trace.
func renderChart(frame processing.Frame, width, height int) string {
	if width < minChartWidth {
		width = minChartWidth
	}
	if height < minChartHeight {
		height = minChartHeight
	}
	cells := make([][]chartCell, height)
	for y := range cells {
		cells[y] = make([]chartCell, width)
	}

	n := len(frame.Samples)
	dotsX, dotsY := width*2, height*4
	band := frame.Band
	if band.High-band.Low < 1e-9 {
		band = processing.Band{Low: band.Low - 1, High: band.High + 1}
	}

	for _, marker := range frame.Markers {
		cx := sampleToDotX(marker.Position, n, dotsX) / 2
		for y := 0; y < height; y++ {
			cells[y][cx].kind = cellMarker
		}
	}

	prevX, prevY := -1, -1
	for i, v := range frame.Samples {
		px := sampleToDotX(i, n, dotsX)
		py := valueToDotY(v, band, dotsY)
		if !frame.FixedBand.Contains(v) {
			setDot(cells, px, py, cellAnomaly)
			prevX, prevY = -1, -1
			continue
		}
		if prevX >= 0 {
			drawLine(prevX, prevY, px, py, func(x, y int) {
				setDot(cells, x, y, cellTrace)
			})
		} else {
			setDot(cells, px, py, cellTrace)
		}
		prevX, prevY = px, py
	}

	if n > 0 {
		cx := sampleToDotX(n-1, n, dotsX) / 2
		cy := valueToDotY(frame.Samples[n-1], band, dotsY) / 4
		cells[cy][cx].kind = cellCurrent
	}

	labels := axisLabels(band, height)
	var out strings.Builder
	for y := 0; y < height; y++ {
		out.WriteString(axisStyle.Render(fmt.Sprintf("%*s%s", axisLabelWidth, labels[y], axisSeparator)))
		out.WriteString(renderRow(cells[y]))
		if y < height-1 {
			out.WriteByte('\n')
		}
	}
	return out.String()
}

// renderRow renders runs of cells sharing a kind with one style call each.
func renderRow(row []chartCell) string {
	var out strings.Builder
	var run strings.Builder
	runKind := cellEmpty
	flush := func() {
		if run.Len() == 0 {
			return
		}
		out.WriteString(styleFor(runKind).Render(run.String()))
		run.Reset()
	}
	for _, cell := range row {
		if cell.kind != runKind {
			flush()
			runKind = cell.kind
		}
		run.WriteRune(cellRune(cell))
	}
	flush()
	return out.String()
}

func cellRune(cell chartCell) rune {
	switch cell.kind {
	case cellCurrent:
		return currentRune
	case cellTrace, cellAnomaly:
		return brailleFromMask(cell.mask)
	case cellMarker:
		return markerRune
	default:
		return ' '
	}
}

func styleFor(kind cellKind) lipgloss.Style {
	switch kind {
	case cellTrace:
		return traceStyle
	case cellAnomaly:
		return anomalyStyle
	case cellMarker:
		return markerStyle
	case cellCurrent:
		return currentStyle
	default:
		return lipgloss.NewStyle()
	}
}

// renderMarkerLabels places each marker label above its column, cut short
// where the next label starts.
func renderMarkerLabels(markers []processing.Marker, samples, width int) string {
	if len(markers) == 0 {
		return ""
	}
	type placed struct {
		col   int
		label string
	}
	dotsX := width * 2
	items := make([]placed, 0, len(markers))
	for _, marker := range markers {
		items = append(items, placed{col: sampleToDotX(marker.Position, samples, dotsX) / 2, label: marker.Label})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].col < items[j].col })

	var out strings.Builder
	out.WriteString(strings.Repeat(" ", chartAxisWidth()))
	cursor := 0
	for i, item := range items {
		if item.col < cursor {
			continue
		}
		out.WriteString(strings.Repeat(" ", item.col-cursor))
		cursor = item.col
		limit := width - cursor
		if i+1 < len(items) && items[i+1].col-cursor-1 < limit {
			limit = items[i+1].col - cursor - 1
		}
		if limit <= 0 {
			continue
		}
		label := runewidth.Truncate(item.label, limit, "…")
		out.WriteString(labelStyle.Render(label))
		cursor += runewidth.StringWidth(label)
	}
	return out.String()
}

func axisLabels(band processing.Band, height int) []string {
	labels := make([]string, height)
	labels[0] = fmt.Sprintf("%.2f", band.High)
	if height > 2 {
		labels[height/2] = fmt.Sprintf("%.2f", (band.High+band.Low)/2)
	}
	if height > 1 {
		labels[height-1] = fmt.Sprintf("%.2f", band.Low)
	}
	return labels
}

func sampleToDotX(i, n, dotsX int) int {
	if n <= 1 || dotsX <= 1 {
		return 0
	}
	x := i * (dotsX - 1) / (n - 1)
	if x < 0 {
		return 0
	}
	if x >= dotsX {
		return dotsX - 1
	}
	return x
}

func valueToDotY(v float64, band processing.Band, dotsY int) int {
	if dotsY <= 1 {
		return 0
	}
	pos := (v - band.Low) / (band.High - band.Low)
	row := int(math.Round((1 - pos) * float64(dotsY-1)))
	if row < 0 {
		row = 0
	}
	if row >= dotsY {
		row = dotsY - 1
	}
	return row
}

func setDot(cells [][]chartCell, x, y int, kind cellKind) {
	if y < 0 || x < 0 {
		return
	}
	cellY := y / 4
	cellX := x / 2
	if cellY >= len(cells) || cellX >= len(cells[cellY]) {
		return
	}
	cell := &cells[cellY][cellX]
	cell.mask |= brailleDotMask(x%2, y%4)
	if kind > cell.kind {
		cell.kind = kind
	}
}

func drawLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := int(math.Abs(float64(x1 - x0)))
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -int(math.Abs(float64(y1 - y0)))
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			if x0 == x1 {
				break
			}
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			if y0 == y1 {
				break
			}
			err += dx
			y0 += sy
		}
	}
}

func brailleDotMask(x, y int) uint8 {
	switch {
	case x == 0 && y == 0:
		return 0x01
	case x == 0 && y == 1:
		return 0x02
	case x == 0 && y == 2:
		return 0x04
	case x == 0 && y == 3:
		return 0x40
	case x == 1 && y == 0:
		return 0x08
	case x == 1 && y == 1:
		return 0x10
	case x == 1 && y == 2:
		return 0x20
	case x == 1 && y == 3:
		return 0x80
	default:
		return 0
	}
}

func brailleFromMask(mask uint8) rune {
	return rune(0x2800 + int(mask))
}
