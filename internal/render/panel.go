// Package render turns loaded runs into the dashboard PNG and the console
// report. Charts are drawn one panel at a time with go-chart and tiled into a
// single image; a panel with nothing to show becomes a captioned blank tile.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/saveenergy/sockreport/internal/logging"
	rerrors "github.com/saveenergy/sockreport/pkg/errors"
)

var log = logging.NewLogger("render")

// Series colours.
var (
	colorBaseline  = drawing.ColorFromHex("e74c3c")
	colorCandidate = drawing.ColorFromHex("2ecc71")
	colorAccent    = drawing.ColorFromHex("3498db")
	colorPurple    = drawing.ColorFromHex("9b59b6")
	colorTeal      = drawing.ColorFromHex("1abc9c")
	colorHeader    = color.RGBA{R: 0x34, G: 0x98, B: 0xdb, A: 0xff}
	colorStripe    = color.RGBA{R: 0xec, G: 0xf0, B: 0xf1, A: 0xff}
)

// Panel renders itself into a w×h tile.
type Panel interface {
	Title() string
	Render(w, h int) (image.Image, error)
}

// errNoData marks a panel that has nothing to plot; it is drawn as a blank
// tile rather than failing the dashboard.
var errNoData = errors.New("no data")

// Dashboard is a grid of panels under a title block.
type Dashboard struct {
	Title    string
	Subtitle string
	Cols     int
	Panels   []Panel
}

const headerHeight = 48

// Render draws every panel into one image of the given size.
func (d Dashboard) Render(width, height int) image.Image {
	cols := d.Cols
	if cols <= 0 {
		cols = 3
	}
	rows := (len(d.Panels) + cols - 1) / cols
	if rows == 0 {
		rows = 1
	}
	tileW := width / cols
	tileH := (height - headerHeight) / rows

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	drawText(canvas, d.Title, width/2, 20, color.Black, true)
	if d.Subtitle != "" {
		drawText(canvas, d.Subtitle, width/2, 38, color.RGBA{R: 80, G: 80, B: 80, A: 255}, true)
	}

	for i, p := range d.Panels {
		x := (i % cols) * tileW
		y := headerHeight + (i/cols)*tileH
		tile, err := renderPanel(p, tileW, tileH)
		if err != nil {
			if !errors.Is(err, errNoData) {
				log.Warn("panel render failed, drawing blank tile", logging.F("panel", p.Title()), logging.F("error", err))
			}
			tile = blank(tileW, tileH, p.Title(), "no data available")
		}
		draw.Draw(canvas, image.Rect(x, y, x+tileW, y+tileH), tile, tile.Bounds().Min, draw.Src)
	}
	return canvas
}

// renderPanel turns a go-chart panic on degenerate input into an error.
func renderPanel(p Panel, w, h int) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return p.Render(w, h)
}

// WritePNG renders the dashboard and encodes it to w.
func (d Dashboard) WritePNG(w io.Writer, width, height int) error {
	if err := png.Encode(w, d.Render(width, height)); err != nil {
		return rerrors.ErrRenderFailed("encode dashboard png", err)
	}
	return nil
}

// WriteFile renders the dashboard into a PNG file at path.
func (d Dashboard) WriteFile(path string, width, height int) error {
	f, err := os.Create(path)
	if err != nil {
		return rerrors.ErrRenderFailed("create "+path, err)
	}
	if err := d.WritePNG(f, width, height); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return rerrors.ErrRenderFailed("close "+path, err)
	}
	log.Info("dashboard written", logging.F("path", path), logging.F("panels", len(d.Panels)))
	return nil
}

func renderChart(r interface {
	Render(chart.RendererProvider, io.Writer) error
}) (image.Image, error) {
	var buf bytes.Buffer
	if err := r.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("decode chart png: %w", err)
	}
	return img, nil
}

func blank(w, h int, title, caption string) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 248, G: 248, B: 248, A: 255}), image.Point{}, draw.Src)
	drawText(img, title, w/2, 24, color.Black, true)
	drawText(img, caption, w/2, h/2, color.RGBA{R: 120, G: 120, B: 120, A: 255}, true)
	return img
}

// basicfont covers Latin-1 only.
var glyphSafe = strings.NewReplacer("→", "->", "…", "...")

// drawText writes s with basicfont at baseline y. When centered, x is the
// horizontal centre of the text.
func drawText(dst draw.Image, s string, x, y int, col color.Color, centered bool) {
	if strings.TrimSpace(s) == "" {
		return
	}
	s = glyphSafe.Replace(s)
	face := basicfont.Face7x13
	dr := &font.Drawer{Dst: dst, Src: image.NewUniform(col), Face: face}
	if centered {
		x -= dr.MeasureString(s).Ceil() / 2
	}
	dr.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
	dr.DrawString(s)
}

func panelBackground() chart.Style {
	return chart.Style{Padding: chart.Box{Top: 36, Left: 12, Right: 16, Bottom: 12}}
}

func titleStyle() chart.Style {
	return chart.Style{FontSize: 11}
}

// valueRange spans values plus headroom and always includes zero.
func valueRange(values ...float64) *chart.ContinuousRange {
	low, high := 0.0, 0.0
	for _, v := range values {
		low = math.Min(low, v)
		high = math.Max(high, v)
	}
	if high == low {
		high = low + 1
	}
	pad := (high - low) * 0.12
	if low < 0 {
		low -= pad
	}
	return &chart.ContinuousRange{Min: low, Max: high + pad}
}

// indexRange is the x range for n categorical points plotted at 0..n-1.
func indexRange(n int) *chart.ContinuousRange {
	return &chart.ContinuousRange{Min: -0.5, Max: float64(n) - 0.5}
}

func indexTicks(labels []string) []chart.Tick {
	ticks := make([]chart.Tick, len(labels))
	for i, l := range labels {
		ticks[i] = chart.Tick{Value: float64(i), Label: l}
	}
	return ticks
}

func lineStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeColor: col,
		StrokeWidth: 2,
		DotColor:    col,
		DotWidth:    4,
	}
}

// pointStyle renders points only.
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeColor: drawing.ColorTransparent,
		StrokeWidth: 0,
		DotColor:    col,
		DotWidth:    5,
	}
}

func barStyle(col drawing.Color) chart.Style {
	return chart.Style{FillColor: col, StrokeColor: col, StrokeWidth: 1}
}

// bar is one labelled value of a barPanel.
type bar struct {
	label string
	value float64
	color drawing.Color
}

// barPanel is a single-series bar chart with per-bar colours.
type barPanel struct {
	title  string
	yName  string
	bars   []bar
	format string
}

func (p barPanel) Title() string { return p.title }

func (p barPanel) Render(w, h int) (image.Image, error) {
	if len(p.bars) == 0 {
		return nil, errNoData
	}
	values := make([]chart.Value, len(p.bars))
	raw := make([]float64, len(p.bars))
	for i, b := range p.bars {
		label := b.label
		if p.format != "" {
			label = fmt.Sprintf("%s\n"+p.format, b.label, b.value)
		}
		values[i] = chart.Value{Label: label, Value: b.value, Style: barStyle(b.color)}
		raw[i] = b.value
	}
	barWidth := (w - 120) / (len(p.bars) * 3)
	if barWidth < 8 {
		barWidth = 8
	}
	if barWidth > 80 {
		barWidth = 80
	}
	bc := chart.BarChart{
		Title:        p.title,
		TitleStyle:   titleStyle(),
		Width:        w,
		Height:       h,
		Background:   panelBackground(),
		BarWidth:     barWidth,
		UseBaseValue: true,
		BaseValue:    0,
		YAxis: chart.YAxis{
			Name:  p.yName,
			Range: valueRange(raw...),
		},
		Bars: values,
	}
	return renderChart(bc)
}

// seriesLine is one named line of a linePanel.
type seriesLine struct {
	name   string
	xs, ys []float64
	style  chart.Style
}

// linePanel plots series against either categorical indices (xLabels set)
// or numeric x values.
type linePanel struct {
	title   string
	xName   string
	yName   string
	xLabels []string
	series  []seriesLine
}

func (p linePanel) Title() string { return p.title }

func (p linePanel) Render(w, h int) (image.Image, error) {
	var series []chart.Series
	var xs, ys []float64
	named := false
	for _, s := range p.series {
		if len(s.xs) == 0 || len(s.xs) != len(s.ys) {
			continue
		}
		series = append(series, chart.ContinuousSeries{Name: s.name, XValues: s.xs, YValues: s.ys, Style: s.style})
		named = named || s.name != ""
		xs = append(xs, s.xs...)
		ys = append(ys, s.ys...)
	}
	if len(series) == 0 {
		return nil, errNoData
	}

	xAxis := chart.XAxis{Name: p.xName}
	if len(p.xLabels) > 0 {
		xAxis.Range = indexRange(len(p.xLabels))
		xAxis.Ticks = indexTicks(p.xLabels)
	} else {
		xAxis.Range = spanRange(xs)
	}

	ch := chart.Chart{
		Title:      p.title,
		TitleStyle: titleStyle(),
		Width:      w,
		Height:     h,
		Background: panelBackground(),
		XAxis:      xAxis,
		YAxis:      chart.YAxis{Name: p.yName, Range: valueRange(ys...)},
		Series:     series,
	}
	if named {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}
	return renderChart(ch)
}

// spanRange covers xs with a small margin; a single x gets a unit-wide range.
func spanRange(xs []float64) *chart.ContinuousRange {
	low, high := xs[0], xs[0]
	for _, x := range xs {
		low = math.Min(low, x)
		high = math.Max(high, x)
	}
	if high == low {
		return &chart.ContinuousRange{Min: low - 0.5, Max: high + 0.5}
	}
	pad := (high - low) * 0.05
	return &chart.ContinuousRange{Min: low - pad, Max: high + pad}
}

// tablePanel draws rows of text cells with a coloured header row.
type tablePanel struct {
	title   string
	headers []string
	rows    [][]string
	// highlightCol tints that column of every body row; 0 disables it.
	highlightCol int
}

func (p tablePanel) Title() string { return p.title }

func (p tablePanel) Render(w, h int) (image.Image, error) {
	if len(p.rows) == 0 {
		return nil, errNoData
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	drawText(img, p.title, w/2, 24, color.Black, true)

	const rowH = 22
	margin := 12
	tableW := w - 2*margin
	// The label column takes 30%, the rest share the remainder.
	numCols := len(p.headers)
	colW := make([]int, numCols)
	if numCols > 1 {
		labelW := tableW * 3 / 10
		other := (tableW - labelW) / (numCols - 1)
		colW[0] = labelW
		for i := 1; i < numCols; i++ {
			colW[i] = other
		}
	} else if numCols == 1 {
		colW[0] = tableW
	}

	top := 40
	drawRow := func(y int, cells []string, bg color.Color, fg color.Color, tint int) {
		x := margin
		for i := 0; i < numCols; i++ {
			cellBg := bg
			if tint > 0 && i == tint {
				cellBg = color.RGBA{R: 0xd5, G: 0xf4, B: 0xe6, A: 0xff}
			}
			if cellBg != nil {
				draw.Draw(img, image.Rect(x, y, x+colW[i], y+rowH), image.NewUniform(cellBg), image.Point{}, draw.Src)
			}
			if i < len(cells) {
				drawText(img, cells[i], x+colW[i]/2, y+rowH-7, fg, true)
			}
			x += colW[i]
		}
	}

	drawRow(top, p.headers, colorHeader, color.White, 0)
	for i, row := range p.rows {
		y := top + (i+1)*rowH
		if y+rowH > h {
			break
		}
		var bg color.Color = color.White
		if (i+1)%2 == 0 {
			bg = colorStripe
		}
		drawRow(y, row, bg, color.Black, p.highlightCol)
	}
	return img, nil
}
