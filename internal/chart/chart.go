// Package chart 绘制遗传算法的进化曲线。
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/langchou/ecodrive/internal/optimizer"
)

// 图片尺寸
const (
	width  = 6 * vg.Inch
	height = 4 * vg.Inch
)

// ErrEmptyHistory 没有可绘制的数据
var ErrEmptyHistory = errors.New("chart: empty history")

// newFitnessPlot 每代最优、平均、最差适应度三条曲线
func newFitnessPlot(title string, history []optimizer.GenerationStats) (*plot.Plot, error) {
	if len(history) == 0 {
		return nil, ErrEmptyHistory
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Distance (km)"
	p.Add(plotter.NewGrid())

	best := make(plotter.XYs, len(history))
	mean := make(plotter.XYs, len(history))
	worst := make(plotter.XYs, len(history))
	for i, s := range history {
		x := float64(s.Generation)
		best[i] = plotter.XY{X: x, Y: s.Best}
		mean[i] = plotter.XY{X: x, Y: s.Mean}
		worst[i] = plotter.XY{X: x, Y: s.Worst}
	}

	series := []struct {
		name  string
		xys   plotter.XYs
		color color.Color
	}{
		{"best", best, color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}},
		{"mean", mean, color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}},
		{"worst", worst, color.RGBA{R: 0x7f, G: 0x7f, B: 0x7f, A: 0xff}},
	}
	for _, s := range series {
		line, err := plotter.NewLine(s.xys)
		if err != nil {
			return nil, fmt.Errorf("%s line: %w", s.name, err)
		}
		line.Color = s.color
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	p.Legend.Top = true
	p.Legend.Left = true

	return p, nil
}

// SaveFitnessHistory 保存进化曲线，格式由扩展名决定 (.png/.svg/.pdf)
func SaveFitnessHistory(path, title string, history []optimizer.GenerationStats) error {
	p, err := newFitnessPlot(title, history)
	if err != nil {
		return err
	}
	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("save chart: %w", err)
	}
	return nil
}

// WriteFitnessHistory 将 PNG 格式的进化曲线写入 w
func WriteFitnessHistory(w io.Writer, title string, history []optimizer.GenerationStats) error {
	p, err := newFitnessPlot(title, history)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}
