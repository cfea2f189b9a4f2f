package gans_go

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// Progress Displays progress of an epoch. Not part of training correctness.
type Progress interface {
	Start(description string, total int)
	Step(averages *Averages)
	Finish()
}

// BarProgress Progress drawn by terminal progress bar
type BarProgress struct {
	w           io.Writer
	description string
	bar         *progressbar.ProgressBar
}

// NewBarProgress Creates progress bar writing to w
func NewBarProgress(w io.Writer) *BarProgress {
	return &BarProgress{w: w}
}

// Start See Progress
func (p *BarProgress) Start(description string, total int) {
	p.description = description
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(20),
		progressbar.OptionClearOnFinish(),
	)
}

// Step See Progress
func (p *BarProgress) Step(averages *Averages) {
	if p.bar == nil {
		return
	}
	p.bar.Describe(p.description + " " + averages.String())
	_ = p.bar.Add(1)
}

// Finish See Progress
func (p *BarProgress) Finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	p.bar = nil
}
