package background

import (
	"fmt"
	"image/color"
	"math"
	"path/filepath"
	"strings"

	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot/vg"
)

// QAHistograms monitors the background estimates of a job.
type QAHistograms struct {
	Psi2    *hbook.H1D
	V2      *hbook.H1D
	NStrips *hbook.H1D
	// UE sums the density per eta bin; Plots divides by the event count.
	UE          [NLayers]*hbook.H1D
	NEvents     int
	NFlowFailed int
}

func NewQAHistograms(etaBins int) *QAHistograms {
	qa := &QAHistograms{
		Psi2:    hbook.NewH1D(64, -math.Pi/2, math.Pi/2),
		V2:      hbook.NewH1D(100, -0.5, 0.5),
		NStrips: hbook.NewH1D(3*etaBins+1, -0.5, float64(3*etaBins)+0.5),
	}
	for _, layer := range Layers {
		qa.UE[layer] = hbook.NewH1D(etaBins, -0.5, float64(etaBins)-0.5)
	}
	return qa
}

func (qa *QAHistograms) Fill(background *TowerBackground) {
	qa.NEvents++
	if background.FlowFailure {
		qa.NFlowFailed++
	}
	qa.Psi2.Fill(background.Psi2, 1)
	qa.V2.Fill(background.V2, 1)
	qa.NStrips.Fill(float64(background.NStripsUsedForFlow), 1)
	for _, layer := range Layers {
		for eta, ue := range background.UE[layer] {
			qa.UE[layer].Fill(float64(eta), ue)
		}
	}
}

var layerColors = [NLayers]color.Color{
	color.RGBA{B: 255, A: 255},
	color.RGBA{R: 255, A: 255},
	color.RGBA{G: 160, A: 255},
}

func saveH1D(h *hbook.H1D, title string, xlabel string, fname string) error {
	p := hplot.New()
	p.Title.Text = title
	p.Title.Padding = 2 * vg.Millimeter
	p.X.Label.Text = xlabel
	p.Y.Label.Text = "events"
	p.Add(hplot.NewH1D(h))
	if err := p.Save(6*vg.Inch, 4*vg.Inch, fname); err != nil {
		return fmt.Errorf("error saving %s: %w", fname, err)
	}
	return nil
}

// SavePlots writes the QA plots as PNG files into dir.
func (qa *QAHistograms) SavePlots(dir string) error {
	if qa.NEvents == 0 {
		return fmt.Errorf("no events in QA histograms")
	}
	if err := saveH1D(qa.Psi2, "Psi2", "Psi2 (rad)", filepath.Join(dir, "psi2.png")); err != nil {
		return err
	}
	if err := saveH1D(qa.V2, "v2", "v2", filepath.Join(dir, "v2.png")); err != nil {
		return err
	}
	if err := saveH1D(qa.NStrips, "strips used for flow", "nStrips", filepath.Join(dir, "nstrips.png")); err != nil {
		return err
	}

	p := hplot.New()
	p.Title.Text = fmt.Sprintf("mean UE density (%d events)", qa.NEvents)
	p.Title.Padding = 2 * vg.Millimeter
	p.Legend.Top = true
	p.Legend.Padding = 2 * vg.Millimeter
	p.X.Label.Text = "eta bin"
	p.Y.Label.Text = "UE per tower (GeV)"
	for _, layer := range Layers {
		mean := qa.UE[layer].Clone()
		mean.Scale(1 / float64(qa.NEvents))
		h := hplot.NewH1D(mean)
		h.LineStyle.Color = layerColors[layer]
		p.Add(h)
		p.Legend.Add(strings.ToLower(layer.String()), h)
	}
	fname := filepath.Join(dir, "ue.png")
	if err := p.Save(6*vg.Inch, 4*vg.Inch, fname); err != nil {
		return fmt.Errorf("error saving %s: %w", fname, err)
	}

	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("QA plots for %d events ( %d flow failures ) written to %s", qa.NEvents, qa.NFlowFailed, dir)
		logger.Info(message, "qa")
	}
	return nil
}
