package background

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// Geometry is the tower binning of one calorimeter layer.
type Geometry interface {
	EtaBins() int
	PhiBins() int
	EtaBin(eta float64) int
	PhiBin(phi float64) int
	EtaCenter(bin int) float64
	PhiCenter(bin int) float64
	EtaBounds(bin int) (float64, float64)
	PhiBounds(bin int) (float64, float64)
	// TowerPosition returns the eta / phi of a legacy tower.
	TowerPosition(key TowerKey) (TowerPosition, bool)
}

type TowerPosition struct {
	Eta float64
	Phi float64
}

// UniformGeometry bins eta and phi uniformly. Phi covers a full turn
// starting at PhiMin.
type UniformGeometry struct {
	Layer  Layer   `db:"Layer"`
	NEta   int     `db:"EtaBins"`
	NPhi   int     `db:"PhiBins"`
	EtaMin float64 `db:"EtaMin"`
	EtaMax float64 `db:"EtaMax"`
	PhiMin float64 `db:"PhiMin"`
}

func NewUniformGeometry(layer Layer, etaBins int, phiBins int, etaMin float64, etaMax float64, phiMin float64) (*UniformGeometry, error) {
	g := &UniformGeometry{
		Layer:  layer,
		NEta:   etaBins,
		NPhi:   phiBins,
		EtaMin: etaMin,
		EtaMax: etaMax,
		PhiMin: phiMin,
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// DefaultGeometry is the HCal binning: 24 eta bins in |eta| < 1.1 and
// 64 phi bins starting at -pi.
func DefaultGeometry(layer Layer) *UniformGeometry {
	return &UniformGeometry{
		Layer:  layer,
		NEta:   24,
		NPhi:   64,
		EtaMin: -1.1,
		EtaMax: 1.1,
		PhiMin: -math.Pi,
	}
}

func (g *UniformGeometry) Validate() error {
	if g.NEta <= 0 || g.NPhi <= 0 {
		return &ErrMissingGeometry{Layer: g.Layer, Err: fmt.Errorf("invalid binning %d x %d", g.NEta, g.NPhi)}
	}
	if g.EtaMax <= g.EtaMin {
		return &ErrMissingGeometry{Layer: g.Layer, Err: fmt.Errorf("invalid eta range [%g, %g]", g.EtaMin, g.EtaMax)}
	}
	return nil
}

func (g *UniformGeometry) EtaBins() int {
	return g.NEta
}

func (g *UniformGeometry) PhiBins() int {
	return g.NPhi
}

func (g *UniformGeometry) etaWidth() float64 {
	return (g.EtaMax - g.EtaMin) / float64(g.NEta)
}

func (g *UniformGeometry) phiWidth() float64 {
	return 2 * math.Pi / float64(g.NPhi)
}

// EtaBin clamps values outside the acceptance to the edge bins.
func (g *UniformGeometry) EtaBin(eta float64) int {
	bin := int(math.Floor((eta - g.EtaMin) / g.etaWidth()))
	return min(max(bin, 0), g.NEta-1)
}

func (g *UniformGeometry) PhiBin(phi float64) int {
	offset := math.Mod(phi-g.PhiMin, 2*math.Pi)
	if offset < 0 {
		offset += 2 * math.Pi
	}
	bin := int(math.Floor(offset / g.phiWidth()))
	return min(max(bin, 0), g.NPhi-1)
}

func (g *UniformGeometry) EtaCenter(bin int) float64 {
	return g.EtaMin + (float64(bin)+0.5)*g.etaWidth()
}

func (g *UniformGeometry) PhiCenter(bin int) float64 {
	return g.PhiMin + (float64(bin)+0.5)*g.phiWidth()
}

func (g *UniformGeometry) EtaBounds(bin int) (float64, float64) {
	low := g.EtaMin + float64(bin)*g.etaWidth()
	return low, low + g.etaWidth()
}

func (g *UniformGeometry) PhiBounds(bin int) (float64, float64) {
	low := g.PhiMin + float64(bin)*g.phiWidth()
	return low, low + g.phiWidth()
}

func (g *UniformGeometry) TowerPosition(key TowerKey) (TowerPosition, bool) {
	etaBin := key.EtaBin()
	phiBin := key.PhiBin()
	if etaBin >= g.NEta || phiBin >= g.NPhi {
		return TowerPosition{}, false
	}
	return TowerPosition{Eta: g.EtaCenter(etaBin), Phi: g.PhiCenter(phiBin)}, true
}

// DeltaPhi wraps the azimuthal difference a - b into (-pi, pi].
func DeltaPhi[T constraints.Float](a T, b T) T {
	dphi := math.Remainder(float64(a-b), 2*math.Pi)
	if dphi <= -math.Pi {
		dphi += 2 * math.Pi
	}
	return T(dphi)
}

func DeltaR[T constraints.Float](eta1 T, phi1 T, eta2 T, phi2 T) T {
	deta := float64(eta1 - eta2)
	dphi := float64(DeltaPhi(phi1, phi2))
	return T(math.Sqrt(deta*deta + dphi*dphi))
}
