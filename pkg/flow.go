package background

import (
	"fmt"
	"math"

	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/floats"
)

// Truth particle acceptance used for the truth event plane.
const (
	TruthFlowMinPt  = 0.4
	TruthFlowMaxEta = 1.1
)

// qVectorTolerance is the relative size of a Q vector considered zero.
const qVectorTolerance = 1e-12

// FlowProfile is the phi distribution of energy summed over the strips
// without excluded towers.
type FlowProfile struct {
	Energy []float64
	Phi    []float64
	cos2   []float64
	sin2   []float64
}

func newFlowProfile(phiBins int) *FlowProfile {
	return &FlowProfile{
		Energy: make([]float64, phiBins),
		Phi:    make([]float64, phiBins),
		cos2:   make([]float64, phiBins),
		sin2:   make([]float64, phiBins),
	}
}

func (p *FlowProfile) Reset() {
	clear(p.Energy)
	clear(p.Phi)
}

// QVector returns the unnormalised second order Q vector and the summed
// energy of the profile.
func (p *FlowProfile) QVector() (float64, float64, float64) {
	for i, phi := range p.Phi {
		p.cos2[i] = math.Cos(2 * phi)
		p.sin2[i] = math.Sin(2 * phi)
	}
	return floats.Dot(p.Energy, p.cos2), floats.Dot(p.Energy, p.sin2), floats.Sum(p.Energy)
}

// V2 projects the profile on the given event plane. An empty profile has
// no modulation.
func (p *FlowProfile) V2(psi2 float64) float64 {
	sumE := floats.Sum(p.Energy)
	if sumE == 0 {
		return 0
	}
	var sumCos2dphi float64
	for i, phi := range p.Phi {
		sumCos2dphi += p.Energy[i] * math.Cos(2*(phi-psi2))
	}
	return sumCos2dphi / sumE
}

// FlowResult is the outcome of the flow stage for one event.
type FlowResult struct {
	Psi2    float64
	V2      float64
	NStrips int
	Failure bool
	Qx      float64
	Qy      float64
	SumE    float64
}

// FlowSource determines Psi2 for one flow mode. A failure keeps Psi2 at 0
// and flags the event; an error aborts the run.
type FlowSource interface {
	Mode() FlowMode
	ComputeAngle(ctx *EventContext) (float64, bool, error)
}

// NewFlowSource returns nil for FlowDisabled.
func NewFlowSource(mode FlowMode) (FlowSource, error) {
	switch mode {
	case FlowDisabled:
		return nil, nil
	case FlowCalorimeter:
		return calorimeterFlow{}, nil
	case FlowTruth:
		return truthFlow{}, nil
	case FlowEventPlane:
		return eventPlaneFlow{detector: EPDetectorSEPDNorthSouth}, nil
	}
	return nil, fmt.Errorf("undefined flow mode %d: %w", mode, ErrAbortRun)
}

type calorimeterFlow struct{}

func (calorimeterFlow) Mode() FlowMode {
	return FlowCalorimeter
}

// ComputeAngle treats a Q vector below rounding level of the summed energy
// as zero, giving Psi2 = 0.
func (calorimeterFlow) ComputeAngle(ctx *EventContext) (float64, bool, error) {
	if math.Hypot(ctx.Flow.Qx, ctx.Flow.Qy) <= qVectorTolerance*math.Abs(ctx.Flow.SumE) {
		return 0, false, nil
	}
	return math.Atan2(ctx.Flow.Qy, ctx.Flow.Qx) / 2, false, nil
}

type truthFlow struct{}

func (truthFlow) Mode() FlowMode {
	return FlowTruth
}

func (truthFlow) ComputeAngle(ctx *EventContext) (float64, bool, error) {
	truthinfo, ok := FindNode[*TruthInfoContainer](ctx.Tree, TruthInfoName)
	if !ok || truthinfo == nil {
		return 0, false, fmt.Errorf("%s does not exist, cannot extract truth flow: %w",
			TruthInfoName, &ErrMissingNode{Name: TruthInfoName})
	}

	var qx, qy float64
	for _, particle := range truthinfo.PrimaryParticles() {
		if particle.Embedded != 0 {
			continue
		}
		p4 := fmom.NewPxPyPzE(particle.Px, particle.Py, particle.Pz, particle.E)
		pt := p4.Pt()
		if pt < TruthFlowMinPt {
			continue
		}
		eta := p4.Eta()
		if math.Abs(eta) > TruthFlowMaxEta {
			continue
		}
		phi := p4.Phi()
		if ctx.Verbosity > 10 {
			message := fmt.Sprintf("determining truth flow, using particle w/ pt / eta / phi %g / %g / %g , embed / PID = %d / %d",
				pt, eta, phi, particle.Embedded, particle.PID)
			logger.Info(message, "flow")
		}
		qx += pt * math.Cos(2*phi)
		qy += pt * math.Sin(2*phi)
	}

	psi2 := math.Atan2(qy, qx) / 2
	if ctx.Verbosity > 0 {
		message := fmt.Sprintf("flow extracted from truth particles, setting Psi2 = %g ( %g * pi )", psi2, psi2/math.Pi)
		logger.Info(message, "flow")
	}
	return psi2, false, nil
}

type eventPlaneFlow struct {
	detector EventPlaneDetector
}

func (eventPlaneFlow) Mode() FlowMode {
	return FlowEventPlane
}

func (f eventPlaneFlow) ComputeAngle(ctx *EventContext) (float64, bool, error) {
	epmap, ok := FindNode[*EventPlaneInfoMap](ctx.Tree, EventPlaneInfoName)
	if !ok || epmap == nil {
		return 0, false, fmt.Errorf("%s does not exist, cannot extract sEPD flow: %w",
			EventPlaneInfoName, &ErrMissingNode{Name: EventPlaneInfoName})
	}
	// No entry: typically the vertex is outside the sEPD acceptance.
	info, ok := epmap.Get(f.detector)
	if !ok {
		return 0, true, nil
	}
	return info.GetShiftedPsi(2), false, nil
}

// fillFlowProfile sums every strip without excluded towers into the
// profile and returns how many strips were usable, summed over the layers.
func fillFlowProfile(ctx *EventContext) (int, int) {
	profile := ctx.Profile
	profile.Reset()

	available := 0
	unavailable := 0
	for _, layer := range Layers {
		for eta := 0; eta < ctx.Grid.EtaBins(); eta++ {
			if ctx.stripExcluded(layer, eta) {
				if ctx.Verbosity > 4 {
					message := fmt.Sprintf("strip at layer %d, eta %d DOES have excluded towers and CANNOT be used for flow determination", layer, eta)
					logger.Info(message, "flow")
				}
				unavailable++
				continue
			}
			if ctx.Verbosity > 4 {
				message := fmt.Sprintf("strip at layer %d, eta %d has no excluded towers and can be used for flow determination", layer, eta)
				logger.Info(message, "flow")
			}
			available++
			floats.Add(profile.Energy, ctx.Grid.Row(layer, eta))
			for phi := range profile.Phi {
				profile.Phi[phi] = ctx.Geometry.PhiCenter(phi)
			}
		}
	}
	return available, unavailable
}

// determineFlow runs the flow stage. With flow disabled the result is all
// zero and not a failure.
func determineFlow(ctx *EventContext, source FlowSource) (FlowResult, error) {
	var result FlowResult
	if source == nil {
		if ctx.Verbosity > 0 {
			logger.Info("flow not enabled, setting Psi2 = 0 ( 0 * pi ) , v2 = 0", "flow")
		}
		return result, nil
	}

	available, unavailable := fillFlowProfile(ctx)
	if ctx.Verbosity > 0 {
		message := fmt.Sprintf("# of strips (summed over layers) available / unavailable for flow determination: %d / %d",
			available, unavailable)
		logger.Info(message, "flow")
	}

	if available == 0 {
		result.Failure = true
		if ctx.Verbosity > 0 {
			logger.Info("no full strips available for flow modulation, setting v2 and Psi = 0", "flow")
		}
		return result, nil
	}

	result.Qx, result.Qy, result.SumE = ctx.Profile.QVector()
	ctx.Flow = result

	psi2, failure, err := source.ComputeAngle(ctx)
	if err != nil {
		return FlowResult{}, err
	}
	result.Psi2 = psi2
	result.Failure = failure
	// v2 always comes from the calorimeter, whatever the origin of Psi2.
	result.V2 = ctx.Profile.V2(result.Psi2)
	result.NStrips = available

	if ctx.Verbosity > 0 {
		message := fmt.Sprintf("unnormalized Q vector (Qx, Qy) = ( %g, %g ) with Sum E_i = %g", result.Qx, result.Qy, result.SumE)
		logger.Info(message, "flow")
		message = fmt.Sprintf("Psi2 = %g ( %g * pi, from %v ) , v2 = %g ( using %d )",
			result.Psi2, result.Psi2/math.Pi, source.Mode(), result.V2, result.NStrips)
		logger.Info(message, "flow")
	}
	return result, nil
}
