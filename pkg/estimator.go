package background

import (
	"errors"
	"fmt"
	"strings"
)

// EventContext is the state shared by the stages of one event.
type EventContext struct {
	Tree      *NodeTree
	Grid      *EnergyGrid
	Geometry  Geometry
	Seeds     *SeedList
	Profile   *FlowProfile
	Flow      FlowResult
	Verbosity int

	nearSeed []bool
}

// markSeeds flags once per event the bins within SeedRadius of a seed.
// Bin centres come from the inner HCal geometry for every layer.
func (ctx *EventContext) markSeeds() {
	phiBins := ctx.Grid.PhiBins()
	if len(ctx.nearSeed) != ctx.Grid.EtaBins()*phiBins {
		ctx.nearSeed = make([]bool, ctx.Grid.EtaBins()*phiBins)
	}
	for eta := 0; eta < ctx.Grid.EtaBins(); eta++ {
		thisEta := ctx.Geometry.EtaCenter(eta)
		for phi := 0; phi < phiBins; phi++ {
			ctx.nearSeed[eta*phiBins+phi] = ctx.Seeds.Near(thisEta, ctx.Geometry.PhiCenter(phi))
		}
	}
}

func (ctx *EventContext) binExcluded(layer Layer, eta int, phi int) bool {
	return ctx.Grid.Masked(layer, eta, phi) || ctx.nearSeed[eta*ctx.Grid.PhiBins()+phi]
}

func (ctx *EventContext) stripExcluded(layer Layer, eta int) bool {
	for phi := 0; phi < ctx.Grid.PhiBins(); phi++ {
		if ctx.binExcluded(layer, eta, phi) {
			return true
		}
	}
	return false
}

// Estimator determines the underlying event density and flow modulation of
// every event. One Estimator must not be shared between goroutines.
type Estimator struct {
	useTowerInfo    bool
	towerNodePrefix string
	seedType        SeedType
	seedJetD        float64
	seedJetPt       float64
	doFlow          FlowMode
	backgroundName  string
	verbosity       int

	flowSource FlowSource
	background *TowerBackground
	ctx        *EventContext
	ue         [NLayers][]float64
}

func NewEstimator() *Estimator {
	return &Estimator{
		useTowerInfo:    true,
		towerNodePrefix: "TOWERINFO_CALIB",
		seedType:        SeedTypeD,
		seedJetD:        3,
		seedJetPt:       7,
		doFlow:          FlowDisabled,
		backgroundName:  "TowerBackground",
	}
}

// NewEstimatorFromConfiguration applies a job configuration.
func NewEstimatorFromConfiguration(config Configuration) *Estimator {
	e := NewEstimator()
	e.SetUseTowerInfo(config.UseTowerInfo)
	e.SetTowerNodePrefix(config.TowerNodePrefix)
	e.SetSeedType(config.SeedType)
	e.SetSeedJetD(config.SeedJetD)
	e.SetSeedJetPt(config.SeedJetPt)
	e.SetFlow(config.DoFlow)
	e.SetBackgroundName(config.BackgroundName)
	e.SetVerbosity(config.Verbosity)
	return e
}

func (e *Estimator) SetUseTowerInfo(useTowerInfo bool) {
	e.useTowerInfo = useTowerInfo
}

func (e *Estimator) SetTowerNodePrefix(prefix string) {
	e.towerNodePrefix = prefix
}

func (e *Estimator) SetSeedType(seedType SeedType) {
	e.seedType = seedType
}

func (e *Estimator) SetSeedJetD(d float64) {
	e.seedJetD = d
}

func (e *Estimator) SetSeedJetPt(pt float64) {
	e.seedJetPt = pt
}

func (e *Estimator) SetFlow(mode FlowMode) {
	e.doFlow = mode
}

func (e *Estimator) SetBackgroundName(name string) {
	e.backgroundName = name
}

func (e *Estimator) SetVerbosity(verbosity int) {
	e.verbosity = verbosity
}

func (e *Estimator) Verbosity() int {
	return e.verbosity
}

// Background is the record filled by the last processed event.
func (e *Estimator) Background() *TowerBackground {
	return e.background
}

// Seeds returns a copy of the seeds found in the last processed event.
func (e *Estimator) Seeds() []Seed {
	if e.ctx == nil {
		return nil
	}
	return e.ctx.Seeds.Seeds()
}

// InitRun publishes the background record under the background scope.
// A record already registered with the same name aborts the run.
func (e *Estimator) InitRun(tree *NodeTree) error {
	flowSource, err := NewFlowSource(e.doFlow)
	if err != nil {
		return err
	}
	if _, err := seedJetsNodeName(e.seedType, e.useTowerInfo); err != nil {
		return err
	}
	e.flowSource = flowSource

	background := NewTowerBackground()
	if err := tree.AddRunNode(BackgroundScope, e.backgroundName, background); err != nil {
		return err
	}
	e.background = background
	e.ctx = nil

	if e.verbosity > 0 {
		message := fmt.Sprintf("seed type %v ( D > %g , pT > %g ), flow %v, tower info %t",
			e.seedType, e.seedJetD, e.seedJetPt, e.doFlow, e.useTowerInfo)
		logger.Info(message, "estimator")
	}
	return nil
}

func findGeometry(tree *NodeTree, name string, layer Layer) (Geometry, error) {
	geom, ok := FindNode[Geometry](tree, name)
	if !ok || geom == nil {
		return nil, &ErrMissingGeometry{Layer: layer, Err: &ErrMissingNode{Name: name}}
	}
	return geom, nil
}

// prepare sizes the working state from the inner HCal geometry the first
// time it is seen. Later events keep that binning.
func (e *Estimator) prepare(tree *NodeTree, geomIH Geometry) error {
	if e.ctx == nil {
		grid, err := NewEnergyGrid(geomIH.EtaBins(), geomIH.PhiBins())
		if err != nil {
			return &ErrMissingGeometry{Layer: LayerIHCal, Err: err}
		}
		e.ctx = &EventContext{
			Grid:    grid,
			Seeds:   &SeedList{},
			Profile: newFlowProfile(grid.PhiBins()),
		}
		for _, layer := range Layers {
			e.ue[layer] = make([]float64, grid.EtaBins())
		}
	}
	e.ctx.Tree = tree
	e.ctx.Geometry = geomIH
	e.ctx.Verbosity = e.verbosity
	e.ctx.Flow = FlowResult{}
	e.ctx.Seeds.Reset()
	return nil
}

// ProcessEvent runs seed selection, tower accumulation, flow determination
// and the density calculation, then overwrites the background record.
// Errors wrapping ErrAbortRun are fatal for the job.
func (e *Estimator) ProcessEvent(tree *NodeTree) error {
	if e.background == nil {
		return fmt.Errorf("process event before init run: %w", &ErrMissingNode{Name: nodePath(BackgroundScope, e.backgroundName)})
	}

	geomIH, err := findGeometry(tree, TowerGeomIHName, LayerIHCal)
	if err != nil {
		return err
	}
	geomOH, err := findGeometry(tree, TowerGeomOHName, LayerOHCal)
	if err != nil {
		return err
	}

	sources, err := loadTowerSources(tree, e.useTowerInfo, e.towerNodePrefix, geomIH, geomOH)
	if err != nil {
		return err
	}

	if err := e.prepare(tree, geomIH); err != nil {
		return err
	}
	ctx := e.ctx

	jetsName, err := seedJetsNodeName(e.seedType, e.useTowerInfo)
	if err != nil {
		return err
	}
	jets, err := MustFindNode[*JetContainer](tree, jetsName)
	if err != nil {
		return err
	}
	if jets == nil {
		return &ErrMissingNode{Name: jetsName}
	}

	switch e.seedType {
	case SeedTypeD:
		selectSeedsByD(jets, sources, e.seedJetD, ctx.Seeds, e.verbosity)
	case SeedTypePt:
		selectSeedsByPt(jets, e.seedJetPt, ctx.Seeds, e.verbosity)
	}

	if err := ctx.Grid.Accumulate(sources, e.verbosity); err != nil {
		return fmt.Errorf("accumulating towers: %w", err)
	}
	ctx.markSeeds()

	flow, err := determineFlow(ctx, e.flowSource)
	if err != nil {
		return err
	}

	nTowers := computeUEDensity(ctx, flow, &e.ue)

	for _, layer := range Layers {
		e.background.SetUEParameters(layer, e.ue[layer])
	}
	e.background.SetFlow(flow)
	e.background.NTowersUsedForBkg = nTowers

	if e.verbosity > 0 {
		logger.Info(e.summary(), "estimator")
	}
	return nil
}

func (e *Estimator) summary() string {
	var b strings.Builder
	b.WriteString("summary of UE estimates")
	for _, layer := range Layers {
		fmt.Fprintf(&b, "\n  %v:", layer)
		for _, ue := range e.ue[layer] {
			fmt.Fprintf(&b, " %g", ue)
		}
	}
	fmt.Fprintf(&b, "\n  Psi2 = %g , v2 = %g , nStrips = %d , nTowers = %d , flow failure = %t",
		e.background.Psi2, e.background.V2, e.background.NStripsUsedForFlow,
		e.background.NTowersUsedForBkg, e.background.FlowFailure)
	return b.String()
}

// IsFatal reports whether an error from ProcessEvent must stop the job.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAbortRun)
}
