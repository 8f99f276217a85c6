package background

import "fmt"

// Node names shared with the producers of the input objects.
const (
	TowerGeomIHName = "TOWERGEOM_HCALIN"
	TowerGeomOHName = "TOWERGEOM_HCALOUT"

	RawTowerEMName = "TOWER_CALIB_CEMC_RETOWER"
	RawTowerIHName = "TOWER_CALIB_HCALIN"
	RawTowerOHName = "TOWER_CALIB_HCALOUT"

	RawSeedJetsTowerName     = "AntiKt_Tower_HIRecoSeedsRaw_r02"
	RawSeedJetsTowerInfoName = "AntiKt_TowerInfo_HIRecoSeedsRaw_r02"
	SubSeedJetsTowerName     = "AntiKt_Tower_HIRecoSeedsSub_r02"
	SubSeedJetsTowerInfoName = "AntiKt_TowerInfo_HIRecoSeedsSub_r02"

	TruthInfoName      = "G4TruthInfo"
	EventPlaneInfoName = "EventplaneinfoMap"

	BackgroundScope = "JETBACKGROUND"
)

// TowerInfoNodeName builds the compact tower node name for a layer.
func TowerInfoNodeName(prefix string, layer Layer) string {
	switch layer {
	case LayerEMCal:
		return prefix + "_CEMC_RETOWER"
	case LayerIHCal:
		return prefix + "_HCALIN"
	default:
		return prefix + "_HCALOUT"
	}
}

// NodeTree is the object registry shared by the reconstruction modules.
// Run nodes live for the whole job; event nodes are dropped by ClearEvent.
type NodeTree struct {
	run   map[string]any
	event map[string]any
}

func NewNodeTree() *NodeTree {
	return &NodeTree{
		run:   make(map[string]any),
		event: make(map[string]any),
	}
}

func nodePath(scope string, name string) string {
	if scope == "" {
		return name
	}
	return scope + "/" + name
}

// AddRunNode registers a job-lifetime object under scope/name; an empty
// scope registers it at the top level. Registering a path twice is an
// error.
func (t *NodeTree) AddRunNode(scope string, name string, object any) error {
	path := nodePath(scope, name)
	if _, ok := t.run[path]; ok {
		return &ErrNodeExists{Name: path}
	}
	t.run[path] = object
	return nil
}

func (t *NodeTree) AddEventNode(name string, object any) {
	t.event[name] = object
}

func (t *NodeTree) ClearEvent() {
	clear(t.event)
}

func (t *NodeTree) lookup(name string) (any, bool) {
	if object, ok := t.event[name]; ok {
		return object, true
	}
	object, ok := t.run[name]
	return object, ok
}

// FindNode looks a typed object up, event nodes first. Scoped run nodes
// are found by their full path.
func FindNode[T any](tree *NodeTree, name string) (T, bool) {
	var zero T
	if tree == nil {
		return zero, false
	}
	object, ok := tree.lookup(name)
	if !ok {
		return zero, false
	}
	typed, ok := object.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// MustFindNode is FindNode reporting a missing node as ErrMissingNode.
func MustFindNode[T any](tree *NodeTree, name string) (T, error) {
	object, ok := FindNode[T](tree, name)
	if !ok {
		return object, &ErrMissingNode{Name: name}
	}
	return object, nil
}

func (t *NodeTree) String() string {
	return fmt.Sprintf("NodeTree{run: %d nodes, event: %d nodes}", len(t.run), len(t.event))
}
