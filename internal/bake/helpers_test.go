package bake

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/Faultbox/posetorest/internal/logger"
	"github.com/Faultbox/posetorest/pkg/scene"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/spatial/r3"
)

var errInjected = errors.New("injected failure")

// observe routes the global logger into an in-memory observer for the test.
func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	t.Cleanup(logger.Replace(zap.New(core)))
	return logs
}

// newRig returns armature "Rig" whose single bone is posed 90 degrees around Z.
func newRig() *scene.Object {
	bone := scene.NewBone("Arm", "", mgl64.Ident4())
	bone.Rotation = mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})
	return &scene.Object{
		Name:     "Rig",
		Type:     scene.ObjectArmature,
		Armature: &scene.Armature{Name: "Rig", Bones: []*scene.Bone{bone}},
	}
}

// newBody returns mesh "Body" skinned to rig with shape keys Basis, Smile and
// Frown and one armature modifier at index 0.
func newBody(rig *scene.Object) *scene.Object {
	mod := scene.NewModifier("Armature", scene.ModifierArmature)
	mod.Object = rig
	mod.VertexGroup = "Arm"
	mod.ShowOnCage = true

	mesh := &scene.Mesh{
		Name:         "BodyMesh",
		Vertices:     []r3.Vec{{X: 1}, {X: 2}, {X: 3}},
		VertexGroups: []*scene.VertexGroup{{Name: "Arm", Weights: []float64{1, 1, 1}}},
		Keys: &scene.Key{Name: "Key", Blocks: []*scene.ShapeKey{
			{Name: "Basis", Deltas: make([]r3.Vec, 3), SliderMax: 1},
			{
				Name:          "Smile",
				Deltas:        []r3.Vec{{Y: 1}, {Y: 1}, {Y: 1}},
				Value:         0.5,
				SliderMin:     -1,
				SliderMax:     2,
				Interpolation: scene.InterpolationCardinal,
				RelativeKey:   "Basis",
				VertexGroup:   "Arm",
				Attributes:    map[string]any{"tag": "face", "_internal": 1},
			},
			{
				Name:        "Frown",
				Deltas:      []r3.Vec{{Z: 1}, {Z: 1}, {Z: 1}},
				SliderMax:   1,
				Mute:        true,
				RelativeKey: "Smile",
			},
		}},
	}
	return &scene.Object{
		Name:      "Body",
		Type:      scene.ObjectMesh,
		Data:      mesh,
		Modifiers: []*scene.Modifier{mod},
	}
}

func newScene(t *testing.T, objs ...*scene.Object) *scene.Scene {
	t.Helper()
	s := scene.New()
	for _, o := range objs {
		if err := s.AddObject(o); err != nil {
			t.Fatalf("AddObject(%s): %v", o.Name, err)
		}
	}
	return s
}

func nearVec(a, b r3.Vec) bool {
	return r3.Norm(r3.Sub(a, b)) < 1e-6
}

func keyNames(obj *scene.Object) []string {
	var names []string
	for _, b := range obj.ShapeKeys() {
		names = append(names, b.Name)
	}
	return names
}

// meshState is a by-value picture of a mesh object used to prove a failed run
// changed nothing.
type meshState struct {
	Data      *scene.Mesh
	MeshName  string
	Vertices  []r3.Vec
	Keys      []scene.ShapeKey
	Modifiers []*scene.Modifier
	Settings  []scene.Modifier
}

func captureState(obj *scene.Object) meshState {
	st := meshState{
		Data:      obj.Data,
		MeshName:  obj.Data.Name,
		Vertices:  append([]r3.Vec(nil), obj.Data.Vertices...),
		Modifiers: append([]*scene.Modifier(nil), obj.Modifiers...),
	}
	for _, b := range obj.ShapeKeys() {
		c := *b
		c.Deltas = append([]r3.Vec(nil), b.Deltas...)
		st.Keys = append(st.Keys, c)
	}
	for _, m := range obj.Modifiers {
		st.Settings = append(st.Settings, *m)
	}
	return st
}

func assertUnchanged(t *testing.T, before meshState, obj *scene.Object) {
	t.Helper()
	if after := captureState(obj); !reflect.DeepEqual(before, after) {
		t.Errorf("expected %s unchanged\nbefore: %+v\nafter:  %+v", obj.Name, before, after)
	}
}

func assertNoProxies(t *testing.T, s *scene.Scene) {
	t.Helper()
	for _, o := range s.Objects() {
		if strings.Contains(o.Name, "_shapekey_") {
			t.Errorf("proxy object %s left in scene", o.Name)
		}
	}
	for _, m := range s.Meshes() {
		if strings.Contains(m.Name, "_shapekey_") {
			t.Errorf("proxy mesh %s left in scene", m.Name)
		}
	}
}

// faultyHost wraps a scene and injects failures into selected primitives.
type faultyHost struct {
	*scene.Scene

	shrinkSuffix string // drop a vertex from duplicates with this suffix
	joinNoop     bool
	joinSkip     string // donor suffix whose join is dropped
	applyFail    bool
	attrFail     bool
	moveFail     bool
	commitFail   bool
	clearFail    bool
}

func (h *faultyHost) DuplicateObject(obj *scene.Object, suffix string) (*scene.Object, error) {
	dup, err := h.Scene.DuplicateObject(obj, suffix)
	if err != nil || suffix != h.shrinkSuffix {
		return dup, err
	}
	mesh := dup.Data
	mesh.Vertices = mesh.Vertices[:len(mesh.Vertices)-1]
	for _, g := range mesh.VertexGroups {
		g.Weights = g.Weights[:len(mesh.Vertices)]
	}
	for _, b := range dup.ShapeKeys() {
		b.Deltas = b.Deltas[:len(mesh.Vertices)]
	}
	return dup, nil
}

func (h *faultyHost) JoinAsShapeKeys(sel scene.Selection) error {
	if h.joinNoop {
		return nil
	}
	for _, o := range sel.Selected {
		if h.joinSkip != "" && strings.HasSuffix(o.Name, h.joinSkip) {
			return nil
		}
	}
	return h.Scene.JoinAsShapeKeys(sel)
}

func (h *faultyHost) ApplyModifier(sel scene.Selection, name string) error {
	if h.applyFail {
		return errInjected
	}
	return h.Scene.ApplyModifier(sel, name)
}

func (h *faultyHost) SetShapeKeyAttribute(block *scene.ShapeKey, name string, value any) error {
	if h.attrFail {
		return errInjected
	}
	return h.Scene.SetShapeKeyAttribute(block, name, value)
}

func (h *faultyHost) MoveModifierUp(sel scene.Selection, name string) error {
	if h.moveFail {
		return errInjected
	}
	return h.Scene.MoveModifierUp(sel, name)
}

func (h *faultyHost) CommitRestPose(sel scene.Selection) error {
	if h.commitFail {
		return errInjected
	}
	return h.Scene.CommitRestPose(sel)
}

func (h *faultyHost) ClearDrivers(obj *scene.Object) error {
	if h.clearFail {
		return errInjected
	}
	return h.Scene.ClearDrivers(obj)
}
