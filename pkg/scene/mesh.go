package scene

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Object is a named scene object owning either mesh data or an armature.
type Object struct {
	Name       string
	Type       ObjectType
	Data       *Mesh     // mesh objects
	Armature   *Armature // armature objects
	Modifiers  []*Modifier
	Attributes map[string]any
}

// IDName implements ID.
func (o *Object) IDName() string { return o.Name }

// IDKind implements ID.
func (o *Object) IDKind() IDKind { return IDObject }

// VertexCount returns the number of vertices of a mesh object, or 0.
func (o *Object) VertexCount() int {
	if o == nil || o.Data == nil {
		return 0
	}
	return len(o.Data.Vertices)
}

// ShapeKeys returns the shape-key blocks of a mesh object in list order.
func (o *Object) ShapeKeys() []*ShapeKey {
	if o == nil || o.Data == nil || o.Data.Keys == nil {
		return nil
	}
	return o.Data.Keys.Blocks
}

// HasShapeKeys reports whether the object carries at least one shape key.
func (o *Object) HasShapeKeys() bool {
	return len(o.ShapeKeys()) > 0
}

// Modifier returns the modifier with the given name.
func (o *Object) Modifier(name string) (*Modifier, int) {
	for i, m := range o.Modifiers {
		if m.Name == name {
			return m, i
		}
	}
	return nil, -1
}

// Mesh is vertex geometry plus its vertex groups and shape keys.
type Mesh struct {
	Name         string
	Vertices     []r3.Vec
	VertexGroups []*VertexGroup
	Keys         *Key
}

// IDName implements ID.
func (m *Mesh) IDName() string { return m.Name }

// IDKind implements ID.
func (m *Mesh) IDKind() IDKind { return IDMesh }

// VertexGroup returns the group with the given name, or nil.
func (m *Mesh) VertexGroup(name string) *VertexGroup {
	for _, g := range m.VertexGroups {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// VertexGroup holds one weight per vertex.
type VertexGroup struct {
	Name    string
	Weights []float64
}

// Weight returns the weight of vertex i, or 0 when unassigned.
func (g *VertexGroup) Weight(i int) float64 {
	if g == nil || i < 0 || i >= len(g.Weights) {
		return 0
	}
	return g.Weights[i]
}

// Key is the shape-key container of a mesh.
type Key struct {
	Name    string
	Blocks  []*ShapeKey
	Drivers *DriverContainer
}

// IDName implements ID.
func (k *Key) IDName() string { return k.Name }

// IDKind implements ID.
func (k *Key) IDKind() IDKind { return IDKey }

// Block returns the shape key with the given name, or nil.
func (k *Key) Block(name string) *ShapeKey {
	if k == nil {
		return nil
	}
	for _, b := range k.Blocks {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// HasDrivers reports whether the container has any driver bindings.
func (k *Key) HasDrivers() bool {
	return k != nil && k.Drivers != nil && len(k.Drivers.Drivers) > 0
}

// ShapeKey is a named per-vertex delta field relative to the basis geometry.
// Index 0 of a Key is the basis and carries zero deltas.
type ShapeKey struct {
	Name          string
	Deltas        []r3.Vec
	Value         float64
	SliderMin     float64
	SliderMax     float64
	Mute          bool
	Interpolation Interpolation
	RelativeKey   string
	VertexGroup   string
	Attributes    map[string]any
}

// newShapeKey returns a block with the host's default settings.
func newShapeKey(name string, vertexCount int) *ShapeKey {
	return &ShapeKey{
		Name:      name,
		Deltas:    make([]r3.Vec, vertexCount),
		SliderMax: 1,
	}
}

// Positions returns basis + deltas for the block.
func (b *ShapeKey) Positions(basis []r3.Vec) []r3.Vec {
	out := make([]r3.Vec, len(basis))
	for i, v := range basis {
		if i < len(b.Deltas) {
			v = r3.Add(v, b.Deltas[i])
		}
		out[i] = v
	}
	return out
}

// Clamp limits v to the block's slider range.
func (b *ShapeKey) Clamp(v float64) float64 {
	if v < b.SliderMin {
		return b.SliderMin
	}
	if v > b.SliderMax {
		return b.SliderMax
	}
	return v
}
