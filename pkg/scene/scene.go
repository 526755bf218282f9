package scene

import (
	"fmt"

	"github.com/tiendc/go-deepcopy"
	"gonum.org/v1/gonum/spatial/r3"
)

// Selection is the explicit selection context handed to host primitives that
// operate on "the active object" and "the selected objects".
type Selection struct {
	Active   *Object
	Selected []*Object
	Mode     Mode
}

// Scene owns objects and mesh data and carries the interaction state.
// It is not safe for concurrent use.
type Scene struct {
	objects []*Object
	meshes  []*Mesh

	// TargetArmature is the scene-level armature used when no armature is active.
	TargetArmature *Object

	mode     Mode
	active   *Object
	selected map[*Object]bool
}

// New creates an empty scene in object mode.
func New() *Scene {
	return &Scene{selected: make(map[*Object]bool)}
}

// AddObject links an object (and its mesh data) into the scene.
func (s *Scene) AddObject(obj *Object) error {
	if obj == nil {
		return fmt.Errorf("nil object")
	}
	if s.Object(obj.Name) != nil {
		return fmt.Errorf("object %q: %w", obj.Name, ErrNameInUse)
	}
	if obj.Type == ObjectMesh && obj.Data == nil {
		obj.Data = &Mesh{Name: obj.Name}
	}
	if obj.Data != nil && !s.hasMesh(obj.Data) {
		if s.Mesh(obj.Data.Name) != nil {
			return fmt.Errorf("mesh %q: %w", obj.Data.Name, ErrNameInUse)
		}
		s.meshes = append(s.meshes, obj.Data)
	}
	s.objects = append(s.objects, obj)
	return nil
}

// Objects returns all objects in link order.
func (s *Scene) Objects() []*Object {
	return append([]*Object(nil), s.objects...)
}

// Object returns the object with the given name, or nil.
func (s *Scene) Object(name string) *Object {
	for _, o := range s.objects {
		if o.Name == name {
			return o
		}
	}
	return nil
}

// Meshes returns all mesh datablocks.
func (s *Scene) Meshes() []*Mesh {
	return append([]*Mesh(nil), s.meshes...)
}

// Mesh returns the mesh datablock with the given name, or nil.
func (s *Scene) Mesh(name string) *Mesh {
	for _, m := range s.meshes {
		if m.Name == name {
			return m
		}
	}
	return nil
}

func (s *Scene) hasMesh(m *Mesh) bool {
	for _, x := range s.meshes {
		if x == m {
			return true
		}
	}
	return false
}

// MeshUsers returns the number of objects referencing the mesh.
func (s *Scene) MeshUsers(m *Mesh) int {
	n := 0
	for _, o := range s.objects {
		if o.Data == m {
			n++
		}
	}
	return n
}

// uniqueName appends .001, .002, ... until taken reports false.
func uniqueName(base string, taken func(string) bool) string {
	if !taken(base) {
		return base
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s.%03d", base, i)
		if !taken(name) {
			return name
		}
	}
}

// UniqueMeshName returns base, or base with the first free .001 style suffix
// when a mesh already uses it.
func (s *Scene) UniqueMeshName(base string) string { return uniqueName(base, s.meshNameTaken) }

func (s *Scene) objectNameTaken(name string) bool { return s.Object(name) != nil }
func (s *Scene) meshNameTaken(name string) bool   { return s.Mesh(name) != nil }

// Target returns the scene-level target armature, or nil.
func (s *Scene) Target() *Object { return s.TargetArmature }

// Mode returns the interaction mode.
func (s *Scene) Mode() Mode { return s.mode }

// SetMode switches the interaction mode. Pose mode needs an active armature.
func (s *Scene) SetMode(mode Mode) error {
	if mode == ModePose && (s.active == nil || s.active.Type != ObjectArmature) {
		return fmt.Errorf("pose mode: %w", ErrNotArmature)
	}
	if mode == ModeEdit && s.active == nil {
		return fmt.Errorf("edit mode: %w", ErrNoActiveObject)
	}
	s.mode = mode
	return nil
}

// Active returns the active object.
func (s *Scene) Active() *Object { return s.active }

// SetActive makes obj the active object. nil clears it.
func (s *Scene) SetActive(obj *Object) { s.active = obj }

// Select sets the selection state of obj.
func (s *Scene) Select(obj *Object, selected bool) {
	if selected {
		s.selected[obj] = true
	} else {
		delete(s.selected, obj)
	}
}

// DeselectAll clears the selection.
func (s *Scene) DeselectAll() {
	s.selected = make(map[*Object]bool)
}

// Selected returns the selected objects in link order.
func (s *Scene) Selected() []*Object {
	var out []*Object
	for _, o := range s.objects {
		if s.selected[o] {
			out = append(out, o)
		}
	}
	return out
}

// claim installs sel as the scene selection and returns a func restoring the
// previous one.
func (s *Scene) claim(sel Selection) func() {
	prev := Selection{Active: s.active, Selected: s.Selected(), Mode: s.mode}
	s.active = sel.Active
	s.selected = make(map[*Object]bool)
	for _, o := range sel.Selected {
		s.selected[o] = true
	}
	s.mode = sel.Mode
	return func() {
		s.active = prev.Active
		s.selected = make(map[*Object]bool)
		for _, o := range prev.Selected {
			s.selected[o] = true
		}
		s.mode = prev.Mode
	}
}

// DuplicateObject deep-copies obj and its mesh data into a new scene object
// named "<obj>_<suffix>" with mesh "<mesh>_<suffix>". Modifiers are copied by
// value; driver bindings are not.
func (s *Scene) DuplicateObject(obj *Object, suffix string) (*Object, error) {
	if obj == nil || s.Object(obj.Name) != obj {
		return nil, ErrObjectNotFound
	}

	if obj.Type != ObjectMesh {
		return nil, fmt.Errorf("duplicate %q: %w", obj.Name, ErrNotMesh)
	}

	dup := &Object{
		Name: uniqueName(fmt.Sprintf("%s_%s", obj.Name, suffix), s.objectNameTaken),
		Type: obj.Type,
	}
	for _, m := range obj.Modifiers {
		c := *m
		dup.Modifiers = append(dup.Modifiers, &c)
	}
	if err := deepcopy.Copy(&dup.Attributes, &obj.Attributes); err != nil {
		return nil, fmt.Errorf("copying attributes of %q: %w", obj.Name, err)
	}

	if obj.Data != nil {
		mesh, err := copyMesh(obj.Data, uniqueName(fmt.Sprintf("%s_%s", obj.Data.Name, suffix), s.meshNameTaken))
		if err != nil {
			return nil, fmt.Errorf("copying mesh of %q: %w", obj.Name, err)
		}
		dup.Data = mesh
	}

	if err := s.AddObject(dup); err != nil {
		return nil, err
	}
	return dup, nil
}

func copyMesh(src *Mesh, name string) (*Mesh, error) {
	m := &Mesh{Name: name}
	if err := deepcopy.Copy(&m.Vertices, &src.Vertices); err != nil {
		return nil, err
	}
	if err := deepcopy.Copy(&m.VertexGroups, &src.VertexGroups); err != nil {
		return nil, err
	}
	if src.Keys != nil {
		m.Keys = &Key{Name: "Key_" + name}
		if err := deepcopy.Copy(&m.Keys.Blocks, &src.Keys.Blocks); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RemoveObject unlinks obj from the scene. Its mesh data stays registered.
func (s *Scene) RemoveObject(obj *Object) error {
	for i, o := range s.objects {
		if o == obj {
			s.objects = append(s.objects[:i], s.objects[i+1:]...)
			delete(s.selected, obj)
			if s.active == obj {
				s.active = nil
			}
			if s.TargetArmature == obj {
				s.TargetArmature = nil
			}
			return nil
		}
	}
	return ErrObjectNotFound
}

// RemoveMesh deletes a mesh datablock that no object uses.
func (s *Scene) RemoveMesh(m *Mesh) error {
	if s.MeshUsers(m) > 0 {
		return fmt.Errorf("mesh %q: %w", m.Name, ErrMeshInUse)
	}
	for i, x := range s.meshes {
		if x == m {
			s.meshes = append(s.meshes[:i], s.meshes[i+1:]...)
			return nil
		}
	}
	return ErrMeshNotFound
}

// RenameMesh renames a mesh datablock. The name must be free.
func (s *Scene) RenameMesh(m *Mesh, name string) error {
	if m.Name == name {
		return nil
	}
	if s.Mesh(name) != nil {
		return fmt.Errorf("mesh %q: %w", name, ErrNameInUse)
	}
	m.Name = name
	return nil
}

// AssignMesh makes obj use mesh m, registering m when needed.
func (s *Scene) AssignMesh(obj *Object, m *Mesh) error {
	if obj.Type != ObjectMesh {
		return fmt.Errorf("assign mesh to %q: %w", obj.Name, ErrNotMesh)
	}
	if !s.hasMesh(m) {
		if s.Mesh(m.Name) != nil {
			return fmt.Errorf("mesh %q: %w", m.Name, ErrNameInUse)
		}
		s.meshes = append(s.meshes, m)
	}
	obj.Data = m
	return nil
}

// RemoveShapeKey deletes the shape key at index. Deleting the last remaining
// key bakes its deltas into the base geometry; deleting the basis while other
// keys remain promotes the next key to basis.
func (s *Scene) RemoveShapeKey(obj *Object, index int) error {
	if obj.Type != ObjectMesh || obj.Data == nil {
		return fmt.Errorf("remove shape key on %q: %w", obj.Name, ErrNotMesh)
	}
	mesh := obj.Data
	if mesh.Keys == nil || len(mesh.Keys.Blocks) == 0 {
		return fmt.Errorf("remove shape key on %q: %w", obj.Name, ErrNoShapeKeys)
	}
	blocks := mesh.Keys.Blocks
	if index < 0 || index >= len(blocks) {
		return fmt.Errorf("remove shape key %d on %q: %w", index, obj.Name, ErrShapeKeyIndex)
	}

	removed := blocks[index]
	if len(blocks) == 1 {
		mesh.Vertices = removed.Positions(mesh.Vertices)
		mesh.Keys = nil
		return nil
	}

	if index == 0 {
		next := blocks[1]
		mesh.Vertices = next.Positions(mesh.Vertices)
		for _, b := range blocks[2:] {
			for i := range b.Deltas {
				if i < len(next.Deltas) {
					b.Deltas[i] = r3.Sub(b.Deltas[i], next.Deltas[i])
				}
			}
		}
		next.Deltas = make([]r3.Vec, len(mesh.Vertices))
	}

	mesh.Keys.Blocks = append(blocks[:index:index], blocks[index+1:]...)
	basis := mesh.Keys.Blocks[0].Name
	for _, b := range mesh.Keys.Blocks {
		if b.RelativeKey == removed.Name {
			b.RelativeKey = basis
		}
	}
	return nil
}

// RemoveShapeKeysExcept deletes every shape key but the one at keep.
func (s *Scene) RemoveShapeKeysExcept(obj *Object, keep int) error {
	n := len(obj.ShapeKeys())
	if keep < 0 || keep >= n {
		return fmt.Errorf("keep shape key %d on %q: %w", keep, obj.Name, ErrShapeKeyIndex)
	}
	for i := n - 1; i >= 0; i-- {
		if i == keep {
			continue
		}
		if err := s.RemoveShapeKey(obj, i); err != nil {
			return err
		}
	}
	return nil
}

// AddShapeKey appends an empty shape key to obj. The first key becomes the
// basis.
func (s *Scene) AddShapeKey(obj *Object, name string) (*ShapeKey, error) {
	if obj.Type != ObjectMesh || obj.Data == nil {
		return nil, fmt.Errorf("add shape key on %q: %w", obj.Name, ErrNotMesh)
	}
	mesh := obj.Data
	if mesh.Keys == nil {
		mesh.Keys = &Key{Name: "Key_" + mesh.Name}
	}
	name = uniqueName(name, func(n string) bool { return mesh.Keys.Block(n) != nil })
	block := newShapeKey(name, len(mesh.Vertices))
	if len(mesh.Keys.Blocks) > 0 {
		block.RelativeKey = mesh.Keys.Blocks[0].Name
	}
	mesh.Keys.Blocks = append(mesh.Keys.Blocks, block)
	return block, nil
}

// RenameShapeKey renames the block at index, making the name unique within the
// container.
func (s *Scene) RenameShapeKey(obj *Object, index int, name string) error {
	blocks := obj.ShapeKeys()
	if index < 0 || index >= len(blocks) {
		return fmt.Errorf("rename shape key %d on %q: %w", index, obj.Name, ErrShapeKeyIndex)
	}
	block := blocks[index]
	if block.Name == name {
		return nil
	}
	key := obj.Data.Keys
	name = uniqueName(name, func(n string) bool { return key.Block(n) != nil })
	for _, b := range blocks {
		if b.RelativeKey == block.Name {
			b.RelativeKey = name
		}
	}
	block.Name = name
	return nil
}

// JoinAsShapeKeys appends one shape key to sel.Active per selected mesh,
// holding the donor geometry relative to the destination's current basis.
// Donors whose vertex count differs are skipped, as the host does.
func (s *Scene) JoinAsShapeKeys(sel Selection) error {
	dest := sel.Active
	if dest == nil {
		return ErrNoActiveObject
	}
	if dest.Type != ObjectMesh || dest.Data == nil {
		return fmt.Errorf("join shapes into %q: %w", dest.Name, ErrNotMesh)
	}
	restore := s.claim(sel)
	defer restore()

	mesh := dest.Data
	for _, donor := range sel.Selected {
		if donor == dest || donor.Type != ObjectMesh || donor.Data == nil {
			continue
		}
		if len(donor.Data.Vertices) != len(mesh.Vertices) {
			continue
		}
		if mesh.Keys == nil {
			mesh.Keys = &Key{Name: "Key_" + mesh.Name}
		}
		if len(mesh.Keys.Blocks) == 0 {
			mesh.Keys.Blocks = append(mesh.Keys.Blocks, newShapeKey("Basis", len(mesh.Vertices)))
		}

		name := uniqueName(donor.Name, func(n string) bool { return mesh.Keys.Block(n) != nil })
		block := newShapeKey(name, len(mesh.Vertices))
		block.RelativeKey = mesh.Keys.Blocks[0].Name
		for i, v := range donor.Data.Vertices {
			block.Deltas[i] = r3.Sub(v, mesh.Vertices[i])
		}
		mesh.Keys.Blocks = append(mesh.Keys.Blocks, block)
	}
	return nil
}

// AddModifier appends a modifier to obj's stack. The name is made unique.
func (s *Scene) AddModifier(obj *Object, name string, kind ModifierKind) (*Modifier, error) {
	if obj.Type != ObjectMesh {
		return nil, fmt.Errorf("add modifier to %q: %w", obj.Name, ErrNotMesh)
	}
	name = uniqueName(name, func(n string) bool {
		m, _ := obj.Modifier(n)
		return m != nil
	})
	m := NewModifier(name, kind)
	obj.Modifiers = append(obj.Modifiers, m)
	return m, nil
}

// RemoveModifier removes the named modifier from obj's stack.
func (s *Scene) RemoveModifier(obj *Object, name string) error {
	_, i := obj.Modifier(name)
	if i < 0 {
		return fmt.Errorf("modifier %q on %q: %w", name, obj.Name, ErrModifierNotFound)
	}
	obj.Modifiers = append(obj.Modifiers[:i:i], obj.Modifiers[i+1:]...)
	return nil
}

// MoveModifierUp moves the named modifier of sel.Active one slot towards the
// top of the stack.
func (s *Scene) MoveModifierUp(sel Selection, name string) error {
	obj := sel.Active
	if obj == nil {
		return ErrNoActiveObject
	}
	restore := s.claim(sel)
	defer restore()

	_, i := obj.Modifier(name)
	if i < 0 {
		return fmt.Errorf("modifier %q on %q: %w", name, obj.Name, ErrModifierNotFound)
	}
	if i == 0 {
		return fmt.Errorf("modifier %q is already first", name)
	}
	obj.Modifiers[i-1], obj.Modifiers[i] = obj.Modifiers[i], obj.Modifiers[i-1]
	return nil
}

// ClearDrivers drops the driver container of obj's shape keys.
func (s *Scene) ClearDrivers(obj *Object) error {
	if obj.Data == nil || obj.Data.Keys == nil {
		return fmt.Errorf("clear drivers on %q: %w", obj.Name, ErrNoShapeKeys)
	}
	obj.Data.Keys.Drivers = nil
	return nil
}

// CreateDriverContainer makes sure obj's shape keys have a driver container.
func (s *Scene) CreateDriverContainer(obj *Object) (*DriverContainer, error) {
	if obj.Data == nil || obj.Data.Keys == nil {
		return nil, fmt.Errorf("create drivers on %q: %w", obj.Name, ErrNoShapeKeys)
	}
	if obj.Data.Keys.Drivers == nil {
		obj.Data.Keys.Drivers = &DriverContainer{}
	}
	return obj.Data.Keys.Drivers, nil
}

// CopyDriver appends a by-value copy of src to obj's driver container.
func (s *Scene) CopyDriver(obj *Object, src *Driver) (*Driver, error) {
	if obj.Data == nil || obj.Data.Keys == nil || obj.Data.Keys.Drivers == nil {
		return nil, fmt.Errorf("copy driver to %q: %w", obj.Name, ErrNoDriverContainer)
	}
	d := src.Clone()
	obj.Data.Keys.Drivers.Drivers = append(obj.Data.Keys.Drivers.Drivers, d)
	return d, nil
}

// SetShapeKeyAttribute sets a custom attribute on a shape key. Names starting
// with "_" are reserved; values must be string, bool, int, float64 or []float64.
func (s *Scene) SetShapeKeyAttribute(block *ShapeKey, name string, value any) error {
	if name == "" || name[0] == '_' {
		return fmt.Errorf("attribute %q: %w", name, ErrReservedAttribute)
	}
	switch v := value.(type) {
	case string, bool, int, float64:
	case []float64:
		value = append([]float64(nil), v...)
	default:
		return fmt.Errorf("attribute %q (%T): %w", name, value, ErrAttributeType)
	}
	if block.Attributes == nil {
		block.Attributes = make(map[string]any)
	}
	block.Attributes[name] = value
	return nil
}

// CommitRestPose replaces the rest transform of every bone of sel.Active with
// its current pose and resets the pose. Needs pose mode.
func (s *Scene) CommitRestPose(sel Selection) error {
	arm := sel.Active
	if arm == nil {
		return ErrNoActiveObject
	}
	if arm.Type != ObjectArmature || arm.Armature == nil {
		return fmt.Errorf("apply pose on %q: %w", arm.Name, ErrNotArmature)
	}
	if sel.Mode != ModePose {
		return fmt.Errorf("apply pose in %s mode: %w", sel.Mode, ErrWrongMode)
	}
	restore := s.claim(sel)
	defer restore()

	poses, err := arm.Armature.PoseMatrices()
	if err != nil {
		return fmt.Errorf("apply pose on %q: %w", arm.Name, err)
	}
	for _, b := range arm.Armature.Bones {
		b.Rest = poses[b.Name]
		b.ResetPose()
	}
	return nil
}

// EvaluateDrivers runs every shape-key driver of every mesh and writes the
// clamped results into the driven values.
func (s *Scene) EvaluateDrivers() error {
	for _, obj := range s.objects {
		if obj.Data == nil || !obj.Data.Keys.HasDrivers() {
			continue
		}
		key := obj.Data.Keys
		for _, d := range key.Drivers.Drivers {
			name, err := d.ShapeKeyName()
			if err != nil {
				return fmt.Errorf("%s: %w", obj.Name, err)
			}
			block := key.Block(name)
			if block == nil {
				return fmt.Errorf("%s: driven shape key %q not found", obj.Name, name)
			}
			v, err := d.Evaluate()
			if err != nil {
				return fmt.Errorf("%s: driver on %q: %w", obj.Name, name, err)
			}
			block.Value = block.Clamp(v)
		}
	}
	return nil
}
