package scene

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

// Document is the YAML form of a scene.
type Document struct {
	TargetArmature string      `yaml:"target_armature,omitempty"`
	Active         string      `yaml:"active,omitempty"`
	Mode           string      `yaml:"mode,omitempty"`
	Objects        []ObjectDoc `yaml:"objects"`
}

// ObjectDoc describes one object.
type ObjectDoc struct {
	Name       string         `yaml:"name"`
	Type       string         `yaml:"type"`
	Selected   bool           `yaml:"selected,omitempty"`
	Attributes map[string]any `yaml:"attributes,omitempty"`
	Mesh       *MeshDoc       `yaml:"mesh,omitempty"`
	Armature   *ArmatureDoc   `yaml:"armature,omitempty"`
	Modifiers  []ModifierDoc  `yaml:"modifiers,omitempty"`
}

// MeshDoc describes mesh data. Meshes shared between objects are written once
// in full and referenced by name afterwards.
type MeshDoc struct {
	Name         string        `yaml:"name"`
	Vertices     [][3]float64  `yaml:"vertices,omitempty,flow"`
	VertexGroups []GroupDoc    `yaml:"vertex_groups,omitempty"`
	KeyName      string        `yaml:"key_name,omitempty"`
	ShapeKeys    []ShapeKeyDoc `yaml:"shape_keys,omitempty"`
	Drivers      []DriverDoc   `yaml:"drivers,omitempty"`
}

// GroupDoc is a vertex group with one weight per vertex.
type GroupDoc struct {
	Name    string    `yaml:"name"`
	Weights []float64 `yaml:"weights,flow"`
}

// ShapeKeyDoc describes a shape key. Deltas are relative to the basis.
type ShapeKeyDoc struct {
	Name          string         `yaml:"name"`
	Deltas        [][3]float64   `yaml:"deltas,omitempty,flow"`
	Value         float64        `yaml:"value,omitempty"`
	SliderMin     float64        `yaml:"slider_min,omitempty"`
	SliderMax     *float64       `yaml:"slider_max,omitempty"`
	Mute          bool           `yaml:"mute,omitempty"`
	Interpolation string         `yaml:"interpolation,omitempty"`
	RelativeKey   string         `yaml:"relative_key,omitempty"`
	VertexGroup   string         `yaml:"vertex_group,omitempty"`
	Attributes    map[string]any `yaml:"attributes,omitempty"`
}

// DriverDoc describes a shape-key driver.
type DriverDoc struct {
	DataPath   string        `yaml:"data_path"`
	Expression string        `yaml:"expression"`
	Variables  []VariableDoc `yaml:"variables,omitempty"`
	Keyframes  [][2]float64  `yaml:"keyframes,omitempty,flow"`
}

// VariableDoc describes a driver variable.
type VariableDoc struct {
	Name    string      `yaml:"name"`
	Targets []TargetDoc `yaml:"targets"`
}

// TargetDoc references a datablock by kind and name.
type TargetDoc struct {
	IDType   string `yaml:"id_type"`
	ID       string `yaml:"id"`
	DataPath string `yaml:"data_path"`
}

// ArmatureDoc describes a skeleton.
type ArmatureDoc struct {
	Name  string    `yaml:"name,omitempty"`
	Bones []BoneDoc `yaml:"bones"`
}

// BoneDoc describes a bone. Rest is a column-major 4x4 matrix; Head is a
// shorthand for a translation-only rest transform.
type BoneDoc struct {
	Name     string      `yaml:"name"`
	Parent   string      `yaml:"parent,omitempty"`
	Head     *[3]float64 `yaml:"head,omitempty,flow"`
	Rest     []float64   `yaml:"rest,omitempty,flow"`
	Location *[3]float64 `yaml:"location,omitempty,flow"`
	Rotation *[4]float64 `yaml:"rotation,omitempty,flow"` // w, x, y, z
	Scale    *[3]float64 `yaml:"scale,omitempty,flow"`
}

// ModifierDoc describes a modifier stack entry.
type ModifierDoc struct {
	Name              string `yaml:"name"`
	Type              string `yaml:"type"`
	Object            string `yaml:"object,omitempty"`
	PreserveVolume    bool   `yaml:"preserve_volume,omitempty"`
	UseVertexGroups   *bool  `yaml:"use_vertex_groups,omitempty"`
	UseBoneEnvelopes  bool   `yaml:"use_bone_envelopes,omitempty"`
	VertexGroup       string `yaml:"vertex_group,omitempty"`
	InvertVertexGroup bool   `yaml:"invert_vertex_group,omitempty"`
	ShowViewport      *bool  `yaml:"show_viewport,omitempty"`
	ShowRender        *bool  `yaml:"show_render,omitempty"`
	ShowInEditmode    bool   `yaml:"show_in_editmode,omitempty"`
	ShowOnCage        bool   `yaml:"show_on_cage,omitempty"`
}

// Load reads a scene document from a YAML file.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse builds a scene from YAML document bytes.
func Parse(data []byte) (*Scene, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding scene: %w", err)
	}
	return FromDocument(&doc)
}

// FromDocument builds a scene from a decoded document.
func FromDocument(doc *Document) (*Scene, error) {
	s := New()
	meshes := make(map[string]*Mesh)

	for i := range doc.Objects {
		od := &doc.Objects[i]
		typ, err := ParseObjectType(od.Type)
		if err != nil {
			return nil, fmt.Errorf("object %q: %w", od.Name, err)
		}
		obj := &Object{Name: od.Name, Type: typ, Attributes: normalizeAttributes(od.Attributes)}

		switch typ {
		case ObjectMesh:
			if od.Mesh == nil {
				return nil, fmt.Errorf("object %q: missing mesh", od.Name)
			}
			if m, ok := meshes[od.Mesh.Name]; ok {
				obj.Data = m
				break
			}
			m, err := buildMesh(od.Mesh)
			if err != nil {
				return nil, fmt.Errorf("object %q: %w", od.Name, err)
			}
			meshes[m.Name] = m
			obj.Data = m
		case ObjectArmature:
			arm, err := buildArmature(od)
			if err != nil {
				return nil, fmt.Errorf("object %q: %w", od.Name, err)
			}
			obj.Armature = arm
		}

		if err := s.AddObject(obj); err != nil {
			return nil, err
		}
		if od.Selected {
			s.Select(obj, true)
		}
	}

	// Modifiers and drivers reference other objects by name.
	for i := range doc.Objects {
		od := &doc.Objects[i]
		obj := s.Object(od.Name)
		for _, md := range od.Modifiers {
			mod, err := buildModifier(s, md)
			if err != nil {
				return nil, fmt.Errorf("object %q: %w", od.Name, err)
			}
			obj.Modifiers = append(obj.Modifiers, mod)
		}
		if od.Mesh == nil || len(od.Mesh.Drivers) == 0 || obj.Data.Keys == nil || obj.Data.Keys.Drivers != nil {
			continue
		}
		obj.Data.Keys.Drivers = &DriverContainer{}
		for _, dd := range od.Mesh.Drivers {
			d, err := buildDriver(s, dd)
			if err != nil {
				return nil, fmt.Errorf("object %q: %w", od.Name, err)
			}
			obj.Data.Keys.Drivers.Drivers = append(obj.Data.Keys.Drivers.Drivers, d)
		}
	}

	if doc.TargetArmature != "" {
		s.TargetArmature = s.Object(doc.TargetArmature)
		if s.TargetArmature == nil {
			return nil, fmt.Errorf("target armature %q: %w", doc.TargetArmature, ErrObjectNotFound)
		}
	}
	if doc.Active != "" {
		active := s.Object(doc.Active)
		if active == nil {
			return nil, fmt.Errorf("active object %q: %w", doc.Active, ErrObjectNotFound)
		}
		s.SetActive(active)
	}
	mode, err := ParseMode(doc.Mode)
	if err != nil {
		return nil, err
	}
	if err := s.SetMode(mode); err != nil {
		return nil, err
	}
	return s, nil
}

func buildMesh(md *MeshDoc) (*Mesh, error) {
	m := &Mesh{Name: md.Name}
	for _, v := range md.Vertices {
		m.Vertices = append(m.Vertices, vec(v))
	}
	n := len(m.Vertices)
	for _, g := range md.VertexGroups {
		if len(g.Weights) > n {
			return nil, fmt.Errorf("vertex group %q: %d weights for %d vertices", g.Name, len(g.Weights), n)
		}
		weights := make([]float64, n)
		copy(weights, g.Weights)
		m.VertexGroups = append(m.VertexGroups, &VertexGroup{Name: g.Name, Weights: weights})
	}
	if len(md.ShapeKeys) == 0 {
		return m, nil
	}

	m.Keys = &Key{Name: md.KeyName}
	if m.Keys.Name == "" {
		m.Keys.Name = "Key_" + m.Name
	}
	for _, kd := range md.ShapeKeys {
		if len(kd.Deltas) != 0 && len(kd.Deltas) != n {
			return nil, fmt.Errorf("shape key %q: %d deltas for %d vertices", kd.Name, len(kd.Deltas), n)
		}
		interp, err := ParseInterpolation(kd.Interpolation)
		if err != nil {
			return nil, fmt.Errorf("shape key %q: %w", kd.Name, err)
		}
		block := newShapeKey(kd.Name, n)
		for i, d := range kd.Deltas {
			block.Deltas[i] = vec(d)
		}
		block.Value = kd.Value
		block.SliderMin = kd.SliderMin
		if kd.SliderMax != nil {
			block.SliderMax = *kd.SliderMax
		}
		block.Mute = kd.Mute
		block.Interpolation = interp
		block.RelativeKey = kd.RelativeKey
		block.VertexGroup = kd.VertexGroup
		block.Attributes = normalizeAttributes(kd.Attributes)
		m.Keys.Blocks = append(m.Keys.Blocks, block)
	}
	return m, nil
}

func buildArmature(od *ObjectDoc) (*Armature, error) {
	if od.Armature == nil {
		return nil, fmt.Errorf("missing armature")
	}
	arm := &Armature{Name: od.Armature.Name}
	if arm.Name == "" {
		arm.Name = od.Name
	}
	for _, bd := range od.Armature.Bones {
		rest := mgl64.Ident4()
		switch {
		case len(bd.Rest) == 16:
			copy(rest[:], bd.Rest)
		case len(bd.Rest) != 0:
			return nil, fmt.Errorf("bone %q: rest needs 16 values, got %d", bd.Name, len(bd.Rest))
		case bd.Head != nil:
			rest = mgl64.Translate3D(bd.Head[0], bd.Head[1], bd.Head[2])
		}
		b := NewBone(bd.Name, bd.Parent, rest)
		if bd.Location != nil {
			b.Location = mgl64.Vec3(*bd.Location)
		}
		if bd.Rotation != nil {
			r := bd.Rotation
			b.Rotation = mgl64.Quat{W: r[0], V: mgl64.Vec3{r[1], r[2], r[3]}}
		}
		if bd.Scale != nil {
			b.Scale = mgl64.Vec3(*bd.Scale)
		}
		arm.Bones = append(arm.Bones, b)
	}
	return arm, nil
}

func buildModifier(s *Scene, md ModifierDoc) (*Modifier, error) {
	kind, err := ParseModifierKind(md.Type)
	if err != nil {
		return nil, fmt.Errorf("modifier %q: %w", md.Name, err)
	}
	mod := NewModifier(md.Name, kind)
	if md.Object != "" {
		mod.Object = s.Object(md.Object)
		if mod.Object == nil {
			return nil, fmt.Errorf("modifier %q: object %q: %w", md.Name, md.Object, ErrObjectNotFound)
		}
	}
	mod.PreserveVolume = md.PreserveVolume
	mod.UseVertexGroups = boolOr(md.UseVertexGroups, true)
	mod.UseBoneEnvelopes = md.UseBoneEnvelopes
	mod.VertexGroup = md.VertexGroup
	mod.InvertVertexGroup = md.InvertVertexGroup
	mod.ShowViewport = boolOr(md.ShowViewport, true)
	mod.ShowRender = boolOr(md.ShowRender, true)
	mod.ShowInEditmode = md.ShowInEditmode
	mod.ShowOnCage = md.ShowOnCage
	return mod, nil
}

func buildDriver(s *Scene, dd DriverDoc) (*Driver, error) {
	d := &Driver{DataPath: dd.DataPath, Expression: dd.Expression}
	for _, k := range dd.Keyframes {
		d.Keyframes = append(d.Keyframes, Keyframe{X: k[0], Y: k[1]})
	}
	sort.SliceStable(d.Keyframes, func(i, j int) bool { return d.Keyframes[i].X < d.Keyframes[j].X })
	for _, vd := range dd.Variables {
		v := &DriverVariable{Name: vd.Name}
		for _, td := range vd.Targets {
			id, err := s.resolveID(td.IDType, td.ID)
			if err != nil {
				return nil, fmt.Errorf("driver %q variable %q: %w", dd.DataPath, vd.Name, err)
			}
			v.Targets = append(v.Targets, &DriverTarget{ID: id, DataPath: td.DataPath})
		}
		d.Variables = append(d.Variables, v)
	}
	return d, nil
}

func (s *Scene) resolveID(kind, name string) (ID, error) {
	switch kind {
	case "", "object":
		if o := s.Object(name); o != nil {
			return o, nil
		}
		return nil, fmt.Errorf("object %q: %w", name, ErrObjectNotFound)
	case "mesh":
		if m := s.Mesh(name); m != nil {
			return m, nil
		}
		return nil, fmt.Errorf("mesh %q: %w", name, ErrMeshNotFound)
	case "key":
		for _, m := range s.meshes {
			if m.Keys != nil && m.Keys.Name == name {
				return m.Keys, nil
			}
		}
		return nil, fmt.Errorf("shape-key container %q not found", name)
	default:
		return nil, fmt.Errorf("unknown id type %q", kind)
	}
}

// Document converts the scene back to its YAML form.
func (s *Scene) Document() *Document {
	doc := &Document{Mode: s.mode.String()}
	if s.TargetArmature != nil {
		doc.TargetArmature = s.TargetArmature.Name
	}
	if s.active != nil {
		doc.Active = s.active.Name
	}

	written := make(map[*Mesh]bool)
	for _, obj := range s.objects {
		od := ObjectDoc{
			Name:       obj.Name,
			Type:       obj.Type.String(),
			Selected:   s.selected[obj],
			Attributes: obj.Attributes,
		}
		if obj.Data != nil {
			if written[obj.Data] {
				od.Mesh = &MeshDoc{Name: obj.Data.Name}
			} else {
				od.Mesh = meshDoc(obj.Data)
				written[obj.Data] = true
			}
		}
		if obj.Armature != nil {
			od.Armature = armatureDoc(obj.Armature)
		}
		for _, m := range obj.Modifiers {
			od.Modifiers = append(od.Modifiers, modifierDoc(m))
		}
		doc.Objects = append(doc.Objects, od)
	}
	return doc
}

// Marshal encodes the scene as YAML.
func (s *Scene) Marshal() ([]byte, error) {
	return yaml.Marshal(s.Document())
}

// Save writes the scene as YAML to path.
func (s *Scene) Save(path string) error {
	data, err := s.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func meshDoc(m *Mesh) *MeshDoc {
	md := &MeshDoc{Name: m.Name}
	for _, v := range m.Vertices {
		md.Vertices = append(md.Vertices, arr(v))
	}
	for _, g := range m.VertexGroups {
		md.VertexGroups = append(md.VertexGroups, GroupDoc{Name: g.Name, Weights: g.Weights})
	}
	if m.Keys == nil {
		return md
	}
	md.KeyName = m.Keys.Name
	for _, b := range m.Keys.Blocks {
		sliderMax := b.SliderMax
		kd := ShapeKeyDoc{
			Name:          b.Name,
			Value:         b.Value,
			SliderMin:     b.SliderMin,
			SliderMax:     &sliderMax,
			Mute:          b.Mute,
			Interpolation: b.Interpolation.String(),
			RelativeKey:   b.RelativeKey,
			VertexGroup:   b.VertexGroup,
			Attributes:    b.Attributes,
		}
		if !zeroDeltas(b.Deltas) {
			for _, d := range b.Deltas {
				kd.Deltas = append(kd.Deltas, arr(d))
			}
		}
		md.ShapeKeys = append(md.ShapeKeys, kd)
	}
	if m.Keys.Drivers != nil {
		for _, d := range m.Keys.Drivers.Drivers {
			md.Drivers = append(md.Drivers, driverDoc(d))
		}
	}
	return md
}

func driverDoc(d *Driver) DriverDoc {
	dd := DriverDoc{DataPath: d.DataPath, Expression: d.Expression}
	for _, k := range d.Keyframes {
		dd.Keyframes = append(dd.Keyframes, [2]float64{k.X, k.Y})
	}
	for _, v := range d.Variables {
		vd := VariableDoc{Name: v.Name}
		for _, t := range v.Targets {
			td := TargetDoc{DataPath: t.DataPath}
			if t.ID != nil {
				td.IDType = t.ID.IDKind().String()
				td.ID = t.ID.IDName()
			}
			vd.Targets = append(vd.Targets, td)
		}
		dd.Variables = append(dd.Variables, vd)
	}
	return dd
}

func armatureDoc(a *Armature) *ArmatureDoc {
	ad := &ArmatureDoc{Name: a.Name}
	for _, b := range a.Bones {
		bd := BoneDoc{Name: b.Name, Parent: b.Parent, Rest: append([]float64(nil), b.Rest[:]...)}
		if b.IsPosed() {
			loc := [3]float64(b.Location)
			rot := [4]float64{b.Rotation.W, b.Rotation.V[0], b.Rotation.V[1], b.Rotation.V[2]}
			scale := [3]float64(b.Scale)
			bd.Location, bd.Rotation, bd.Scale = &loc, &rot, &scale
		}
		ad.Bones = append(ad.Bones, bd)
	}
	return ad
}

func modifierDoc(m *Modifier) ModifierDoc {
	useGroups, viewport, render := m.UseVertexGroups, m.ShowViewport, m.ShowRender
	md := ModifierDoc{
		Name:              m.Name,
		Type:              m.Kind.String(),
		PreserveVolume:    m.PreserveVolume,
		UseVertexGroups:   &useGroups,
		UseBoneEnvelopes:  m.UseBoneEnvelopes,
		VertexGroup:       m.VertexGroup,
		InvertVertexGroup: m.InvertVertexGroup,
		ShowViewport:      &viewport,
		ShowRender:        &render,
		ShowInEditmode:    m.ShowInEditmode,
		ShowOnCage:        m.ShowOnCage,
	}
	if m.Object != nil {
		md.Object = m.Object.Name
	}
	return md
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func vec(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }

func arr(v r3.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func zeroDeltas(ds []r3.Vec) bool {
	for _, d := range ds {
		if d != (r3.Vec{}) {
			return false
		}
	}
	return true
}

// normalizeAttributes converts decoded YAML sequences of numbers to []float64
// so they match the attribute types the scene accepts.
func normalizeAttributes(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if seq, ok := v.([]any); ok {
			fs := make([]float64, 0, len(seq))
			numeric := true
			for _, e := range seq {
				switch n := e.(type) {
				case int:
					fs = append(fs, float64(n))
				case float64:
					fs = append(fs, n)
				default:
					numeric = false
				}
			}
			if numeric {
				out[k] = fs
				continue
			}
		}
		out[k] = v
	}
	return out
}
