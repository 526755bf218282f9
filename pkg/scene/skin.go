package scene

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// ApplyModifier evaluates the named modifier of sel.Active into its base
// geometry and removes it from the stack. Only armature modifiers can be
// evaluated; meshes with shape keys or shared mesh data are refused.
func (s *Scene) ApplyModifier(sel Selection, name string) error {
	obj := sel.Active
	if obj == nil {
		return ErrNoActiveObject
	}
	if obj.Type != ObjectMesh || obj.Data == nil {
		return fmt.Errorf("apply %q on %q: %w", name, obj.Name, ErrNotMesh)
	}
	restore := s.claim(sel)
	defer restore()

	mod, _ := obj.Modifier(name)
	if mod == nil {
		return fmt.Errorf("apply %q on %q: %w", name, obj.Name, ErrModifierNotFound)
	}
	if obj.HasShapeKeys() {
		return fmt.Errorf("%w: %q on %q: mesh has shape keys", ErrModifierNotApplied, name, obj.Name)
	}
	if s.MeshUsers(obj.Data) > 1 {
		return fmt.Errorf("%w: %q on %q: mesh data has multiple users", ErrModifierNotApplied, name, obj.Name)
	}
	if mod.Kind != ModifierArmature {
		return fmt.Errorf("%w: %q on %q: %s modifiers are not evaluable", ErrModifierNotApplied, name, obj.Name, mod.Kind)
	}
	if mod.Object == nil || mod.Object.Armature == nil {
		return fmt.Errorf("%w: %q on %q: no armature bound", ErrModifierNotApplied, name, obj.Name)
	}

	deformed, err := Skin(obj.Data, mod)
	if err != nil {
		return fmt.Errorf("%w: %q on %q: %v", ErrModifierNotApplied, name, obj.Name, err)
	}
	obj.Data.Vertices = deformed
	return s.RemoveModifier(obj, name)
}

// Skin returns the mesh's base vertices deformed by an armature modifier using
// linear blend skinning. Bone influence comes from vertex groups named after
// bones; the modifier's mask group scales the result per vertex.
// Envelope weights and volume preservation are not evaluated.
func Skin(mesh *Mesh, mod *Modifier) ([]r3.Vec, error) {
	arm := mod.Object.Armature
	skin, err := arm.SkinMatrices()
	if err != nil {
		return nil, err
	}

	type influence struct {
		bone  string
		group *VertexGroup
	}
	var influences []influence
	if mod.UseVertexGroups {
		for _, b := range arm.Bones {
			if g := mesh.VertexGroup(b.Name); g != nil {
				influences = append(influences, influence{bone: b.Name, group: g})
			}
		}
	}

	var mask *VertexGroup
	if mod.VertexGroup != "" {
		mask = mesh.VertexGroup(mod.VertexGroup)
	}

	out := make([]r3.Vec, len(mesh.Vertices))
	for i, p := range mesh.Vertices {
		var sum r3.Vec
		total := 0.0
		for _, inf := range influences {
			w := inf.group.Weight(i)
			if w <= 0 {
				continue
			}
			sum = r3.Add(sum, r3.Scale(w, transformPoint(skin[inf.bone], p)))
			total += w
		}
		if total == 0 {
			out[i] = p
			continue
		}
		deformed := r3.Scale(1/total, sum)

		factor := 1.0
		if mask != nil {
			factor = mask.Weight(i)
			if mod.InvertVertexGroup {
				factor = 1 - factor
			}
		}
		out[i] = r3.Add(p, r3.Scale(factor, r3.Sub(deformed, p)))
	}
	return out, nil
}
