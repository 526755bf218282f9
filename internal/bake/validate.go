package bake

import (
	"github.com/Faultbox/posetorest/internal/logger"
	"github.com/Faultbox/posetorest/pkg/scene"
	"go.uber.org/zap"
)

// Validation is the outcome of a successful compatibility check.
type Validation struct {
	// Affected are the meshes bound to the armature exactly once, in scene order.
	Affected []*scene.Object
	// TopologyWarnings names affected meshes whose stack holds a modifier that
	// changes vertex count.
	TopologyWarnings []string
}

// Validate checks every mesh in objects against armature before anything is
// mutated. Meshes without a binding are skipped. A mesh bound more than once
// fails with MultipleDeformersError; deforming or topology-changing modifiers
// ahead of the armature modifier fail the whole set with DeformerOrderError.
// An empty result returns ErrNoAffectedMeshes.
func Validate(armature *scene.Object, objects []*scene.Object) (*Validation, error) {
	v := &Validation{}
	var misordered []string

	for _, obj := range objects {
		if obj.Type != scene.ObjectMesh {
			continue
		}
		index, count := -1, 0
		for i, m := range obj.Modifiers {
			if m.Binds(armature) {
				count++
				if index < 0 {
					index = i
				}
			}
		}
		switch {
		case count == 0:
			continue
		case count > 1:
			return nil, &MultipleDeformersError{Mesh: obj.Name, Count: count}
		}

		for _, m := range obj.Modifiers[:index] {
			if m.Kind.ShapeAltering() || m.Kind.ChangesTopology() {
				misordered = append(misordered, obj.Name)
				break
			}
		}
		for _, m := range obj.Modifiers {
			if m.Kind.ChangesTopology() {
				v.TopologyWarnings = append(v.TopologyWarnings, obj.Name)
				logger.Warn("modifier changes vertex count",
					zap.String("object", obj.Name),
					zap.String("modifier", m.Name),
					zap.Stringer("type", m.Kind))
				break
			}
		}
		v.Affected = append(v.Affected, obj)
	}

	if len(misordered) > 0 {
		return nil, &DeformerOrderError{Meshes: misordered}
	}
	if len(v.Affected) == 0 {
		return v, ErrNoAffectedMeshes
	}
	return v, nil
}
