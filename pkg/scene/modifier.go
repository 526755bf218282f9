package scene

import (
	"fmt"
	"strings"
)

// ModifierKind identifies a modifier stack entry type.
type ModifierKind int

const (
	ModifierArmature ModifierKind = iota
	ModifierMeshDeform
	ModifierLattice
	ModifierCloth
	ModifierSoftBody
	ModifierMeshCache
	ModifierSurfaceDeform
	ModifierVolumeDeform
	ModifierNodes
	ModifierDisplace
	ModifierWave
	ModifierShrinkwrap
	ModifierSimpleDeform
	ModifierDecimate
	ModifierWeld
	ModifierSubdivision
	ModifierMirror
	ModifierTriangulate
	ModifierRemesh
	ModifierSmooth
	ModifierCorrectiveSmooth
	ModifierDataTransfer
)

var modifierKindNames = map[ModifierKind]string{
	ModifierArmature:         "ARMATURE",
	ModifierMeshDeform:       "MESH_DEFORM",
	ModifierLattice:          "LATTICE",
	ModifierCloth:            "CLOTH",
	ModifierSoftBody:         "SOFT_BODY",
	ModifierMeshCache:        "MESH_CACHE",
	ModifierSurfaceDeform:    "SURFACE_DEFORM",
	ModifierVolumeDeform:     "VOLUME_DEFORM",
	ModifierNodes:            "NODES",
	ModifierDisplace:         "DISPLACE",
	ModifierWave:             "WAVE",
	ModifierShrinkwrap:       "SHRINKWRAP",
	ModifierSimpleDeform:     "SIMPLE_DEFORM",
	ModifierDecimate:         "DECIMATE",
	ModifierWeld:             "WELD",
	ModifierSubdivision:      "SUBSURF",
	ModifierMirror:           "MIRROR",
	ModifierTriangulate:      "TRIANGULATE",
	ModifierRemesh:           "REMESH",
	ModifierSmooth:           "SMOOTH",
	ModifierCorrectiveSmooth: "CORRECTIVE_SMOOTH",
	ModifierDataTransfer:     "DATA_TRANSFER",
}

// String returns the modifier type name.
func (k ModifierKind) String() string {
	if name, ok := modifierKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(k))
}

// ParseModifierKind parses a modifier type name (case-insensitive).
func ParseModifierKind(s string) (ModifierKind, error) {
	for kind, name := range modifierKindNames {
		if strings.EqualFold(name, s) {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown modifier type %q", s)
}

// ShapeAltering reports whether the kind deforms vertex positions in a way that
// must not run before the armature modifier.
func (k ModifierKind) ShapeAltering() bool {
	switch k {
	case ModifierMeshDeform, ModifierLattice, ModifierCloth, ModifierSoftBody,
		ModifierMeshCache, ModifierSurfaceDeform, ModifierVolumeDeform, ModifierNodes,
		ModifierDisplace, ModifierWave, ModifierShrinkwrap, ModifierSimpleDeform:
		return true
	case ModifierArmature, ModifierDecimate, ModifierWeld, ModifierSubdivision,
		ModifierMirror, ModifierTriangulate, ModifierRemesh, ModifierSmooth,
		ModifierCorrectiveSmooth, ModifierDataTransfer:
		return false
	default:
		return false
	}
}

// ChangesTopology reports whether the kind adds or removes vertices.
func (k ModifierKind) ChangesTopology() bool {
	switch k {
	case ModifierDecimate, ModifierWeld, ModifierSubdivision, ModifierMirror,
		ModifierTriangulate, ModifierRemesh:
		return true
	default:
		return false
	}
}

// Modifier is one entry of an object's modifier stack.
type Modifier struct {
	Name   string
	Kind   ModifierKind
	Object *Object // bound armature for ModifierArmature

	PreserveVolume    bool
	UseVertexGroups   bool
	UseBoneEnvelopes  bool
	VertexGroup       string
	InvertVertexGroup bool

	ShowViewport   bool
	ShowRender     bool
	ShowInEditmode bool
	ShowOnCage     bool
}

// NewModifier returns a modifier with the host's default settings.
func NewModifier(name string, kind ModifierKind) *Modifier {
	return &Modifier{
		Name:            name,
		Kind:            kind,
		UseVertexGroups: true,
		ShowViewport:    true,
		ShowRender:      true,
	}
}

// Binds reports whether the modifier is an armature modifier bound to armature.
func (m *Modifier) Binds(armature *Object) bool {
	return m.Kind == ModifierArmature && armature != nil && m.Object == armature
}
