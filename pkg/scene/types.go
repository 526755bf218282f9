// Package scene provides an in-memory 3D scene of skinned meshes and armatures,
// along with the host primitives the pose-to-rest pipeline drives.
package scene

import (
	"errors"
	"fmt"
	"strings"
)

// Scene errors.
var (
	ErrObjectNotFound     = errors.New("object not found")
	ErrMeshNotFound       = errors.New("mesh not found")
	ErrModifierNotFound   = errors.New("modifier not found")
	ErrNameInUse          = errors.New("name already in use")
	ErrNotMesh            = errors.New("object is not a mesh")
	ErrNotArmature        = errors.New("object is not an armature")
	ErrNoShapeKeys        = errors.New("mesh has no shape keys")
	ErrShapeKeyIndex      = errors.New("shape key index out of range")
	ErrNoActiveObject     = errors.New("no active object")
	ErrWrongMode          = errors.New("operation not allowed in current mode")
	ErrModifierNotApplied = errors.New("modifier cannot be applied")
	ErrMeshInUse          = errors.New("mesh data still has users")
	ErrNoDriverContainer  = errors.New("shape keys have no driver container")
	ErrReservedAttribute  = errors.New("reserved attribute name")
	ErrAttributeType      = errors.New("unsupported attribute value type")
)

// ObjectType discriminates scene objects.
type ObjectType int

const (
	ObjectMesh ObjectType = iota
	ObjectArmature
)

// String returns the lowercase type name used in scene documents.
func (t ObjectType) String() string {
	switch t {
	case ObjectMesh:
		return "mesh"
	case ObjectArmature:
		return "armature"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// ParseObjectType parses a type name from a scene document.
func ParseObjectType(s string) (ObjectType, error) {
	switch strings.ToLower(s) {
	case "mesh":
		return ObjectMesh, nil
	case "armature":
		return ObjectArmature, nil
	default:
		return 0, fmt.Errorf("unknown object type %q", s)
	}
}

// Mode is the interaction mode of the scene.
type Mode int

const (
	ModeObject Mode = iota
	ModePose
	ModeEdit
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeObject:
		return "object"
	case ModePose:
		return "pose"
	case ModeEdit:
		return "edit"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseMode parses a mode name. An empty string is object mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "object":
		return ModeObject, nil
	case "pose":
		return ModePose, nil
	case "edit":
		return ModeEdit, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

// Interpolation is the blending curve of a shape key.
type Interpolation int

const (
	InterpolationLinear Interpolation = iota
	InterpolationCardinal
	InterpolationCatmullRom
	InterpolationBSpline
)

var interpolationNames = [...]string{"linear", "cardinal", "catmull_rom", "bspline"}

// String returns the interpolation name.
func (i Interpolation) String() string {
	if i < 0 || int(i) >= len(interpolationNames) {
		return fmt.Sprintf("unknown(%d)", int(i))
	}
	return interpolationNames[i]
}

// ParseInterpolation parses an interpolation name. An empty string is linear.
func ParseInterpolation(s string) (Interpolation, error) {
	if s == "" {
		return InterpolationLinear, nil
	}
	for i, name := range interpolationNames {
		if strings.EqualFold(name, s) {
			return Interpolation(i), nil
		}
	}
	return 0, fmt.Errorf("unknown interpolation %q", s)
}

// IDKind discriminates datablocks that drivers can reference.
type IDKind int

const (
	IDObject IDKind = iota
	IDMesh
	IDKey
)

// String returns the kind name used in scene documents.
func (k IDKind) String() string {
	switch k {
	case IDObject:
		return "object"
	case IDMesh:
		return "mesh"
	case IDKey:
		return "key"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ID is a datablock with identity: an object, a mesh or a shape-key container.
type ID interface {
	IDName() string
	IDKind() IDKind
}
