// Package bake re-bakes an armature's current pose into skinned meshes while
// keeping their shape keys, shape-key metadata and drivers.
package bake

import "github.com/Faultbox/posetorest/pkg/scene"

// Host is the scene runtime the pipeline drives. Primitives that act on "the
// active object" take an explicit selection and restore the previous one.
type Host interface {
	// Lifecycle.
	DuplicateObject(obj *scene.Object, suffix string) (*scene.Object, error)
	RemoveObject(obj *scene.Object) error
	RemoveMesh(m *scene.Mesh) error
	RenameMesh(m *scene.Mesh, name string) error
	UniqueMeshName(base string) string
	AssignMesh(obj *scene.Object, m *scene.Mesh) error
	MeshUsers(m *scene.Mesh) int
	Objects() []*scene.Object
	Object(name string) *scene.Object

	// Shape keys.
	RemoveShapeKeysExcept(obj *scene.Object, keep int) error
	RemoveShapeKey(obj *scene.Object, index int) error
	AddShapeKey(obj *scene.Object, name string) (*scene.ShapeKey, error)
	RenameShapeKey(obj *scene.Object, index int, name string) error
	JoinAsShapeKeys(sel scene.Selection) error
	SetShapeKeyAttribute(block *scene.ShapeKey, name string, value any) error

	// Modifiers.
	ApplyModifier(sel scene.Selection, name string) error
	AddModifier(obj *scene.Object, name string, kind scene.ModifierKind) (*scene.Modifier, error)
	RemoveModifier(obj *scene.Object, name string) error
	MoveModifierUp(sel scene.Selection, name string) error

	// Drivers.
	ClearDrivers(obj *scene.Object) error
	CreateDriverContainer(obj *scene.Object) (*scene.DriverContainer, error)
	CopyDriver(obj *scene.Object, src *scene.Driver) (*scene.Driver, error)

	// Armature.
	CommitRestPose(sel scene.Selection) error

	// Interaction state.
	Mode() scene.Mode
	SetMode(mode scene.Mode) error
	Active() *scene.Object
	SetActive(obj *scene.Object)
	Select(obj *scene.Object, selected bool)
	DeselectAll()
	Selected() []*scene.Object
	Target() *scene.Object
}

var _ Host = (*scene.Scene)(nil)

// only returns a selection holding obj alone, in object mode.
func only(obj *scene.Object) scene.Selection {
	return scene.Selection{Active: obj, Selected: []*scene.Object{obj}, Mode: scene.ModeObject}
}
