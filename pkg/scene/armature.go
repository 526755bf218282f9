package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/spatial/r3"
)

// Armature is a hierarchical joint rig with a rest pose and a current pose.
type Armature struct {
	Name  string
	Bones []*Bone
}

// Bone is one joint. Rest is the bind transform in armature space; the pose
// channels are local to the rest transform.
type Bone struct {
	Name     string
	Parent   string
	Rest     mgl64.Mat4
	Location mgl64.Vec3
	Rotation mgl64.Quat
	Scale    mgl64.Vec3
}

// NewBone returns a bone at rest with an identity pose.
func NewBone(name, parent string, rest mgl64.Mat4) *Bone {
	return &Bone{
		Name:     name,
		Parent:   parent,
		Rest:     rest,
		Rotation: mgl64.QuatIdent(),
		Scale:    mgl64.Vec3{1, 1, 1},
	}
}

// Bone returns the bone with the given name, or nil.
func (a *Armature) Bone(name string) *Bone {
	for _, b := range a.Bones {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// LocalPose returns the bone's pose channels as a matrix: T * R * S.
func (b *Bone) LocalPose() mgl64.Mat4 {
	t := mgl64.Translate3D(b.Location[0], b.Location[1], b.Location[2])
	r := b.Rotation.Normalize().Mat4()
	s := mgl64.Scale3D(b.Scale[0], b.Scale[1], b.Scale[2])
	return t.Mul4(r).Mul4(s)
}

// IsPosed reports whether any pose channel differs from identity.
func (b *Bone) IsPosed() bool {
	const eps = 1e-9
	return !b.LocalPose().ApproxEqualThreshold(mgl64.Ident4(), eps)
}

// ResetPose clears the pose channels.
func (b *Bone) ResetPose() {
	b.Location = mgl64.Vec3{}
	b.Rotation = mgl64.QuatIdent()
	b.Scale = mgl64.Vec3{1, 1, 1}
}

// PoseMatrices returns every bone's posed transform in armature space, keyed by
// bone name.
func (a *Armature) PoseMatrices() (map[string]mgl64.Mat4, error) {
	out := make(map[string]mgl64.Mat4, len(a.Bones))
	for _, b := range a.Bones {
		if _, err := a.poseMatrix(b, out, make(map[string]bool)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (a *Armature) poseMatrix(b *Bone, done map[string]mgl64.Mat4, visiting map[string]bool) (mgl64.Mat4, error) {
	if m, ok := done[b.Name]; ok {
		return m, nil
	}
	if visiting[b.Name] {
		return mgl64.Mat4{}, fmt.Errorf("bone %q: parent cycle", b.Name)
	}
	visiting[b.Name] = true

	m := b.Rest.Mul4(b.LocalPose())
	if b.Parent != "" {
		parent := a.Bone(b.Parent)
		if parent == nil {
			return mgl64.Mat4{}, fmt.Errorf("bone %q: parent %q not found", b.Name, b.Parent)
		}
		parentPose, err := a.poseMatrix(parent, done, visiting)
		if err != nil {
			return mgl64.Mat4{}, err
		}
		// Rest offset from the parent, then the parent's posed frame.
		offset := parent.Rest.Inv().Mul4(b.Rest)
		m = parentPose.Mul4(offset).Mul4(b.LocalPose())
	}
	done[b.Name] = m
	return m, nil
}

// SkinMatrices returns pose * rest^-1 per bone: the transform that carries a
// rest-space vertex into the current pose.
func (a *Armature) SkinMatrices() (map[string]mgl64.Mat4, error) {
	poses, err := a.PoseMatrices()
	if err != nil {
		return nil, err
	}
	out := make(map[string]mgl64.Mat4, len(poses))
	for _, b := range a.Bones {
		out[b.Name] = poses[b.Name].Mul4(b.Rest.Inv())
	}
	return out, nil
}

func transformPoint(m mgl64.Mat4, p r3.Vec) r3.Vec {
	v := m.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}
