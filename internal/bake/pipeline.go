package bake

import (
	"errors"
	"fmt"

	"github.com/Faultbox/posetorest/internal/logger"
	"github.com/Faultbox/posetorest/pkg/scene"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// Pipeline bakes an armature's pose into one mesh at a time, rebuilding every
// shape key from its own deformed copy.
type Pipeline struct {
	host    Host
	proxies *Proxies
}

// NewPipeline creates a pipeline on host.
func NewPipeline(host Host) *Pipeline {
	return &Pipeline{host: host, proxies: NewProxies(host)}
}

// Bake replaces obj's geometry and shape keys with their posed versions and
// removes its armature modifier bound to armature. On error obj is left as it
// was and every proxy is gone.
//
// With hold set the replaced mesh data is kept until Commit.Finalize so the
// bake can still be undone with Commit.Rollback; otherwise it is deleted
// before Bake returns.
func (p *Pipeline) Bake(obj, armature *scene.Object, hold bool) (_ *Commit, err error) {
	t := NewTracker(obj.Name)
	defer func() {
		if err != nil {
			t.Fail(err)
		}
	}()

	if err := t.Enter(StageValidating, 0); err != nil {
		return nil, err
	}
	if obj.Type != scene.ObjectMesh || obj.Data == nil {
		return nil, &DeformerApplyError{Object: obj.Name, Err: scene.ErrNotMesh}
	}
	if !obj.HasShapeKeys() {
		logger.Info("no shape keys, applying armature modifier directly", zap.String("object", obj.Name))
		return p.bakeInPlace(obj, armature, t, hold)
	}

	blocks := obj.ShapeKeys()
	names := make([]string, len(blocks))
	for i, b := range blocks {
		names[i] = b.Name
	}
	meta, snapErr := SnapshotMetadata(obj)
	if snapErr != nil {
		for _, e := range multierr.Errors(snapErr) {
			logger.Warn("could not record shape key metadata", zap.String("object", obj.Name), zap.Error(e))
		}
	}
	logger.Info("processing shape keys", zap.String("object", obj.Name), zap.Int("count", len(names)))

	if err := t.Enter(StageIsolatingBasis, 0); err != nil {
		return nil, err
	}
	receiver, err := p.isolate(obj, armature, 0, "shapekey_receiver")
	if err != nil {
		return nil, err
	}
	defer func() {
		if receiver != nil {
			p.proxies.Destroy(receiver)
		}
	}()

	for k := 1; k < len(names); k++ {
		if err := t.Enter(StageIsolatingKey, k); err != nil {
			return nil, err
		}
		if err := p.transfer(t, obj, receiver, armature, k, names); err != nil {
			return nil, err
		}
		logger.Debug("transferred shape key", zap.String("object", obj.Name), zap.String("key", names[k]))
	}

	if len(names) == 1 {
		if _, err := p.host.AddShapeKey(receiver, names[0]); err != nil {
			return nil, fmt.Errorf("%w: recreate basis of %q: %v", ErrTransfer, obj.Name, err)
		}
	}

	if err := t.Enter(StageCommitting, 0); err != nil {
		return nil, err
	}
	mesh := receiver.Data
	if err := p.host.RemoveObject(receiver); err != nil {
		return nil, fmt.Errorf("detach receiver of %q: %w", obj.Name, err)
	}
	receiver = nil

	c, err := p.commit(obj, mesh, armature, meta, hold)
	if err != nil {
		return nil, err
	}
	c.Warnings = multierr.Combine(snapErr, c.Warnings)
	if err := t.Enter(StageDone, 0); err != nil {
		return nil, err
	}
	logger.Info("completed", zap.String("object", obj.Name), zap.Int("shape_keys", len(names)-1))
	return c, nil
}

// isolate returns a proxy of obj holding shape key index baked under the
// armature, with no shape keys left.
func (p *Pipeline) isolate(obj, armature *scene.Object, index int, tag string) (*scene.Object, error) {
	proxy, err := p.proxies.Duplicate(obj, tag)
	if err != nil {
		return nil, err
	}
	if err := p.proxies.CollapseToShapeKey(proxy, index); err != nil {
		p.proxies.Destroy(proxy)
		return nil, err
	}
	if err := p.proxies.BakeDeformer(proxy, armature); err != nil {
		p.proxies.Destroy(proxy)
		return nil, err
	}
	return proxy, nil
}

// transfer bakes shape key k on its own donor and joins it into receiver
// under its original name.
func (p *Pipeline) transfer(t *Tracker, obj, receiver, armature *scene.Object, k int, names []string) error {
	donor, err := p.isolate(obj, armature, k, fmt.Sprintf("shapekey_%d", k))
	if err != nil {
		return err
	}
	defer p.proxies.Destroy(donor)

	if rc, dc := VertexCount(receiver), VertexCount(donor); rc != dc {
		return &VertexCountMismatchError{Mesh: obj.Name, Key: names[k], Index: k, Receiver: rc, Donor: dc}
	}

	if err := t.Enter(StageTransferring, k); err != nil {
		return err
	}
	sel := scene.Selection{Active: receiver, Selected: []*scene.Object{donor, receiver}, Mode: scene.ModeObject}
	if err := p.host.JoinAsShapeKeys(sel); err != nil {
		return fmt.Errorf("%w: join %q into %q: %v", ErrTransfer, names[k], obj.Name, err)
	}
	// Counts exclude the basis.
	if n := len(receiver.ShapeKeys()); n != k+1 {
		return &TransferVerificationError{Mesh: obj.Name, Key: names[k], Expected: k, Actual: max(n-1, 0)}
	}

	if k == 1 {
		if err := p.host.RenameShapeKey(receiver, 0, names[0]); err != nil {
			return fmt.Errorf("%w: rename basis of %q: %v", ErrTransfer, obj.Name, err)
		}
	}
	if err := p.host.RenameShapeKey(receiver, k, names[k]); err != nil {
		return fmt.Errorf("%w: rename %q of %q: %v", ErrTransfer, names[k], obj.Name, err)
	}
	return nil
}

// commit swaps the baked mesh into obj. Any failure is rolled back before it
// is returned.
func (p *Pipeline) commit(obj *scene.Object, baked *scene.Mesh, armature *scene.Object, meta *MetadataSnapshot, hold bool) (*Commit, error) {
	c := &Commit{
		Object:   obj,
		host:     p.host,
		original: obj.Data,
		name:     obj.Data.Name,
		baked:    baked,
	}
	fail := func(err error) (*Commit, error) {
		if rerr := c.Rollback(); rerr != nil {
			logger.Error("rollback failed", zap.String("object", obj.Name), zap.Error(rerr))
		}
		return nil, err
	}

	if err := c.removeBindings(armature); err != nil {
		return fail(err)
	}
	if err := p.host.AssignMesh(obj, baked); err != nil {
		return fail(fmt.Errorf("replace mesh of %q: %w", obj.Name, err))
	}
	c.swapped = true
	// Data still used by other objects keeps its name; the baked copy takes
	// the next free one instead.
	name := c.name
	if p.host.MeshUsers(c.original) > 0 {
		name = p.host.UniqueMeshName(c.name)
	} else {
		c.aside = p.host.UniqueMeshName(c.name + "_prebake")
		if err := p.host.RenameMesh(c.original, c.aside); err != nil {
			return fail(fmt.Errorf("rename mesh %q: %w", c.name, err))
		}
	}
	if err := p.host.RenameMesh(baked, name); err != nil {
		return fail(fmt.Errorf("rename mesh %q: %w", baked.Name, err))
	}
	if baked.Keys != nil && c.original.Keys != nil {
		baked.Keys.Name = c.original.Keys.Name
	}

	if err := RestoreMetadata(p.host, obj, meta); err != nil {
		c.Warnings = multierr.Append(c.Warnings, err)
		for _, e := range multierr.Errors(err) {
			logger.Warn("could not restore shape key metadata", zap.String("object", obj.Name), zap.Error(e))
		}
	}

	if !hold {
		if err := c.Finalize(); err != nil {
			logger.Warn("could not remove original mesh data", zap.String("object", obj.Name), zap.Error(err))
		}
	}
	return c, nil
}

// bakeInPlace applies the armature modifier straight to a mesh without shape
// keys.
func (p *Pipeline) bakeInPlace(obj, armature *scene.Object, t *Tracker, hold bool) (*Commit, error) {
	if err := t.Enter(StageCommitting, 0); err != nil {
		return nil, err
	}
	c := &Commit{
		Object:   obj,
		host:     p.host,
		vertices: append([]r3.Vec(nil), obj.Data.Vertices...),
		inPlace:  true,
	}
	for i, m := range obj.Modifiers {
		if m.Binds(armature) {
			c.removed = append(c.removed, removedModifier{mod: m, index: i})
			break
		}
	}
	if err := p.proxies.BakeDeformer(obj, armature); err != nil {
		return nil, err
	}
	if err := t.Enter(StageDone, 0); err != nil {
		return nil, err
	}
	if !hold {
		_ = c.Finalize()
	}
	return c, nil
}

type removedModifier struct {
	mod   *scene.Modifier
	index int
}

// Commit is a baked mesh that can still be undone until it is finalized.
type Commit struct {
	Object *scene.Object
	// Warnings holds metadata restore failures.
	Warnings error

	host     Host
	original *scene.Mesh
	name     string
	aside    string
	baked    *scene.Mesh
	swapped  bool
	inPlace  bool
	vertices []r3.Vec
	removed  []removedModifier // descending index order
	final    bool
}

// ErrFinalized is returned when rolling back a finalized commit.
var ErrFinalized = errors.New("commit already finalized")

func (c *Commit) removeBindings(armature *scene.Object) error {
	obj := c.Object
	for i := len(obj.Modifiers) - 1; i >= 0; i-- {
		m := obj.Modifiers[i]
		if !m.Binds(armature) {
			continue
		}
		if err := c.host.RemoveModifier(obj, m.Name); err != nil {
			return fmt.Errorf("remove modifier %q from %q: %w", m.Name, obj.Name, err)
		}
		c.removed = append(c.removed, removedModifier{mod: m, index: i})
		logger.Debug("removed armature modifier", zap.String("object", obj.Name), zap.String("modifier", m.Name))
	}
	return nil
}

// Finalize deletes the replaced mesh data. The commit can no longer be
// rolled back.
func (c *Commit) Finalize() error {
	if c.final {
		return nil
	}
	c.final = true
	if c.inPlace || !c.swapped || c.original == nil {
		return nil
	}
	if c.host.MeshUsers(c.original) > 0 {
		return nil
	}
	return c.host.RemoveMesh(c.original)
}

// Rollback restores the object's mesh data and armature modifiers as they
// were before the bake.
func (c *Commit) Rollback() error {
	if c.final {
		return ErrFinalized
	}
	c.final = true
	obj := c.Object
	var errs error

	switch {
	case c.inPlace:
		obj.Data.Vertices = c.vertices
	case c.swapped:
		if err := c.host.AssignMesh(obj, c.original); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		if c.host.MeshUsers(c.baked) == 0 {
			errs = multierr.Append(errs, c.host.RemoveMesh(c.baked))
		}
		if c.aside != "" {
			errs = multierr.Append(errs, c.host.RenameMesh(c.original, c.name))
		}
	case c.baked != nil:
		if c.host.MeshUsers(c.baked) == 0 {
			errs = multierr.Append(errs, c.host.RemoveMesh(c.baked))
		}
	}

	for i := len(c.removed) - 1; i >= 0; i-- {
		r := c.removed[i]
		if m, _ := obj.Modifier(r.mod.Name); m == r.mod {
			continue
		}
		insertModifier(obj, r.mod, r.index)
	}
	return errs
}

func insertModifier(obj *scene.Object, mod *scene.Modifier, index int) {
	if index > len(obj.Modifiers) {
		index = len(obj.Modifiers)
	}
	obj.Modifiers = append(obj.Modifiers, nil)
	copy(obj.Modifiers[index+1:], obj.Modifiers[index:])
	obj.Modifiers[index] = mod
}
