package bake

import (
	"fmt"

	"github.com/Faultbox/posetorest/internal/logger"
	"github.com/Faultbox/posetorest/pkg/scene"
	"go.uber.org/zap"
)

// Proxies creates and destroys the single-geometry copies the pipeline bakes.
type Proxies struct {
	host Host
}

// NewProxies creates a proxy service on host.
func NewProxies(host Host) *Proxies {
	return &Proxies{host: host}
}

// Duplicate copies obj into "<obj>_<tag>" with its own mesh data.
func (p *Proxies) Duplicate(obj *scene.Object, tag string) (*scene.Object, error) {
	proxy, err := p.host.DuplicateObject(obj, tag)
	if err != nil {
		return nil, fmt.Errorf("duplicate %q: %w", obj.Name, err)
	}
	logger.Debug("proxy created", zap.String("object", obj.Name), zap.String("proxy", proxy.Name))
	return proxy, nil
}

// CollapseToShapeKey bakes shape key index into proxy's base geometry and
// removes every shape key.
func (p *Proxies) CollapseToShapeKey(proxy *scene.Object, index int) error {
	if !proxy.HasShapeKeys() {
		return nil
	}
	if err := p.host.RemoveShapeKeysExcept(proxy, index); err != nil {
		return fmt.Errorf("collapse %q to key %d: %w", proxy.Name, index, err)
	}
	if err := p.host.RemoveShapeKey(proxy, 0); err != nil {
		return fmt.Errorf("collapse %q to key %d: %w", proxy.Name, index, err)
	}
	return nil
}

// BakeDeformer applies the armature modifier of obj bound to armature. Other
// modifiers are left alone.
func (p *Proxies) BakeDeformer(obj, armature *scene.Object) error {
	var mod *scene.Modifier
	for _, m := range obj.Modifiers {
		if m.Binds(armature) {
			mod = m
			break
		}
	}
	if mod == nil {
		return &DeformerApplyError{Object: obj.Name, Err: scene.ErrModifierNotFound}
	}
	if err := p.host.ApplyModifier(only(obj), mod.Name); err != nil {
		return &DeformerApplyError{Object: obj.Name, Modifier: mod.Name, Err: err}
	}
	logger.Debug("applied armature modifier", zap.String("object", obj.Name), zap.String("modifier", mod.Name))
	return nil
}

// Destroy removes proxy and its mesh data when nothing else uses it.
// Failures are logged.
func (p *Proxies) Destroy(proxy *scene.Object) {
	if proxy == nil {
		return
	}
	mesh := proxy.Data
	if err := p.host.RemoveObject(proxy); err != nil {
		logger.Warn("could not remove proxy", zap.String("proxy", proxy.Name), zap.Error(err))
		return
	}
	if mesh == nil || p.host.MeshUsers(mesh) > 0 {
		return
	}
	if err := p.host.RemoveMesh(mesh); err != nil {
		logger.Warn("could not remove proxy mesh", zap.String("mesh", mesh.Name), zap.Error(err))
	}
}

// VertexCount returns the number of base vertices of obj.
func VertexCount(obj *scene.Object) int {
	return obj.VertexCount()
}
