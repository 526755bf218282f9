package bake

import (
	"fmt"

	"github.com/Faultbox/posetorest/internal/logger"
	"github.com/Faultbox/posetorest/pkg/scene"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DeformerSettings is the configuration of an armature modifier and its slot
// in the stack.
type DeformerSettings struct {
	Name     string
	Armature *scene.Object
	Index    int

	PreserveVolume    bool
	UseVertexGroups   bool
	UseBoneEnvelopes  bool
	VertexGroup       string
	InvertVertexGroup bool
	ShowViewport      bool
	ShowRender        bool
	ShowInEditmode    bool
	ShowOnCage        bool
}

// SnapshotDeformer records the armature modifier of obj bound to armature, or
// returns nil.
func SnapshotDeformer(obj, armature *scene.Object) *DeformerSettings {
	for i, m := range obj.Modifiers {
		if !m.Binds(armature) {
			continue
		}
		return &DeformerSettings{
			Name:              m.Name,
			Armature:          armature,
			Index:             i,
			PreserveVolume:    m.PreserveVolume,
			UseVertexGroups:   m.UseVertexGroups,
			UseBoneEnvelopes:  m.UseBoneEnvelopes,
			VertexGroup:       m.VertexGroup,
			InvertVertexGroup: m.InvertVertexGroup,
			ShowViewport:      m.ShowViewport,
			ShowRender:        m.ShowRender,
			ShowInEditmode:    m.ShowInEditmode,
			ShowOnCage:        m.ShowOnCage,
		}
	}
	return nil
}

// RecreateDeformer adds an armature modifier with the recorded settings and
// moves it back to its recorded index. Move failures leave the modifier where
// it stopped and are returned as MetadataErrors.
func RecreateDeformer(host Host, obj *scene.Object, ds *DeformerSettings) (*scene.Modifier, error) {
	if ds == nil {
		return nil, nil
	}
	mod, err := host.AddModifier(obj, ds.Name, scene.ModifierArmature)
	if err != nil {
		return nil, &MetadataError{Object: obj.Name, What: "armature modifier", Err: err}
	}
	mod.Object = ds.Armature
	mod.PreserveVolume = ds.PreserveVolume
	mod.UseVertexGroups = ds.UseVertexGroups
	mod.UseBoneEnvelopes = ds.UseBoneEnvelopes
	mod.VertexGroup = ds.VertexGroup
	mod.InvertVertexGroup = ds.InvertVertexGroup
	mod.ShowViewport = ds.ShowViewport
	mod.ShowRender = ds.ShowRender
	mod.ShowInEditmode = ds.ShowInEditmode
	mod.ShowOnCage = ds.ShowOnCage

	var errs error
	steps := len(obj.Modifiers) - 1 - ds.Index
	for i := 0; i < steps; i++ {
		if err := host.MoveModifierUp(only(obj), mod.Name); err != nil {
			errs = multierr.Append(errs, &MetadataError{
				Object: obj.Name,
				What:   fmt.Sprintf("modifier %q position", mod.Name),
				Err:    err,
			})
		}
	}
	logger.Debug("recreated armature modifier",
		zap.String("object", obj.Name),
		zap.String("modifier", mod.Name),
		zap.Int("index", ds.Index))
	return mod, errs
}
