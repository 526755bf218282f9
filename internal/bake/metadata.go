package bake

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Faultbox/posetorest/pkg/scene"
	"github.com/tiendc/go-deepcopy"
	"go.uber.org/multierr"
)

// KeyMetadata is everything about a shape key except its geometry.
type KeyMetadata struct {
	Name          string
	Value         float64
	SliderMin     float64
	SliderMax     float64
	Mute          bool
	Interpolation scene.Interpolation
	RelativeKey   string
	VertexGroup   string
	Attributes    map[string]any
}

// MetadataSnapshot holds the metadata of every shape key of a mesh, in list
// order.
type MetadataSnapshot struct {
	Keys []KeyMetadata
}

// SnapshotMetadata records shape-key metadata of obj. It returns nil when obj
// has no shape keys. Reserved attributes (leading "_") are not recorded. A key
// whose attributes cannot be copied is recorded without them and reported as
// a MetadataError.
func SnapshotMetadata(obj *scene.Object) (*MetadataSnapshot, error) {
	blocks := obj.ShapeKeys()
	if len(blocks) == 0 {
		return nil, nil
	}
	snap := &MetadataSnapshot{Keys: make([]KeyMetadata, 0, len(blocks))}
	var errs error
	for _, b := range blocks {
		km := KeyMetadata{
			Name:          b.Name,
			Value:         b.Value,
			SliderMin:     b.SliderMin,
			SliderMax:     b.SliderMax,
			Mute:          b.Mute,
			Interpolation: b.Interpolation,
			RelativeKey:   b.RelativeKey,
			VertexGroup:   b.VertexGroup,
		}
		if len(b.Attributes) > 0 {
			if err := deepcopy.Copy(&km.Attributes, &b.Attributes); err != nil {
				km.Attributes = nil
				errs = multierr.Append(errs, &MetadataError{
					Object: obj.Name,
					What:   fmt.Sprintf("shape key %q attributes", b.Name),
					Err:    err,
				})
			}
			for name := range km.Attributes {
				if strings.HasPrefix(name, "_") {
					delete(km.Attributes, name)
				}
			}
		}
		snap.Keys = append(snap.Keys, km)
	}
	return snap, errs
}

// RestoreMetadata writes snap back onto obj's shape keys by index. A relative
// key is resolved by name and left alone when missing. Attribute failures do
// not stop the restore; they are returned together as MetadataErrors.
func RestoreMetadata(host Host, obj *scene.Object, snap *MetadataSnapshot) error {
	if snap == nil {
		return nil
	}
	blocks := obj.ShapeKeys()
	if len(blocks) == 0 {
		return nil
	}
	var errs error
	for i, km := range snap.Keys {
		if i >= len(blocks) {
			break
		}
		b := blocks[i]
		b.Value = km.Value
		b.SliderMin = km.SliderMin
		b.SliderMax = km.SliderMax
		b.Mute = km.Mute
		b.Interpolation = km.Interpolation
		b.VertexGroup = km.VertexGroup
		if km.RelativeKey != "" && obj.Data.Keys.Block(km.RelativeKey) != nil {
			b.RelativeKey = km.RelativeKey
		}

		names := make([]string, 0, len(km.Attributes))
		for name := range km.Attributes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := host.SetShapeKeyAttribute(b, name, km.Attributes[name]); err != nil {
				errs = multierr.Append(errs, &MetadataError{
					Object: obj.Name,
					What:   fmt.Sprintf("shape key %q attribute %q", b.Name, name),
					Err:    err,
				})
			}
		}
	}
	return errs
}
