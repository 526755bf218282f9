package bake

import (
	"fmt"

	"github.com/Faultbox/posetorest/pkg/scene"
)

// DriverSnapshot keeps by-value copies of a mesh's shape-key drivers together
// with the identities they may reference, since the commit replaces the mesh
// data and its shape-key container.
type DriverSnapshot struct {
	Object  *scene.Object
	Mesh    *scene.Mesh
	Key     *scene.Key
	Drivers []*scene.Driver
}

// DriversExist reports whether obj's shape keys carry drivers.
func DriversExist(obj *scene.Object) bool {
	return obj.Data != nil && obj.Data.Keys.HasDrivers()
}

// SnapshotDrivers copies obj's drivers. It returns nil when there are none.
func SnapshotDrivers(obj *scene.Object) *DriverSnapshot {
	if !DriversExist(obj) {
		return nil
	}
	key := obj.Data.Keys
	snap := &DriverSnapshot{Object: obj, Mesh: obj.Data, Key: key}
	for _, d := range key.Drivers.Drivers {
		snap.Drivers = append(snap.Drivers, d.Clone())
	}
	return snap
}

// RestoreDrivers rebuilds obj's driver container from snap and points every
// target that referenced the old object, mesh or key at obj's current ones.
func RestoreDrivers(host Host, obj *scene.Object, snap *DriverSnapshot) error {
	if snap == nil || len(snap.Drivers) == 0 {
		return nil
	}
	fail := func(err error) error {
		return &MetadataError{Object: obj.Name, What: "drivers", Err: err}
	}

	if obj.Data != nil && obj.Data.Keys != nil && obj.Data.Keys.Drivers != nil {
		if err := host.ClearDrivers(obj); err != nil {
			return fail(err)
		}
	}
	if _, err := host.CreateDriverContainer(obj); err != nil {
		return fail(err)
	}
	for _, src := range snap.Drivers {
		d, err := host.CopyDriver(obj, src)
		if err != nil {
			return fail(fmt.Errorf("copy driver %s: %w", src.DataPath, err))
		}
		retarget(d, snap, obj)
	}
	return nil
}

func retarget(d *scene.Driver, snap *DriverSnapshot, obj *scene.Object) {
	for _, v := range d.Variables {
		for _, t := range v.Targets {
			switch t.ID {
			case scene.ID(snap.Object):
				t.ID = obj
			case scene.ID(snap.Mesh):
				t.ID = obj.Data
			case scene.ID(snap.Key):
				t.ID = obj.Data.Keys
			}
		}
	}
}
