// Package operator runs the pose-to-rest operation over a whole scene.
package operator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Faultbox/posetorest/internal/bake"
	"github.com/Faultbox/posetorest/internal/logger"
	"github.com/Faultbox/posetorest/pkg/scene"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Armature resolution errors. Both are validation errors.
var (
	ErrNoArmature      = fmt.Errorf("%w: no armature selected", bake.ErrValidation)
	ErrInvalidArmature = fmt.Errorf("%w: invalid armature object", bake.ErrValidation)
)

var errTopology = errors.New("modifiers that change vertex count may break the bake")

// MeshError reports the mesh whose bake stopped the run.
type MeshError struct {
	Object string
	Err    error
}

func (e *MeshError) Error() string {
	return fmt.Sprintf("failed to process shape keys for %q: %v", e.Object, e.Err)
}

func (e *MeshError) Unwrap() error { return e.Err }

// Policy decides what happens to meshes already baked when a later step fails.
type Policy int

const (
	// PolicyPartial keeps meshes committed before the failure.
	PolicyPartial Policy = iota
	// PolicyAtomic rolls every mesh back unless the whole run succeeds.
	PolicyAtomic
)

func (p Policy) String() string {
	if p == PolicyAtomic {
		return "atomic"
	}
	return "partial"
}

// ParsePolicy parses "partial" or "atomic". An empty string is partial.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "partial":
		return PolicyPartial, nil
	case "atomic":
		return PolicyAtomic, nil
	default:
		return PolicyPartial, fmt.Errorf("unknown commit policy %q", s)
	}
}

// Options configures a run.
type Options struct {
	// Armature names the armature to rest. Empty uses the active armature,
	// then the scene's target armature.
	Armature string
	Policy   Policy
}

// Result describes a completed run.
type Result struct {
	Armature  string
	Processed []string
	Warnings  []string
}

// Operator applies an armature's current pose as its rest pose, re-baking
// every mesh bound to it.
type Operator struct {
	host     bake.Host
	opts     Options
	pipeline *bake.Pipeline
}

// New creates an operator on host.
func New(host bake.Host, opts Options) *Operator {
	return &Operator{host: host, opts: opts, pipeline: bake.NewPipeline(host)}
}

type meshRun struct {
	obj      *scene.Object
	drivers  *bake.DriverSnapshot
	deformer *bake.DeformerSettings
	commit   *bake.Commit
}

type interaction struct {
	mode   scene.Mode
	active *scene.Object
}

// Run executes the operation. Validation failures leave the scene untouched.
// ErrNoAffectedMeshes comes back with a result and means nothing was done.
func (o *Operator) Run() (*Result, error) {
	start := interaction{mode: o.host.Mode(), active: o.host.Active()}

	arm, err := o.resolveArmature()
	if err != nil {
		return nil, err
	}
	res := &Result{Armature: arm.Name}
	logger.Info("applying pose as rest",
		zap.String("armature", arm.Name),
		zap.Stringer("policy", o.opts.Policy))

	v, err := bake.Validate(arm, o.host.Objects())
	if errors.Is(err, bake.ErrNoAffectedMeshes) {
		logger.Warn("no meshes found with armature modifier", zap.String("armature", arm.Name))
		return res, err
	}
	if err != nil {
		return nil, err
	}
	for _, name := range v.TopologyWarnings {
		res.warn(name, errTopology)
	}

	runs := make([]*meshRun, 0, len(v.Affected))
	for _, obj := range v.Affected {
		logger.Debug("storing data", zap.String("object", obj.Name))
		runs = append(runs, &meshRun{
			obj:      obj,
			drivers:  bake.SnapshotDrivers(obj),
			deformer: bake.SnapshotDeformer(obj, arm),
		})
	}

	hold := o.opts.Policy == PolicyAtomic
	var done []*meshRun
	for _, r := range runs {
		logger.Info("processing mesh", zap.String("object", r.obj.Name))
		c, err := o.pipeline.Bake(r.obj, arm, hold)
		if err != nil {
			o.abort(done, start)
			return nil, &MeshError{Object: r.obj.Name, Err: err}
		}
		r.commit = c
		if c.Warnings != nil {
			res.warn(r.obj.Name, c.Warnings)
		}
		done = append(done, r)
	}

	if err := o.commitPose(arm); err != nil {
		o.abort(done, start)
		return nil, err
	}

	for _, r := range done {
		if err := r.commit.Finalize(); err != nil {
			logger.Warn("could not remove original mesh data", zap.String("object", r.obj.Name), zap.Error(err))
		}
		logger.Debug("restoring modifiers and drivers", zap.String("object", r.obj.Name))
		if _, err := bake.RecreateDeformer(o.host, r.obj, r.deformer); err != nil {
			res.warn(r.obj.Name, err)
		}
		if err := bake.RestoreDrivers(o.host, r.obj, r.drivers); err != nil {
			res.warn(r.obj.Name, err)
		}
		res.Processed = append(res.Processed, r.obj.Name)
	}

	o.finish(arm, start)
	logger.Info("applied pose as rest",
		zap.String("armature", arm.Name),
		zap.Int("meshes", len(res.Processed)),
		zap.Int("warnings", len(res.Warnings)))
	return res, nil
}

// Plan is what a run would do, worked out without touching the scene.
type Plan struct {
	Armature string
	Meshes   []string
	Warnings []string
}

// Check resolves the armature and validates the scene like Run, then stops.
func (o *Operator) Check() (*Plan, error) {
	arm, err := o.resolveArmature()
	if err != nil {
		return nil, err
	}
	plan := &Plan{Armature: arm.Name}
	v, err := bake.Validate(arm, o.host.Objects())
	if errors.Is(err, bake.ErrNoAffectedMeshes) {
		return plan, err
	}
	if err != nil {
		return nil, err
	}
	for _, obj := range v.Affected {
		plan.Meshes = append(plan.Meshes, obj.Name)
	}
	for _, name := range v.TopologyWarnings {
		plan.Warnings = append(plan.Warnings, name+": "+errTopology.Error())
	}
	return plan, nil
}

func (o *Operator) resolveArmature() (*scene.Object, error) {
	if o.opts.Armature != "" {
		arm := o.host.Object(o.opts.Armature)
		if arm == nil {
			return nil, fmt.Errorf("armature %q: %w", o.opts.Armature, scene.ErrObjectNotFound)
		}
		if arm.Type != scene.ObjectArmature || arm.Armature == nil {
			return nil, fmt.Errorf("%q: %w", arm.Name, ErrInvalidArmature)
		}
		return arm, nil
	}
	if a := o.host.Active(); a != nil && a.Type == scene.ObjectArmature {
		return a, nil
	}
	arm := o.host.Target()
	if arm == nil {
		return nil, ErrNoArmature
	}
	if arm.Type != scene.ObjectArmature || arm.Armature == nil {
		return nil, fmt.Errorf("%q: %w", arm.Name, ErrInvalidArmature)
	}
	return arm, nil
}

// commitPose makes arm the only selected, active object in pose mode and
// commits its pose as rest.
func (o *Operator) commitPose(arm *scene.Object) error {
	fail := func(err error) error {
		return &bake.PoseCommitError{Armature: arm.Name, Err: err}
	}
	if err := o.host.SetMode(scene.ModeObject); err != nil {
		return fail(err)
	}
	o.host.DeselectAll()
	o.host.SetActive(arm)
	o.host.Select(arm, true)
	if err := o.host.SetMode(scene.ModePose); err != nil {
		return fail(err)
	}
	sel := scene.Selection{Active: arm, Selected: []*scene.Object{arm}, Mode: scene.ModePose}
	if err := o.host.CommitRestPose(sel); err != nil {
		return fail(err)
	}
	return nil
}

// finish leaves the armature active, back in pose mode if the run started
// there.
func (o *Operator) finish(arm *scene.Object, start interaction) {
	if err := o.host.SetMode(scene.ModeObject); err != nil {
		logger.Warn("failed to restore mode", zap.Error(err))
	}
	o.host.SetActive(arm)
	if start.mode == scene.ModePose {
		if err := o.host.SetMode(scene.ModePose); err != nil {
			logger.Warn("failed to restore mode", zap.Error(err))
		}
	}
}

// abort undoes what the policy allows after a failed run and restores the
// starting mode and active object on a best-effort basis.
func (o *Operator) abort(done []*meshRun, start interaction) {
	switch o.opts.Policy {
	case PolicyAtomic:
		for i := len(done) - 1; i >= 0; i-- {
			r := done[i]
			if err := r.commit.Rollback(); err != nil {
				logger.Error("rollback failed", zap.String("object", r.obj.Name), zap.Error(err))
				continue
			}
			logger.Info("rolled back", zap.String("object", r.obj.Name))
		}
	default:
		for _, r := range done {
			if err := bake.RestoreDrivers(o.host, r.obj, r.drivers); err != nil {
				logger.Warn("could not restore drivers", zap.String("object", r.obj.Name), zap.Error(err))
			}
		}
		if len(done) > 0 {
			logger.Warn("meshes baked before the failure stay committed", zap.Int("meshes", len(done)))
		}
	}

	var errs error
	errs = multierr.Append(errs, o.host.SetMode(scene.ModeObject))
	o.host.SetActive(start.active)
	if start.mode != scene.ModeObject {
		errs = multierr.Append(errs, o.host.SetMode(start.mode))
	}
	if errs != nil {
		logger.Warn("failed to restore original state", zap.Error(errs))
	}
}

func (r *Result) warn(object string, err error) {
	for _, e := range multierr.Errors(err) {
		logger.Warn("warning", zap.String("object", object), zap.Error(e))
		r.Warnings = append(r.Warnings, fmt.Sprintf("%s: %v", object, e))
	}
}
