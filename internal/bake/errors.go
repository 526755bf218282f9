package bake

import (
	"errors"
	"fmt"
	"strings"
)

// Error categories. Concrete errors below match one of them with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrTransfer   = errors.New("shape key transfer failed")
	ErrApply      = errors.New("apply failed")
	ErrMetadata   = errors.New("metadata restore failed")
)

// ErrNoAffectedMeshes is a validation warning: no mesh is bound to the armature
// and the run does nothing.
var ErrNoAffectedMeshes = fmt.Errorf("%w: no meshes found with armature modifier", ErrValidation)

// MultipleDeformersError reports a mesh bound to the armature more than once.
type MultipleDeformersError struct {
	Mesh  string
	Count int
}

func (e *MultipleDeformersError) Error() string {
	return fmt.Sprintf("object %q has multiple armature modifiers (%d)", e.Mesh, e.Count)
}

func (e *MultipleDeformersError) Is(target error) bool { return target == ErrValidation }

// DeformerOrderError lists meshes with deforming modifiers ahead of the
// armature modifier.
type DeformerOrderError struct {
	Meshes []string
}

func (e *DeformerOrderError) Error() string {
	return "deformation modifiers before armature modifier detected: " + strings.Join(e.Meshes, ", ")
}

func (e *DeformerOrderError) Is(target error) bool { return target == ErrValidation }

// VertexCountMismatchError reports a donor whose baked vertex count differs
// from the receiver's.
type VertexCountMismatchError struct {
	Mesh     string
	Key      string
	Index    int
	Receiver int
	Donor    int
}

func (e *VertexCountMismatchError) Error() string {
	return fmt.Sprintf("cannot transfer shape key %q of %q: vertex count mismatch (%d vs %d); check for modifiers that change vertex count (Decimate, Weld, etc.)",
		e.Key, e.Mesh, e.Receiver, e.Donor)
}

func (e *VertexCountMismatchError) Is(target error) bool { return target == ErrTransfer }

// TransferVerificationError reports a join that did not add exactly one key.
// Expected and Actual count the keys after the basis.
type TransferVerificationError struct {
	Mesh     string
	Key      string
	Expected int
	Actual   int
}

func (e *TransferVerificationError) Error() string {
	return fmt.Sprintf("shape key transfer failed for %q of %q: expected %d keys, got %d",
		e.Key, e.Mesh, e.Expected, e.Actual)
}

func (e *TransferVerificationError) Is(target error) bool { return target == ErrTransfer }

// DeformerApplyError wraps a refusal to apply the armature modifier.
type DeformerApplyError struct {
	Object   string
	Modifier string
	Err      error
}

func (e *DeformerApplyError) Error() string {
	return fmt.Sprintf("apply armature modifier %q on %q: %v", e.Modifier, e.Object, e.Err)
}

func (e *DeformerApplyError) Unwrap() error { return e.Err }

func (e *DeformerApplyError) Is(target error) bool { return target == ErrApply }

// PoseCommitError wraps a failed rest pose commit.
type PoseCommitError struct {
	Armature string
	Err      error
}

func (e *PoseCommitError) Error() string {
	return fmt.Sprintf("failed to apply pose to armature %q: %v", e.Armature, e.Err)
}

func (e *PoseCommitError) Unwrap() error { return e.Err }

func (e *PoseCommitError) Is(target error) bool { return target == ErrApply }

// MetadataError reports a best-effort restore step that failed. Callers treat
// it as a warning.
type MetadataError struct {
	Object string
	What   string // e.g. `shape key "Smile" attribute "tag"`, "drivers"
	Err    error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("restore %s on %q: %v", e.What, e.Object, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

func (e *MetadataError) Is(target error) bool { return target == ErrMetadata }
