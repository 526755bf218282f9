package scene

import (
	"math"
	"testing"
)

func TestDriver_ShapeKeyName(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{`key_blocks["Smile"].value`, "Smile", false},
		{KeyValuePath("Brow.L"), "Brow.L", false},
		{`key_blocks["Smile"].slider_max`, "", true},
		{`location[0]`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			d := &Driver{DataPath: tt.path}
			got, err := d.ShapeKeyName()
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDriver_Evaluate(t *testing.T) {
	face := &Object{Name: "Face", Type: ObjectMesh, Attributes: map[string]any{"mood": 0.25, "open": true}}
	key := &Key{Name: "Key", Blocks: []*ShapeKey{
		newShapeKey("Basis", 0),
		{Name: "Jaw", Value: 0.8, SliderMax: 1},
	}}
	face.Data = &Mesh{Name: "Face", Keys: key}

	variable := func(name string, id ID, path string) *DriverVariable {
		return &DriverVariable{Name: name, Targets: []*DriverTarget{{ID: id, DataPath: path}}}
	}

	tests := []struct {
		name   string
		driver *Driver
		want   float64
	}{
		{
			name:   "object attribute",
			driver: &Driver{Expression: "mood * 2", Variables: []*DriverVariable{variable("mood", face, `["mood"]`)}},
			want:   0.5,
		},
		{
			name:   "bool attribute",
			driver: &Driver{Expression: "open", Variables: []*DriverVariable{variable("open", face, `["open"]`)}},
			want:   1,
		},
		{
			name:   "key target",
			driver: &Driver{Expression: "1 - jaw", Variables: []*DriverVariable{variable("jaw", key, `key_blocks["Jaw"].value`)}},
			want:   0.2,
		},
		{
			name:   "mesh target",
			driver: &Driver{Expression: "jaw", Variables: []*DriverVariable{variable("jaw", face.Data, `key_blocks["Jaw"].value`)}},
			want:   0.8,
		},
		{
			name:   "functions",
			driver: &Driver{Expression: "clamp(max(mood, 0.1) + abs(-1), 0, 1)", Variables: []*DriverVariable{variable("mood", face, `["mood"]`)}},
			want:   1,
		},
		{
			name:   "remap",
			driver: &Driver{Expression: "mood", Variables: []*DriverVariable{variable("mood", face, `["mood"]`)}, Keyframes: []Keyframe{{0, 0}, {0.5, 1}}},
			want:   0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.driver.Evaluate()
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDriver_EvaluateErrors(t *testing.T) {
	face := &Object{Name: "Face", Type: ObjectMesh, Attributes: map[string]any{"name": "x"}}

	tests := []struct {
		name   string
		driver *Driver
	}{
		{"bad expression", &Driver{Expression: "1 +"}},
		{"no target", &Driver{Expression: "a", Variables: []*DriverVariable{{Name: "a"}}}},
		{"missing key", &Driver{Expression: "a", Variables: []*DriverVariable{{Name: "a", Targets: []*DriverTarget{{ID: face, DataPath: `key_blocks["X"].value`}}}}}},
		{"non numeric", &Driver{Expression: "a", Variables: []*DriverVariable{{Name: "a", Targets: []*DriverTarget{{ID: face, DataPath: `["name"]`}}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.driver.Evaluate(); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestDriver_CloneKeepsTargets(t *testing.T) {
	face := &Object{Name: "Face"}
	d := &Driver{
		DataPath:   KeyValuePath("Smile"),
		Expression: "a",
		Variables:  []*DriverVariable{{Name: "a", Targets: []*DriverTarget{{ID: face, DataPath: `["x"]`}}}},
		Keyframes:  []Keyframe{{0, 0}},
	}
	c := d.Clone()
	if c.Variables[0].Targets[0].ID != ID(face) {
		t.Error("clone should keep the target identity")
	}
	c.Variables[0].Targets[0].DataPath = `["y"]`
	c.Keyframes[0].Y = 5
	if d.Variables[0].Targets[0].DataPath != `["x"]` || d.Keyframes[0].Y != 0 {
		t.Error("clone shares state with the source driver")
	}
}

func TestScene_EvaluateDrivers(t *testing.T) {
	s := New()
	ctrl := &Object{Name: "Ctrl", Type: ObjectArmature, Attributes: map[string]any{"smile": 3.0}}
	body := newSkinnedMesh("Body", nil)
	addKeys(body, "Basis", "Smile")
	body.Data.Keys.Drivers = &DriverContainer{Drivers: []*Driver{{
		DataPath:   KeyValuePath("Smile"),
		Expression: "smile",
		Variables:  []*DriverVariable{{Name: "smile", Targets: []*DriverTarget{{ID: ctrl, DataPath: `["smile"]`}}}},
	}}}
	mustAdd(t, s, ctrl, body)

	if err := s.EvaluateDrivers(); err != nil {
		t.Fatalf("EvaluateDrivers: %v", err)
	}
	if got := body.Data.Keys.Block("Smile").Value; got != 1 {
		t.Errorf("expected value clamped to 1, got %v", got)
	}
}
