package scene

import (
	"fmt"
	"math"
	"regexp"
	"sort"

	"gopkg.in/Knetic/govaluate.v3"
)

// DriverContainer holds the drivers bound to a shape-key container.
type DriverContainer struct {
	Drivers []*Driver
}

// Driver writes its evaluated output into a shape key's value.
type Driver struct {
	DataPath   string // key_blocks["Name"].value
	Expression string
	Variables  []*DriverVariable
	Keyframes  []Keyframe // optional remap curve, sorted by X
}

// DriverVariable is a named input of a driver expression.
type DriverVariable struct {
	Name    string
	Targets []*DriverTarget
}

// DriverTarget reads a property from a datablock.
type DriverTarget struct {
	ID       ID
	DataPath string
}

// Keyframe is a point on a driver's remap curve.
type Keyframe struct {
	X, Y float64
}

// Clone returns a by-value copy of the driver. Target IDs keep their identity.
func (d *Driver) Clone() *Driver {
	c := &Driver{
		DataPath:   d.DataPath,
		Expression: d.Expression,
		Keyframes:  append([]Keyframe(nil), d.Keyframes...),
	}
	for _, v := range d.Variables {
		cv := &DriverVariable{Name: v.Name}
		for _, t := range v.Targets {
			cv.Targets = append(cv.Targets, &DriverTarget{ID: t.ID, DataPath: t.DataPath})
		}
		c.Variables = append(c.Variables, cv)
	}
	return c
}

var (
	keyValuePath  = regexp.MustCompile(`^key_blocks\["(.+)"\]\.value$`)
	attributePath = regexp.MustCompile(`^\["(.+)"\]$`)
)

// ShapeKeyName returns the block name a driver writes to.
func (d *Driver) ShapeKeyName() (string, error) {
	m := keyValuePath.FindStringSubmatch(d.DataPath)
	if m == nil {
		return "", fmt.Errorf("unsupported driver path %q", d.DataPath)
	}
	return m[1], nil
}

// KeyValuePath returns the data path of a shape key's value.
func KeyValuePath(name string) string {
	return fmt.Sprintf("key_blocks[%q].value", name)
}

var driverFunctions = map[string]govaluate.ExpressionFunction{
	"min": func(args ...interface{}) (interface{}, error) {
		return reduceFloats(args, math.Min)
	},
	"max": func(args ...interface{}) (interface{}, error) {
		return reduceFloats(args, math.Max)
	},
	"abs": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("abs: expected 1 argument, got %d", len(args))
		}
		f, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("abs: argument is not a number")
		}
		return math.Abs(f), nil
	},
	"clamp": func(args ...interface{}) (interface{}, error) {
		if len(args) != 3 {
			return nil, fmt.Errorf("clamp: expected 3 arguments, got %d", len(args))
		}
		v, ok1 := args[0].(float64)
		lo, ok2 := args[1].(float64)
		hi, ok3 := args[2].(float64)
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("clamp: arguments must be numbers")
		}
		return math.Max(lo, math.Min(hi, v)), nil
	},
}

func reduceFloats(args []interface{}, fn func(a, b float64) float64) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("expected at least 1 argument")
	}
	acc, ok := args[0].(float64)
	if !ok {
		return nil, fmt.Errorf("argument is not a number")
	}
	for _, a := range args[1:] {
		f, ok := a.(float64)
		if !ok {
			return nil, fmt.Errorf("argument is not a number")
		}
		acc = fn(acc, f)
	}
	return acc, nil
}

// Evaluate computes the driver's output from its variables.
func (d *Driver) Evaluate() (float64, error) {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(d.Expression, driverFunctions)
	if err != nil {
		return 0, fmt.Errorf("parsing expression %q: %w", d.Expression, err)
	}

	params := make(map[string]interface{}, len(d.Variables))
	for _, v := range d.Variables {
		if len(v.Targets) == 0 {
			return 0, fmt.Errorf("variable %q has no target", v.Name)
		}
		val, err := readTarget(v.Targets[0])
		if err != nil {
			return 0, fmt.Errorf("variable %q: %w", v.Name, err)
		}
		params[v.Name] = val
	}

	result, err := expr.Evaluate(params)
	if err != nil {
		return 0, fmt.Errorf("evaluating expression %q: %w", d.Expression, err)
	}

	var out float64
	switch r := result.(type) {
	case float64:
		out = r
	case bool:
		if r {
			out = 1
		}
	default:
		return 0, fmt.Errorf("expression %q returned %T", d.Expression, result)
	}
	return remap(d.Keyframes, out), nil
}

// remap interpolates x along the keyframe curve, holding the end values.
func remap(keys []Keyframe, x float64) float64 {
	if len(keys) == 0 {
		return x
	}
	if x <= keys[0].X {
		return keys[0].Y
	}
	last := keys[len(keys)-1]
	if x >= last.X {
		return last.Y
	}
	i := sort.Search(len(keys), func(i int) bool { return keys[i].X > x })
	k0, k1 := keys[i-1], keys[i]
	if k1.X == k0.X {
		return k1.Y
	}
	t := (x - k0.X) / (k1.X - k0.X)
	return k0.Y + t*(k1.Y-k0.Y)
}

func readTarget(t *DriverTarget) (float64, error) {
	if t.ID == nil {
		return 0, fmt.Errorf("target has no ID")
	}

	if m := keyValuePath.FindStringSubmatch(t.DataPath); m != nil {
		var key *Key
		switch id := t.ID.(type) {
		case *Key:
			key = id
		case *Mesh:
			key = id.Keys
		case *Object:
			if id.Data != nil {
				key = id.Data.Keys
			}
		}
		block := key.Block(m[1])
		if block == nil {
			return 0, fmt.Errorf("shape key %q not found on %s %q", m[1], t.ID.IDKind(), t.ID.IDName())
		}
		return block.Value, nil
	}

	if m := attributePath.FindStringSubmatch(t.DataPath); m != nil {
		obj, ok := t.ID.(*Object)
		if !ok {
			return 0, fmt.Errorf("attribute path %q needs an object target", t.DataPath)
		}
		return attributeFloat(obj.Attributes[m[1]])
	}

	return 0, fmt.Errorf("unsupported target path %q", t.DataPath)
}

func attributeFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("attribute value %v is not numeric", v)
	}
}
