// posetorest applies an armature's current pose as its rest pose in a scene
// document, keeping the shape keys and drivers of every bound mesh.
package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Faultbox/posetorest/internal/bake"
	"github.com/Faultbox/posetorest/internal/config"
	"github.com/Faultbox/posetorest/internal/logger"
	"github.com/Faultbox/posetorest/internal/operator"
	"github.com/Faultbox/posetorest/internal/report"
	"github.com/Faultbox/posetorest/pkg/scene"
	"go.uber.org/zap"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger.Sugar.Debugf("Config: %+v", cfg)

	p := report.New(cfg.Report.Language)
	args := config.Args()
	if len(args) < 1 {
		printUsage(p)
		os.Exit(1)
	}

	command := args[0]
	args = args[1:]

	var code int
	switch command {
	case "apply":
		code = cmdApply(cfg, p, args)
	case "check":
		code = cmdCheck(cfg, p, args)
	case "info":
		code = cmdInfo(args)
	case "drivers":
		code = cmdDrivers(args)
	case "config":
		code = cmdConfig(cfg, args)
	case "help", "-h", "--help":
		printUsage(p)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage(p)
		code = 1
	}
	logger.Sync()
	os.Exit(code)
}

func printUsage(p *report.Printer) {
	fmt.Printf("posetorest - %s\n%s\n", p.Title(), p.Description())
	fmt.Printf(`
Usage:
  posetorest [flags] <command> [args]

Commands:
  apply <scene.yaml> [output.yaml]   Apply the pose as rest (writes in place by default)
  check <scene.yaml>                 Validate without changing anything
  info <scene.yaml>                  Show objects, shape keys and modifiers
  drivers <scene.yaml>               Evaluate shape-key drivers
  config [path]                      Write the effective config

Flags:
  -config <path>     Config file
  -armature <name>   %s
  -atomic            Roll back every mesh if any step fails
  -lang <en|ja>      Report language
  -debug             Debug logging

Examples:
  posetorest apply character.yaml
  posetorest -atomic -armature Rig apply character.yaml baked.yaml
  posetorest -lang ja check character.yaml
`, p.ArmatureLabel())
}

func loadScene(path string) (*scene.Scene, bool) {
	s, err := scene.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, false
	}
	return s, true
}

func options(cfg *config.Config) (operator.Options, error) {
	policy, err := operator.ParsePolicy(cfg.Bake.CommitPolicy)
	if err != nil {
		return operator.Options{}, err
	}
	return operator.Options{Armature: cfg.Bake.Armature, Policy: policy}, nil
}

func cmdApply(cfg *config.Config, p *report.Printer, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: posetorest apply <scene.yaml> [output.yaml]")
		return 1
	}
	in, out := args[0], args[0]
	if len(args) > 1 {
		out = args[1]
	}

	s, ok := loadScene(in)
	if !ok {
		return 1
	}
	opts, err := options(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	res, err := operator.New(s, opts).Run()
	if errors.Is(err, bake.ErrNoAffectedMeshes) {
		fmt.Println(p.Error(err))
		return 0
	}
	if err != nil {
		logger.Error("pose to rest failed", zap.String("scene", in), zap.Error(err))
		fmt.Fprintln(os.Stderr, p.Error(err))
		// Partially committed meshes are still written so the document matches
		// what was baked.
		if opts.Policy == operator.PolicyPartial {
			if serr := s.Save(out); serr != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", serr)
			}
		}
		return 1
	}

	if err := s.Save(out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(p.Result(res))
	return 0
}

func cmdCheck(cfg *config.Config, p *report.Printer, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: posetorest check <scene.yaml>")
		return 1
	}
	s, ok := loadScene(args[0])
	if !ok {
		return 1
	}
	opts, err := options(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	plan, err := operator.New(s, opts).Check()
	if errors.Is(err, bake.ErrNoAffectedMeshes) {
		fmt.Println(p.Error(err))
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, p.Error(err))
		return 1
	}

	fmt.Printf("Armature: %s\n", plan.Armature)
	fmt.Printf("Meshes:   %d\n", len(plan.Meshes))
	for _, name := range plan.Meshes {
		fmt.Printf("  %s\n", name)
	}
	for _, w := range plan.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}
	return 0
}

func cmdInfo(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: posetorest info <scene.yaml>")
		return 1
	}
	s, ok := loadScene(args[0])
	if !ok {
		return 1
	}

	fmt.Printf("Scene:   %s\n", args[0])
	fmt.Printf("Objects: %d\n", len(s.Objects()))
	fmt.Printf("Meshes:  %d\n", len(s.Meshes()))
	fmt.Printf("Mode:    %s\n", s.Mode())
	if a := s.Active(); a != nil {
		fmt.Printf("Active:  %s\n", a.Name)
	}
	fmt.Println()

	for _, obj := range s.Objects() {
		fmt.Printf("%-20s %s\n", obj.Name, obj.Type)
		switch obj.Type {
		case scene.ObjectMesh:
			fmt.Printf("  mesh %s, %d vertices\n", obj.Data.Name, obj.VertexCount())
			for i, b := range obj.ShapeKeys() {
				fmt.Printf("  [%d] %-16s value=%.3f", i, b.Name, b.Value)
				if b.Mute {
					fmt.Print(" muted")
				}
				if b.RelativeKey != "" && i > 0 {
					fmt.Printf(" relative=%s", b.RelativeKey)
				}
				fmt.Println()
			}
			if obj.Data.Keys.HasDrivers() {
				fmt.Printf("  %d drivers\n", len(obj.Data.Keys.Drivers.Drivers))
			}
		case scene.ObjectArmature:
			posed := 0
			for _, b := range obj.Armature.Bones {
				if b.IsPosed() {
					posed++
				}
			}
			fmt.Printf("  %d bones, %d posed\n", len(obj.Armature.Bones), posed)
		}
		for _, m := range obj.Modifiers {
			line := fmt.Sprintf("  modifier %s (%s)", m.Name, m.Kind)
			if m.Object != nil {
				line += " -> " + m.Object.Name
			}
			fmt.Println(line)
		}
	}
	return 0
}

func cmdDrivers(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: posetorest drivers <scene.yaml>")
		return 1
	}
	s, ok := loadScene(args[0])
	if !ok {
		return 1
	}
	if err := s.EvaluateDrivers(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	var lines []string
	for _, obj := range s.Objects() {
		if obj.Data == nil || !obj.Data.Keys.HasDrivers() {
			continue
		}
		for _, d := range obj.Data.Keys.Drivers.Drivers {
			name, err := d.ShapeKeyName()
			if err != nil {
				continue
			}
			v := obj.Data.Keys.Block(name).Value
			lines = append(lines, fmt.Sprintf("%-20s %-16s %.4f  = %s", obj.Name, name, v, d.Expression))
		}
	}
	sort.Strings(lines)
	if len(lines) == 0 {
		fmt.Println("No drivers.")
		return 0
	}
	fmt.Println(strings.Join(lines, "\n"))
	return 0
}

func cmdConfig(cfg *config.Config, args []string) int {
	var (
		path string
		err  error
	)
	if len(args) > 0 {
		path = args[0]
		err = cfg.SaveTo(path)
	} else {
		path, err = cfg.Save()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Wrote %s\n", path)
	return 0
}
