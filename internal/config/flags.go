package config

import "flag"

var (
	flagConfig   = flag.String("config", "", "Path to config file")
	flagDebug    = flag.Bool("debug", false, "Enable debug logging")
	flagAtomic   = flag.Bool("atomic", false, "Roll back every mesh if any step fails")
	flagArmature = flag.String("armature", "", "Armature to apply the pose of")
	flagLang     = flag.String("lang", "", "Report language (en, ja)")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the arguments left after flag parsing.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagAtomic {
		cfg.Bake.CommitPolicy = "atomic"
	}
	if *flagArmature != "" {
		cfg.Bake.Armature = *flagArmature
	}
	if *flagLang != "" {
		cfg.Report.Language = *flagLang
	}
}
