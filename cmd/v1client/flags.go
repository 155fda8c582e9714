package main

import (
	"flag"
	"fmt"
	"os"
)

// version is injected at build time with -ldflags "-X main.version=...".
var version = "dev"

// cliConfig holds the handful of knobs worth overriding from the command
// line; everything else comes from the environment via internal/config.
type cliConfig struct {
	showVersion bool
	skipDetect  bool
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("v1client", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")
	fs.BoolVar(&cfg.skipDetect, "skip-detect", false, "Skip the short detect-phase handshake even if V1_DETECT_ADDR is set")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printVersion() {
	fmt.Println(version)
}
