package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/tkjaer/gtping/internal/version"
)

// DefaultTarget is probed when no target is given
const DefaultTarget = "192.168.205.10:2152"

type Args struct {
	Targets     []string
	TargetsFile string

	// Probing
	Count    uint
	Interval time.Duration
	Timeout  time.Duration // 0 = wait indefinitely
	Parallel uint          // 0 = all targets at once

	// Socket options
	Source string
	TOS    uint
	TTL    uint

	NoResolve bool

	// Output
	Json     bool   // output json summary to stdout
	JsonFile string // write json lines to file while printing text

	// Logging
	Log      string // log file path, empty means no logging
	LogLevel string // log level: debug, info, warn, error
}

func ParseArgs() (Args, error) {
	var args Args
	var showVersion bool

	flag.Usage = func() {
		println("gtping - GTP-U ping")
		println()
		println("Measures round-trip time and loss to GTPv1-U peers using Echo Request messages.")
		println()
		println("Usage:")
		println("  gtping [OPTIONS] [TARGET...]")
		println()
		println("Examples:")
		println("  gtping 10.0.0.1:2152                     # 5 echo requests to one peer")
		println("  gtping -c 20 -i 200ms 10.0.0.1 10.0.0.2  # two peers in parallel")
		println("  gtping -J -W 0 upf.example.net           # JSON summary, wait forever for replies")
		println("  gtping -f targets.yaml -j results.json   # targets from file, JSON lines to file")
		println()
		println("Options:")
		flag.PrintDefaults()
		println()
		println("Documentation: https://github.com/tkjaer/gtping")
		println("Report issues: https://github.com/tkjaer/gtping/issues")
	}

	flag.BoolVarP(&showVersion, "version", "v", false, "Show version information")
	flag.UintVarP(&args.Count, "count", "c", 5, "Number of echo requests to send to each target")
	flag.DurationVarP(&args.Interval, "interval", "i", time.Second, "Delay between a response and the next request")
	flag.DurationVarP(&args.Timeout, "timeout", "W", 10*time.Second, "Time to wait for a response (0 = wait indefinitely)")
	flag.UintVarP(&args.Parallel, "parallel", "P", 0, "Maximum number of targets probed at once (0 = all)")
	flag.StringVarP(&args.TargetsFile, "targets-file", "f", "", "YAML file with additional targets")
	flag.StringVarP(&args.Source, "source", "s", "", "Source IP address to send from")
	flag.UintVarP(&args.TOS, "tos", "Q", 0, "IP TOS / traffic class of echo requests")
	flag.UintVarP(&args.TTL, "ttl", "t", 0, "IP TTL / hop limit of echo requests (0 = system default)")
	flag.BoolVarP(&args.NoResolve, "no-resolve", "n", false, "Do not resolve target IP addresses to hostnames")
	flag.BoolVarP(&args.Json, "json", "J", false, "Write JSON summary to stdout (disables text output)")
	flag.StringVarP(&args.JsonFile, "json-file", "j", "", "Write JSON lines to file (keeps text output)")
	flag.StringVarP(&args.Log, "log", "l", "", "Diagnostic log file (empty = stderr)")
	flag.StringVar(&args.LogLevel, "log-level", "error", "Log level: debug, info, warn, error")
	flag.Parse()

	if showVersion {
		fmt.Println(version.FullVersion())
		os.Exit(0)
	}

	args.Targets = flag.Args()
	if args.TargetsFile != "" {
		fileTargets, err := LoadTargetsFile(args.TargetsFile)
		if err != nil {
			return args, err
		}
		args.Targets = append(args.Targets, fileTargets...)
	}
	if len(args.Targets) == 0 {
		args.Targets = []string{DefaultTarget}
	}

	if err := args.validate(); err != nil {
		return args, err
	}
	return args, nil
}

func (a Args) validate() error {
	switch {
	case a.Count == 0:
		return errors.New("count must be at least 1")
	case a.Interval < 0:
		return errors.New("interval must not be negative")
	case a.Timeout < 0:
		return errors.New("timeout must not be negative")
	case a.Json && a.JsonFile != "":
		return errors.New("cannot use both --json and --json-file")
	case a.TOS > 255:
		return errors.New("TOS must be between 0 and 255")
	case a.TTL > 255:
		return errors.New("TTL must be between 0 and 255")
	}
	if a.Source != "" {
		if _, err := netip.ParseAddr(a.Source); err != nil {
			return fmt.Errorf("invalid source address %q", a.Source)
		}
	}
	return nil
}

// OutputMode returns the name of the primary output
func (a Args) OutputMode() string {
	if a.Json {
		return "json"
	}
	return "text"
}
