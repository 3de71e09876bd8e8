package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tkjaer/gtping/internal/config"
	"github.com/tkjaer/gtping/internal/gtp"
	"github.com/tkjaer/gtping/internal/output"
	"github.com/tkjaer/gtping/internal/shared"
	"github.com/tkjaer/gtping/pkg/ptr"
)

// session is what the manager needs from a Session
type session interface {
	Run(ctx context.Context) error
	Stats() shared.Stats
	Close() error
}

type outputConfig struct {
	jsonOutput bool
	jsonFile   string
}

// ProbeManager runs one session per target, independently and in parallel
type ProbeManager struct {
	targets  []string
	parallel int

	// Template for every target's session; Target is filled in per target
	sessionConfig SessionConfig

	noResolve  bool
	ptrManager *ptr.PtrManager

	outputConfig outputConfig

	// Hooks replaced in tests
	resolve    func(target string) (*net.UDPAddr, error)
	newSession func(cfg SessionConfig) (session, error)
	newOutputs func() *output.OutputManager
}

// NewProbeManager creates and initializes a probe manager
func NewProbeManager(a config.Args) (*ProbeManager, error) {
	if len(a.Targets) == 0 {
		return nil, errors.New("no targets")
	}

	pm := &ProbeManager{
		targets:  a.Targets,
		parallel: int(a.Parallel),
		sessionConfig: SessionConfig{
			Count:    a.Count,
			Interval: a.Interval,
			Timeout:  a.Timeout,
			TOS:      int(a.TOS),
			TTL:      int(a.TTL),
		},
		noResolve:  a.NoResolve,
		ptrManager: ptr.NewPtrManager(),
		outputConfig: outputConfig{
			jsonOutput: a.Json,
			jsonFile:   a.JsonFile,
		},
		resolve: resolveTarget,
		newSession: func(cfg SessionConfig) (session, error) {
			return NewSession(cfg)
		},
	}
	pm.newOutputs = pm.createOutputs

	if a.Source != "" {
		src, err := netip.ParseAddr(a.Source)
		if err != nil {
			return nil, fmt.Errorf("invalid source address %q: %w", a.Source, err)
		}
		pm.sessionConfig.Source = src
	}

	return pm, nil
}

// Run probes all targets and returns their stats in input order. A target
// that cannot be resolved or bound is reported with Stats.Error set and does
// not affect the others. Cancelling ctx ends all sessions early; the partial
// results are still returned and rendered.
func (pm *ProbeManager) Run(ctx context.Context) ([]shared.Stats, error) {
	om := pm.newOutputs()
	defer om.Close()

	results := make([]shared.Stats, len(pm.targets))

	var g errgroup.Group
	if pm.parallel > 0 {
		g.SetLimit(pm.parallel)
	}
	for i, target := range pm.targets {
		g.Go(func() error {
			results[i] = pm.runTarget(ctx, target)
			om.CompleteTarget(results[i])
			return nil
		})
	}
	g.Wait()

	slog.Debug("All sessions finished", "targets", len(pm.targets))
	om.Summary(results)

	return results, nil
}

// runTarget resolves, probes and summarizes a single target
func (pm *ProbeManager) runTarget(ctx context.Context, target string) shared.Stats {
	addr, err := pm.resolve(target)
	if err != nil {
		slog.Error("Failed to resolve target", "target", target, "error", err)
		return shared.Stats{Target: target, Error: err.Error()}
	}

	// Look up the PTR record while probing
	ptrDone := make(chan struct{})
	ip := addr.IP.String()
	if pm.noResolve {
		close(ptrDone)
	} else {
		go func() {
			defer close(ptrDone)
			pm.ptrManager.RequestPTR(ip)
		}()
	}

	cfg := pm.sessionConfig
	cfg.Target = addr
	s, err := pm.newSession(cfg)
	if err != nil {
		slog.Error("Failed to create session", "target", addr.String(), "error", err)
		return shared.Stats{Target: addr.String(), Error: err.Error()}
	}
	defer s.Close()

	if err := s.Run(ctx); err != nil {
		slog.Debug("Session interrupted", "target", addr.String(), "error", err)
	}
	stats := s.Stats()

	select {
	case <-ptrDone:
		if name, ok := pm.ptrManager.GetPTR(ip); ok {
			stats.TargetPTR = name
		}
	case <-ctx.Done():
	}

	return stats
}

// createOutputs creates and initializes output handlers
func (pm *ProbeManager) createOutputs() *output.OutputManager {
	om := &output.OutputManager{}

	if pm.outputConfig.jsonOutput {
		jsonOut, err := output.NewJSONOutput("") // empty string = stdout
		if err == nil {
			om.Register(jsonOut)
		}
	} else {
		om.Register(output.NewStdoutTextOutput())
	}

	// If JSON file output is enabled, write to file alongside the text output
	if pm.outputConfig.jsonFile != "" {
		jsonOut, err := output.NewJSONOutput(pm.outputConfig.jsonFile)
		if err == nil {
			om.Register(jsonOut)
		} else {
			slog.Warn("Failed to create JSON file output", "error", err)
		}
	}

	return om
}

// resolveTarget turns host[:port] into a UDP address, defaulting to the
// GTP-U port
func resolveTarget(target string) (*net.UDPAddr, error) {
	addr, err := net.ResolveUDPAddr("udp", withDefaultPort(target))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", target, err)
	}
	return addr, nil
}

func withDefaultPort(target string) string {
	if _, _, err := net.SplitHostPort(target); err == nil {
		return target
	}
	host := strings.TrimSuffix(strings.TrimPrefix(target, "["), "]")
	return net.JoinHostPort(host, strconv.Itoa(gtp.DefaultPort))
}
