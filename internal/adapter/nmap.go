package adapter

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"go.uber.org/zap"

	"camscout/internal/domain"
)

// Runner runs one prepared nmap scan
type Runner interface {
	Run() (result *nmap.Run, warnings *[]string, err error)
}

// RunnerFactory builds a Runner from nmap options
type RunnerFactory func(ctx context.Context, opts ...nmap.Option) (Runner, error)

func defaultRunner(ctx context.Context, opts ...nmap.Option) (Runner, error) {
	return nmap.NewScanner(ctx, opts...)
}

// NmapScanner maps the network for RTSP services and saves the XML report
type NmapScanner struct {
	targets           []string
	ports             string
	timing            int
	timeout           time.Duration
	serviceDetection  bool
	skipHostDiscovery bool
	dir               string
	newRunner         RunnerFactory
	logger            *zap.Logger
}

// NewNmapScanner creates a new nmap-based scanner
// targets: CIDR ranges, addresses, hostnames or nmap ranges (10.0.0.10-20)
// opts: optional configuration options
func NewNmapScanner(targets []string, opts ...NmapOption) *NmapScanner {
	s := &NmapScanner{
		targets:          targets,
		ports:            "554,5554,8554",
		timing:           4,
		timeout:          10 * time.Minute,
		serviceDetection: true,
		dir:              os.TempDir(),
		newRunner:        defaultRunner,
		logger:           zap.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("nmap")

	return s
}

// Name returns the scanner identifier
func (n *NmapScanner) Name() string {
	return "nmap"
}

// ReportPath returns where the XML report of runID is written
func (n *NmapScanner) ReportPath(runID string) string {
	return filepath.Join(n.dir, fmt.Sprintf("scan-%s.xml", runID))
}

// Scan runs nmap against the configured targets and writes the XML report
// to ReportPath(runID). The returned path is only valid on success.
func (n *NmapScanner) Scan(ctx context.Context, runID string) (string, error) {
	if len(n.targets) == 0 {
		return "", fmt.Errorf("no targets configured")
	}
	targets, err := expandTargets(n.targets)
	if err != nil {
		return "", err
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	opts := []nmap.Option{
		nmap.WithTargets(targets...),
		nmap.WithPorts(n.ports),
		nmap.WithTimingTemplate(nmap.Timing(n.timing)),
	}
	if n.serviceDetection {
		opts = append(opts, nmap.WithServiceInfo())
	}
	if n.skipHostDiscovery {
		opts = append(opts, nmap.WithSkipHostDiscovery())
	}

	runner, err := n.newRunner(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create scanner: %w", err)
	}

	n.logger.Info("Scanning network",
		zap.Strings("targets", targets),
		zap.String("ports", n.ports),
		zap.Int("timing", n.timing),
	)
	result, warnings, err := runner.Run()
	if warnings != nil {
		for _, w := range *warnings {
			n.logger.Warn("nmap warning", zap.String("warning", w))
		}
	}
	if err != nil {
		return "", fmt.Errorf("scan failed: %w", err)
	}
	if result == nil {
		return "", fmt.Errorf("nil scan result")
	}

	if err := os.MkdirAll(n.dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create scan directory: %w", err)
	}
	path := n.ReportPath(runID)
	if err := result.ToFile(path); err != nil {
		return "", fmt.Errorf("failed to write scan report: %w", err)
	}

	n.logger.Info("Scan complete", zap.Int("hosts", len(result.Hosts)), zap.String("report", path))
	return path, nil
}

// ParseReport reads an nmap XML report and converts it to stream records
func ParseReport(path string) ([]domain.Stream, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scan report: %w", err)
	}
	result := &nmap.Run{}
	if err := nmap.Parse(content, result); err != nil {
		return nil, fmt.Errorf("failed to parse scan report %s: %w", path, err)
	}
	return StreamsFromRun(result), nil
}

// StreamsFromRun converts nmap results to one stream per (address, port).
// Missing port state or service name default to closed, and any service
// whose name mentions rtsp is normalised to rtsp.
func StreamsFromRun(result *nmap.Run) []domain.Stream {
	if result == nil {
		return nil
	}

	var streams []domain.Stream
	for _, host := range result.Hosts {
		addr := hostAddress(host)
		if addr == "" {
			continue
		}

		for _, port := range host.Ports {
			state := port.State.State
			if state == "" {
				state = domain.StateClosed
			}
			service := port.Service.Name
			switch {
			case service == "":
				service = domain.StateClosed
			case strings.Contains(service, domain.ServiceRTSP):
				service = domain.ServiceRTSP
			}

			streams = append(streams, domain.Stream{
				Address:     addr,
				Port:        port.ID,
				ServiceName: service,
				Product:     port.Service.Product,
				Protocol:    port.Protocol,
				State:       state,
			})
		}
	}

	// overlapping targets report the same host twice
	return domain.Dedupe(streams)
}

// hostAddress returns the first IP address of host, ipv4 preferred
func hostAddress(host nmap.Host) string {
	var fallback string
	for _, addr := range host.Addresses {
		switch addr.AddrType {
		case "ipv4":
			return addr.Addr
		case "ipv6":
			if fallback == "" {
				fallback = addr.Addr
			}
		}
	}
	return fallback
}

// expandTargets validates CIDR targets and passes everything else through
func expandTargets(targets []string) ([]string, error) {
	var expanded []string
	for _, target := range targets {
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		// Check if it's CIDR notation
		if strings.Contains(target, "/") {
			_, ipNet, err := net.ParseCIDR(target)
			if err != nil {
				return nil, fmt.Errorf("invalid CIDR %s: %w", target, err)
			}
			// For nmap, we keep CIDR notation - it handles expansion
			expanded = append(expanded, ipNet.String())
		} else {
			// Single IP, hostname or nmap range
			expanded = append(expanded, target)
		}
	}
	if len(expanded) == 0 {
		return nil, fmt.Errorf("no targets configured")
	}
	return expanded, nil
}

// parsePorts validates a port list in nmap format
func parsePorts(portRange string) (string, error) {
	// Supported: "80,443,8080" or "1-1000" or "22,80-443,8080"
	parts := strings.Split(portRange, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if strings.Contains(part, "-") {
			rangeParts := strings.Split(part, "-")
			if len(rangeParts) != 2 {
				return "", fmt.Errorf("invalid port range: %s", part)
			}
			start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
			if err != nil || start < 1 || start > 65535 {
				return "", fmt.Errorf("invalid port number: %s", rangeParts[0])
			}
			end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
			if err != nil || end < 1 || end > 65535 || end < start {
				return "", fmt.Errorf("invalid port number: %s", rangeParts[1])
			}
		} else {
			port, err := strconv.Atoi(part)
			if err != nil || port < 1 || port > 65535 {
				return "", fmt.Errorf("invalid port number: %s", part)
			}
		}
	}
	return strings.ReplaceAll(portRange, " ", ""), nil
}
