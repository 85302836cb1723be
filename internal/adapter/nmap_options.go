package adapter

import (
	"time"

	"go.uber.org/zap"
)

// NmapOption is a functional option for configuring NmapScanner
type NmapOption func(*NmapScanner)

// WithTimeout sets the timeout for the entire nmap scan
func WithTimeout(d time.Duration) NmapOption {
	return func(n *NmapScanner) {
		n.timeout = d
	}
}

// WithPorts sets the ports to scan
// Format: "554" or "8554-8560" or "554,5554,8554-8560"
func WithPorts(ports string) NmapOption {
	return func(n *NmapScanner) {
		if validated, err := parsePorts(ports); err == nil {
			n.ports = validated
		}
	}
}

// WithServiceDetection enables or disables service version detection (-sV)
// Without it nmap only guesses service names from the port number
func WithServiceDetection(enabled bool) NmapOption {
	return func(n *NmapScanner) {
		n.serviceDetection = enabled
	}
}

// WithSkipHostDiscovery sets whether to skip ping and treat all hosts as online (-Pn)
// Useful for networks that block ICMP
func WithSkipHostDiscovery(skip bool) NmapOption {
	return func(n *NmapScanner) {
		n.skipHostDiscovery = skip
	}
}

// WithTimingTemplate sets the nmap timing template (-T0 to -T5)
// Out of range values are ignored
func WithTimingTemplate(timing int) NmapOption {
	return func(n *NmapScanner) {
		if timing >= 0 && timing <= 5 {
			n.timing = timing
		}
	}
}

// WithReportDir sets the directory XML reports are written to
func WithReportDir(dir string) NmapOption {
	return func(n *NmapScanner) {
		if dir != "" {
			n.dir = dir
		}
	}
}

// WithRunnerFactory replaces the nmap process, mostly for tests
func WithRunnerFactory(f RunnerFactory) NmapOption {
	return func(n *NmapScanner) {
		if f != nil {
			n.newRunner = f
		}
	}
}

// WithLogger sets the scanner logger
func WithLogger(logger *zap.Logger) NmapOption {
	return func(n *NmapScanner) {
		if logger != nil {
			n.logger = logger
		}
	}
}
