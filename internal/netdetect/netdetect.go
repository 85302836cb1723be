// Package netdetect infers scan targets from the local network interfaces
// when none are configured.
package netdetect

import (
	"fmt"
	"net"
	"strings"
)

// virtualPrefixes name interfaces created by container runtimes
var virtualPrefixes = []string{"veth", "docker", "br-", "cni", "flannel"}

// Interface is the subset of an interface the detector looks at
type Interface struct {
	Name  string
	Flags net.Flags
	Addrs []net.Addr
}

// LocalSubnets returns the private IPv4 subnets the host is attached to,
// ignoring loopback, down and container interfaces.
func LocalSubnets() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}

	var candidates []Interface
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		candidates = append(candidates, Interface{Name: iface.Name, Flags: iface.Flags, Addrs: addrs})
	}
	return Subnets(candidates), nil
}

// Subnets extracts the deduplicated private subnets of the given interfaces
func Subnets(ifaces []Interface) []string {
	var subnets []string
	seen := make(map[string]bool)

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 || isVirtual(iface.Name) {
			continue
		}
		for _, addr := range iface.Addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			subnet, ok := privateSubnet(ipnet)
			if !ok || seen[subnet] {
				continue
			}
			seen[subnet] = true
			subnets = append(subnets, subnet)
		}
	}
	return subnets
}

func isVirtual(name string) bool {
	for _, prefix := range virtualPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// privateSubnet returns the RFC1918 network of ipnet. Masks wider than /16
// are narrowed to the /24 around the address to keep scans bounded.
func privateSubnet(ipnet *net.IPNet) (string, bool) {
	ip4 := ipnet.IP.To4()
	if ip4 == nil {
		return "", false
	}
	isPrivate := ip4[0] == 10 ||
		(ip4[0] == 172 && ip4[1] >= 16 && ip4[1] <= 31) ||
		(ip4[0] == 192 && ip4[1] == 168)
	if !isPrivate {
		return "", false
	}

	ones, bits := ipnet.Mask.Size()
	if bits != 32 || ones < 16 {
		ones = 24
	}
	mask := net.CIDRMask(ones, 32)
	return fmt.Sprintf("%s/%d", ip4.Mask(mask), ones), true
}
