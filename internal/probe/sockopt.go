package probe

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// setSocketOptions applies the TOS / traffic class and TTL / hop limit of
// outgoing echo requests. Zero leaves the system default.
func setSocketOptions(conn *net.UDPConn, tos, ttl int) error {
	raddr, ok := conn.RemoteAddr().(*net.UDPAddr)
	if !ok {
		return fmt.Errorf("unexpected remote address %v", conn.RemoteAddr())
	}

	if raddr.IP.To4() != nil {
		pc := ipv4.NewConn(conn)
		if tos > 0 {
			if err := pc.SetTOS(tos); err != nil {
				return fmt.Errorf("set TOS: %w", err)
			}
		}
		if ttl > 0 {
			if err := pc.SetTTL(ttl); err != nil {
				return fmt.Errorf("set TTL: %w", err)
			}
		}
		return nil
	}

	pc := ipv6.NewConn(conn)
	if tos > 0 {
		if err := pc.SetTrafficClass(tos); err != nil {
			return fmt.Errorf("set traffic class: %w", err)
		}
	}
	if ttl > 0 {
		if err := pc.SetHopLimit(ttl); err != nil {
			return fmt.Errorf("set hop limit: %w", err)
		}
	}
	return nil
}
