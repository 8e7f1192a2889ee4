package web

import (
	"fmt"
	"net"
	"strconv"

	"github.com/enbility/zeroconf/v3"
)

// ServiceType is the DNS-SD type the status page is announced under.
const ServiceType = "_http._tcp"

// Advertise announces the status page served on addr over mDNS on all
// interfaces. The returned function withdraws the announcement.
func Advertise(instance, addr string, txt []string) (func(), error) {
	port, err := listenPort(addr)
	if err != nil {
		return nil, err
	}
	server, err := zeroconf.Register(instance, ServiceType, "local.", port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	return server.Shutdown, nil
}

// listenPort extracts the numeric port from a listen address such as ":8080".
func listenPort(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("mdns: listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("mdns: listen address %q needs a numeric port", addr)
	}
	return port, nil
}
