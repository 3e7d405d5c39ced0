// Package discovery resolves consul:// remote task URLs to concrete
// http endpoints via consul health queries.
package discovery

import (
	"fmt"
	"strings"

	consul "github.com/hashicorp/consul/api"
)

const consulScheme = "consul://"

// Resolver turns consul://<service>/<path> URLs into http://host:port/<path>
// using the healthy instances registered in consul. Plain http(s) URLs pass
// through untouched.
type Resolver struct {
	client *consul.Client
}

func NewResolver(consulAddr string) (*Resolver, error) {
	config := consul.DefaultConfig()
	config.Address = consulAddr

	client, err := consul.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("create consul client: %w", err)
	}

	return &Resolver{client: client}, nil
}

// IsConsulURL reports whether raw needs consul resolution.
func IsConsulURL(raw string) bool {
	return strings.HasPrefix(raw, consulScheme)
}

// ResolveURL maps a consul:// URL to the first healthy service instance.
// Non-consul URLs are returned unchanged.
func (r *Resolver) ResolveURL(raw string) (string, error) {
	if !IsConsulURL(raw) {
		return raw, nil
	}

	rest := strings.TrimPrefix(raw, consulScheme)
	service, path, _ := strings.Cut(rest, "/")
	if service == "" {
		return "", fmt.Errorf("consul url %q has no service name", raw)
	}

	services, _, err := r.client.Health().Service(service, "", true, nil)
	if err != nil {
		return "", fmt.Errorf("query consul: %w", err)
	}
	if len(services) == 0 {
		return "", fmt.Errorf("no healthy instances of %q", service)
	}

	entry := services[0]
	addr := entry.Service.Address
	if addr == "" {
		addr = entry.Node.Address
	}

	resolved := fmt.Sprintf("http://%s:%d", addr, entry.Service.Port)
	if path != "" {
		resolved += "/" + path
	}
	return resolved, nil
}
