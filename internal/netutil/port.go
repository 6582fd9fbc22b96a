package netutil

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
)

// ErrNoBindAddr is returned when no address of a BindPlan can be listened on.
var ErrNoBindAddr = errors.New("no available bind address")

// BindPlan describes where the control API may listen. Candidates are only
// tried when Preferred is empty or Fallback is set.
type BindPlan struct {
	Preferred  string
	Candidates []string
	Fallback   bool
}

// Addrs returns the addresses Select tries, in order, without duplicates.
func (b BindPlan) Addrs() []string {
	seen := make(map[string]bool, len(b.Candidates)+1)
	var out []string
	add := func(addr string) {
		if addr == "" || seen[addr] {
			return
		}
		seen[addr] = true
		out = append(out, addr)
	}
	add(b.Preferred)
	if b.Preferred == "" || b.Fallback {
		for _, c := range b.Candidates {
			add(c)
		}
	}
	return out
}

// Select returns the first address of the plan that is free right now.
// A malformed address is an error rather than a busy one.
func (b BindPlan) Select() (string, error) {
	addrs := b.Addrs()
	for _, addr := range addrs {
		free, err := addrFree(addr)
		if err != nil {
			return "", err
		}
		if free {
			if addr != b.Preferred && b.Preferred != "" {
				slog.Warn("preferred bind address in use, falling back", "preferred", b.Preferred, "bind_addr", addr)
			}
			return addr, nil
		}
	}
	if b.Preferred != "" && !b.Fallback {
		return "", fmt.Errorf("%w: %s is in use and fallback is disabled", ErrNoBindAddr, b.Preferred)
	}
	return "", fmt.Errorf("%w: tried %d address(es)", ErrNoBindAddr, len(addrs))
}

func addrFree(addr string) (bool, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return false, fmt.Errorf("bind address %q: %w", addr, err)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false, nil
	}
	if err := ln.Close(); err != nil {
		return false, fmt.Errorf("release %s: %w", addr, err)
	}
	return true, nil
}
