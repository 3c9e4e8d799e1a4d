// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// ErrInvalidListenPort is the sentinel error wrapped by InvalidListenPortError.
var ErrInvalidListenPort = errors.New("invalid listen port")

type (
	// ListenPort is a TCP port for the collector. Zero means "pick a free
	// port".
	ListenPort int

	// InvalidListenPortError is returned when a ListenPort is outside 0-65535.
	InvalidListenPortError struct {
		Value ListenPort
	}
)

// String returns the decimal form of p.
func (p ListenPort) String() string { return strconv.Itoa(int(p)) }

// Validate returns an error if p is outside 0-65535.
func (p ListenPort) Validate() error {
	if p < 0 || p > 65535 {
		return &InvalidListenPortError{Value: p}
	}
	return nil
}

// IsAuto reports whether the kernel picks the port.
func (p ListenPort) IsAuto() bool { return p == 0 }

// LoopbackAddress is the address the collector binds. Compiler hooks only
// ever reach it from the same host.
func (p ListenPort) LoopbackAddress() string {
	return net.JoinHostPort("127.0.0.1", p.String())
}

// Error implements the error interface.
func (e *InvalidListenPortError) Error() string {
	return fmt.Sprintf("invalid listen port %d: must be 0 (auto-select) or 1-65535", e.Value)
}

// Unwrap returns ErrInvalidListenPort for errors.Is() compatibility.
func (e *InvalidListenPortError) Unwrap() error { return ErrInvalidListenPort }
