package config

import (
	"fmt"
	"net"
)

// Validate checks cross-option invariants that applyDefaults cannot, since
// they depend on more than one option at once. Called once by Load, after
// defaults and secrets are in place.
func Validate(cfg *Config) error {
	if cfg.API.ListenIP != "" && net.ParseIP(cfg.API.ListenIP) == nil {
		return &OptionError{
			Section: "api",
			Option:  "listen_ip",
			Err:     fmt.Errorf("%q is not a valid IP address", cfg.API.ListenIP),
		}
	}

	// The nonce table is only ever pruned by the Cleaner on its retention
	// sweep (cleaner.nonces_int). A nonce must survive strictly longer than
	// authorization.request_validity_int, the window within which a replayed
	// request is still considered fresh, or a nonce could be collected and
	// its value reused inside the same request's validity window. See
	// spec.md §9, "nonce GC boundary".
	if cfg.Cleaner.NoncesInt <= cfg.Authorization.RequestValidityInt {
		return &OptionError{
			Section: "cleaner",
			Option:  "nonces_int",
			Err: fmt.Errorf(
				"nonces_int (%d) must be strictly greater than authorization.request_validity_int (%d)",
				cfg.Cleaner.NoncesInt, cfg.Authorization.RequestValidityInt,
			),
		}
	}

	if cfg.API.ListenPort <= 0 || cfg.API.ListenPort > 65535 {
		return &OptionError{
			Section: "api",
			Option:  "listen_port",
			Err:     fmt.Errorf("%d is not a valid TCP port", cfg.API.ListenPort),
		}
	}

	if cfg.Database.PortPort <= 0 || cfg.Database.PortPort > 65535 {
		return &OptionError{
			Section: "database",
			Option:  "port_port",
			Err:     fmt.Errorf("%d is not a valid TCP port", cfg.Database.PortPort),
		}
	}

	return nil
}
