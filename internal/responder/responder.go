// Package responder implements the optional UDP liveness responder:
// a trivial protocol ("version" in, agent protocol version out) an
// external monitor can probe without going through the authenticated
// HTTP API. Grounded on
// original_source/.../main_modules/responder.py; deliberately minimal
// per spec.md §1's "optional UDP responder" Non-goal -- only the wire
// protocol is specified, not a particular implementation.
package responder

import (
	"context"
	"log/slog"
	"net"
	"strings"

	"github.com/rysavy-ondrej/project-inventor/internal/config"
)

const protocolVersion = "1"

// Service listens on a UDP socket and answers liveness probes.
type Service struct {
	cfg config.ResponderConfig

	conn *net.UDPConn
	done chan struct{}
}

// NewService returns a Service that will bind cfg.IP:cfg.Port once
// started.
func NewService(cfg config.ResponderConfig) *Service {
	return &Service{cfg: cfg}
}

// Start binds the UDP socket and begins answering probes in the
// background. If IP or Port is unset, Start logs and does nothing,
// matching the original's "not defined and therefore it's not running."
func (s *Service) Start(ctx context.Context) error {
	if s.cfg.IP == "" || s.cfg.Port == 0 {
		slog.Warn("UDP responder not configured, not starting", "ip", s.cfg.IP, "port", s.cfg.Port)
		return nil
	}

	addr := &net.UDPAddr{IP: net.ParseIP(s.cfg.IP), Port: s.cfg.Port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	s.conn = conn
	s.done = make(chan struct{})

	slog.Warn("starting UDP responder", "ip", s.cfg.IP, "port", s.cfg.Port)
	go s.serve(ctx)
	return nil
}

// Stop closes the UDP socket and waits for the serve loop to exit.
func (s *Service) Stop() {
	if s.conn == nil {
		return
	}
	_ = s.conn.Close()
	<-s.done
}

func (s *Service) serve(ctx context.Context) {
	defer close(s.done)

	buf := make([]byte, 512)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			// Closed by Stop, or the context was cancelled underneath us.
			return
		}

		response := "N/A"
		if strings.TrimSpace(string(buf[:n])) == "version" {
			response = protocolVersion
		}
		if _, err := s.conn.WriteToUDP([]byte(response), addr); err != nil {
			slog.Error("UDP responder: writing reply failed", "error", err)
		}
	}
}
