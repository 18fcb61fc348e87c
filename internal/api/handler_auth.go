package api

import (
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/rysavy-ondrej/project-inventor/internal/auth"
)

// authTimeHandler returns the server's clock, unauthenticated, so an
// orchestrator can compute its authorization-time header against the same
// reference the server will validate it with.
func (s *Server) authTimeHandler(c *echo.Context) error {
	return c.JSON(200, &timeResponse{Time: unixSeconds(time.Now())})
}

// authTokenHandler exchanges a username and a pre-hashed password digest
// for a session token bound to the caller's IP. Grounded on
// original_source/.../api/endpoints/auth.py's create_token.
func (s *Server) authTokenHandler(c *echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	body, _ := readBody(c)
	ip := requestIP(c.Request())

	if !auth.VerifyLogin(req.Username, req.Password, s.cfg.Authentication.Password) {
		s.recordAccounting(c, req.Username, body, 401)
		return unauthenticated(c, "invalid credentials")
	}

	token, err := s.sessions.Mint(req.Username, ip)
	if err != nil {
		s.recordAccounting(c, req.Username, body, 500)
		return internalError(c, "failed to mint session token")
	}

	if err := s.set.Orchestrators.Touch(c.Request().Context(), req.Username); err != nil {
		s.recordAccounting(c, req.Username, body, 500)
		return internalError(c, "failed to record orchestrator")
	}

	s.recordAccounting(c, req.Username, body, 200)
	return c.JSON(200, &tokenResponse{AccessToken: token})
}
