package config

import (
	"fmt"
	"strings"

	"github.com/roach88/ntcore/internal/nt"
)

// Validation error codes (E200-E299)
const (
	ErrInvalidMode       = "E201" // unknown mode
	ErrInvalidPort       = "E202" // port outside 0..65535
	ErrInvalidUpdateRate = "E203" // update rate outside [0.01, 1.0]
	ErrInvalidServer     = "E204" // unparsable client server address
	ErrConflictingClient = "E205" // both servers and team set
	ErrMissingServers    = "E206" // client mode without servers or team
	ErrInvalidTeam       = "E207" // negative team number
	ErrInvalidLogLevel   = "E208" // unknown log level
)

// ValidationError is one problem found by Validate.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is every problem found in one configuration.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks c and returns all problems found.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	switch c.Mode {
	case ModeStandalone, ModeServer, ModeClient:
	default:
		add("mode", ErrInvalidMode, "unknown mode %q (want server, client or standalone)", c.Mode)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		add("server.port", ErrInvalidPort, "port %d out of range", c.Server.Port)
	}
	if c.Client.Port < 0 || c.Client.Port > 65535 {
		add("client.port", ErrInvalidPort, "port %d out of range", c.Client.Port)
	}

	if c.UpdateRate < MinUpdateRate || c.UpdateRate > MaxUpdateRate {
		add("update_rate", ErrInvalidUpdateRate, "%g not in [%g, %g]", c.UpdateRate, MinUpdateRate, MaxUpdateRate)
	}

	if c.Client.Team < 0 {
		add("client.team", ErrInvalidTeam, "team %d is negative", c.Client.Team)
	}
	if c.Client.Team > 0 && len(c.Client.Servers) > 0 {
		add("client", ErrConflictingClient, "servers and team are mutually exclusive")
	}
	for i, s := range c.Client.Servers {
		if _, err := nt.ParseServer(s); err != nil {
			add(fmt.Sprintf("client.servers[%d]", i), ErrInvalidServer, "%q: %v", s, err)
		}
	}
	if c.Mode == ModeClient && c.Client.Team <= 0 && len(c.Client.Servers) == 0 {
		add("client", ErrMissingServers, "client mode needs servers or team")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error", "critical":
	default:
		add("log_level", ErrInvalidLogLevel, "unknown log level %q", c.LogLevel)
	}

	return errs
}
