package bootstrap

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Role is one pipeline process role.
type Role string

const (
	RoleScheduler  Role = "scheduler"
	RoleExecutor   Role = "executor"
	RoleCorrelator Role = "correlator"
	RoleNormalizer Role = "normalizer"
	RoleRecorder   Role = "recorder"
	RoleAPI        Role = "api"
)

// AllRoles is every role, in pipeline order.
var AllRoles = []Role{RoleScheduler, RoleExecutor, RoleCorrelator, RoleNormalizer, RoleRecorder, RoleAPI}

// ErrNoRoles is returned when nothing was asked to run.
var ErrNoRoles = errors.New("no roles to run")

// ParseRoles parses a comma-separated role list. "all" expands to AllRoles.
func ParseRoles(s string) ([]Role, error) {
	var roles []Role
	for part := range strings.SplitSeq(s, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if name == "all" {
			return AllRoles, nil
		}
		role := Role(name)
		if !slices.Contains(AllRoles, role) {
			return nil, fmt.Errorf("unknown role %q", name)
		}
		if !slices.Contains(roles, role) {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		return nil, ErrNoRoles
	}
	return roles, nil
}

// needsDatabase reports whether any role touches PostgreSQL. The executor
// and normalizer only talk to Redis.
func needsDatabase(roles []Role) bool {
	for _, r := range roles {
		switch r {
		case RoleScheduler, RoleCorrelator, RoleRecorder, RoleAPI:
			return true
		}
	}
	return false
}
