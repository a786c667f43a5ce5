package moderation

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"

	"inkwell/internal/models"

	"github.com/rs/zerolog/log"
)

// Permission represents an operation a role may be allowed to perform
type Permission string

const (
	PermissionCreateReport   Permission = "create_report"
	PermissionViewReports    Permission = "view_reports"
	PermissionResolveReports Permission = "resolve_reports"
	PermissionBanUsers       Permission = "ban_users"
	PermissionDeleteUsers    Permission = "delete_users"
	PermissionManageRoles    Permission = "manage_roles"
	PermissionHidePosts      Permission = "hide_posts"
	PermissionDeletePosts    Permission = "delete_posts"
	PermissionViewAuditLog   Permission = "view_audit_log"
)

// AllPermissions returns all available permissions
func AllPermissions() []Permission {
	return []Permission{
		PermissionCreateReport,
		PermissionViewReports,
		PermissionResolveReports,
		PermissionBanUsers,
		PermissionDeleteUsers,
		PermissionManageRoles,
		PermissionHidePosts,
		PermissionDeletePosts,
		PermissionViewAuditLog,
	}
}

// RolePermissions is the permission set granted to one account role
type RolePermissions struct {
	Role        models.Role  `json:"-"` // set from map key during loading
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
}

// HasPermission checks if this role has the given permission
func (r *RolePermissions) HasPermission(perm Permission) bool {
	return slices.Contains(r.Permissions, perm)
}

// PolicyConfig is the role policy loaded from JSON
type PolicyConfig struct {
	Roles map[models.Role]*RolePermissions `json:"roles"`
}

// DefaultPolicyConfig grants admins everything and users the right to report
func DefaultPolicyConfig() *PolicyConfig {
	return &PolicyConfig{
		Roles: map[models.Role]*RolePermissions{
			models.RoleAdmin: {
				Role:        models.RoleAdmin,
				Description: "Full moderation control",
				Permissions: AllPermissions(),
			},
			models.RoleUser: {
				Role:        models.RoleUser,
				Description: "Regular member",
				Permissions: []Permission{PermissionCreateReport},
			},
		},
	}
}

// Validate checks that the config only names known roles and permissions
func (c *PolicyConfig) Validate() error {
	if c.Roles == nil {
		c.Roles = make(map[models.Role]*RolePermissions)
	}

	for name, role := range c.Roles {
		if !name.Valid() {
			return &ConfigError{Field: "roles", Message: "unknown role: " + string(name)}
		}
		if role == nil {
			return &ConfigError{Field: "roles", Message: "role " + string(name) + " has no definition"}
		}
		for _, p := range role.Permissions {
			if !slices.Contains(AllPermissions(), p) {
				return &ConfigError{
					Field:   "roles." + string(name),
					Message: "unknown permission: " + string(p),
				}
			}
		}
		role.Role = name
	}

	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "moderation config error in " + e.Field + ": " + e.Message
}

// Policy answers role-based permission checks. It is safe for concurrent use
// and can be reloaded from disk without a restart.
type Policy struct {
	mu         sync.RWMutex
	config     *PolicyConfig
	configPath string
}

// NewPolicy loads the role policy from configPath. An empty path or a
// missing file selects DefaultPolicyConfig.
func NewPolicy(configPath string) (*Policy, error) {
	p := &Policy{
		configPath: configPath,
		config:     DefaultPolicyConfig(),
	}

	if configPath == "" {
		log.Info().Msg("moderation: no policy path provided, using default roles")
		return p, nil
	}

	if err := p.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load moderation policy: %w", err)
	}

	return p, nil
}

func (p *Policy) loadConfig() error {
	data, err := os.ReadFile(p.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", p.configPath).Msg("moderation: policy file not found, using default roles")
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config PolicyConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	p.mu.Lock()
	p.config = &config
	p.mu.Unlock()

	log.Info().
		Int("roles", len(config.Roles)).
		Str("path", p.configPath).
		Msg("moderation: policy loaded")

	return nil
}

// Reload reloads the policy from disk
func (p *Policy) Reload() error {
	if p.configPath == "" {
		return nil
	}
	return p.loadConfig()
}

// HasPermission returns true if the user's role grants perm
func (p *Policy) HasPermission(user *models.User, perm Permission) bool {
	if user == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	role, ok := p.config.Roles[user.Role]
	if !ok {
		return false
	}
	return role.HasPermission(perm)
}

// ListRoles returns a copy of all configured roles
func (p *Policy) ListRoles() map[models.Role]*RolePermissions {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make(map[models.Role]*RolePermissions, len(p.config.Roles))
	for name, role := range p.config.Roles {
		roleCopy := *role
		roleCopy.Permissions = slices.Clone(role.Permissions)
		result[name] = &roleCopy
	}
	return result
}
