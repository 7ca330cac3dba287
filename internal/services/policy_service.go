package services

import (
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/you/kycstore/domain"
)

const rolePrefix = "role_"

// Known route-guard roles
var policyRoles = map[string]bool{"anonymous": true, domain.RoleUser: true, domain.RoleAdmin: true}

// casbinEnforcer adapts *casbin.Enforcer to domain.CasbinEnforcer
type casbinEnforcer struct {
	enforcer *casbin.Enforcer
}

// NewCasbinEnforcer wraps a real enforcer
func NewCasbinEnforcer(enforcer *casbin.Enforcer) domain.CasbinEnforcer {
	return &casbinEnforcer{enforcer: enforcer}
}

func (w *casbinEnforcer) AddPolicy(params ...interface{}) (bool, error) {
	return w.enforcer.AddPolicy(params...)
}

func (w *casbinEnforcer) RemovePolicy(params ...interface{}) (bool, error) {
	return w.enforcer.RemovePolicy(params...)
}

func (w *casbinEnforcer) Enforce(rvals ...interface{}) (bool, error) {
	return w.enforcer.Enforce(rvals...)
}

func (w *casbinEnforcer) GetPolicy() ([][]string, error) {
	return w.enforcer.GetPolicy()
}

func (w *casbinEnforcer) SavePolicy() error {
	return w.enforcer.SavePolicy()
}

// RoutePolicyService manages the gateway's route policies. Roles are given
// bare ("user") or as subjects ("role_user").
type RoutePolicyService struct {
	enforcer domain.CasbinEnforcer
}

// NewRoutePolicyService creates a policy service over enforcer
func NewRoutePolicyService(enforcer domain.CasbinEnforcer) *RoutePolicyService {
	return &RoutePolicyService{enforcer: enforcer}
}

// RoleSubject maps a backend role to its policy subject. Anything that is
// not a known role is treated as anonymous.
func RoleSubject(role string) string {
	role = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(role)), rolePrefix)
	if !policyRoles[role] {
		role = "anonymous"
	}
	return rolePrefix + role
}

func validatePolicy(role, resource, action string) (string, error) {
	bare := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(role)), rolePrefix)
	if !policyRoles[bare] {
		return "", domain.NewValidationError("role", "Unknown role")
	}
	if !strings.HasPrefix(resource, "/") {
		return "", domain.NewValidationError("resource", "Resource must be an absolute path")
	}
	if strings.TrimSpace(action) == "" {
		return "", domain.NewValidationError("action", "Action is required")
	}
	return rolePrefix + bare, nil
}

// AddPolicy implements domain.PolicyService
func (p *RoutePolicyService) AddPolicy(role, resource, action string) error {
	subject, err := validatePolicy(role, resource, action)
	if err != nil {
		return err
	}
	if _, err := p.enforcer.AddPolicy(subject, resource, action); err != nil {
		return err
	}
	return p.enforcer.SavePolicy()
}

// RemovePolicy implements domain.PolicyService
func (p *RoutePolicyService) RemovePolicy(role, resource, action string) error {
	subject, err := validatePolicy(role, resource, action)
	if err != nil {
		return err
	}
	if _, err := p.enforcer.RemovePolicy(subject, resource, action); err != nil {
		return err
	}
	return p.enforcer.SavePolicy()
}

// CheckPermission implements domain.PolicyService
func (p *RoutePolicyService) CheckPermission(role, resource, action string) (bool, error) {
	return p.enforcer.Enforce(RoleSubject(role), resource, action)
}

// GetPolicies implements domain.PolicyService
func (p *RoutePolicyService) GetPolicies() [][]string {
	policies, _ := p.enforcer.GetPolicy()
	return policies
}

var _ domain.PolicyService = (*RoutePolicyService)(nil)
