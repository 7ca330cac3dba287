package auth

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

// DefaultModel is used when no model file is configured
const DefaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// Role subjects used by the gateway route guard
const (
	SubjectAnonymous = "role_anonymous"
	SubjectUser      = "role_user"
	SubjectAdmin     = "role_admin"
)

type CasbinService struct{ E *casbin.Enforcer }

func NewCasbinService(db *gorm.DB, modelPath string) (*CasbinService, error) {
	adp, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("casbin adapter: %w", err)
	}
	var e *casbin.Enforcer
	if modelPath != "" {
		e, err = casbin.NewEnforcer(modelPath, adp)
	} else {
		var m model.Model
		if m, err = model.NewModelFromString(DefaultModel); err != nil {
			return nil, fmt.Errorf("casbin model: %w", err)
		}
		e, err = casbin.NewEnforcer(m, adp)
	}
	if err != nil {
		return nil, fmt.Errorf("casbin enforcer: %w", err)
	}
	if err := e.LoadPolicy(); err != nil {
		return nil, err
	}
	return &CasbinService{e}, nil
}

// SeedDefaults installs the storefront route policies when the store is
// empty. It reports whether anything was written.
func (s *CasbinService) SeedDefaults() (bool, error) {
	policies, err := s.E.GetPolicy()
	if err != nil {
		return false, err
	}
	if len(policies) > 0 {
		return false, nil
	}

	rules := [][]string{
		{SubjectAnonymous, "/auth/*", "(GET|POST)"},
		{SubjectAnonymous, "/session", "GET"},
		{SubjectAnonymous, "/cart", "(GET|PUT)"},
		{SubjectAnonymous, "/cart/*", "(GET|PUT|POST|DELETE)"},
		{SubjectAnonymous, "/checkout", "POST"},
		{SubjectUser, "/session/logout", "POST"},
		{SubjectUser, "/profile", "(GET|PUT)"},
		{SubjectUser, "/checkout/*", "POST"},
		{SubjectUser, "/orders", "GET"},
		{SubjectAdmin, "/admin/*", "(GET|POST|PUT|DELETE)"},
	}
	for _, r := range rules {
		if _, err := s.E.AddPolicy(r[0], r[1], r[2]); err != nil {
			return false, err
		}
	}
	if _, err := s.E.AddGroupingPolicy(SubjectUser, SubjectAnonymous); err != nil {
		return false, err
	}
	if _, err := s.E.AddGroupingPolicy(SubjectAdmin, SubjectUser); err != nil {
		return false, err
	}
	return true, s.E.SavePolicy()
}
