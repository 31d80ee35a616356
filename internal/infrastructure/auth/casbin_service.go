package auth

import (
	"fmt"
	"log"

	"github.com/casbin/casbin/v2"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/you/medrecsvc/domain"
	"gorm.io/gorm"
)

// DefaultPolicies are seeded when neither the store nor a policy file provides any
var DefaultPolicies = [][]string{
	{"role_doctor", "/auth/me", "GET"},
	{"role_doctor", "/auth/logout", "POST"},
	{"role_patient", "/auth/me", "GET"},
	{"role_patient", "/auth/logout", "POST"},
	{"role_doctor", "/api/patients/:id", "GET"},
	{"role_owner", "/api/doctors/:id", "GET"},
	{"role_owner", "/api/doctors/:id/profile", "PUT"},
	{"role_owner", "/api/patients/:id", "GET"},
	{"role_owner", "/api/patients/:id/profile", "PUT"},
}

type CasbinService struct{ E *casbin.Enforcer }

// NewCasbinService builds an enforcer backed by the SQL store when db is set,
// otherwise by the CSV file at policyPath. A SQL store starts empty; see Seed.
func NewCasbinService(db *gorm.DB, modelPath, policyPath string) (*CasbinService, error) {
	if db == nil {
		e, err := casbin.NewEnforcer(modelPath, policyPath)
		if err != nil {
			return nil, fmt.Errorf("casbin file enforcer: %w", err)
		}
		return &CasbinService{E: e}, nil
	}

	adp, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("casbin gorm adapter: %w", err)
	}
	e, err := casbin.NewEnforcer(modelPath, adp)
	if err != nil {
		return nil, fmt.Errorf("casbin enforcer: %w", err)
	}
	if err := e.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("casbin load policy: %w", err)
	}
	return &CasbinService{E: e}, nil
}

// Seed copies the policy file (or DefaultPolicies) into an empty store.
// Rules are written through policies; grouping rules go to the enforcer directly.
func (s *CasbinService) Seed(policies domain.PolicyService, modelPath, policyPath string) error {
	if len(policies.GetPolicies()) > 0 {
		return nil
	}

	rules := DefaultPolicies
	var groups [][]string
	if policyPath != "" {
		file, err := casbin.NewEnforcer(modelPath, policyPath)
		if err != nil {
			return fmt.Errorf("casbin seed file: %w", err)
		}
		if rules, err = file.GetPolicy(); err != nil {
			return err
		}
		if groups, err = file.GetGroupingPolicy(); err != nil {
			return err
		}
	}

	for _, rule := range rules {
		if len(rule) != 3 {
			return fmt.Errorf("casbin seed: rule %v must be subject, object, action", rule)
		}
		if err := policies.AddPolicy(rule[0], rule[1], rule[2]); err != nil {
			return fmt.Errorf("casbin seed policies: %w", err)
		}
	}
	if len(groups) > 0 {
		if _, err := s.E.AddGroupingPolicies(groups); err != nil {
			return fmt.Errorf("casbin seed groups: %w", err)
		}
	}
	log.Printf("casbin: seeded %d policies", len(rules))
	return nil
}
