package mocks

import "github.com/you/medrecsvc/domain"

// MockCasbinEnforcer implements the CasbinEnforcer interface for testing
type MockCasbinEnforcer struct {
	AddPolicyFunc  func(params ...interface{}) (bool, error)
	EnforceFunc    func(rvals ...interface{}) (bool, error)
	GetPolicyFunc  func() ([][]string, error)
	SavePolicyFunc func() error
	policies       [][]string
	SaveCalls      int
}

// Compile-time interface compliance verification
var _ domain.CasbinEnforcer = (*MockCasbinEnforcer)(nil)

// NewMockCasbinEnforcer creates a new MockCasbinEnforcer with default behaviors
func NewMockCasbinEnforcer() *MockCasbinEnforcer {
	return &MockCasbinEnforcer{
		policies: [][]string{
			{"role_doctor", "/auth/me", "GET"},
			{"role_patient", "/auth/me", "GET"},
		},
	}
}

// AddPolicy adds a new policy rule
func (m *MockCasbinEnforcer) AddPolicy(params ...interface{}) (bool, error) {
	if m.AddPolicyFunc != nil {
		return m.AddPolicyFunc(params...)
	}
	rule := toRule(params)
	if len(rule) < 3 || m.indexOf(rule) >= 0 {
		return false, nil
	}
	m.policies = append(m.policies, rule)
	return true, nil
}

// Enforce checks if a request should be allowed.
// The default matches stored policies exactly, without pattern support.
func (m *MockCasbinEnforcer) Enforce(rvals ...interface{}) (bool, error) {
	if m.EnforceFunc != nil {
		return m.EnforceFunc(rvals...)
	}
	return m.indexOf(toRule(rvals)) >= 0, nil
}

// GetPolicy returns all policies
func (m *MockCasbinEnforcer) GetPolicy() ([][]string, error) {
	if m.GetPolicyFunc != nil {
		return m.GetPolicyFunc()
	}
	// Return copy of internal policies
	result := make([][]string, len(m.policies))
	for i, policy := range m.policies {
		result[i] = make([]string, len(policy))
		copy(result[i], policy)
	}
	return result, nil
}

// SavePolicy saves all policies
func (m *MockCasbinEnforcer) SavePolicy() error {
	m.SaveCalls++
	if m.SavePolicyFunc != nil {
		return m.SavePolicyFunc()
	}
	return nil
}

// SetPolicies sets the internal policies (test helper)
func (m *MockCasbinEnforcer) SetPolicies(policies [][]string) {
	m.policies = make([][]string, len(policies))
	for i, policy := range policies {
		m.policies[i] = make([]string, len(policy))
		copy(m.policies[i], policy)
	}
}

func (m *MockCasbinEnforcer) indexOf(rule []string) int {
	for i, p := range m.policies {
		if len(p) != len(rule) {
			continue
		}
		match := true
		for j := range p {
			if p[j] != rule[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func toRule(params []interface{}) []string {
	rule := make([]string, 0, len(params))
	for _, p := range params {
		s, ok := p.(string)
		if !ok {
			return nil
		}
		rule = append(rule, s)
	}
	return rule
}
