package authz

import (
	"fmt"
	"sort"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 系统预置角色矩阵
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: "readonly_auditor",
			Policies: []Policy{
				{Object: "/summary", Action: "GET"},
				{Object: "/gateways", Action: "GET"},
				{Object: "/transactions", Action: "GET"},
				{Object: "/transactions/:transaction_no", Action: "GET"},
				{Object: "/transactions/:transaction_no/ledger", Action: "GET"},
				{Object: "/ledger/entries", Action: "GET"},
				{Object: "/accounts/:user_id", Action: "GET"},
			},
		},
		{
			Role: "payments",
			Policies: []Policy{
				{Object: "/payments", Action: "POST"},
				{Object: "/transactions/:transaction_no", Action: "GET"},
				{Object: "/transactions/:transaction_no/cancel", Action: "POST"},
				{Object: "/gateways", Action: "GET"},
			},
		},
		{
			Role: "payouts",
			Policies: []Policy{
				{Object: "/payouts", Action: "POST"},
				{Object: "/accounts/:user_id", Action: "GET"},
				{Object: "/transactions/:transaction_no", Action: "GET"},
			},
		},
		{
			Role:     "finance_ops",
			Inherits: []string{"readonly_auditor", "payments", "payouts"},
			Policies: []Policy{
				{Object: "/transactions/:transaction_no/dispute", Action: "POST"},
				{Object: "/transactions/:transaction_no/refund", Action: "POST"},
				{Object: "/transactions/:transaction_no/ledger/reconcile", Action: "POST"},
				{Object: "/accounts/:user_id/verification", Action: "PUT"},
				{Object: "/authz/roles", Action: "GET"},
				{Object: "/authz/roles/:role/policies", Action: "*"},
			},
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("authz service unavailable")
	}

	for _, seed := range BuiltinRoleSeeds() {
		role, err := s.EnsureRole(seed.Role)
		if err != nil {
			return err
		}
		for _, parent := range seed.Inherits {
			parentRole, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
		}
		for _, policy := range seed.Policies {
			if err := s.GrantRolePolicy(role, policy.Object, policy.Action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}

// BindServices 按配置绑定调用方服务与角色
func (s *Service) BindServices(bindings map[string][]string) error {
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.SetServiceRoles(name, bindings[name]); err != nil {
			return fmt.Errorf("bind service %s failed: %w", name, err)
		}
	}
	return nil
}
