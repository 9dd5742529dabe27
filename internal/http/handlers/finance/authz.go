package finance

import (
	"strings"

	"github.com/fanzfinance/internal/http/response"

	"github.com/gin-gonic/gin"
)

// RolePolicyRequest 角色策略变更请求
type RolePolicyRequest struct {
	Object string `json:"object" binding:"required"`
	Action string `json:"action" binding:"required"`
}

// ListRoles 列出授权角色
func (h *Handler) ListRoles(c *gin.Context) {
	if !h.authzEnabled(c) {
		return
	}
	roles, err := h.Authz.ListRoles()
	if err != nil {
		respondError(c, response.CodeInternal, "list roles failed", err)
		return
	}
	response.Success(c, roles)
}

// GetRolePolicies 查询角色策略
func (h *Handler) GetRolePolicies(c *gin.Context) {
	if !h.authzEnabled(c) {
		return
	}
	policies, err := h.Authz.GetRolePolicies(c.Param("role"))
	if err != nil {
		respondInvalidRequest(c, err.Error(), nil)
		return
	}
	response.Success(c, policies)
}

// GrantRolePolicy 为角色授予策略
func (h *Handler) GrantRolePolicy(c *gin.Context) {
	req, ok := h.bindRolePolicy(c)
	if !ok {
		return
	}
	role := c.Param("role")
	if err := h.Authz.GrantRolePolicy(role, req.Object, req.Action); err != nil {
		respondInvalidRequest(c, err.Error(), nil)
		return
	}
	requestLog(c).Infow("authz_policy_granted", "role", role, "object", req.Object, "action", req.Action)
	h.respondRolePolicies(c, role)
}

// RevokeRolePolicy 撤销角色策略
func (h *Handler) RevokeRolePolicy(c *gin.Context) {
	req, ok := h.bindRolePolicy(c)
	if !ok {
		return
	}
	role := c.Param("role")
	if err := h.Authz.RevokeRolePolicy(role, req.Object, req.Action); err != nil {
		respondInvalidRequest(c, err.Error(), nil)
		return
	}
	requestLog(c).Infow("authz_policy_revoked", "role", role, "object", req.Object, "action", req.Action)
	h.respondRolePolicies(c, role)
}

func (h *Handler) authzEnabled(c *gin.Context) bool {
	if h.Authz == nil {
		response.Error(c, response.CodeServiceUnavailable, "authorization is disabled")
		return false
	}
	return true
}

func (h *Handler) bindRolePolicy(c *gin.Context) (*RolePolicyRequest, bool) {
	if !h.authzEnabled(c) {
		return nil, false
	}
	var req RolePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, "invalid request body", err)
		return nil, false
	}
	req.Object = strings.TrimSpace(req.Object)
	req.Action = strings.TrimSpace(req.Action)
	return &req, true
}

func (h *Handler) respondRolePolicies(c *gin.Context, role string) {
	policies, err := h.Authz.GetRolePolicies(role)
	if err != nil {
		respondError(c, response.CodeInternal, "get role policies failed", err)
		return
	}
	response.Success(c, policies)
}
