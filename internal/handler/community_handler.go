package handler

import (
	"net/http"
	"strconv"

	"Uni_Hub/internal/model"
	"Uni_Hub/internal/repository/sqlstore"
	"Uni_Hub/internal/service"

	"github.com/gin-gonic/gin"
)

type CommunityHandler struct {
	svc *service.MembershipService
}

type CommunityCreateReq struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	Category         string `json:"category"`
	Tags             string `json:"tags"`
	IsPrivate        bool   `json:"is_private"`
	RequiresApproval bool   `json:"requires_approval"`
}

type RoleUpdateReq struct {
	Role string `json:"role"`
}

type MembershipRequestReq struct {
	Action string `json:"action"` // approve | reject
}

func NewCommunityHandler(svc *service.MembershipService) *CommunityHandler {
	return &CommunityHandler{svc: svc}
}

// community 按路由里的 slug 取社区，失败时已写响应
func (h *CommunityHandler) community(c *gin.Context) (*model.Community, bool) {
	community, err := h.svc.FindBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return community, true
}

// requireAdmin 当前用户必须是社区创建者或已批准管理员
func (h *CommunityHandler) requireAdmin(c *gin.Context, community *model.Community) bool {
	isAdmin, err := h.svc.IsCommunityAdmin(c.Request.Context(), currentUser(c), community)
	if err != nil {
		fail(c, err)
		return false
	}
	if !isAdmin {
		fail(c, service.ErrPermissionDenied)
		return false
	}
	return true
}

func (h *CommunityHandler) Create(c *gin.Context) {
	var req CommunityCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}

	community, err := h.svc.CreateCommunity(c.Request.Context(), currentUser(c), service.CreateCommunityInput{
		Name:             req.Name,
		Description:      req.Description,
		Category:         req.Category,
		Tags:             req.Tags,
		IsPrivate:        req.IsPrivate,
		RequiresApproval: req.RequiresApproval,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Community created.", gin.H{"community": communityView(community)})
}

func (h *CommunityHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("size"))
	memberOf, _ := strconv.ParseBool(c.Query("member_of"))

	list, err := h.svc.ListCommunities(c.Request.Context(), sqlstore.ListFilter{
		ViewerID: currentUser(c),
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Tag:      c.Query("tag"),
		MemberOf: memberOf,
		OrderBy:  c.Query("order_by"),
	}, page, size)
	if err != nil {
		fail(c, err)
		return
	}
	views := make([]gin.H, 0, len(list))
	for i := range list {
		views = append(views, communityView(&list[i]))
	}
	ok(c, http.StatusOK, "ok", gin.H{"list": views})
}

// Get 社区详情，成员数走计数缓存
func (h *CommunityHandler) Get(c *gin.Context) {
	community, found := h.community(c)
	if !found {
		return
	}
	n, err := h.svc.MemberCount(c.Request.Context(), community.ID)
	if err != nil {
		fail(c, err)
		return
	}
	community.MemberCount = n
	ok(c, http.StatusOK, "ok", gin.H{"community": communityView(community)})
}

func (h *CommunityHandler) Delete(c *gin.Context) {
	community, found := h.community(c)
	if !found || !h.requireAdmin(c, community) {
		return
	}
	if err := h.svc.DeleteCommunity(c.Request.Context(), community.ID); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Community deleted.", nil)
}

func (h *CommunityHandler) Join(c *gin.Context) {
	community, found := h.community(c)
	if !found {
		return
	}
	m, msg, err := h.svc.Join(c.Request.Context(), currentUser(c), community.ID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, msg, gin.H{"membership": membershipView(m)})
}

func (h *CommunityHandler) Leave(c *gin.Context) {
	community, found := h.community(c)
	if !found {
		return
	}
	msg, err := h.svc.Leave(c.Request.Context(), currentUser(c), community.ID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, msg, nil)
}

func (h *CommunityHandler) Members(c *gin.Context) {
	community, found := h.community(c)
	if !found {
		return
	}
	list, err := h.svc.ListMembers(c.Request.Context(), currentUser(c), community.ID, c.Query("role"))
	if err != nil {
		fail(c, err)
		return
	}
	views := make([]gin.H, 0, len(list))
	for i := range list {
		views = append(views, membershipView(&list[i]))
	}
	ok(c, http.StatusOK, "ok", gin.H{"list": views})
}

func (h *CommunityHandler) MembershipStatus(c *gin.Context) {
	community, found := h.community(c)
	if !found {
		return
	}
	m, err := h.svc.MembershipStatus(c.Request.Context(), currentUser(c), community.ID)
	if err != nil {
		fail(c, err)
		return
	}
	if m == nil {
		ok(c, http.StatusOK, "You are not a member of this community.", gin.H{"is_member": false})
		return
	}
	ok(c, http.StatusOK, "ok", gin.H{
		"is_member":  m.Status == model.StatusApproved,
		"membership": membershipView(m),
	})
}

func (h *CommunityHandler) UpdateRole(c *gin.Context) {
	community, found := h.community(c)
	if !found || !h.requireAdmin(c, community) {
		return
	}
	target, valid := uintParam(c, "user_id")
	if !valid {
		return
	}
	var req RoleUpdateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	msg, err := h.svc.UpdateRole(c.Request.Context(), community.ID, target, model.Role(req.Role), currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, msg, nil)
}

func (h *CommunityHandler) HandleRequest(c *gin.Context) {
	community, found := h.community(c)
	if !found || !h.requireAdmin(c, community) {
		return
	}
	target, valid := uintParam(c, "user_id")
	if !valid {
		return
	}
	var req MembershipRequestReq
	if err := c.ShouldBindJSON(&req); err != nil || (req.Action != "approve" && req.Action != "reject") {
		badRequest(c, "Action must be 'approve' or 'reject'.")
		return
	}
	m, msg, err := h.svc.HandleMembershipRequest(c.Request.Context(), community.ID, target, req.Action == "approve")
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, msg, gin.H{"membership": membershipView(m)})
}

// Analytics 社区统计，仅管理员
func (h *CommunityHandler) Analytics(c *gin.Context) {
	community, found := h.community(c)
	if !found || !h.requireAdmin(c, community) {
		return
	}
	stats, err := h.svc.Analytics(c.Request.Context(), community.ID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "ok", gin.H{"analytics": stats})
}
