package handler

import (
	"net/http"
	"strconv"

	"Uni_Hub/internal/service"

	"github.com/gin-gonic/gin"
)

// InvitationHandler 复用 CommunityHandler 的 slug 查找和管理员校验
type InvitationHandler struct {
	communities *CommunityHandler
	svc         *service.InvitationService
}

type InviteReq struct {
	InviteeEmail string `json:"invitee_email" binding:"required,email"`
	Message      string `json:"message"`
}

func NewInvitationHandler(communities *CommunityHandler, svc *service.InvitationService) *InvitationHandler {
	return &InvitationHandler{communities: communities, svc: svc}
}

// Invite 邮件发送失败时邀请仍然保留，返回 207
func (h *InvitationHandler) Invite(c *gin.Context) {
	community, found := h.communities.community(c)
	if !found || !h.communities.requireAdmin(c, community) {
		return
	}
	var req InviteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Enter a valid email address.")
		return
	}
	res, err := h.svc.Invite(c.Request.Context(), currentUser(c), community.ID, req.InviteeEmail, req.Message)
	if err != nil {
		fail(c, err)
		return
	}
	code := http.StatusCreated
	if res.SendFailed {
		code = http.StatusMultiStatus
	}
	ok(c, code, res.Message, gin.H{"invitation": invitationView(res.Invitation)})
}

func (h *InvitationHandler) List(c *gin.Context) {
	community, found := h.communities.community(c)
	if !found || !h.communities.requireAdmin(c, community) {
		return
	}
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("size"))
	list, err := h.svc.ListInvitations(c.Request.Context(), community.ID, page, size)
	if err != nil {
		fail(c, err)
		return
	}
	views := make([]gin.H, 0, len(list))
	for i := range list {
		views = append(views, invitationView(&list[i]))
	}
	ok(c, http.StatusOK, "ok", gin.H{"list": views})
}
