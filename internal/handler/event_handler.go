package handler

import (
	"net/http"

	"Uni_Hub/internal/service"

	"github.com/gin-gonic/gin"
)

type EventHandler struct {
	svc *service.EventService
}

func NewEventHandler(svc *service.EventService) *EventHandler {
	return &EventHandler{svc: svc}
}

func (h *EventHandler) Join(c *gin.Context) {
	postID, valid := uintParam(c, "id")
	if !valid {
		return
	}
	msg, err := h.svc.JoinEvent(c.Request.Context(), currentUser(c), postID)
	if err != nil {
		fail(c, err)
		return
	}
	h.respondWithCount(c, postID, msg)
}

func (h *EventHandler) Leave(c *gin.Context) {
	postID, valid := uintParam(c, "id")
	if !valid {
		return
	}
	msg, err := h.svc.LeaveEvent(c.Request.Context(), currentUser(c), postID)
	if err != nil {
		fail(c, err)
		return
	}
	h.respondWithCount(c, postID, msg)
}

// respondWithCount 操作已成功，人数读取失败时省略该字段
func (h *EventHandler) respondWithCount(c *gin.Context, postID uint64, msg string) {
	n, err := h.svc.ParticipantCount(c.Request.Context(), postID)
	if err != nil {
		ok(c, http.StatusOK, msg, nil)
		return
	}
	ok(c, http.StatusOK, msg, gin.H{"participant_count": n})
}
