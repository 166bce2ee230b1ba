package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"Uni_Hub/internal/middleware"
	"Uni_Hub/internal/service"

	"github.com/gin-gonic/gin"
)

var kindStatus = map[service.Kind]int{
	service.KindAlreadyMember:      http.StatusBadRequest,
	service.KindNotAMember:         http.StatusBadRequest,
	service.KindSoleAdmin:          http.StatusBadRequest,
	service.KindInvalidRole:        http.StatusBadRequest,
	service.KindNoPendingRequest:   http.StatusNotFound,
	service.KindNotAnEvent:         http.StatusBadRequest,
	service.KindAlreadyParticipant: http.StatusBadRequest,
	service.KindNotParticipant:     http.StatusBadRequest,
	service.KindEventFull:          http.StatusBadRequest,
	service.KindNotCommunityMember: http.StatusForbidden,
	service.KindEntityNotFound:     http.StatusNotFound,
	service.KindStoreUnavailable:   http.StatusServiceUnavailable,
	service.KindPermissionDenied:   http.StatusForbidden,
	service.KindInvalidInput:       http.StatusBadRequest,
	service.KindDuplicateCommunity: http.StatusBadRequest,
}

func statusFor(kind service.Kind) int {
	if code, ok := kindStatus[kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// fail 业务错误原样返回 message + kind；存储故障只返回通用提示，细节记日志
func fail(c *gin.Context, err error) {
	kind := service.KindOf(err)
	msg := service.ErrStoreUnavailable.Message
	var e *service.Error
	if errors.As(err, &e) {
		msg = e.Message
	}
	if kind == service.KindStoreUnavailable {
		log.Printf("request failed: %s %s err=%v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(statusFor(kind), gin.H{"detail": msg, "kind": kind})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": msg, "kind": service.KindInvalidInput})
}

// ok 成功响应：{"detail": msg, ...payload}
func ok(c *gin.Context, code int, msg string, payload gin.H) {
	body := gin.H{"detail": msg}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(code, body)
}

// currentUser 登录用户 id，匿名为 0
func currentUser(c *gin.Context) uint64 {
	v, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0
	}
	id, _ := v.(uint64)
	return id
}

func uintParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}
