package handler

import (
	"net/http"
	"strconv"
	"time"

	"Uni_Hub/internal/model"
	"Uni_Hub/internal/service"

	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	svc         *service.PostService
	communities *service.MembershipService
}

type CreatePostReq struct {
	Title                 string     `json:"title"`
	Content               string     `json:"content"`
	PostType              string     `json:"post_type"`
	EventDate             *time.Time `json:"event_date"`
	EventLocation         string     `json:"event_location"`
	EventParticipantLimit *int64     `json:"event_participant_limit"`
}

type CreateCommentReq struct {
	Content  string  `json:"content"`
	ParentID *uint64 `json:"parent_id"`
}

func NewPostHandler(svc *service.PostService, communities *service.MembershipService) *PostHandler {
	return &PostHandler{svc: svc, communities: communities}
}

// CreatePost 创建帖子接口
func (h *PostHandler) CreatePost(c *gin.Context) {
	community, err := h.communities.FindBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		fail(c, err)
		return
	}

	var req CreatePostReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}

	post, err := h.svc.CreatePost(c.Request.Context(), currentUser(c), community.ID, service.CreatePostInput{
		Title:            req.Title,
		Content:          req.Content,
		PostType:         model.PostType(req.PostType),
		EventDate:        req.EventDate,
		Location:         req.EventLocation,
		ParticipantLimit: req.EventParticipantLimit,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Post created.", gin.H{"post": postView(post)})
}

// ListByCommunity 社区帖子列表，置顶优先
func (h *PostHandler) ListByCommunity(c *gin.Context) {
	community, err := h.communities.FindBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		fail(c, err)
		return
	}
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("size"))

	list, err := h.svc.ListPosts(c.Request.Context(), currentUser(c), community.ID, model.PostType(c.Query("type")), c.Query("search"), page, size)
	if err != nil {
		fail(c, err)
		return
	}
	views := make([]gin.H, 0, len(list))
	for i := range list {
		views = append(views, postView(&list[i]))
	}
	ok(c, http.StatusOK, "ok", gin.H{"list": views})
}

// DeletePost 删除帖子：作者或社区版主/管理员
func (h *PostHandler) DeletePost(c *gin.Context) {
	postID, valid := uintParam(c, "id")
	if !valid {
		return
	}
	if err := h.svc.DeletePost(c.Request.Context(), currentUser(c), postID); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Post deleted.", nil)
}

func (h *PostHandler) Upvote(c *gin.Context) {
	postID, valid := uintParam(c, "id")
	if !valid {
		return
	}
	upvoted, msg, err := h.svc.TogglePostUpvote(c.Request.Context(), currentUser(c), postID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, msg, gin.H{"upvoted": upvoted})
}

func (h *PostHandler) TogglePin(c *gin.Context) {
	postID, valid := uintParam(c, "id")
	if !valid {
		return
	}
	pinned, msg, err := h.svc.TogglePin(c.Request.Context(), currentUser(c), postID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, msg, gin.H{"is_pinned": pinned})
}

func (h *PostHandler) AddComment(c *gin.Context) {
	postID, valid := uintParam(c, "id")
	if !valid {
		return
	}
	var req CreateCommentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	comment, err := h.svc.AddComment(c.Request.Context(), currentUser(c), postID, req.ParentID, req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Comment added.", gin.H{"comment": commentView(comment)})
}

func (h *PostHandler) DeleteComment(c *gin.Context) {
	commentID, valid := uintParam(c, "id")
	if !valid {
		return
	}
	if err := h.svc.DeleteComment(c.Request.Context(), currentUser(c), commentID); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Comment deleted.", nil)
}

func (h *PostHandler) UpvoteComment(c *gin.Context) {
	commentID, valid := uintParam(c, "id")
	if !valid {
		return
	}
	upvoted, msg, err := h.svc.ToggleCommentUpvote(c.Request.Context(), currentUser(c), commentID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, msg, gin.H{"upvoted": upvoted})
}
