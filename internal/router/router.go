package router

import (
	"time"

	"Uni_Hub/internal/handler"
	"Uni_Hub/internal/middleware"
	"Uni_Hub/internal/pkg"
	"Uni_Hub/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Deps 路由依赖的服务
type Deps struct {
	Tokens       *pkg.TokenCodec
	Memberships  *service.MembershipService
	Posts        *service.PostService
	Events       *service.EventService
	Invitations  *service.InvitationService
	Reconciler   *service.Reconciler
	AdminUserIDs []uint64
	AllowOrigins []string // 前端地址，为空时不开启 CORS
}

func InitRouter(d Deps) *gin.Engine {
	r := gin.Default()

	if len(d.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	community := handler.NewCommunityHandler(d.Memberships)
	post := handler.NewPostHandler(d.Posts, d.Memberships)
	event := handler.NewEventHandler(d.Events)
	invitation := handler.NewInvitationHandler(community, d.Invitations)
	admin := handler.NewAdminHandler(d.Reconciler)

	r.GET("/health", handler.Health)

	auth := middleware.AuthMiddleware(d.Tokens)
	api := r.Group("/api")

	// 只读接口允许匿名，私有社区内容由访问策略过滤
	publicGroup := api.Group("")
	publicGroup.Use(middleware.OptionalAuth(d.Tokens))
	{
		publicGroup.GET("/communities", community.List)
		publicGroup.GET("/communities/:slug", community.Get)
		publicGroup.GET("/communities/:slug/members", community.Members)
		publicGroup.GET("/communities/:slug/posts", post.ListByCommunity)
	}

	// 社区与成员
	communityGroup := api.Group("/communities")
	communityGroup.Use(auth)
	{
		communityGroup.POST("", community.Create)
		communityGroup.DELETE("/:slug", community.Delete)
		communityGroup.POST("/:slug/join", community.Join)
		communityGroup.POST("/:slug/leave", community.Leave)
		communityGroup.GET("/:slug/membership", community.MembershipStatus)
		communityGroup.PUT("/:slug/members/:user_id/role", community.UpdateRole)
		communityGroup.POST("/:slug/requests/:user_id", community.HandleRequest)
		communityGroup.POST("/:slug/posts", post.CreatePost)
		communityGroup.POST("/:slug/invite", invitation.Invite)
		communityGroup.GET("/:slug/invitations", invitation.List)
		communityGroup.GET("/:slug/analytics", community.Analytics)
	}

	// 帖子、评论、活动
	postGroup := api.Group("/posts")
	postGroup.Use(auth)
	{
		postGroup.DELETE("/:id", post.DeletePost)
		postGroup.POST("/:id/upvote", post.Upvote)
		postGroup.POST("/:id/pin", post.TogglePin)
		postGroup.POST("/:id/comments", post.AddComment)
		postGroup.POST("/:id/event/join", event.Join)
		postGroup.POST("/:id/event/leave", event.Leave)
	}

	commentGroup := api.Group("/comments")
	commentGroup.Use(auth)
	{
		commentGroup.DELETE("/:id", post.DeleteComment)
		commentGroup.POST("/:id/upvote", post.UpvoteComment)
	}

	adminGroup := api.Group("/admin")
	adminGroup.Use(auth, middleware.RequireUsers(d.AdminUserIDs))
	{
		adminGroup.POST("/reconcile", admin.Reconcile)
	}

	return r
}
