package handler

import (
	"Uni_Hub/internal/model"

	"github.com/gin-gonic/gin"
)

func communityView(c *model.Community) gin.H {
	return gin.H{
		"id":                c.ID,
		"name":              c.Name,
		"slug":              c.Slug,
		"description":       c.Description,
		"category":          c.Category,
		"tags":              c.Tags,
		"is_private":        c.IsPrivate,
		"requires_approval": c.RequiresApproval,
		"creator_id":        c.CreatorID,
		"member_count":      c.MemberCount,
		"created_at":        c.CreatedAt,
	}
}

func membershipView(m *model.Membership) gin.H {
	return gin.H{
		"id":           m.ID,
		"community_id": m.CommunityID,
		"user_id":      m.UserID,
		"role":         m.Role,
		"status":       m.Status,
		"joined_at":    m.CreatedAt,
	}
}

func postView(p *model.Post) gin.H {
	v := gin.H{
		"id":            p.ID,
		"community_id":  p.CommunityID,
		"author_id":     p.AuthorID,
		"title":         p.Title,
		"content":       p.Content,
		"post_type":     p.PostType,
		"is_pinned":     p.IsPinned,
		"upvote_count":  p.UpvoteCount,
		"comment_count": p.CommentCount,
		"created_at":    p.CreatedAt,
	}
	if ev, ok := p.EventDetails(); ok {
		v["event_date"] = ev.EventDate
		v["event_location"] = ev.Location
		v["event_participant_limit"] = ev.ParticipantLimit
		v["participant_count"] = ev.ParticipantCount
	}
	return v
}

func commentView(c *model.Comment) gin.H {
	return gin.H{
		"id":           c.ID,
		"post_id":      c.PostID,
		"author_id":    c.AuthorID,
		"parent_id":    c.ParentID,
		"content":      c.Content,
		"upvote_count": c.UpvoteCount,
		"created_at":   c.CreatedAt,
	}
}

func invitationView(inv *model.CommunityInvitation) gin.H {
	return gin.H{
		"id":            inv.ID,
		"community_id":  inv.CommunityID,
		"inviter_id":    inv.InviterID,
		"invitee_email": inv.InviteeEmail,
		"message":       inv.Message,
		"status":        inv.Status,
		"is_sent":       inv.IsSent,
		"sent_at":       inv.SentAt,
		"created_at":    inv.CreatedAt,
	}
}
