package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"Uni_Hub/internal/model"
	"Uni_Hub/internal/notify"
	"Uni_Hub/internal/pkg"
	"Uni_Hub/internal/repository/sqlstore"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const inviteSendTimeout = 15 * time.Second

var validate = validator.New()

// InvitationService 按邮箱邀请用户加入社区。
// 邀请记录先落库，邮件同步发送，发送失败不回滚邀请
type InvitationService struct {
	db          *gorm.DB
	mailer      notify.Sender
	frontendURL string
}

// NewInvitationService mailer 为 nil 时只记录邀请不发邮件
func NewInvitationService(db *gorm.DB, mailer notify.Sender, frontendURL string) *InvitationService {
	return &InvitationService{db: db, mailer: mailer, frontendURL: strings.TrimRight(frontendURL, "/")}
}

type InviteResult struct {
	Invitation *model.CommunityInvitation
	Message    string
	SendFailed bool // 邀请已创建但邮件没发出去
}

// Invite 创建邀请并发送邀请邮件。调用方负责校验 inviter 的管理员身份
func (s *InvitationService) Invite(ctx context.Context, inviterID, communityID uint64, email, message string) (*InviteResult, error) {
	email = strings.TrimSpace(email)
	if err := validate.Var(email, "required,email,max=64"); err != nil {
		return nil, invalid("Enter a valid email address.")
	}

	inv := &model.CommunityInvitation{
		CommunityID:  communityID,
		InviterID:    inviterID,
		InviteeEmail: strings.ToLower(email),
		Message:      pkg.SanitizeText(message),
		Status:       model.InvitationPending,
	}
	var (
		community *model.Community
		inviter   = "A Uni Hub member"
	)
	err := sqlstore.Tx(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		community, err = (&sqlstore.CommunityRepository{DB: tx}).FindByID(communityID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("Community")
		}
		if err != nil {
			return err
		}
		// 用户由外部服务维护，查不到时用通用称呼
		if u, err := (&sqlstore.UserRepository{DB: tx}).FindByID(inviterID); err == nil {
			inviter = u.DisplayName()
		}
		return (&sqlstore.InvitationRepository{DB: tx}).Create(inv)
	})
	if err != nil {
		return nil, asError(err)
	}

	if s.mailer == nil {
		return &InviteResult{Invitation: inv, Message: "Invitation created successfully."}, nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, inviteSendTimeout)
	defer cancel()
	err = notify.SafeSend(sendCtx, s.mailer, notify.Notification{
		Template: notify.TemplateCommunityInvite,
		Email:    inv.InviteeEmail,
		Context: map[string]string{
			"inviter":   inviter,
			"community": community.Name,
			"message":   html.UnescapeString(inv.Message), // 邮件是纯文本
			"link":      fmt.Sprintf("%s/communities/%s", s.frontendURL, community.Slug),
		},
	})
	if err != nil {
		log.Printf("invite send err: community=%d invitation=%d err=%v", communityID, inv.ID, err)
		return &InviteResult{
			Invitation: inv,
			Message:    "Invitation created but email could not be sent.",
			SendFailed: true,
		}, nil
	}

	now := time.Now()
	if err = (&sqlstore.InvitationRepository{DB: s.db.WithContext(ctx)}).MarkSent(inv.ID, now); err != nil {
		// 邮件已经发出，只记录回写失败
		log.Printf("invite mark sent err: invitation=%d err=%v", inv.ID, err)
	} else {
		inv.IsSent, inv.SentAt = true, &now
	}
	return &InviteResult{Invitation: inv, Message: "Invitation sent successfully."}, nil
}

// ListInvitations 社区的邀请记录，page 从 1 开始
func (s *InvitationService) ListInvitations(ctx context.Context, communityID uint64, page, size int) ([]model.CommunityInvitation, error) {
	page, size = pkg.ClampPage(page, size)
	list, err := (&sqlstore.InvitationRepository{DB: s.db.WithContext(ctx)}).ListByCommunity(communityID, (page-1)*size, size)
	return list, asError(err)
}
