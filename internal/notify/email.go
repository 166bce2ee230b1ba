package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	"Uni_Hub/internal/repository/sqlstore"

	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string // 发件人邮箱
	Password string // 授权码/密码
	From     string // 显示的发件人，可与 Username 相同
}

// EmailSender 通过 SMTP 发送通知邮件，收件地址优先取 Notification.Email，否则按 UserID 查询
type EmailSender struct {
	cfg SMTPConfig
	db  *gorm.DB
}

func NewEmailSender(cfg SMTPConfig, db *gorm.DB) *EmailSender {
	return &EmailSender{cfg: cfg, db: db}
}

var ErrNoRecipient = errors.New("user has no email")

func (s *EmailSender) Send(ctx context.Context, n Notification) error {
	to, ctxMap := n.Email, map[string]string{}
	if to == "" {
		user, err := (&sqlstore.UserRepository{DB: s.db.WithContext(ctx)}).FindByID(n.UserID)
		if err != nil {
			return fmt.Errorf("lookup user %d: %w", n.UserID, err)
		}
		to = user.Email
		ctxMap["name"] = user.DisplayName()
	}
	if to == "" {
		return ErrNoRecipient
	}
	for k, v := range n.Context {
		ctxMap[k] = v
	}
	subject, body, err := Render(n.Template, ctxMap)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: s.cfg.Host}
	return d.DialAndSend(m)
}

// Render 渲染通知模板，返回标题与正文
func Render(template string, c map[string]string) (string, string, error) {
	switch template {
	case TemplateEventJoined:
		subject := fmt.Sprintf("You're Confirmed for %s 🎉", c["title"])
		location := c["location"]
		if location == "" {
			location = "Not specified"
		}
		body := fmt.Sprintf(`Hi %s,

You're confirmed for the event:

📌 %s
📍 Location: %s
📅 Date & Time: %s
🌐 Community: %s

You can view the event details here:
%s

See you there!
UniHub Team
`, c["name"], c["title"], location, c["date"], c["community"], c["link"])
		return subject, body, nil
	case TemplateCommunityInvite:
		subject := fmt.Sprintf("Invitation to join %s on Uni Hub", c["community"])
		note := ""
		if msg := strings.TrimSpace(c["message"]); msg != "" {
			note = msg + "\n\n"
		}
		body := fmt.Sprintf(`Hello,

%s has invited you to join the %s community on Uni Hub.

%sYou can join this community by creating an account or logging in at:
%s

Best regards,
Uni Hub Team
`, c["inviter"], c["community"], note, c["link"])
		return subject, body, nil
	default:
		return "", "", fmt.Errorf("unknown notification template %q", template)
	}
}
