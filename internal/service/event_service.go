package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"

	"Uni_Hub/internal/model"
	"Uni_Hub/internal/notify"
	"Uni_Hub/internal/repository/sqlstore"

	"gorm.io/gorm"
)

const eventDateLayout = "Monday, 02 January 2006 at 03:04 PM"

// EventService 活动报名。容量检查与写入在活动行锁下完成
type EventService struct {
	db          *gorm.DB
	counters    *CounterService
	notifier    notify.Dispatcher
	policy      AccessPolicy
	frontendURL string
}

// NewEventService notifier/policy 为 nil 时分别使用 notify.Nop 与 MembershipPolicy
func NewEventService(db *gorm.DB, counters *CounterService, notifier notify.Dispatcher, policy AccessPolicy, frontendURL string) *EventService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if policy == nil {
		policy = MembershipPolicy{}
	}
	return &EventService{
		db:          db,
		counters:    counters,
		notifier:    notifier,
		policy:      policy,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// JoinEvent 报名活动，成功后尽力发送确认通知，通知失败不影响报名结果
func (s *EventService) JoinEvent(ctx context.Context, userID, postID uint64) (string, error) {
	var (
		post      *model.Post
		community *model.Community
		t         touched
	)
	err := sqlstore.Tx(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		post, err = (&sqlstore.PostRepository{DB: tx}).FindByID(postID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("Post")
		}
		if err != nil {
			return err
		}
		if _, ok := post.EventDetails(); !ok {
			return ErrNotAnEvent
		}
		// 同一活动的报名在这把锁上排队
		ev, err := (&sqlstore.PostRepository{DB: tx}).LockEvent(postID)
		if err != nil {
			return err
		}
		post.Event = ev

		pRepo := &sqlstore.ParticipantRepository{DB: tx}
		joined, err := pRepo.Exists(postID, userID)
		if err != nil {
			return err
		}
		if joined {
			return ErrAlreadyParticipant
		}
		current, err := pRepo.Count(postID)
		if err != nil {
			return err
		}
		if !ev.HasCapacity(current) {
			return ErrEventFull
		}

		community, err = (&sqlstore.CommunityRepository{DB: tx}).FindByID(post.CommunityID)
		if err != nil {
			return err
		}
		ok, err := s.policy.CanAccess(tx, userID, community)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotCommunityMember
		}

		added, err := pRepo.Add(postID, userID)
		if err != nil {
			return err
		}
		if !added {
			return ErrAlreadyParticipant
		}
		ev.ParticipantCount, err = s.counters.refresh(tx, &t, sqlstore.ParticipantCount, postID)
		return err
	})
	if err != nil {
		return "", asError(err)
	}
	s.counters.invalidate(ctx, t)
	s.notifyJoined(ctx, userID, post, community)
	return "You have successfully joined this event.", nil
}

// LeaveEvent 取消报名
func (s *EventService) LeaveEvent(ctx context.Context, userID, postID uint64) (string, error) {
	var t touched
	err := sqlstore.Tx(ctx, s.db, func(tx *gorm.DB) error {
		pRepo := &sqlstore.PostRepository{DB: tx}
		post, err := pRepo.FindByID(postID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("Post")
		}
		if err != nil {
			return err
		}
		if _, ok := post.EventDetails(); !ok {
			return ErrNotAnEvent
		}
		if _, err = pRepo.LockEvent(postID); err != nil {
			return err
		}
		removed, err := (&sqlstore.ParticipantRepository{DB: tx}).Remove(postID, userID)
		if err != nil {
			return err
		}
		if !removed {
			return ErrNotParticipant
		}
		_, err = s.counters.refresh(tx, &t, sqlstore.ParticipantCount, postID)
		return err
	})
	if err != nil {
		return "", asError(err)
	}
	s.counters.invalidate(ctx, t)
	return "You have left this event.", nil
}

// ParticipantCount 报名人数（读缓存）
func (s *EventService) ParticipantCount(ctx context.Context, postID uint64) (int64, error) {
	return s.counters.Get(ctx, sqlstore.ParticipantCount, postID)
}

// notifyJoined 没有活动时间的活动不发确认
func (s *EventService) notifyJoined(ctx context.Context, userID uint64, post *model.Post, community *model.Community) {
	ev, ok := post.EventDetails()
	if !ok || ev.EventDate == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("event notify panic: post=%d user=%d err=%v", post.ID, userID, r)
		}
	}()
	s.notifier.Notify(ctx, notify.Notification{
		Template: notify.TemplateEventJoined,
		UserID:   userID,
		Context: map[string]string{
			"post_id":   strconv.FormatUint(post.ID, 10),
			"title":     html.UnescapeString(post.Title), // 邮件是纯文本
			"location":  ev.Location,
			"date":      ev.EventDate.Format(eventDateLayout),
			"community": community.Name,
			"link":      fmt.Sprintf("%s/communities/%s/posts/%d", s.frontendURL, community.Slug, post.ID),
		},
	})
}
