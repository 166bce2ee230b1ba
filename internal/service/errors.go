package service

import (
	"errors"

	"gorm.io/gorm"
)

// Kind 失败类型。调用方按 Kind 分支，不要解析 Message
type Kind string

const (
	KindAlreadyMember      Kind = "AlreadyMember"
	KindNotAMember         Kind = "NotAMember"
	KindSoleAdmin          Kind = "SoleAdminViolation"
	KindInvalidRole        Kind = "InvalidRole"
	KindNoPendingRequest   Kind = "NoPendingRequest"
	KindNotAnEvent         Kind = "NotAnEvent"
	KindAlreadyParticipant Kind = "AlreadyParticipant"
	KindNotParticipant     Kind = "NotParticipant"
	KindEventFull          Kind = "EventFull"
	KindNotCommunityMember Kind = "NotCommunityMember"
	KindEntityNotFound     Kind = "EntityNotFound"
	KindStoreUnavailable   Kind = "StoreUnavailable"
	KindPermissionDenied   Kind = "PermissionDenied"
	KindInvalidInput       Kind = "InvalidInput"
	KindDuplicateCommunity Kind = "DuplicateCommunity"
)

// Error 业务失败，Message 可直接展示给用户
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is 按 Kind 比较，errors.Is(err, ErrEventFull) 对任意 EventFull 都成立
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Retryable 只有存储层故障值得调用方退避重试，其余都是当前状态的确定结果
func (e *Error) Retryable() bool {
	return e.Kind == KindStoreUnavailable
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

var (
	ErrAlreadyMember      = newError(KindAlreadyMember, "You are already a member of this community.")
	ErrNotAMember         = newError(KindNotAMember, "User is not a member of this community.")
	ErrSoleAdmin          = newError(KindSoleAdmin, "This would leave the community without an admin. Please make another user an admin first.")
	ErrInvalidRole        = newError(KindInvalidRole, "Invalid role. Must be one of: member, moderator, admin")
	ErrNoPendingRequest   = newError(KindNoPendingRequest, "No pending membership request found for this user.")
	ErrNotAnEvent         = newError(KindNotAnEvent, "This post is not an event.")
	ErrAlreadyParticipant = newError(KindAlreadyParticipant, "You are already a participant of this event.")
	ErrNotParticipant     = newError(KindNotParticipant, "You are not a participant of this event.")
	ErrEventFull          = newError(KindEventFull, "This event is already full.")
	ErrNotCommunityMember = newError(KindNotCommunityMember, "You must be a member of this community.")
	ErrNotFound           = newError(KindEntityNotFound, "Not found.")
	ErrStoreUnavailable   = newError(KindStoreUnavailable, "Storage temporarily unavailable, please retry.")
	ErrPermissionDenied   = newError(KindPermissionDenied, "You do not have permission to perform this action.")
	ErrInvalidInput       = newError(KindInvalidInput, "Invalid input.")
	ErrDuplicateCommunity = newError(KindDuplicateCommunity, "A community with this name already exists. Please choose a different name.")
)

func notFound(what string) *Error {
	return newError(KindEntityNotFound, what+" not found.")
}

func invalid(msg string) *Error {
	return newError(KindInvalidInput, msg)
}

// KindOf 取出错误的 Kind；非本包错误视为存储故障
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStoreUnavailable
}

// asError 事务返回值统一收口：业务错误原样返回，记录不存在转 EntityNotFound，其余按存储故障包装
func asError(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Error{Kind: KindEntityNotFound, Message: ErrNotFound.Message, cause: err}
	}
	return &Error{Kind: KindStoreUnavailable, Message: ErrStoreUnavailable.Message, cause: err}
}
