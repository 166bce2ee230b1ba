package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	TemplateEventJoined     = "event_joined"
	TemplateCommunityInvite = "community_invite"

	DefaultQueueSize = 256
	DefaultWorkers   = 2
	sendTimeout      = 10 * time.Second
)

// Notification 一条待发送的通知：收件用户 + 模板 + 模板上下文
type Notification struct {
	Template string
	UserID   uint64
	Email    string // 直接指定收件地址（收件人可能还没有账号），非空时不按 UserID 查询
	Context  map[string]string
}

// Dispatcher 尽力而为的通知投递。Notify 不返回错误，也不应阻塞调用方
type Dispatcher interface {
	Notify(ctx context.Context, n Notification)
}

// Sender 具体渠道（邮件、Kafka 等）
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

type SenderFunc func(ctx context.Context, n Notification) error

func (f SenderFunc) Send(ctx context.Context, n Notification) error { return f(ctx, n) }

// Nop 丢弃所有通知
type Nop struct{}

func (Nop) Notify(context.Context, Notification) {}

// AsyncDispatcher 有界队列 + 后台 worker。队列满时丢弃并记录日志，发送失败只记日志
type AsyncDispatcher struct {
	queue   chan Notification
	senders []Sender
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewAsyncDispatcher(queueSize, workers int, senders ...Sender) *AsyncDispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	d := &AsyncDispatcher{
		queue:   make(chan Notification, queueSize),
		senders: senders,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

func (d *AsyncDispatcher) Notify(_ context.Context, n Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		log.Printf("notify dropped (closed): template=%s user=%d", n.Template, n.UserID)
		return
	}
	select {
	case d.queue <- n:
	default:
		log.Printf("notify dropped (queue full): template=%s user=%d", n.Template, n.UserID)
	}
}

// Close 停止接收并等待队列中的通知发完
func (d *AsyncDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *AsyncDispatcher) work() {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *AsyncDispatcher) deliver(n Notification) {
	for _, s := range d.senders {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := SafeSend(ctx, s, n)
		cancel()
		if err != nil {
			log.Printf("notify send err: template=%s user=%d err=%v", n.Template, n.UserID, err)
		}
	}
}

// SafeSend 调用渠道发送，panic 转成错误返回
func SafeSend(ctx context.Context, s Sender, n Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panic: %v", r)
		}
	}()
	return s.Send(ctx, n)
}
