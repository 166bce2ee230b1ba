package service

import (
	"context"
	"errors"
	"log"
	"time"

	"Uni_Hub/internal/repository/redis"
	"Uni_Hub/internal/repository/sqlstore"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type counterKey struct {
	counter sqlstore.Counter
	id      uint64
}

// touched 一次事务内刷新过的计数，提交后统一失效缓存
type touched []counterKey

func (t *touched) add(c sqlstore.Counter, id uint64) {
	for _, k := range *t {
		if k.counter == c && k.id == id {
			return
		}
	}
	*t = append(*t, counterKey{counter: c, id: id})
}

// CounterService 冗余计数：事务内增量刷新 + 提交后缓存失效 + 读缓存
type CounterService struct {
	db    *gorm.DB
	cache *redis.CountCache
}

// NewCounterService cache 可为 nil，此时读路径直接查库
func NewCounterService(db *gorm.DB, cache *redis.CountCache) *CounterService {
	return &CounterService{db: db, cache: cache}
}

// refresh 在触发变更的同一事务里、写入之后重算计数，不会读到并发写入的中间态
func (s *CounterService) refresh(tx *gorm.DB, t *touched, c sqlstore.Counter, id uint64) (int64, error) {
	n, err := (&sqlstore.CounterRepository{DB: tx}).Refresh(c, id)
	if err != nil {
		return 0, err
	}
	t.add(c, id)
	return n, nil
}

// invalidate 事务提交后、返回调用方前失效缓存，保证调用方接下来的读能看到新值
func (s *CounterService) invalidate(ctx context.Context, t touched) {
	for _, k := range t {
		if err := s.cache.Invalidate(ctx, string(k.counter), k.id); err != nil {
			log.Printf("count cache invalidate err: counter=%s id=%d err=%v", k.counter, k.id, err)
		}
	}
}

// Get 读取计数：先查缓存，miss 则回源冗余字段并回填
func (s *CounterService) Get(ctx context.Context, c sqlstore.Counter, id uint64) (int64, error) {
	v, ok, snap, err := s.cache.Get(ctx, string(c), id)
	if err == nil && ok {
		return v, nil
	}
	if err != nil {
		log.Printf("count cache get err: counter=%s id=%d err=%v", c, id, err)
	}

	n, err := (&sqlstore.CounterRepository{DB: s.db.WithContext(ctx)}).Cached(c, id)
	if err != nil {
		return 0, asError(err)
	}
	if _, err = s.cache.Fill(ctx, string(c), id, n, snap); err != nil {
		log.Printf("count cache fill err: counter=%s id=%d err=%v", c, id, err)
	}
	return n, nil
}

// CounterDrift 单个计数的对账结果
type CounterDrift struct {
	Checked   int
	Corrected int
}

// SweepReport 一次全量对账的汇总
type SweepReport struct {
	Counters map[sqlstore.Counter]*CounterDrift
	Failed   int
	Skipped  bool // 其它实例正在对账
}

func (r *SweepReport) Corrected() int {
	total := 0
	for _, d := range r.Counters {
		total += d.Corrected
	}
	return total
}

const (
	reconcileLockName = "reconcile:counters"
	reconcileLockTTL  = 10 * time.Minute
)

// Reconciler 计数全量对账：逐个实体加锁重算，可与正常流量并发执行
type Reconciler struct {
	counters  *CounterService
	lock      *redis.DistLock
	batchSize int
	interval  time.Duration
}

// NewReconciler lock 为 nil 时不做跨实例互斥
func NewReconciler(counters *CounterService, lock *redis.DistLock, batchSize int, interval time.Duration) *Reconciler {
	if batchSize <= 0 {
		batchSize = 500
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Reconciler{
		counters:  counters,
		lock:      lock,
		batchSize: batchSize,
		interval:  interval,
	}
}

// Run 对账定时任务启动器
func (r *Reconciler) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := r.Sweep(ctx); err != nil {
				log.Printf("reconcile sweep err: %v", err)
			}
		}
	}
}

// Sweep 全量对账一次，幂等
func (r *Reconciler) Sweep(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{Counters: make(map[sqlstore.Counter]*CounterDrift)}

	if r.lock != nil {
		token := uuid.NewString()
		got, err := r.lock.Acquire(ctx, reconcileLockName, token, reconcileLockTTL)
		if err != nil {
			return nil, err
		}
		if !got {
			log.Printf("reconcile skipped: another sweep holds the lock")
			report.Skipped = true
			return report, nil
		}
		defer func() {
			if err := r.lock.Release(context.Background(), reconcileLockName, token); err != nil {
				log.Printf("reconcile lock release err: %v", err)
			}
		}()
	}

	start := time.Now()
	for _, c := range sqlstore.Counters {
		drift := &CounterDrift{}
		report.Counters[c] = drift
		if err := r.sweepCounter(ctx, c, drift, report); err != nil {
			return report, err
		}
	}
	log.Printf("reconcile done: corrected=%d failed=%d cost=%s", report.Corrected(), report.Failed, time.Since(start))
	return report, nil
}

func (r *Reconciler) sweepCounter(ctx context.Context, c sqlstore.Counter, drift *CounterDrift, report *SweepReport) error {
	var lastID uint64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ids, err := (&sqlstore.CounterRepository{DB: r.counters.db.WithContext(ctx)}).IDsAfter(c, lastID, r.batchSize)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		for _, id := range ids {
			changed, err := r.ReconcileOne(ctx, c, id)
			if err != nil {
				// 单个实体失败不影响整体，下次对账再修
				if !errors.Is(err, ErrNotFound) {
					log.Printf("reconcile err: counter=%s id=%d err=%v", c, id, err)
					report.Failed++
				}
				continue
			}
			drift.Checked++
			if changed {
				drift.Corrected++
			}
		}
		lastID = ids[len(ids)-1]
	}
}

// ReconcileOne 修正单个实体的计数，返回是否发生了修正。
// 先锁计数所在行，和业务写入串行，避免用旧的真实值覆盖新值
func (r *Reconciler) ReconcileOne(ctx context.Context, c sqlstore.Counter, id uint64) (bool, error) {
	var (
		changed bool
		t       touched
	)
	err := sqlstore.Tx(ctx, r.counters.db, func(tx *gorm.DB) error {
		repo := &sqlstore.CounterRepository{DB: tx}
		if err := repo.Lock(c, id); err != nil {
			return err
		}
		cached, err := repo.Cached(c, id)
		if err != nil {
			return err
		}
		actual, err := repo.RealCount(c, id)
		if err != nil {
			return err
		}
		if actual == cached {
			return nil
		}
		if _, err = r.counters.refresh(tx, &t, c, id); err != nil {
			return err
		}
		changed = true
		log.Printf("reconcile fix: counter=%s id=%d cached=%d actual=%d", c, id, cached, actual)
		return nil
	})
	if err != nil {
		return false, asError(err)
	}
	r.counters.invalidate(ctx, t)
	return changed, nil
}
