package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Uni_Hub/internal/config"
	"Uni_Hub/internal/notify"
	"Uni_Hub/internal/pkg"
	"Uni_Hub/internal/repository/redis"
	"Uni_Hub/internal/repository/sqlstore"
	"Uni_Hub/internal/router"
	"Uni_Hub/internal/service"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	envFile string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "unihub",
		Short:        "UniHub community membership & engagement API",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env", ".env", "dotenv file to load (skipped when missing)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newReconcileCommand(opts))
	return cmd
}

// stores 数据库与 Redis 连接，Redis 为可选
type stores struct {
	db  *gorm.DB
	rdb *goredis.Client
}

func openStores(cfg *config.Config) (*stores, error) {
	db, err := sqlstore.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	s := &stores{db: db}
	if cfg.RedisAddr != "" {
		rdb, err := redis.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			// 没有 Redis 也能正确运行：读计数直接查库，对账不做跨实例互斥
			log.Printf("redis unavailable, running without count cache: %v", err)
		} else {
			s.rdb = rdb
		}
	}
	return s, nil
}

func (s *stores) counters() (*service.CounterService, *redis.DistLock) {
	if s.rdb == nil {
		return service.NewCounterService(s.db, nil), nil
	}
	return service.NewCounterService(s.db, redis.NewCountCache(s.rdb)), &redis.DistLock{RDB: s.rdb}
}

func (s *stores) Close() {
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
	if err := sqlstore.Close(s.db); err != nil {
		log.Printf("db close err: %v", err)
	}
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the periodic counter reconciler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one full counter reconciliation sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			st, err := openStores(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			counters, lock := st.counters()
			report, err := service.NewReconciler(counters, lock, cfg.ReconcileBatch, cfg.ReconcileInterval).Sweep(cmd.Context())
			if err != nil {
				return err
			}
			if report.Skipped {
				fmt.Fprintln(cmd.OutOrStdout(), "skipped: another sweep is running")
				return nil
			}
			for _, c := range sqlstore.Counters {
				d := report.Counters[c]
				fmt.Fprintf(cmd.OutOrStdout(), "%-26s checked=%d corrected=%d\n", c, d.Checked, d.Corrected)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "failed=%d\n", report.Failed)
			return nil
		},
	}
}

// mailer 未配置 SMTP 时返回 nil
func mailer(cfg *config.Config, st *stores) notify.Sender {
	if !cfg.SMTPEnabled() {
		return nil
	}
	return notify.NewEmailSender(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, st.db)
}

func buildNotifier(cfg *config.Config, st *stores) (*notify.AsyncDispatcher, func()) {
	var (
		senders []notify.Sender
		kafka   *notify.KafkaSender
	)
	if m := mailer(cfg, st); m != nil {
		senders = append(senders, m)
	}
	if cfg.KafkaEnabled() {
		kafka = notify.NewKafkaSender(notify.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
		senders = append(senders, kafka)
	}
	if len(senders) == 0 {
		log.Println("no notification channel configured, event confirmations are dropped")
	}
	d := notify.NewAsyncDispatcher(cfg.NotifyQueue, cfg.NotifyWorkers, senders...)
	return d, func() {
		d.Close()
		if err := kafka.Close(); err != nil {
			log.Printf("kafka writer close err: %v", err)
		}
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	notifier, closeNotifier := buildNotifier(cfg, st)
	defer closeNotifier()

	counters, lock := st.counters()
	memberships := service.NewMembershipService(st.db, counters, nil)
	posts := service.NewPostService(st.db, counters, nil)
	events := service.NewEventService(st.db, counters, notifier, nil, cfg.FrontendURL)
	// 邀请邮件同步发送，结果要回写到邀请记录
	invitations := service.NewInvitationService(st.db, mailer(cfg, st), cfg.FrontendURL)
	reconciler := service.NewReconciler(counters, lock, cfg.ReconcileBatch, cfg.ReconcileInterval)

	// 计数对账定时任务
	go reconciler.Run(ctx)

	r := router.InitRouter(router.Deps{
		Tokens:       pkg.NewTokenCodec(cfg.JWTSecret),
		Memberships:  memberships,
		Posts:        posts,
		Events:       events,
		Invitations:  invitations,
		Reconciler:   reconciler,
		AdminUserIDs: cfg.AdminUserIDs,
		AllowOrigins: []string{cfg.FrontendURL},
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("http listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
