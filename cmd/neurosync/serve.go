package main

import (
	"context"
	"flag"
	"log/slog"
	"time"

	"github.com/jllopis/neurosync/pkg/auth"
	"github.com/jllopis/neurosync/pkg/chat"
	"github.com/jllopis/neurosync/pkg/server"
	"github.com/jllopis/neurosync/pkg/telemetry"
)

// maintenanceInterval spaces session purges and health reports.
const maintenanceInterval = time.Hour

func runServe(ctx context.Context, a *app, args []string) error {
	cmd := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := cmd.String("addr", a.cfg.Server.Addr, "Listen address")
	if err := cmd.Parse(args); err != nil {
		return NewInvalidArgumentError("serve", err.Error())
	}
	if err := a.validate(); err != nil {
		return err
	}

	users, err := a.userStore(ctx)
	if err != nil {
		return err
	}
	store, err := a.historyStore(ctx)
	if err != nil {
		return err
	}
	svc, _, err := a.service(ctx, users, store)
	if err != nil {
		return err
	}

	go maintain(ctx, a.log, a.metrics, users, svc)

	return server.New(svc, a.log, version).ListenAndServe(ctx, *addr)
}

// maintain purges expired sessions, drops their agents and reports model health until ctx is
// cancelled.
func maintain(ctx context.Context, log *slog.Logger, metrics *telemetry.Metrics, users *auth.Store, svc *chat.Service) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		n, err := users.PurgeExpired(ctx)
		if err != nil {
			log.Warn("sessions.purge", slog.String("error", err.Error()))
		} else if n > 0 {
			log.Info("sessions.purge", slog.Int64("removed", n))
		}
		if dropped, err := svc.PruneSessions(ctx); err != nil {
			log.Warn("sessions.prune", slog.String("error", err.Error()))
		} else if dropped > 0 {
			log.Info("sessions.prune", slog.Int("agents", dropped))
		}

		status, _ := svc.Health()
		var level int64 = 2
		if status != "operational" {
			level = 1
		}
		metrics.RecordHealthStatus(ctx, "llm", level)
	}
}
