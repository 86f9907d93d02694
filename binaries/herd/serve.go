package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/twitter/herd/scheduler/server"
)

type serveCmd struct {
	admins        []string
	statsInterval time.Duration
}

func (s *serveCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler until interrupted",
		Args:  cobra.NoArgs,
	}
	r.Flags().StringSliceVar(&s.admins, "admin", []string{"admin"}, "users allowed to manage the scheduler")
	r.Flags().DurationVar(&s.statsInterval, "stats_interval", time.Minute, "how often stats are logged, 0 to disable")
	return r
}

// run starts the scheduler. A first interrupt shuts it down once running tasks end,
// a second one kills it.
func (s *serveCmd) run(c *cli, cmd *cobra.Command, args []string) error {
	if len(s.admins) == 0 {
		return errors.New("at least one --admin is needed")
	}
	e, err := newEngine(c.config, server.NewAdminAuthorizer(s.admins...))
	if err != nil {
		return err
	}
	defer e.close()

	ctx := context.Background()
	if err := e.start(ctx, s.admins[0]); err != nil {
		return err
	}
	log.WithFields(log.Fields{"policy": e.service.PolicyName(), "admins": s.admins}).Info("Scheduler serving")

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	var ticks <-chan time.Time
	if s.statsInterval > 0 {
		ticker := time.NewTicker(s.statsInterval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	interrupted := false
	for {
		select {
		case <-e.service.Done():
			log.WithField("status", e.service.Status()).Info("Scheduler stopped")
			return nil
		case <-ticks:
			log.Infof("herd stats: %s", e.stat.Render(false))
		case sig := <-sigs:
			if !interrupted {
				interrupted = true
				log.WithField("signal", sig).Info("Shutting down once running tasks end, interrupt again to kill")
				if _, err := e.service.Shutdown(ctx, s.admins[0]); err != nil {
					return err
				}
				continue
			}
			log.WithField("signal", sig).Warn("Killing scheduler")
			if _, err := e.service.Kill(ctx, s.admins[0]); err != nil {
				return err
			}
		}
	}
}
