package main

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/herd/cloud/cluster"
	"github.com/twitter/herd/common/stats"
	"github.com/twitter/herd/scheduler/config"
	"github.com/twitter/herd/scheduler/launcher/local"
	rmmem "github.com/twitter/herd/scheduler/rm/memory"
	"github.com/twitter/herd/scheduler/server"
)

// engine is a scheduling service wired to a memory cluster and local launchers.
type engine struct {
	service   *server.SchedulingService
	rm        *rmmem.ResourceManager
	members   *cluster.FetchCron // nil unless the cluster is read from a file
	launchers *local.Factory
	stat      stats.StatsReceiver
}

func newEngine(cfg *config.JSONConfigs, auth server.Authorizer) (*engine, error) {
	sc, err := cfg.Scheduler.CreateSchedulerConfig()
	if err != nil {
		return nil, err
	}
	st, err := cfg.Store.Create()
	if err != nil {
		return nil, errors.Wrap(err, "creating store")
	}
	nodes, err := cfg.Cluster.CreateNodes()
	if err != nil {
		return nil, errors.Wrap(err, "creating cluster")
	}

	stat := stats.DefaultStatsReceiver()
	r := rmmem.NewResourceManager(nodes, stat)
	launchers := local.NewFactory()
	s, err := server.NewSchedulingService(sc, r, st, launchers, cfg.Policy.Name, cfg.Policy.CreateConfigs(), auth, stat)
	if err != nil {
		return nil, err
	}
	members, err := cfg.Cluster.WatchMembers(nodes, r.Update)
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "watching cluster")
	}
	log.WithFields(log.Fields{
		"nodes":   len(nodes),
		"cluster": cfg.Cluster.Type,
		"store":   cfg.Store.Type,
		"policy":  cfg.Policy.Name,
	}).Info("Engine created")
	return &engine{service: s, rm: r, members: members, launchers: launchers, stat: stat}, nil
}

func (e *engine) close() {
	if e.members != nil {
		e.members.Close()
	}
	e.service.Close()
}

// start recovers stored jobs and starts scheduling as admin.
func (e *engine) start(ctx context.Context, admin string) error {
	if err := e.service.Recover(ctx); err != nil {
		log.WithError(err).Warn("Some stored jobs could not be recovered")
	}
	ok, err := e.service.Start(ctx, admin)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("scheduler did not start, status %s", e.service.Status())
	}
	return nil
}
