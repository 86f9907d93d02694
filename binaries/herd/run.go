package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/twitter/herd/scheduler/dispatch"
	"github.com/twitter/herd/scheduler/domain"
	"github.com/twitter/herd/scheduler/server"
)

const runUser = "herd"

type runJobCmd struct {
	timeout time.Duration
	dump    bool
}

func (r *runJobCmd) registerFlags() *cobra.Command {
	c := &cobra.Command{
		Use:   "run <job.json>",
		Short: "Run one job on an in-process scheduler and print its results",
		Args:  cobra.ExactArgs(1),
	}
	c.Flags().DurationVar(&r.timeout, "timeout", 10*time.Minute, "give up waiting for the job after this long")
	c.Flags().BoolVar(&r.dump, "dump", false, "dump the final job state")
	return c
}

// endedJobs receives the ids of jobs reaching a terminal status.
type endedJobs chan domain.JobId

func (e endedJobs) Notify(ctx context.Context, n domain.Notification) error {
	select {
	case e <- n.Job.Id:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *runJobCmd) run(c *cli, cmd *cobra.Command, args []string) error {
	job, err := readJobFile(args[0])
	if err != nil {
		return err
	}
	e, err := newEngine(c.config, server.AllowAll())
	if err != nil {
		return err
	}
	defer e.close()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	ended := make(endedJobs, 16)
	filter := dispatch.Filter{Events: []domain.Event{domain.JobRunningToFinished, domain.JobPendingToFinished}}
	if _, err := e.service.AddListener(ctx, runUser, ended, filter); err != nil {
		return err
	}
	if err := e.start(ctx, runUser); err != nil {
		return err
	}
	id, err := e.service.SubmitJob(ctx, runUser, job)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"jobId": id, "tasks": len(job.Tasks)}).Info("Job submitted")

	for done := false; !done; {
		select {
		case endedId := <-ended:
			done = endedId == id
		case <-ctx.Done():
			_, _ = e.service.KillJob(context.Background(), runUser, id)
			return errors.Errorf("job %s did not end within %s", id, r.timeout)
		}
	}

	final, err := e.service.GetJobState(context.Background(), runUser, id)
	if err != nil {
		return err
	}
	results, err := e.service.GetJobResult(context.Background(), runUser, id)
	if err != nil {
		return err
	}
	if r.dump {
		cmd.Println(spew.Sdump(final))
	}
	return printResults(cmd, final, results)
}

type taskReport struct {
	Task     string
	Status   string
	Attempts int
	Result   string `json:",omitempty"`
	Value    string `json:",omitempty"`
	Message  string `json:",omitempty"`
}

func printResults(cmd *cobra.Command, job *domain.Job, results *domain.JobResult) error {
	report := struct {
		Job    string
		Status string
		Tasks  []taskReport
	}{Job: job.Id.String(), Status: job.Status.String()}
	for _, t := range job.Tasks {
		tr := taskReport{Task: t.Id.Name, Status: t.Status.String(), Attempts: t.Attempt}
		if res, ok := results.Results[t.Id.Name]; ok {
			tr.Result = res.Kind.String()
			tr.Value = string(res.Value)
			tr.Message = res.Message
		}
		report.Tasks = append(report.Tasks, tr)
	}
	asJson, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	cmd.Printf("%s\n", asJson)
	if job.Status != domain.JobFinished {
		return errors.Errorf("job %s ended %s", job.Id, job.Status)
	}
	return nil
}
