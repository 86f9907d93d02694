// herd runs the job scheduler in process, over a memory cluster and local launchers.
//
//	herd serve --config local.memory --admin ops
//	herd run --config local.memory job.json
package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/herd/common/log/hooks"
)

func main() {
	if os.Getenv(logLevelEnv) == "" {
		log.AddHook(hooks.NewContextHook())
	}
	if err := newCLI().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
