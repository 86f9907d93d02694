package cluster

import (
	"encoding/json"
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Returns a full list of visible nodes.
type Fetcher interface {
	Fetch() ([]Node, error)
}

// FetchCron polls a Fetcher and hands membership changes to a callback.
// The first fetch happens after one period.
type FetchCron struct {
	f      Fetcher
	state  *State
	apply  func([]NodeUpdate)
	tickCh <-chan time.Time
	ticker *time.Ticker
	closer chan struct{}
	done   chan struct{}
}

// NewFetchCron starts polling f. initial is the membership apply already knows about.
func NewFetchCron(f Fetcher, period time.Duration, initial []Node, apply func([]NodeUpdate)) *FetchCron {
	ticker := time.NewTicker(period)
	c := &FetchCron{
		f:      f,
		state:  MakeState(initial),
		apply:  apply,
		tickCh: ticker.C,
		ticker: ticker,
		closer: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.loop()
	return c
}

func (c *FetchCron) loop() {
	defer close(c.done)
	for {
		select {
		case <-c.tickCh:
			nodes, err := c.f.Fetch()
			c.handleFetch(nodes, err)
		case <-c.closer:
			return
		}
	}
}

func (c *FetchCron) handleFetch(nodes []Node, err error) {
	if err != nil {
		log.WithError(err).Warn("Fetching cluster members failed, keeping the current membership")
		return
	}
	if updates := c.state.SetAndDiff(nodes); len(updates) > 0 {
		c.apply(updates)
	}
}

// Close stops polling and waits for an in-flight fetch to be applied.
func (c *FetchCron) Close() {
	c.ticker.Stop()
	close(c.closer)
	<-c.done
}

// FileFetcher reads members from a JSON file holding [{"Id": ..., "Labels": {...}}].
type FileFetcher struct {
	Path string
}

type fileNode struct {
	Id     string
	Labels map[string]string
}

func (f *FileFetcher) Fetch() ([]Node, error) {
	data, err := ioutil.ReadFile(f.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading cluster file %s", f.Path)
	}
	var entries []fileNode
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrapf(err, "parsing cluster file %s", f.Path)
	}
	nodes := make([]Node, 0, len(entries))
	for _, e := range entries {
		if e.Id == "" {
			return nil, errors.Errorf("cluster file %s has a node without Id", f.Path)
		}
		nodes = append(nodes, NewLabeledNode(e.Id, e.Labels))
	}
	return nodes, nil
}
