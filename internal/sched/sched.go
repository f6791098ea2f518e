// Package sched is the tile request channel: it turns per-frame "missing
// tile" lists into bounded asynchronous fetch+decode work and feeds the
// results back to the tree on frame boundaries.
package sched

import (
	"context"
	"errors"
	"log"
	"sync"

	"tilescape.dev/internal/scene"
	"tilescape.dev/internal/scene/content"
)

// ErrNotFound is returned by a Source when no content exists at an address.
var ErrNotFound = errors.New("tile content not found")

// Source fetches encoded tile payloads. Implementations must be safe for
// concurrent use; fetches run on scheduler workers.
type Source interface {
	Fetch(ctx context.Context, contentID string) ([]byte, error)
}

// Stats is a running tally of channel activity.
type Stats struct {
	Active         int
	Queued         int
	Completed      uint64
	NotFound       uint64
	DecodeFailures uint64
	Canceled       uint64
	Failed         uint64
}

type request struct {
	tile       *scene.Tile
	contentID  string
	ctx        context.Context
	cancel     context.CancelFunc
	lastWanted uint64 // frame counter value when last inserted as missing
	dispatched bool
}

type result struct {
	req      *request
	content  content.TileContent
	decoded  bool // content field is meaningful (possibly degraded)
	notFound bool
	err      error
}

// Scheduler coordinates tile content loading. All exported methods must be
// called from the tree owner's goroutine; only Source fetches and payload
// decoding run on workers, and their results cross back through a channel
// drained by Process.
type Scheduler struct {
	source Source
	log    *log.Logger

	maxActive   int
	staleFrames uint64

	base     context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup

	pending map[*scene.Tile]*request
	queue   []*request
	results chan result
	frame   uint64
	stats   Stats
}

type Config struct {
	MaxActive   int // concurrent fetches; <=0 means 8
	StaleFrames int // frames a request may go unwanted before cancellation; <=0 means 10
}

func New(source Source, cfg Config, logger *log.Logger) *Scheduler {
	if cfg.MaxActive <= 0 {
		cfg.MaxActive = 8
	}
	if cfg.StaleFrames <= 0 {
		cfg.StaleFrames = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		source:      source,
		log:         logger,
		maxActive:   cfg.MaxActive,
		staleFrames: uint64(cfg.StaleFrames),
		base:        ctx,
		shutdown:    cancel,
		pending:     make(map[*scene.Tile]*request),
		results:     make(chan result, 256),
	}
}

// RequestMissing enqueues the frame's missing tiles. Tiles already pending
// are refreshed, not duplicated; tiles whose loading already completed are
// ignored.
func (s *Scheduler) RequestMissing(missing []*scene.Tile) {
	for _, t := range missing {
		if req, ok := s.pending[t]; ok {
			req.lastWanted = s.frame
			continue
		}
		if t.Status() != scene.NotLoaded {
			continue
		}
		ctx, cancel := context.WithCancel(s.base)
		req := &request{
			tile:       t,
			contentID:  t.ContentID(),
			ctx:        ctx,
			cancel:     cancel,
			lastWanted: s.frame,
		}
		t.MarkQueued()
		s.pending[t] = req
		s.queue = append(s.queue, req)
	}
}

// Process advances the channel by one frame: applies completed results to
// their tiles, cancels requests no frame has wanted lately, and dispatches
// queued work up to the concurrency limit.
func (s *Scheduler) Process() {
	s.drainResults()
	s.cancelStale()
	s.dispatch()
	s.frame++
}

func (s *Scheduler) drainResults() {
	for {
		select {
		case res := <-s.results:
			s.apply(res)
		default:
			return
		}
	}
}

func (s *Scheduler) apply(res result) {
	req := res.req
	if s.pending[req.tile] != req {
		return // canceled and superseded
	}
	delete(s.pending, req.tile)
	s.stats.Active--
	req.cancel()

	switch {
	case res.err != nil && errors.Is(res.err, context.Canceled):
		s.stats.Canceled++
		req.tile.MarkUnqueued()
	case res.notFound:
		s.stats.NotFound++
		req.tile.SetNotFound()
	case res.err != nil && res.decoded:
		// Malformed payload: degrade to the empty-leaf result, keep going.
		s.stats.DecodeFailures++
		s.log.Printf("sched: decode %s: %v", req.contentID, res.err)
		req.tile.SetContent(res.content)
	case res.err != nil:
		// Transport failure: leave the tile unloaded for a later retry.
		s.stats.Failed++
		s.log.Printf("sched: fetch %s: %v", req.contentID, res.err)
		req.tile.MarkUnqueued()
	default:
		s.stats.Completed++
		req.tile.SetContent(res.content)
	}
}

func (s *Scheduler) cancelStale() {
	for tile, req := range s.pending {
		if s.frame-req.lastWanted <= s.staleFrames {
			continue
		}
		if req.dispatched {
			req.cancel() // worker will surface context.Canceled
			continue
		}
		delete(s.pending, tile)
		req.cancel()
		tile.MarkUnqueued()
		s.stats.Canceled++
	}
	if n := len(s.queue); n > 0 {
		live := s.queue[:0]
		for _, req := range s.queue {
			if s.pending[req.tile] == req {
				live = append(live, req)
			}
		}
		s.queue = live
	}
}

func (s *Scheduler) dispatch() {
	for len(s.queue) > 0 && s.stats.Active < s.maxActive {
		req := s.queue[0]
		s.queue = s.queue[1:]
		if s.pending[req.tile] != req {
			continue
		}
		req.dispatched = true
		req.tile.MarkLoading()
		s.stats.Active++
		s.wg.Add(1)
		go s.run(req)
	}
	s.stats.Queued = len(s.queue)
}

// run executes one fetch+decode on a worker goroutine. It writes only into
// the locally-owned result; tile state is mutated exclusively in apply.
func (s *Scheduler) run(req *request) {
	defer s.wg.Done()
	raw, err := s.source.Fetch(req.ctx, req.contentID)
	if err != nil {
		res := result{req: req, err: err, notFound: errors.Is(err, ErrNotFound)}
		if res.notFound {
			res.err = nil
		}
		s.deliver(res)
		return
	}
	c, err := content.Decode(raw)
	s.deliver(result{req: req, content: c, decoded: true, err: err})
}

func (s *Scheduler) deliver(res result) {
	select {
	case s.results <- res:
	case <-s.base.Done():
	}
}

// Stats returns a snapshot of channel counters.
func (s *Scheduler) Stats() Stats { return s.stats }

// Close cancels all in-flight work and waits for workers to exit. The
// scheduler must not be used afterwards.
func (s *Scheduler) Close() {
	s.shutdown()
	s.wg.Wait()
}
