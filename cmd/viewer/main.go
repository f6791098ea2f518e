package main

import (
	"context"
	"flag"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tilescape.dev/internal/geom"
	"tilescape.dev/internal/scene"
	"tilescape.dev/internal/sched"
	"tilescape.dev/internal/supply"
	"tilescape.dev/internal/transport/ws"
	"tilescape.dev/internal/tuning"
)

func main() {
	var (
		url        = flag.String("url", "ws://127.0.0.1:8080/v1/ws", "tile server websocket url")
		local      = flag.Bool("local", false, "serve content in-process instead of connecting")
		seed       = flag.Int64("seed", 1337, "scene seed (local mode only)")
		name       = flag.String("name", "viewer_1", "viewer name reported to the server")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		frames     = flag.Int("frames", 0, "stop after N frames (0: run until signal)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[viewer] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	var (
		source sched.Source
		def    supply.SceneDef
	)
	if *local {
		def = supply.DefaultScene(*seed)
		def.MaxDepth = tune.Scene.MaxDepth
		def.TileMaxSizePx = tune.Scene.TileMaxSizePx
		def.MaxRefinement = tune.Scene.MaxRefinement
		def.DisplayableRoot = tune.Scene.DisplayableRoot
		source = supply.LocalSource{Def: def}
		logger.Printf("local scene seed=%d max_depth=%d", def.Seed, def.MaxDepth)
	} else {
		client, err := ws.Dial(ctx, *url, *name, logger)
		if err != nil {
			logger.Fatalf("connect: %v", err)
		}
		defer client.Close()
		sp := client.Scene()
		def = supply.SceneDef{
			Seed:            sp.Seed,
			Bounds:          geom.NewBox3(vec3(sp.BoundsLow), vec3(sp.BoundsHigh)),
			MaxDepth:        sp.MaxDepth,
			TileMaxSizePx:   sp.TileMaxSizePx,
			MaxRefinement:   sp.MaxRefinement,
			DisplayableRoot: sp.DisplayableRoot,
		}
		source = client
		logger.Printf("remote scene seed=%d max_depth=%d", def.Seed, def.MaxDepth)
	}

	tree := scene.NewTree(supply.OctreeKind{Def: def}, def.RootParams(), scene.Options{
		MaxInitialTilesToSkip: tune.Selection.MaxInitialTilesToSkip,
		MaxTilesToSkip:        tune.Selection.MaxTilesToSkip,
		DebugMaxDepth:         tune.Selection.DebugMaxDepth,
	}, logger)

	scheduler := sched.New(source, sched.Config{
		MaxActive:   tune.Streaming.MaxActiveRequests,
		StaleFrames: tune.Streaming.StaleFrames,
	}, logger)
	defer scheduler.Close()

	frameDur := time.Second / time.Duration(max(1, tune.FrameRateHz))
	expire := time.Duration(tune.Pruning.ExpireAfterSec) * time.Second
	sweepEvery := time.Duration(tune.Pruning.SweepEverySec) * time.Second

	orbit := orbiter{
		center:     def.Bounds.Center(),
		radius:     def.Bounds.Radius(),
		viewHeight: tune.ViewHeightPx,
		fovY:       tune.FovYDeg * math.Pi / 180,
	}

	args := scene.NewDrawArgs(orbit.camera(0), time.Now())
	args.TileSizeModifier = tune.Selection.TileSizeModifier

	ticker := time.NewTicker(frameDur)
	defer ticker.Stop()

	var (
		frame     int
		lastSweep = time.Now()
		lastStats = time.Now()
	)
	for {
		select {
		case <-ctx.Done():
			logger.Printf("stopping after %d frames", frame)
			return
		case <-ticker.C:
		}

		now := time.Now()
		args.Reset(orbit.camera(float64(frame)/float64(max(1, tune.FrameRateHz))), now)
		args.PurgeOlderThan = now.Add(-expire)
		selected := tree.SelectTiles(args)
		scheduler.RequestMissing(args.Missing())
		scheduler.Process()

		if now.Sub(lastSweep) >= sweepEvery {
			tree.Prune(now.Add(-expire))
			lastSweep = now
		}
		if now.Sub(lastStats) >= 2*time.Second {
			st := scheduler.Stats()
			logger.Printf("frame=%d selected=%d ready=%d missing=%d loading_subtrees=%d resident=%d sched[active=%d queued=%d done=%d notfound=%d decode_err=%d canceled=%d]",
				frame, len(selected), args.NumReady(), len(args.Missing()), args.ChildrenLoading(),
				tree.CountTiles(), st.Active, st.Queued, st.Completed, st.NotFound, st.DecodeFailures, st.Canceled)
			lastStats = now
		}

		frame++
		if *frames > 0 && frame >= *frames {
			logger.Printf("done after %d frames: selected=%d resident=%d", frame, len(selected), tree.CountTiles())
			return
		}
	}
}

// orbiter flies a slow circle around the scene, breathing in and out so the
// walk exercises every level of detail.
type orbiter struct {
	center     geom.Vec3
	radius     float64
	viewHeight float64
	fovY       float64
}

func (o orbiter) camera(t float64) geom.Camera {
	angle := t * 0.1
	dist := o.radius * (1.6 + 0.9*math.Sin(t*0.05))
	eye := o.center.Add(geom.Vec3{
		X: math.Cos(angle) * dist,
		Y: math.Sin(angle) * dist,
		Z: dist * 0.35,
	})
	return geom.Camera{
		Eye:          eye,
		Forward:      o.center.Sub(eye).Normalized(),
		Up:           geom.Vec3{Z: 1},
		FovY:         o.fovY,
		Aspect:       16.0 / 9.0,
		Near:         0.1,
		Far:          o.radius * 8,
		ViewHeightPx: o.viewHeight,
	}
}

func vec3(v [3]float64) geom.Vec3 {
	return geom.Vec3{X: v[0], Y: v[1], Z: v[2]}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
