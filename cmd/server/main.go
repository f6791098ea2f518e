package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"tilescape.dev/internal/geom"
	"tilescape.dev/internal/persistence/tilecache"
	"tilescape.dev/internal/protocol"
	"tilescape.dev/internal/supply"
	"tilescape.dev/internal/transport/ws"
	"tilescape.dev/internal/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		seed       = flag.Int64("seed", 1337, "scene seed")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite payload cache")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	def := supply.DefaultScene(*seed)
	def.MaxDepth = tune.Scene.MaxDepth
	def.TileMaxSizePx = tune.Scene.TileMaxSizePx
	def.MaxRefinement = tune.Scene.MaxRefinement
	def.DisplayableRoot = tune.Scene.DisplayableRoot
	if h := tune.Scene.HalfExtent; h > 0 {
		def.Bounds = geom.NewBox3(geom.Vec3{X: -h, Y: -h, Z: -h}, geom.Vec3{X: h, Y: h, Z: h})
	}

	var cache *tilecache.Cache
	if !*disableDB {
		cache, err = tilecache.Open(filepath.Join(*dataDir, "tilecache.db"))
		if err != nil {
			logger.Fatalf("open tile cache: %v", err)
		}
		defer cache.Close()
		if entries, bytes, err := cache.Stats(); err == nil {
			logger.Printf("tile cache: %d entries, %d bytes", entries, bytes)
		}
	}

	provider := &cachedProvider{def: def, cache: cache, log: logger}
	sceneParams := protocol.SceneParams{
		Seed:            def.Seed,
		MaxDepth:        def.MaxDepth,
		TileMaxSizePx:   def.TileMaxSizePx,
		MaxRefinement:   def.MaxRefinement,
		BoundsLow:       [3]float64{def.Bounds.Low.X, def.Bounds.Low.Y, def.Bounds.Low.Z},
		BoundsHigh:      [3]float64{def.Bounds.High.X, def.Bounds.High.Y, def.Bounds.High.Z},
		DisplayableRoot: def.DisplayableRoot,
	}
	wsServer := ws.NewServer(provider, sceneParams, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", wsServer.Handler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	if strings.EqualFold(os.Getenv("TS_ENABLE_PPROF_HTTP"), "true") {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (TS_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{Addr: *addr, Handler: mux}

	ctx, cancel := signalContext()
	defer cancel()
	go func() {
		<-ctx.Done()
		logger.Printf("shutting down")
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (seed=%d max_depth=%d)", *addr, def.Seed, def.MaxDepth)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
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

// cachedProvider serves payloads from sqlite when possible and falls back
// to the deterministic generator, back-filling the cache.
type cachedProvider struct {
	def   supply.SceneDef
	cache *tilecache.Cache
	log   *log.Logger
}

func (p *cachedProvider) Payload(contentID string) ([]byte, bool, error) {
	if b, ok, err := p.cache.Get(contentID); err != nil {
		p.log.Printf("cache get %s: %v", contentID, err)
	} else if ok {
		return b, true, nil
	}
	b, err := p.def.Payload(contentID)
	if errors.Is(err, supply.ErrNoContent) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	p.cache.Put(contentID, b)
	return b, true, nil
}
