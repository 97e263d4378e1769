// Command bumpstress allocates objects into a space from many goroutines
// while walking it concurrently, then prints the totals.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/bumpspace"
	"github.com/hupe1980/bumpspace/heapdump"
	bsprom "github.com/hupe1980/bumpspace/metrics/prometheus"
	"github.com/hupe1980/bumpspace/object"
	"github.com/hupe1980/bumpspace/resource"
	"github.com/hupe1980/bumpspace/testutil"
	"github.com/hupe1980/bumpspace/thread"
)

var (
	capacity     = flag.String("capacity", "64MiB", "Space capacity")
	memLimit     = flag.String("mem-limit", "", "Memory budget shared by all reservations (empty = unlimited)")
	threads      = flag.Int("threads", 8, "Number of allocating goroutines")
	objects      = flag.Int("objects", 100_000, "Objects per goroutine")
	maxObject    = flag.Int("max-object", 256, "Largest object size in bytes")
	tlabSize     = flag.String("tlab", "32KiB", "TLAB size")
	walkInterval = flag.Duration("walk-interval", 10*time.Millisecond, "Interval between concurrent walks (0 disables)")
	dumpPath     = flag.String("dump", "", "Write a heap dump to this path")
	codecName    = flag.String("codec", "zstd", "Heap dump codec: none, lz4, zstd")
	ioLimit      = flag.String("dump-rate", "", "Heap dump write rate per second (empty = unlimited)")
	metricsAddr  = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	verbose      = flag.Bool("v", false, "Enable debug logging")
)

func parseBytes(name, v string) uint64 {
	if v == "" {
		return 0
	}
	n, err := humanize.ParseBytes(v)
	if err != nil {
		log.Fatalf("invalid -%s: %v", name, err)
	}
	return n
}

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := bumpspace.NewTextLogger(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	mc, err := bsprom.NewCollector(reg, "stress")
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}
	if *metricsAddr != "" {
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			logger.Info("serving metrics", "addr", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, nil); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:   int64(parseBytes("mem-limit", *memLimit)),
		IOLimitBytesPerSec: int64(parseBytes("dump-rate", *ioLimit)),
	})

	s, err := bumpspace.New("stress", uintptr(parseBytes("capacity", *capacity)),
		bumpspace.WithLogger(logger),
		bumpspace.WithMetricsCollector(mc),
		bumpspace.WithMemoryController(rc),
	)
	if err != nil {
		log.Fatalf("Failed to create space: %v", err)
	}
	defer s.Close()

	registry := thread.NewList()
	tlab := uintptr(parseBytes("tlab", *tlabSize))
	rng := testutil.NewRNG(42)

	var exhausted atomic.Bool
	var bulk atomic.Uint64
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for w := range *threads {
		th, err := registry.Register(fmt.Sprintf("mutator-%d", w))
		if err != nil {
			log.Fatalf("Failed to register thread: %v", err)
		}
		m := &testutil.Mutator{Space: s, Thread: th, TLABSize: tlab, Class: uint32(w + 1)}
		sizes := rng.ObjectSizes(*objects, object.HeaderSize, uintptr(*maxObject))
		g.Go(func() error {
			defer func() { bulk.Add(m.Bulk) }()
			for _, size := range sizes {
				if gctx.Err() != nil || exhausted.Load() {
					return nil
				}
				if _, err := m.Alloc(size); err != nil {
					if errors.Is(err, testutil.ErrExhausted) {
						exhausted.Store(true)
						return nil
					}
					return err
				}
			}
			return nil
		})
	}

	var walks, walked atomic.Int64
	done := make(chan struct{})
	var walker errgroup.Group
	if *walkInterval > 0 {
		walker.Go(func() error {
			ticker := time.NewTicker(*walkInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return nil
				case <-ticker.C:
					var n int64
					s.Walk(func(object.Object) { n++ })
					walks.Add(1)
					walked.Add(n)
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("Allocation failed: %v", err)
	}
	close(done)
	_ = walker.Wait()
	elapsed := time.Since(start)

	s.RevokeAllThreadLocalBuffers(registry)

	census := s.Census()
	fmt.Printf("Elapsed:           %v\n", elapsed)
	fmt.Printf("Exhausted:         %v\n", exhausted.Load())
	fmt.Printf("TLAB bytes:        %s\n", humanize.IBytes(bulk.Load()))
	fmt.Printf("Bytes allocated:   %s\n", humanize.IBytes(s.BytesAllocated(registry)))
	fmt.Printf("Objects allocated: %s\n", humanize.Comma(int64(s.ObjectsAllocated(registry))))
	fmt.Printf("Objects walked:    %s\n", humanize.Comma(int64(census.GetCardinality())))
	fmt.Printf("Blocks:            %d\n", s.BlockCount())
	if n := walks.Load(); n > 0 {
		fmt.Printf("Concurrent walks:  %d (avg %s objects)\n", n, humanize.Comma(walked.Load()/n))
	}
	if err := s.Dump(os.Stdout); err != nil {
		log.Fatalf("Dump failed: %v", err)
	}

	if *dumpPath != "" {
		codec, err := heapdump.ParseCodec(*codecName)
		if err != nil {
			log.Fatal(err)
		}
		stats, err := heapdump.WriteFile(ctx, *dumpPath, s, heapdump.WithCodec(codec), heapdump.WithIOLimit(rc))
		if err != nil {
			log.Fatalf("Heap dump failed: %v", err)
		}
		fmt.Printf("Heap dump:         %s (%d objects, %s)\n",
			*dumpPath, stats.Objects, humanize.IBytes(stats.ObjectBytes))
	}
}
