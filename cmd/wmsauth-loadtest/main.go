// Command wmsauth-loadtest drives concurrent login, refresh and authorize
// calls against an in-process engine and prints throughput and latency
// percentiles per phase.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/modernwms/wmsauth"
	"github.com/modernwms/wmsauth/directory"
	wmsotel "github.com/modernwms/wmsauth/metrics/export/otel"
	"github.com/modernwms/wmsauth/password"
	"github.com/modernwms/wmsauth/session"
	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type principalState struct {
	name    string
	access  string
	refresh string
}

func main() {
	var (
		principals  = flag.Int("principals", 1000, "number of principals to seed and log in")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (authorize + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; empty uses the in-memory store, \"mini\" uses miniredis")
		rotate      = flag.Bool("rotate", false, "rotate refresh tokens on every refresh")
	)
	flag.Parse()

	if *principals <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "principals, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	cfg := wmsauth.DefaultConfig()
	cfg.JWT.Secret = []byte("loadtest-secret-not-for-production-use")
	cfg.Session.RotateRefreshTokens = *rotate
	cfg.LoginLimit.Enabled = false
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	hasher, err := password.NewBcrypt(4)
	if err != nil {
		fail("bcrypt", err)
	}
	dir := directory.NewMemory()
	hash, err := hasher.Hash("loadtest-pw")
	if err != nil {
		fail("hash", err)
	}
	states := make([]principalState, *principals)
	for i := range states {
		name := "picker" + strconv.Itoa(i)
		states[i].name = name
		if _, err := dir.Add(directory.Principal{
			ID:           strconv.Itoa(i + 1),
			Name:         name,
			Number:       fmt.Sprintf("P%05d", i+1),
			Role:         "user",
			PasswordHash: hash,
			Active:       true,
		}); err != nil {
			fail("seed", err)
		}
	}

	builder := wmsauth.New().
		WithConfig(cfg).
		WithDirectory(dir).
		WithPasswordHasher(hasher)

	if *redisAddr != "" {
		addr := *redisAddr
		if addr == "mini" {
			mr, err := miniredis.Run()
			if err != nil {
				fail("miniredis", err)
			}
			defer mr.Close()
			addr = mr.Addr()
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		defer client.Close()
		builder.WithSessionStore(session.NewRedisStore(client, session.RedisOptions{}))
		fmt.Printf("using redis sessions at %s\n", addr)
	}

	engine, err := builder.Build()
	if err != nil {
		fail("build", err)
	}
	defer engine.Close()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	exporter, err := wmsotel.NewExporter(provider.Meter("wmsauth-loadtest"), engine)
	if err != nil {
		fail("otel exporter", err)
	}
	defer exporter.Close()

	loginStats := runPhase(len(states), *concurrency, func(i int, _ *rand.Rand) error {
		res, err := engine.Login(ctx, states[i].name, "loadtest-pw")
		if err != nil {
			return err
		}
		states[i].access = res.AccessToken
		states[i].refresh = res.RefreshToken
		return nil
	})

	authorizeStats := runPhase(*ops, *concurrency, func(_ int, r *rand.Rand) error {
		_, err := engine.AuthorizeRequest(ctx, states[r.Intn(len(states))].access, "user")
		return err
	})

	locks := make([]sync.Mutex, len(states))
	refreshStats := runPhase(*ops, *concurrency, func(_ int, r *rand.Rand) error {
		idx := r.Intn(len(states))
		locks[idx].Lock()
		defer locks[idx].Unlock()
		res, err := engine.Refresh(ctx, states[idx].refresh)
		if err != nil {
			return err
		}
		states[idx].refresh = res.RefreshToken
		return nil
	})

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("authorize", authorizeStats)
	printStats("refresh", refreshStats)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		fail("collect", err)
	}
	fmt.Println("---- counters ----")
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) == 0 || sum.DataPoints[0].Value == 0 {
				continue
			}
			fmt.Printf("%s %d\n", m.Name, sum.DataPoints[0].Value)
		}
	}
}

func runPhase(ops, concurrency int, op func(i int, r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(i, r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
	os.Exit(1)
}
