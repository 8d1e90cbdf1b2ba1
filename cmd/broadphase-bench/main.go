// broadphase-bench is a benchmark and stress test for the broad-phase.
// It scatters proxies over a square world, moves them for a number of steps
// and measures proxy creation, movement, pair updates and queries.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"time"

	box2d "github.com/jbox2d/box2d"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

type BenchResult struct {
	Name     string        `msgpack:"name"`
	Duration time.Duration `msgpack:"duration"`
	Ops      int           `msgpack:"ops"`
	Extra    string        `msgpack:"extra,omitempty"`
}

func (r BenchResult) String() string {
	if r.Ops > 0 {
		opsPerSec := float64(r.Ops) / r.Duration.Seconds()
		if r.Extra != "" {
			return fmt.Sprintf("%-32s %12v  (%d ops, %.2f ops/sec) %s", r.Name, r.Duration.Round(time.Microsecond), r.Ops, opsPerSec, r.Extra)
		}
		return fmt.Sprintf("%-32s %12v  (%d ops, %.2f ops/sec)", r.Name, r.Duration.Round(time.Microsecond), r.Ops, opsPerSec)
	}
	if r.Extra != "" {
		return fmt.Sprintf("%-32s %12v  %s", r.Name, r.Duration.Round(time.Microsecond), r.Extra)
	}
	return fmt.Sprintf("%-32s %12v", r.Name, r.Duration.Round(time.Microsecond))
}

// TreeStats is sampled after every step.
type TreeStats struct {
	Step    int     `msgpack:"step"`
	Pairs   int     `msgpack:"pairs"`
	Height  int     `msgpack:"height"`
	Balance int     `msgpack:"balance"`
	Quality float32 `msgpack:"quality"`
}

type Report struct {
	Proxies    int           `msgpack:"proxies"`
	Steps      int           `msgpack:"steps"`
	Seed       int64         `msgpack:"seed"`
	Extension  float32       `msgpack:"extension"`
	Multiplier float32       `msgpack:"multiplier"`
	Results    []BenchResult `msgpack:"results"`
	Stats      []TreeStats   `msgpack:"stats"`
}

type config struct {
	proxies    int
	steps      int
	worldSize  float64
	extent     float64
	speed      float64
	seed       int64
	settings   box2d.B2TreeSettings
	reportPath string
	verbose    bool
}

func parseFlags() config {
	cfg := config{settings: box2d.MakeB2DefaultTreeSettings()}
	var extension, multiplier float64

	flag.IntVar(&cfg.proxies, "proxies", 1000, "number of proxies")
	flag.IntVar(&cfg.steps, "steps", 200, "number of simulation steps")
	flag.Float64Var(&cfg.worldSize, "world", 1000, "side of the square world")
	flag.Float64Var(&cfg.extent, "extent", 5, "maximum half-width of a proxy")
	flag.Float64Var(&cfg.speed, "speed", 2, "maximum displacement per step")
	flag.Int64Var(&cfg.seed, "seed", 1, "random seed")
	flag.Float64Var(&extension, "extension", float64(cfg.settings.AABBExtension), "fat AABB margin")
	flag.Float64Var(&multiplier, "multiplier", float64(cfg.settings.AABBMultiplier), "displacement prediction multiplier")
	flag.StringVar(&cfg.reportPath, "report", "", "write a msgpack report to this file")
	flag.BoolVar(&cfg.verbose, "v", false, "debug logging")
	flag.Parse()

	cfg.settings.AABBExtension = float32(extension)
	cfg.settings.AABBMultiplier = float32(multiplier)
	return cfg
}

type body struct {
	proxyId  int
	aabb     box2d.B2AABB
	velocity box2d.B2Vec2
}

func main() {
	cfg := parseFlags()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	if err := cfg.settings.Validate(); err != nil {
		logger.WithError(err).Fatal("bad settings")
	}

	fmt.Println("Broad-phase Benchmark")
	fmt.Println("=====================")
	fmt.Printf("Proxies: %d, steps: %d, world: %g\n", cfg.proxies, cfg.steps, cfg.worldSize)
	fmt.Printf("Go version: %s\n", runtime.Version())
	fmt.Println()

	report := run(cfg, logger)

	if cfg.reportPath != "" {
		data, err := msgpack.Marshal(&report)
		if err != nil {
			logger.WithError(err).Fatal("encoding report")
		}
		if err := os.WriteFile(cfg.reportPath, data, 0o644); err != nil {
			logger.WithError(err).Fatal("writing report")
		}
		logger.WithFields(logrus.Fields{
			"path":  cfg.reportPath,
			"bytes": len(data),
		}).Info("report written")
	}
}

func run(cfg config, logger *logrus.Logger) Report {
	rng := rand.New(rand.NewSource(cfg.seed))
	bp := box2d.MakeB2BroadPhaseWithSettings(cfg.settings)
	report := Report{
		Proxies:    cfg.proxies,
		Steps:      cfg.steps,
		Seed:       cfg.seed,
		Extension:  cfg.settings.AABBExtension,
		Multiplier: cfg.settings.AABBMultiplier,
	}

	record := func(r BenchResult) {
		fmt.Println(r)
		report.Results = append(report.Results, r)
	}

	bodies := make([]*body, cfg.proxies)

	start := time.Now()
	for i := range bodies {
		b := &body{
			aabb:     randomBox(rng, cfg.worldSize, cfg.extent),
			velocity: randomVelocity(rng, cfg.speed),
		}
		id, err := bp.CreateProxy(b.aabb, b)
		if err != nil {
			logger.WithError(err).Fatal("creating proxy")
		}
		b.proxyId = id
		bodies[i] = b
	}
	record(BenchResult{Name: "CreateProxy", Duration: time.Since(start), Ops: cfg.proxies})

	pairs := 0
	addPair := func(userDataA interface{}, userDataB interface{}) {
		pairs++
	}

	start = time.Now()
	if err := bp.UpdatePairs(addPair); err != nil {
		logger.WithError(err).Fatal("initial pair update")
	}
	record(BenchResult{Name: "UpdatePairs (initial)", Duration: time.Since(start), Ops: 1,
		Extra: fmt.Sprintf("%d pairs", pairs)})

	var moveTime, pairTime time.Duration
	totalPairs := 0
	for step := 1; step <= cfg.steps; step++ {
		t0 := time.Now()
		for _, b := range bodies {
			d := b.velocity
			b.aabb.LowerBound = box2d.B2Vec2Add(b.aabb.LowerBound, d)
			b.aabb.UpperBound = box2d.B2Vec2Add(b.aabb.UpperBound, d)
			bounce(b, cfg.worldSize)
			if err := bp.MoveProxy(b.proxyId, b.aabb, d); err != nil {
				logger.WithError(err).WithField("proxy", b.proxyId).Fatal("moving proxy")
			}
		}
		moveTime += time.Since(t0)

		pairs = 0
		t0 = time.Now()
		if err := bp.UpdatePairs(addPair); err != nil {
			logger.WithError(err).Fatal("pair update")
		}
		pairTime += time.Since(t0)
		totalPairs += pairs

		stats := TreeStats{
			Step:    step,
			Pairs:   pairs,
			Height:  bp.GetTreeHeight(),
			Balance: bp.GetTreeBalance(),
			Quality: bp.GetTreeQuality(),
		}
		report.Stats = append(report.Stats, stats)
		logger.WithFields(logrus.Fields{
			"step":    stats.Step,
			"pairs":   stats.Pairs,
			"height":  stats.Height,
			"balance": stats.Balance,
			"quality": stats.Quality,
		}).Debug("step")
	}
	record(BenchResult{Name: "MoveProxy", Duration: moveTime, Ops: cfg.proxies * cfg.steps})
	record(BenchResult{Name: "UpdatePairs", Duration: pairTime, Ops: cfg.steps,
		Extra: fmt.Sprintf("%d pairs", totalPairs)})

	hits := 0
	start = time.Now()
	queries := 1000
	for i := 0; i < queries; i++ {
		err := bp.Query(func(proxyId int) bool {
			hits++
			return true
		}, randomBox(rng, cfg.worldSize, cfg.extent*4))
		if err != nil {
			logger.WithError(err).Fatal("query")
		}
	}
	record(BenchResult{Name: "Query", Duration: time.Since(start), Ops: queries,
		Extra: fmt.Sprintf("%d hits", hits)})

	hits = 0
	start = time.Now()
	for i := 0; i < queries; i++ {
		input := box2d.MakeB2RayCastInput()
		input.P1 = randomPoint(rng, cfg.worldSize)
		input.P2 = randomPoint(rng, cfg.worldSize)
		input.MaxFraction = 1.0
		err := bp.RayCast(func(input box2d.B2RayCastInput, proxyId int) float32 {
			hits++
			return input.MaxFraction
		}, input)
		if err != nil {
			logger.WithError(err).Debug("skipping ray")
		}
	}
	record(BenchResult{Name: "RayCast", Duration: time.Since(start), Ops: queries,
		Extra: fmt.Sprintf("%d hits", hits)})

	if err := bp.Validate(); err != nil {
		logger.WithError(err).Error("tree failed validation")
	}

	fmt.Println()
	fmt.Printf("Tree height: %d, balance: %d, quality: %.3f\n",
		bp.GetTreeHeight(), bp.GetTreeBalance(), bp.GetTreeQuality())

	start = time.Now()
	for _, b := range bodies {
		if err := bp.DestroyProxy(b.proxyId); err != nil {
			logger.WithError(err).Fatal("destroying proxy")
		}
	}
	record(BenchResult{Name: "DestroyProxy", Duration: time.Since(start), Ops: cfg.proxies})

	return report
}

func randomPoint(rng *rand.Rand, worldSize float64) box2d.B2Vec2 {
	return box2d.MakeB2Vec2(float32(rng.Float64()*worldSize), float32(rng.Float64()*worldSize))
}

func randomBox(rng *rand.Rand, worldSize, extent float64) box2d.B2AABB {
	c := randomPoint(rng, worldSize)
	hx := float32(0.1 + rng.Float64()*extent)
	hy := float32(0.1 + rng.Float64()*extent)
	return box2d.MakeB2AABBFromBounds(c.X()-hx, c.Y()-hy, c.X()+hx, c.Y()+hy)
}

func randomVelocity(rng *rand.Rand, speed float64) box2d.B2Vec2 {
	return box2d.MakeB2Vec2(float32((rng.Float64()*2-1)*speed), float32((rng.Float64()*2-1)*speed))
}

// bounce keeps a body inside the world by reflecting its velocity.
func bounce(b *body, worldSize float64) {
	size := float32(worldSize)
	for axis := 0; axis < 2; axis++ {
		if b.aabb.LowerBound[axis] < 0 && b.velocity[axis] < 0 {
			b.velocity[axis] = -b.velocity[axis]
		}
		if b.aabb.UpperBound[axis] > size && b.velocity[axis] > 0 {
			b.velocity[axis] = -b.velocity[axis]
		}
	}
}
