package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	newton "github.com/germangb/newton-go"
	"github.com/germangb/newton-go/native"
	"github.com/germangb/newton-go/scene"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		libPath   = flag.String("lib", "libNewton.so", "path to the Newton shared library")
		cfgPath   = flag.String("config", "", "world configuration file (TOML)")
		scenePath = flag.String("scene", "", "scene to spawn (YAML); omit for the built-in demo")
		outPath   = flag.String("out", "", "write a scene snapshot here on exit")
		duration  = flag.Duration("duration", 10*time.Second, "how long to simulate; 0 runs until interrupted")
		fps       = flag.Int("fps", 60, "fixed steps per second")
		logLevel  = flag.String("log-level", "info", "log level (debug, info, warn, error)")
		logFormat = flag.String("log-format", "console", "log format (console or json)")
	)
	flag.Parse()

	if *fps < 1 {
		return fmt.Errorf("fps must be >= 1, got %d", *fps)
	}

	log, err := newLogger(*logLevel, *logFormat)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	cfg := &newton.Config{}
	if *cfgPath != "" {
		cfg, err = newton.LoadConfig(*cfgPath)
		if err != nil {
			return err
		}
	}
	cfg.Logger = log

	lib, err := native.Open(*libPath)
	if err != nil {
		return err
	}
	defer lib.Close()

	w, err := newton.NewWorld(lib, cfg)
	if err != nil {
		return err
	}
	defer w.Close()

	sc := demoScene()
	if *scenePath != "" {
		sc, err = scene.Load(*scenePath)
		if err != nil {
			return err
		}
	}
	bodies, err := sc.Spawn(w)
	if err != nil {
		return err
	}
	log.Info("scene spawned",
		zap.Int("bodies", len(bodies)),
		zap.Int("collisions", w.CollisionCount()),
	)

	if err := w.SetContactListener(&contactLogger{log: log}); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dt := time.Second / time.Duration(*fps)
	ticker := time.NewTicker(dt)
	defer ticker.Stop()

	deadline := time.Now().Add(*duration)
	steps := 0
loop:
	for {
		select {
		case <-ctx.Done():
			log.Info("interrupted")
			break loop
		case <-ticker.C:
			if err := w.Step(dt); err != nil {
				return fmt.Errorf("step %d: %w", steps, err)
			}
			steps++
			if *duration > 0 && !time.Now().Before(deadline) {
				break loop
			}
		}
	}

	log.Info("simulation finished",
		zap.Int("steps", steps),
		zap.Int("bodies", w.BodyCount()),
		zap.Uint64("consistency_faults", w.ConsistencyFaults()),
	)

	if *outPath != "" {
		snap, err := scene.Snapshot(w)
		if err != nil {
			return err
		}
		snap.Gravity = sc.Gravity
		if err := snap.Save(*outPath); err != nil {
			return err
		}
		log.Info("snapshot saved",
			zap.String("path", *outPath),
			zap.Int("bodies", len(snap.Bodies)),
		)
	}
	return nil
}

// contactLogger reports contact points at debug level.
type contactLogger struct {
	log *zap.Logger
}

func (c *contactLogger) OnContact(ct newton.Contact) {
	if !c.log.Core().Enabled(zapcore.DebugLevel) {
		return
	}
	name0, _ := ct.Body0.Name()
	name1, _ := ct.Body1.Name()
	c.log.Debug("contact",
		zap.String("body0", name0),
		zap.String("body1", name1),
		zap.Float32("x", ct.Position[0]),
		zap.Float32("y", ct.Position[1]),
		zap.Float32("z", ct.Position[2]),
		zap.Float32("normal_speed", ct.NormalSpeed),
	)
}

// demoScene is a floor and a small stack of crates under gravity.
func demoScene() *scene.Scene {
	gravity := mgl32.Vec3{0, -9.8, 0}
	return &scene.Scene{
		Gravity: &gravity,
		Bodies: []scene.BodySpec{
			{
				Name:     "floor",
				Kind:     "kinematic",
				Shape:    scene.ShapeSpec{Type: "box", Dims: []float32{100, 1, 100}},
				Position: mgl32.Vec3{0, -0.5, 0},
			},
			{
				Name:     "crate-0",
				Shape:    scene.ShapeSpec{Type: "box", Dims: []float32{1, 1, 1}},
				Mass:     10,
				Position: mgl32.Vec3{0, 0.5, 0},
			},
			{
				Name:     "crate-1",
				Shape:    scene.ShapeSpec{Type: "box", Dims: []float32{1, 1, 1}},
				Mass:     10,
				Position: mgl32.Vec3{0, 1.5, 0},
			},
			{
				Name:     "ball",
				Shape:    scene.ShapeSpec{Type: "sphere", Dims: []float32{0.5}},
				Mass:     2,
				Position: mgl32.Vec3{0.25, 8, 0},
			},
		},
	}
}

func newLogger(level, format string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		cfg.EncoderConfig.ConsoleSeparator = "  "
		cfg.DisableCaller = true
		cfg.DisableStacktrace = true
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
