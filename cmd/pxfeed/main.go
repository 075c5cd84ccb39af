package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pxfeed/internal/ops"
	"pxfeed/internal/pxdata"
	"pxfeed/internal/replay"
	"pxfeed/internal/store"
	"pxfeed/pkg/conn"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

func main() {
	configPath := flag.String("config", "", "YAML config path (empty uses defaults and PXFEED_* env)")
	feedPath := flag.String("feed", "", "Replay feed path, overrides replay.path")
	speed := flag.Float64("speed", -1, "Replay speed (1=real-time, 0=no pacing), overrides replay.speed")
	recordPath := flag.String("record", "", "Write received callbacks to this feed file")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		logs.Errorf("load config, err: %+v", err)
		os.Exit(1)
	}
	if *feedPath != "" {
		cfg.Replay.Path = *feedPath
	}
	if *speed >= 0 {
		cfg.Replay.Speed = *speed
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *recordPath); err != nil && ctx.Err() == nil {
		logs.Errorf("pxfeed, err: %+v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg ops.Config, recordPath string) error {
	if cfg.Pyroscope.Addr != "" {
		profiler, err := startProfiler(cfg.Pyroscope)
		if err != nil {
			return err
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	provider, err := replay.New(cfg.Replay)
	if err != nil {
		return err
	}

	handler := historicalHandlers{pxdata.HistoricalHandlerFunc(logHistorical)}
	if cfg.Postgres.Enabled {
		client, err := conn.New(cfg.Postgres.Option())
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.Ping(ctx); err != nil {
			return err
		}
		sink, err := store.NewSink(client.DB())
		if err != nil {
			return err
		}
		if err := sink.Migrate(ctx); err != nil {
			return err
		}
		handler = append(handler, sink)
	}

	use := pxdata.NewUsecase(provider, cfg.Pxdata)
	if err := use.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := use.Close(); err != nil {
			logs.Warnf("close usecase, err: %+v", err)
		}
	}()

	for _, sub := range cfg.Subscriptions {
		s, err := use.Subscribe(ctx, sub.Spec, sub.Duration, sub.BarSize, handler, pxdata.TickHandlerFunc(logTick))
		if err != nil {
			return errors.Wrap(err, "subscribe").With("spec", sub.Spec.String())
		}
		logs.Infof("subscribed %s, price %s, contract %s, tick %s", sub.Spec, s.PriceID, s.ContractID, s.TickID)
	}

	go reportStats(ctx, use, cfg.StatsInterval)

	var callbacks pxdata.Callbacks = use
	if recordPath != "" {
		file, err := os.Create(recordPath)
		if err != nil {
			return errors.Wrap(err, "create record file").With("path", recordPath)
		}
		defer file.Close()

		recorder, err := replay.NewRecorder(file, use, replay.RecorderConfig{FlushInterval: time.Second})
		if err != nil {
			return err
		}
		if err := recorder.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := recorder.Close(); err != nil {
				logs.Warnf("close recorder, err: %+v", err)
			}
		}()
		callbacks = recorder
	}

	if err := provider.Run(ctx, callbacks); err != nil {
		return err
	}
	logs.Infof("replay finished, %+v", use.Metrics().Snapshot())
	return nil
}

type historicalHandlers []pxdata.HistoricalHandler

func (hs historicalHandlers) OnHistoricalUpdate(ctx context.Context, event pxdata.HistoricalEvent) {
	for _, h := range hs {
		h.OnHistoricalUpdate(ctx, event)
	}
}

func logHistorical(_ context.Context, event pxdata.HistoricalEvent) {
	last, _ := event.Bars.Last()
	logs.Infof("%s bars %d, last close %.4f @ %d, elapsed %s",
		event.Contract.Symbol, len(event.Bars), last.Close, last.EpochSec, event.Elapsed)
}

func logTick(_ context.Context, event pxdata.TickEvent) {
	logs.Debugf("%s last %.4f, elapsed %s", event.Contract.Symbol, event.Price, event.Elapsed)
}

func reportStats(ctx context.Context, use *pxdata.Usecase, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := use.Metrics().Snapshot()
			logs.Infof("stats bars=%d updates=%d ticks=%d hist_events=%d tick_events=%d suppressed=%d panics=%d drops=%v hist_avg=%s tick_avg=%s",
				s.Bars, s.BarUpdates, s.Ticks, s.HistoricalEvents, s.TickEvents, s.Suppressed, s.HandlerPanics,
				s.Drops, s.HistoricalLatency.Avg, s.TickLatency.Avg)
		}
	}
}

func startProfiler(cfg ops.PyroscopeConfig) (*pyroscope.Profiler, error) {
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.Application,
		ServerAddress:   cfg.Addr,
		Tags: map[string]string{
			"service": "pxfeed",
		},
		Logger: emptyLogger{},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "start pyroscope").With("addr", cfg.Addr)
	}
	return profiler, nil
}

type emptyLogger struct{}

func (emptyLogger) Infof(string, ...interface{})  {}
func (emptyLogger) Debugf(string, ...interface{}) {}
func (emptyLogger) Errorf(string, ...interface{}) {}
