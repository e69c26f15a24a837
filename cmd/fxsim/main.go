package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kalaytan/fxsim/params"
	"github.com/kalaytan/fxsim/pkg/engine"
	"github.com/kalaytan/fxsim/pkg/feed"
	"github.com/kalaytan/fxsim/pkg/market"
	"github.com/kalaytan/fxsim/pkg/ops"
	"github.com/kalaytan/fxsim/pkg/strategy"
	"github.com/kalaytan/fxsim/pkg/util"
	"github.com/kalaytan/fxsim/pkg/viewer"
)

// Exit codes.
const (
	exitOK = iota
	exitBadArgs
	exitBadConfig
	exitNoData
)

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("fxsim", flag.ContinueOnError)
	cfgPath := fs.String("c", "", "configuration file (yaml)")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: fxsim -c <config>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitBadArgs
	}
	if *cfgPath == "" || fs.NArg() > 0 {
		fs.Usage()
		return exitBadArgs
	}

	cfg, err := params.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fxsim: %v\n", err)
		return exitBadConfig
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Printf("logger: %v", err)
		return exitBadConfig
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	store, err := feed.OpenTickStore(cfg.Data.Path)
	if err != nil {
		sugar.Errorw("tick_store_open_failed", "path", cfg.Data.Path, "err", err)
		return exitNoData
	}
	defer store.Close()

	reg := engine.NewRegistry()
	viewSrv := viewer.NewServer(cfg.Viewer.Addr, reg, sugar)
	opsSrv := ops.NewServer(reg, sugar)
	pub := engine.MultiPublisher{viewSrv, opsSrv}

	var engines []*engine.Engine
	var feeders []*feed.ReplayFeeder
	for _, sc := range cfg.Symbols {
		sym := market.ParseSymbol(sc.Name)
		if sym == market.SymbolUndefined {
			sugar.Errorw("bad_symbol", "name", sc.Name)
			return exitBadConfig
		}
		day, err := sc.ReplayDay()
		if err != nil {
			sugar.Errorw("bad_replay_day", "symbol", sc.Name, "err", err)
			return exitBadConfig
		}

		e := engine.New(sym, strategy.NewDefault(), sugar,
			engine.WithPublisher(pub),
			engine.WithBalance(cfg.Account.Balance),
		)
		reg.Add(e)
		engines = append(engines, e)

		f := feed.NewReplayFeeder(store, sym, market.Timeframes(), feed.ReplayConfig{
			Day:             day,
			Days:            sc.Days,
			LookbackMinutes: sc.LookbackMinutes,
			SpeedFactor:     sc.SpeedFactor,
			Cache:           sc.Cache,
		}, viewSrv, sugar)
		f.AddCallback(e)
		feeders = append(feeders, f)
	}

	if err := viewSrv.Start(); err != nil {
		sugar.Errorw("viewer_start_failed", "err", err)
		return exitBadConfig
	}
	if err := opsSrv.Start(cfg.Ops.Addr); err != nil {
		sugar.Errorw("ops_start_failed", "err", err)
		return exitBadConfig
	}

	go trackViewerConns(viewSrv, opsSrv)

	for _, f := range feeders {
		if err := f.Start(); err != nil {
			sugar.Errorw("feeder_start_failed", "symbol", f.Symbol().String(), "err", err)
			return exitNoData
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	sugar.Info("shutting down")

	for _, f := range feeders {
		f.Stop()
	}
	for _, e := range engines {
		e.Shutdown()
	}
	viewSrv.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	opsSrv.Stop(shutdownCtx)

	return exitOK
}

func buildLogger(cfg params.Config) (*zap.Logger, error) {
	if cfg.Log.File != "" {
		return util.NewLoggerWithFile(cfg.Log.File)
	}
	return util.NewLogger()
}

func trackViewerConns(viewSrv *viewer.Server, opsSrv *ops.Server) {
	for range time.Tick(time.Second) {
		opsSrv.Metrics().ViewerConns.Set(float64(viewSrv.ConnCount()))
	}
}
