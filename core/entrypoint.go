package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"net/netip"
	"os"
	"os/signal"
	"path"
	"reflect"
	"runtime"
	"syscall"
	"time"

	"github.com/encodeous/rpl/perf"
	"github.com/encodeous/rpl/state"
	"github.com/encodeous/tint"
	"github.com/goccy/go-yaml"
	slogmulti "github.com/samber/slog-multi"
)

func ReadConfig(cfgPath string) (*state.RplCfg, error) {
	var cfg state.RplCfg
	file, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(file, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", cfgPath, err)
	}
	state.ExpandRplConfig(&cfg)
	err = state.RplConfigValidator(&cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Bootstrap loads the configuration and runs the root until it is interrupted
func Bootstrap(cfgPath, logPath, debugAddr string, verbose bool) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	cfg, err := ReadConfig(cfgPath)
	if err != nil {
		return err
	}
	if logPath != "" {
		cfg.LogPath = logPath
	}
	return Start(*cfg, level, debugAddr, nil)
}

func NewLogger(cfg *state.RplCfg, logLevel slog.Level) (*slog.Logger, error) {
	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        logLevel,
			AddSource:    false,
			CustomPrefix: cfg.Id,
			TimeFormat:   "15:04:05",
		}))

	if cfg.LogPath != "" {
		err := os.MkdirAll(path.Dir(cfg.LogPath), 0700)
		if err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: logLevel}))
	}
	return slog.New(slogmulti.Fanout(handlers...)), nil
}

func NewState(cfg state.RplCfg, logger *slog.Logger) *state.State {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &state.State{
		Modules: make(map[string]state.Module),
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: make(chan func(env *state.State) error, 128),
			RplCfg:          cfg,
			Log:             logger,
		},
	}
}

func Start(cfg state.RplCfg, logLevel slog.Level, debugAddr string, initState **state.State) error {
	logger, err := NewLogger(&cfg, logLevel)
	if err != nil {
		return err
	}
	s := NewState(cfg, logger)
	if initState != nil {
		*initState = s
	}

	s.Log.Info("init modules")
	err = initModules(s, &RplTrace{}, &RplRoot{})
	if err != nil {
		Stop(s)
		return err
	}
	s.Log.Info("init modules complete")

	if debugAddr != "" {
		srv := debugServer(s.Env, debugAddr)
		defer srv.Close()
	}

	s.Log.Info("RPL root has been initialized. To gracefully exit, send SIGINT or Ctrl+C.", "dag", s.Dag.Id)

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)
	go func() {
		select {
		case <-c:
			s.Cancel(errors.New("received shutdown signal"))
		case <-s.Context.Done():
			return
		}
	}()

	return MainLoop(s, s.DispatchChannel)
}

func debugServer(env *state.Env, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/debug/", http.DefaultServeMux)
	mux.HandleFunc("/debug/rpl/table", func(w http.ResponseWriter, req *http.Request) {
		res, err := env.DispatchWait(func(s *state.State) (any, error) {
			return s.Table.String(), nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprintln(w, res)
	})
	mux.HandleFunc("/debug/rpl/events", func(w http.ResponseWriter, req *http.Request) {
		events := make(chan any, 64)
		res, err := env.DispatchWait(func(s *state.State) (any, error) {
			tr := Get[*RplTrace](s)
			tr.Register(events)
			return tr, nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		tr := res.(*RplTrace)
		flusher, _ := w.(http.Flusher)
		for {
			select {
			case ev := <-events:
				_, _ = fmt.Fprintln(w, ev)
				if flusher != nil {
					flusher.Flush()
				}
			case <-req.Context().Done():
				if env.Context.Err() == nil {
					tr.Unregister(events)
				}
				return
			case <-env.Context.Done():
				// the broadcaster is closed during cleanup
				return
			}
		}
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			env.Log.Error("debug server stopped", "error", err)
		}
	}()
	return srv
}

func initModules(s *state.State, modules ...state.Module) error {
	for _, module := range modules {
		s.Modules[reflect.TypeOf(module).String()] = module
		if err := module.Init(s); err != nil {
			return err
		}
	}
	return nil
}

func MainLoop(s *state.State, dispatch <-chan func(*state.State) error) error {
	s.Log.Debug("started main loop")
	s.Started.Store(true)
	for {
		select {
		case fun := <-dispatch:
			if fun == nil {
				goto endLoop
			}
			start := time.Now()
			err := fun(s)
			if err != nil {
				s.Log.Error("error occurred during dispatch: ", "error", err)
				s.Cancel(err)
			}
			elapsed := time.Since(start)
			perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
			if elapsed > state.DispatchWarnThreshold {
				s.Log.Warn("dispatch took a long time!", "fun", runtime.FuncForPC(reflect.ValueOf(fun).Pointer()).Name(), "elapsed", elapsed, "len", len(dispatch))
			}
		case <-s.Context.Done():
			goto endLoop
		}
	}
endLoop:
	s.Log.Info("stopped main loop", "reason", context.Cause(s.Context).Error())
	Stop(s)
	return nil
}

func Stop(s *state.State) {
	if s.Stopping.Swap(true) {
		return // don't stop twice
	}
	s.Cancel(context.Canceled)
	s.Log.Info("cleaning up modules")
	for moduleName, module := range s.Modules {
		err := module.Cleanup(s)
		if err != nil {
			s.Log.Error("error occurred during Stop: ", "module", moduleName, "error", err)
		}
	}
	s.Log.Info("stopped")
}

// SubmitDao hands a received DAO to the dispatch goroutine
func SubmitDao(env *state.Env, dao Dao) {
	env.Dispatch(func(s *state.State) error {
		// rejected DAOs are logged by the root and are not fatal
		_ = Get[*RplRoot](s).HandleDao(dao)
		return nil
	})
}

// SubmitNoPath hands a received No-Path to the dispatch goroutine
func SubmitNoPath(env *state.Env, child, parent netip.Addr) {
	env.Dispatch(func(s *state.State) error {
		Get[*RplRoot](s).HandleNoPath(child, parent)
		return nil
	})
}

// QueryRoute asks the dispatch goroutine for the source route to addr
func QueryRoute(env *state.Env, addr netip.Addr) (SourceRoute, bool, error) {
	res, err := env.DispatchWait(func(s *state.State) (any, error) {
		route, ok := Get[*RplRoot](s).LookupRoute(addr)
		if !ok {
			return nil, nil
		}
		return route, nil
	})
	if err != nil {
		return nil, false, err
	}
	route, ok := res.(SourceRoute)
	return route, ok, nil
}
