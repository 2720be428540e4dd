// Command modcfgd serves a module's configuration bytes: it keeps them in
// EEPROM, lets an operator edit them with a dial and a button, and exposes
// them over HTTP.
// Run with --mock to use an in-memory part (no I2C device required).
package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/micro-nova/modcfg/internal/api"
	"github.com/micro-nova/modcfg/internal/config"
	"github.com/micro-nova/modcfg/internal/eeprom"
	"github.com/micro-nova/modcfg/internal/events"
	"github.com/micro-nova/modcfg/internal/panel"
	"github.com/micro-nova/modcfg/internal/protocol"
	"github.com/micro-nova/modcfg/internal/settings"
	"github.com/micro-nova/modcfg/internal/zeroconf"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "settings file (default: built-in in-memory settings)")
		mock    = flag.Bool("mock", false, "use an in-memory EEPROM whatever the settings say")
		addr    = flag.String("addr", "", "HTTP listen address (overrides settings)")
		debug   = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	s := settings.Default()
	if *cfgPath != "" {
		loaded, err := settings.Load(*cfgPath)
		if err != nil {
			slog.Error("cannot load settings", "path", *cfgPath, "err", err)
			os.Exit(1)
		}
		s = loaded
	}
	if *mock {
		s.Device.Backend = settings.BackendMem
		s.Device.Watch = false
	}
	if *addr != "" {
		s.HTTP.Addr = *addr
	}

	// Configure logging
	logLevel := parseLevel(s.LogLevel)
	if *debug {
		logLevel = slog.LevelDebug
	}
	var logOut io.Writer = os.Stderr
	if s.LogFile != "" {
		rotated := &lumberjack.Logger{
			Filename:   s.LogFile,
			MaxSize:    5, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		defer rotated.Close()
		logOut = io.MultiWriter(os.Stderr, rotated)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: logLevel})))

	// Graceful shutdown context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dev, closeDev, err := openDevice(s.Device)
	if err != nil {
		slog.Error("storage initialization failed", "backend", s.Device.Backend, "err", err)
		os.Exit(1)
	}
	defer closeDev()

	bus := events.NewBus()

	probe, err := config.ParseProbe(s.Store.Probe)
	if err != nil {
		slog.Error("invalid probe policy", "err", err)
		os.Exit(1)
	}
	store, err := config.New(ctx, dev, s.Store.Base, s.Store.DefaultBytes(),
		config.WithValidator(config.NewRangeValidator(s.Store.ValidatorRules()...)),
		config.WithChangeHandler(bus),
		config.WithProbe(probe),
	)
	if err != nil {
		slog.Error("configuration store initialization failed", "err", err)
		os.Exit(1)
	}
	slog.Info("configuration store ready",
		"backend", s.Device.Backend,
		"base", store.Base(),
		"size", store.Size(),
		"probe", probe.String(),
	)

	// Reload when another process rewrites the image file.
	if f, ok := dev.(*eeprom.File); ok && s.Device.Watch {
		w, err := f.Watch(func() {
			if err := store.Load(ctx); err != nil {
				slog.Warn("reload after image change failed", "err", err)
				return
			}
			bus.Publish(events.Notification{Type: events.TypeReload, Action: "load"})
		})
		if err != nil {
			slog.Warn("cannot watch image file", "path", f.Path(), "err", err)
		} else {
			defer w.Close()
		}
	}

	popts := []protocol.Option{protocol.WithTimeout(s.Protocol.Timeout())}
	if s.Protocol.StrictExpiry {
		popts = append(popts, protocol.WithStrictExpiry())
	}
	proto := protocol.New(store, popts...)

	// Operator panel
	if src := panelSource(s.Panel); src != nil {
		runner := panel.NewRunner(src, proto, panel.LogIndicator{}, bus,
			time.Duration(s.Panel.PollMs)*time.Millisecond)
		go func() {
			if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("panel stopped", "type", s.Panel.Type, "err", err)
			}
		}()
	}

	// Zeroconf mDNS registration
	if s.HTTP.Announce {
		name := s.HTTP.Name
		if name == "" {
			name, _ = os.Hostname()
		}
		zc := zeroconf.New(name, listenPort(s.HTTP.Addr),
			zeroconf.TXT(store.Base(), store.Size(), proto.Timeout()))
		go func() {
			if err := zc.Start(ctx); err != nil {
				slog.Warn("zeroconf failed", "err", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:         s.HTTP.Addr,
		Handler:      api.NewRouter(store, proto, bus),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout (needed for SSE)
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("modcfgd listening", "addr", s.HTTP.Addr, "mock", *mock, "config", *cfgPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}

	slog.Info("shutdown complete")
}

// openDevice builds the storage backend named by d. The returned func
// releases it.
func openDevice(d settings.DeviceSettings) (eeprom.Device, func(), error) {
	switch d.Backend {
	case settings.BackendFile:
		slog.Info("using EEPROM image file", "path", d.Path, "size", d.Size)
		return eeprom.NewFile(d.Path, d.Size), func() {}, nil
	case settings.BackendI2C:
		slog.Info("using I2C EEPROM", "bus", d.Path, "addr", d.Address, "size", d.Size)
		dev := eeprom.NewI2C(d.Path, d.Address, d.Size, d.PageSize)
		if err := dev.Open(); err != nil {
			return nil, nil, err
		}
		return dev, dev.Close, nil
	default:
		slog.Info("using in-memory EEPROM", "size", d.Size)
		return eeprom.NewMem(d.Size), func() {}, nil
	}
}

// panelSource returns the operator input named by p, or nil for none.
func panelSource(p settings.PanelSettings) panel.Source {
	switch p.Type {
	case settings.PanelGPIO:
		return &panel.GPIO{
			Button:    p.Button,
			Dial:      p.Dial,
			LongPress: time.Duration(p.LongPressMs) * time.Millisecond,
			Debounce:  time.Duration(p.DebounceMs) * time.Millisecond,
		}
	case settings.PanelSerial:
		return &panel.Serial{Port: p.Port, Baud: p.Baud}
	case settings.PanelStdin:
		return &panel.Console{R: os.Stdin}
	default:
		return nil
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// listenPort extracts the port from a listen address such as ":8080".
func listenPort(addr string) int {
	port := 80
	if parts := strings.SplitN(addr, ":", 2); len(parts) == 2 && parts[1] != "" {
		if p, err := strconv.Atoi(parts[1]); err == nil {
			port = p
		}
	}
	return port
}
