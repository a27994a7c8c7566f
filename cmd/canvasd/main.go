package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/gogpu/gg"

	"github.com/astromechza/collab-canvas/pkg/config"
	"github.com/astromechza/collab-canvas/pkg/discovery"
	"github.com/astromechza/collab-canvas/pkg/persist"
	"github.com/astromechza/collab-canvas/pkg/relay"
	"github.com/astromechza/collab-canvas/pkg/viz"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	cfg, err := config.Load(os.Args[0], os.Args[1:])
	if err != nil {
		return err
	}
	slog.SetDefault(cfg.Logger())
	gg.SetLogger(slog.Default())

	slog.Info("Opening database", "path", cfg.Database)
	boards, err := persist.Open(cfg.Database, slog.Default())
	if err != nil {
		return err
	}
	defer boards.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := relay.New(ctx, boards, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to load boards: %w", err)
	}
	if _, err := s.Board(ctx, cfg.Board); err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	slog.Info("listening", "addr", listener.Addr())

	if cfg.MDNS {
		_, rawPort, _ := net.SplitHostPort(listener.Addr().String())
		port, _ := strconv.Atoi(rawPort)
		advert, err := discovery.Advertise(port, s.Boards())
		if err != nil {
			slog.Error("failed to advertise", "err", err)
		} else {
			defer advert.Shutdown()
			slog.Info("advertising", "service", discovery.ServiceType, "port", port)
		}
	}

	wg := new(sync.WaitGroup)

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.BackupContinuously(ctx, cfg.BackupInterval)
	}()

	httpServer := &http.Server{Handler: s.Router()}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server listen failed", "err", err)
		}
	}()

	exit := make(chan os.Signal, 1) // we need to reserve to buffer size 1, so the notifier are not blocked
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-exit
	slog.Info("Signal caught", "sig", sig)
	cancel()
	_ = httpServer.Close()

	wg.Wait()

	if err := s.Backup(context.Background()); err != nil {
		slog.Error("failed final backup", "err", err)
	}
	for _, id := range s.Boards() {
		b, err := s.Board(context.Background(), id)
		if err != nil {
			continue
		}
		doc, err := b.Fork()
		if err != nil {
			slog.Error("failed to fork", "board", id, "err", err)
			continue
		}
		if svgPath, err := viz.RenderToTemp(doc); err != nil {
			slog.Error("failed to render", "board", id, "err", err)
		} else {
			slog.Info("rendered", "board", id, "path", "file://"+svgPath)
		}
	}
	return nil
}
