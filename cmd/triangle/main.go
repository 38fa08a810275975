package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/vkngwrapper/triangle/app"
	"github.com/vkngwrapper/triangle/config"
	"github.com/vkngwrapper/triangle/window"
)

func init() {
	// SDL must be driven from the main OS thread.
	runtime.LockOSThread()
}

func run() error {
	dir, err := config.ExecutableDir()
	if err != nil {
		return err
	}

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	if err != nil {
		return err
	}
	cfg = cfg.Resolve(dir)

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	win, err := window.New(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title)
	if err != nil {
		return err
	}
	defer win.Destroy()

	application, err := app.New(cfg, win, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	return application.Run()
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}
