package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-midihub/config"
	"go-midihub/debug"
	"go-midihub/midi"
	"go-midihub/sequencer"
	"go-midihub/theme"
	"go-midihub/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Debug {
		if err := debug.Enable(); err != nil {
			return err
		}
		defer debug.Disable()
	}

	palette := theme.Default()
	if cfg.Palette != "" {
		if palette, err = theme.LoadGPL(cfg.Palette); err != nil {
			return err
		}
	}
	th := theme.New(palette)

	texture, err := cfg.HubTexture()
	if err != nil {
		return err
	}
	if cfg.Ports.Input == "" || cfg.Ports.Output == "" {
		path, _ := config.ConfigPath()
		return fmt.Errorf("set ports.input and ports.output in %s (see: midihub list)", path)
	}

	hub, err := sequencer.OpenHub(midi.PortTransport{}, cfg.Ports.Input, cfg.Ports.Output, texture, cfg.Passthrough, cfg.HubOptions()...)
	if err != nil {
		return err
	}
	defer hub.Close()

	// Watch the configured ports for hot-unplug
	watcher := midi.NewPortWatcher([]string{cfg.Ports.Input}, []string{cfg.Ports.Output})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	m := tui.NewModel(hub, watcher, cfg, th)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
