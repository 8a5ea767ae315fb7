// SPDX-License-Identifier: MIT
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"tempo/cmd"
	"tempo/internal/audio"
	"tempo/internal/config"
	applog "tempo/internal/log"
	"tempo/internal/metrics"
	"tempo/internal/transport"
	"tempo/internal/transport/mqtt"
	"tempo/internal/transport/udp"
	"tempo/internal/tui"
	"tempo/pkg/build"
)

// main is the entry point for the tempo tracker.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Start the tracker, whose stream callback runs the analysis
//   - Poll results at a fixed rate and hand them to the transports
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals or the end of a file
//   - Stop the tracker and close the transports
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds have no ldflags; the defaults are used instead.
	if err := build.Initialize(); err != nil {
		applog.Debugf("Build: %v", err)
	}

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if opts.Command == "" {
		return
	}

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		applog.Fatalf("%v", err)
	}
	opts.Apply(cfg)

	level, ok := applog.ParseLevel(cfg.LogLevel)
	if !ok {
		applog.Warnf("Unknown log level %q, using %s", cfg.LogLevel, level)
	}
	applog.SetLevel(level)

	switch opts.Command {
	case cmd.CommandList:
		err = listDevices()
	case cmd.CommandAnalyze:
		err = analyze(cfg, opts.File)
	default:
		err = run(cfg, opts)
	}
	if err != nil {
		applog.Fatalf("%v", err)
	}
}

// listDevices prints the PortAudio devices.
func listDevices() (err error) {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, audio.Terminate())
	}()
	return audio.ListDevices(os.Stdout)
}

// analyze tracks a WAV file unpaced and prints every beat.
func analyze(cfg *config.Config, path string) error {
	info, err := audio.ProbeWAV(path)
	if err != nil {
		return err
	}
	cfg.Audio.Backend = config.BackendFile
	cfg.Audio.InputFile = path
	cfg.Audio.Realtime = false
	cfg.Audio.SampleRate = info.SampleRate

	hopSeconds := cfg.HopSeconds()
	tracker := audio.NewTracker(cfg, audio.WithBeatHook(func(hop uint64, bpm float64) {
		if bpm > 0 {
			fmt.Printf("%9.3fs  %6.1f bpm\n", float64(hop)*hopSeconds, bpm)
		} else {
			fmt.Printf("%9.3fs\n", float64(hop)*hopSeconds)
		}
	}))

	session, err := tracker.Start()
	if err != nil {
		return err
	}
	<-session.Done()

	beats, bpm := session.Beats(), session.BPM()
	if err := tracker.Stop(session); err != nil {
		return err
	}
	fmt.Printf("%s: %d beats, %.1f bpm\n", path, beats, bpm)
	return nil
}

// run tracks a live input until interrupted.
func run(cfg *config.Config, opts *cmd.Options) error {
	if opts.Pick {
		sel, ok, err := tui.PickDevice(audio.GetInputDevices)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		cfg.Audio.Backend = config.BackendPortAudio
		cfg.Audio.InputDevice = sel.DeviceID
		cfg.Audio.SampleRate = sel.SampleRate
	}

	tracker := audio.NewTracker(cfg)
	session, err := tracker.Start()
	if err != nil {
		return err
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	var feed *tui.Feed
	transports := []transport.Transport{transport.NewLoggingTransport()}
	if opts.TUI {
		feed = tui.NewFeed(16)
		transports = append(transports, feed)
	}
	if cfg.Transport.UDPEnabled {
		t, err := udp.NewTransport(cfg.Transport.UDPTargetAddress)
		if err != nil {
			applog.Warnf("UDP: %v", err)
		} else {
			transports = append(transports, t)
		}
	}
	if cfg.Transport.WebSocketEnabled {
		transports = append(transports, transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress))
	}
	if cfg.Transport.MQTTEnabled {
		t, err := mqtt.NewTransport(mqtt.Config{
			Broker:   cfg.Transport.MQTTBroker,
			ClientID: cfg.Transport.MQTTClientID + "-" + session.ID()[:8],
			Topic:    cfg.Transport.MQTTTopic,
		})
		if err != nil {
			applog.Warnf("MQTT: %v", err)
		} else {
			transports = append(transports, t)
		}
	}
	if cfg.Metrics.Enabled {
		exporter, err := metrics.NewExporter(nil)
		if err == nil {
			err = exporter.Serve(cfg.Metrics.Address)
		}
		if err != nil {
			applog.Warnf("Metrics: %v", err)
		} else {
			transports = append(transports, exporter)
		}
	}

	publisher := transport.NewPublisher(session, cfg.Transport.PollInterval, transports...)
	publisher.Start()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	if feed != nil {
		// Log lines would tear the alternate screen.
		applog.SetOutput(io.Discard)
		title := fmt.Sprintf("%s %s", build.GetBuildFlags().Name, cfg.Audio.Backend)
		if err := tui.RunMonitor(feed, title, session.Done()); err != nil {
			applog.Errorf("TUI: %v", err)
		}
		applog.SetOutput(os.Stderr)
	} else {
		applog.Infof("Tracking on %s backend, press Ctrl+C to stop", cfg.Audio.Backend)
		select {
		case <-signals:
		case <-session.Done():
		}
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	stopErr := tracker.Stop(session)
	return errors.Join(stopErr, publisher.Close())
}
