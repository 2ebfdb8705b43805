package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gpsbridge/internal/config"
	"gpsbridge/internal/gps"
	"gpsbridge/internal/led"
	"gpsbridge/internal/record"
	"gpsbridge/internal/sensors/lis3mdl"
	"gpsbridge/internal/trace"
	"gpsbridge/internal/udp"
	"gpsbridge/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./dev.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("gpsbridge starting")

	traceBuf := trace.NewBuffer(cfg.Trace.BufferKiB * 1024)
	status := web.NewStatus()
	status.Register("trace", func() any { return traceBuf.Snapshot() })

	sinks := []io.Writer{traceBuf}

	if cfg.Trace.Mirror != "" {
		mirror, err := udp.NewMirror(cfg.Trace.Mirror)
		if err != nil {
			log.Fatalf("udp mirror init failed: %v", err)
		}
		defer mirror.Close()
		sinks = append(sinks, mirror)
		status.Register("mirror", func() any { return mirror.Snapshot() })
		log.Printf("udp mirror dest=%s", cfg.Trace.Mirror)
	}

	if cfg.Trace.Sink != "" {
		sink, err := trace.NewSink(cfg.Trace.Sink)
		if err != nil {
			log.Fatalf("trace sink init failed: %v", err)
		}
		sink.Start(ctx)
		defer sink.Close()
		sinks = append(sinks, sink)
		status.Register("sink", func() any { return sink.Snapshot() })
		log.Printf("trace sink command=%q", cfg.Trace.Sink)
	}

	if cfg.Trace.Listen != "" {
		srv, err := trace.NewServer(cfg.Trace.Listen, traceBuf)
		if err != nil {
			log.Fatalf("trace server init failed: %v", err)
		}
		srv.Start(ctx)
		defer srv.Close()
		log.Printf("trace server listen=%s", srv.Addr())
	}

	var recorder *record.Recorder
	if cfg.Record.Enable {
		recorder, err = record.NewRecorder(cfg.Record.Path)
		if err != nil {
			log.Fatalf("recorder init failed: %v", err)
		}
		defer recorder.Close()
		status.Register("record", func() any {
			return map[string]any{"path": cfg.Record.Path, "entries": recorder.Count()}
		})
		log.Printf("recorder path=%s", cfg.Record.Path)
	}

	gpsSvc := gps.New(gps.Config{
		Enable:         cfg.GPS.Enable,
		Device:         cfg.GPS.Device,
		Baud:           cfg.GPS.Baud,
		Protocol:       cfg.GPS.Protocol,
		StatusInterval: cfg.GPS.StatusInterval,
	}, trace.NewFanout(sinks...))
	if recorder != nil {
		gpsSvc.OnFix = func(fix gps.Fix) {
			err := recorder.Append(record.Entry{
				CapturedUTC: time.Now().UTC(),
				FixUTC:      fix.Time,
				LatDeg:      fix.LatDeg,
				LonDeg:      fix.LonDeg,
				AltM:        fix.AltM,
				SpeedMS:     fix.SpeedMS,
				Satellites:  fix.Satellites,
			})
			if err != nil {
				log.Printf("record append failed: %v", err)
			}
		}
	}
	if err := gpsSvc.Start(ctx); err != nil {
		log.Fatalf("gps start failed: %v", err)
	}
	defer gpsSvc.Close()
	status.Register("gps", func() any { return gpsSvc.Snapshot() })

	ledSvc := led.New(led.Config{
		Enable: cfg.LED.Enable,
		Pin:    cfg.LED.Pin,
		Period: cfg.LED.Period,
	})
	if err := ledSvc.Start(ctx); err != nil {
		log.Fatalf("led start failed: %v", err)
	}
	defer ledSvc.Close()
	status.Register("led", func() any { return ledSvc.Snapshot() })

	magSvc := lis3mdl.NewService(lis3mdl.Config{
		Enable:   cfg.Mag.Enable,
		Bus:      cfg.Mag.Bus,
		Addr:     cfg.Mag.Addr,
		Interval: cfg.Mag.Interval,
	})
	if err := magSvc.Start(ctx); err != nil {
		log.Fatalf("mag start failed: %v", err)
	}
	defer magSvc.Close()
	status.Register("mag", func() any { return magSvc.Snapshot() })

	if cfg.Web.Listen != "" {
		go func() {
			log.Printf("web listen=%s", cfg.Web.Listen)
			if err := web.Serve(ctx, cfg.Web.Listen, status, traceBuf); err != nil && ctx.Err() == nil {
				log.Printf("web server stopped: %v", err)
				cancel()
			}
		}()
	}

	<-ctx.Done()
	log.Printf("gpsbridge stopping")
}
