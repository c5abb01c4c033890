// Command sysrecorderd wires the core recorder components into a
// runnable process. It takes no flags; configuration comes from the
// SYSRECORDER_CONFIG environment variable or the built-in defaults.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gen2brain/malgo"

	"sysrecorder/classify"
	"sysrecorder/config"
	"sysrecorder/device"
	"sysrecorder/recorder"
	"sysrecorder/store"
	"sysrecorder/supervisor"
)

func main() {
	cfg := config.Default()
	if path := os.Getenv("SYSRECORDER_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			log.Fatalf("sysrecorderd: failed to load config %s: %v", path, err)
		}
		cfg = loaded
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		log.Fatalf("sysrecorderd: failed to create data directory: %v", err)
	}

	registry, err := device.New()
	if err != nil {
		log.Fatalf("sysrecorderd: failed to init audio device registry: %v", err)
	}
	defer registry.Close()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Fatalf("sysrecorderd: failed to init audio context: %v", err)
	}
	defer ctx.Uninit()

	catalog, err := store.Open(cfg.Storage.DataDir+"/sessions.db", cfg.Storage.DataDir)
	if err != nil {
		log.Fatalf("sysrecorderd: failed to open session catalog: %v", err)
	}

	sup := supervisor.New(registry, ctx, cfg.Recording.SampleRate, cfg.Recording.SilenceThreshold)
	classifier := classify.Default()
	rec := recorder.New(cfg, registry, ctx, catalog, classifier, sup)

	rec.OnChunkSaved(func(c store.Chunk) {
		log.Printf("chunk saved: %s (rms=%.4f silent=%v speech_ratio=%.2f)", c.FilePath, c.RMSLevel, c.IsSilent, c.SpeechRatio)
	})
	rec.OnSessionCreated(func(s *store.Session) {
		log.Printf("session created: %s", s.SessionID)
	})
	rec.OnSessionCompleted(func(s *store.Session) {
		log.Printf("session completed: %s (duration=%.1fs chunks=%d)", s.SessionID, s.DurationSeconds(), s.TotalChunks())
	})
	rec.OnDeviceChanged(func(index, name string) {
		log.Printf("device switched: %s (%s)", name, index)
	})

	if !rec.Start() {
		log.Fatal("sysrecorderd: failed to start recorder")
	}
	log.Println("sysrecorderd: recording started, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("sysrecorderd: shutting down")
	rec.Stop()

	ctxCleanup, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if removed, err := catalog.Cleanup(ctxCleanup, cfg.Storage.RetentionDays, true); err != nil {
		log.Printf("sysrecorderd: retention cleanup failed: %v", err)
	} else if removed > 0 {
		log.Printf("sysrecorderd: retention cleanup removed %d expired sessions", removed)
	}
}
