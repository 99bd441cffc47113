package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/repcoach/internal/classifier"
	"github.com/claude/repcoach/internal/config"
	"github.com/claude/repcoach/internal/landmarks"
	"github.com/claude/repcoach/internal/session"
	"github.com/claude/repcoach/internal/spool"
	"github.com/claude/repcoach/internal/storage"
	"github.com/claude/repcoach/internal/upload"
	"github.com/claude/repcoach/internal/voice"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	exerciseFlag := flag.String("exercise", session.Auto, "exercise to count (curls, pushups, situps, squats, plank) or auto")
	user := flag.String("user", "", "user the session is saved under")
	landmarksPath := flag.String("landmarks", "", "landmark CSV to replay")
	recordPath := flag.String("record", "", "also write every detected frame to this CSV, labelled with -exercise")
	geometricOnly := flag.Bool("geometric-only", false, "skip the classifier services and count on geometry alone")
	flushSpool := flag.Bool("flush-spool", false, "replay spooled summaries and exit")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("repcoach-session", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outbox, err := spool.Open(cfg.Spool.Dir)
	if err != nil {
		log.Error("failed to open spool", "error", err)
		os.Exit(1)
	}
	defer outbox.Close()

	store, closeStore, storeErr := openStore(ctx, cfg, log)
	defer closeStore()

	if *flushSpool {
		if store == nil {
			log.Error("no store available", "error", storeErr)
			os.Exit(1)
		}
		stats, err := outbox.Replay(ctx, store, log)
		if err != nil {
			log.Error("spool replay failed", "error", err)
			os.Exit(1)
		}
		log.Info("spool flushed", "merged", stats.Merged, "already_merged", stats.AlreadyMerged, "failed", stats.Failed)
		if stats.Failed > 0 {
			os.Exit(1)
		}
		return
	}

	if *user == "" || *landmarksPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: repcoach-session -user <name> -landmarks <file.csv> [-exercise auto|curls|...] [-record out.csv]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Earlier sessions that failed to save go out first.
	if store != nil {
		if stats, err := outbox.Replay(ctx, store, log); err != nil {
			log.Warn("spool replay failed", "error", err)
		} else if stats.Merged+stats.AlreadyMerged+stats.Failed > 0 {
			log.Info("spool replayed", "merged", stats.Merged, "already_merged", stats.AlreadyMerged, "failed", stats.Failed)
		}
	}

	csvSrc := landmarks.NewCSVSource(*landmarksPath, cfg.Session.TickInterval)
	defer csvSrc.Close()
	var src session.Source = csvSrc

	var rec *landmarks.Recorder
	if *recordPath != "" {
		f, err := os.Create(*recordPath)
		if err != nil {
			log.Error("failed to create recording", "path", *recordPath, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		rec = landmarks.NewRecorder(f, *exerciseFlag)
		src = landmarks.Tee(csvSrc, rec)
	}

	gw := classifier.NewGateway(backend(cfg.Classifier.WorkoutURL, cfg, *geometricOnly),
		backend(cfg.Classifier.FormURL, cfg, *geometricOnly), cfg.Session.SequenceLength, log)

	var notifier session.Notifier = session.TextNotifier{W: os.Stdout}
	if cfg.Log.SlogLevel() <= slog.LevelDebug {
		notifier = session.Multi(notifier, session.LogNotifier{Log: log})
	}

	ctl, err := session.New(session.Options{
		Exercise:     *exerciseFlag,
		UserID:       *user,
		WindowSize:   cfg.Session.SequenceLength,
		Stability:    cfg.Session.Stability(),
		DefaultBreak: time.Duration(cfg.Session.DefaultBreakSeconds) * time.Second,
	}, src, gw, notifier, log)
	if err != nil {
		log.Error("invalid session", "error", err)
		os.Exit(1)
	}

	listener := voice.NewListener(voice.DefaultQueueSize, log)
	go func() {
		if err := listener.Run(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("voice listener stopped", "error", err)
		}
	}()
	ctl.SetControls(session.Controls{Breaks: listener.Breaks(), Done: listener.Done()})
	ctl.SetPrompter(listener.Prompter(cfg.Session.PromptTimeout))
	if store != nil {
		ctl.SetStore(store)
	}

	res, err := ctl.Run(ctx)
	if err != nil {
		log.Error("session failed", "error", err)
		os.Exit(1)
	}
	if res.SourceErr != nil {
		log.Warn("landmark source ended early", "error", res.SourceErr)
	}

	if rec != nil {
		if err := rec.Flush(); err != nil {
			log.Warn("failed to flush recording", "error", err)
		} else {
			log.Info("recording written", "path", *recordPath, "frames", rec.Rows())
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(res.Summary)

	cause := res.PersistErr
	if store == nil {
		cause = storeErr
	}
	if cause != nil {
		if err := outbox.Enqueue(res.Summary, cause); err != nil {
			log.Error("failed to spool summary", "session_id", res.Summary.SessionID, "error", err)
			os.Exit(1)
		}
		log.Warn("summary spooled for later", "session_id", res.Summary.SessionID, "cause", cause)
		return
	}
	log.Info("summary saved", "session_id", res.Summary.SessionID, "merged", res.Merged)
}

// openStore connects to the database when one is configured, otherwise to
// the remote server. A nil store comes back with the reason it is missing.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (session.Store, func(), error) {
	if !cfg.Database.Configured() {
		return upload.NewClient(cfg.Upload.ServerURL, cfg.Auth.APIKey), func() {}, nil
	}
	db, err := storage.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Warn("database unavailable, summaries will be spooled", "error", err)
		return nil, func() {}, err
	}
	return db, db.Close, nil
}

// backend returns the HTTP classifier for url, or nil to fall back to
// geometry.
func backend(url string, cfg *config.Config, geometricOnly bool) classifier.Backend {
	if geometricOnly || url == "" {
		return nil
	}
	return classifier.NewHTTPBackend(url, cfg.Classifier.Timeout)
}
