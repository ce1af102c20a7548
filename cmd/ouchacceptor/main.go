// Command ouchacceptor runs one or more acceptor sessions described by
// an INI settings file, accepting connections on each configured port
// and logging lifecycle events and inbound messages to stderr. It is
// the Go counterpart of the original system's sample server
// application: no order-matching logic, just session plumbing.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	ouch "github.com/ouchtrade/ouchsession"
	"github.com/ouchtrade/ouchsession/endpoint"
	"github.com/ouchtrade/ouchsession/logsink"
	"github.com/ouchtrade/ouchsession/ouchwire"
	"github.com/ouchtrade/ouchsession/settings"
	"github.com/ouchtrade/ouchsession/store"
)

type loggingApp struct {
	log *slog.Logger
}

func (a *loggingApp) OnLogon(s *ouch.Session) { a.log.Info("logon", "session", s.ID()) }

func (a *loggingApp) OnLogout(s *ouch.Session) { a.log.Info("logout", "session", s.ID()) }

func (a *loggingApp) FromApp(msg ouchwire.Message, s *ouch.Session) {
	a.log.Info("received", "session", s.ID(), "tag", string(rune(msg.Tag())))
}

func main() {
	cfgPath := flag.String("config", "ouch.cfg", "path to the INI settings file")
	flag.Parse()

	godotenv.Load()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	sessions, err := settings.Load(*cfgPath)
	if err != nil {
		log.Error("load settings", "error", err)
		os.Exit(1)
	}

	mgr, err := endpoint.NewManager(log)
	if err != nil {
		log.Error("new manager", "error", err)
		os.Exit(1)
	}

	n := 0
	for _, cfg := range sessions {
		if cfg.ConnectionType != settings.Acceptor {
			continue
		}
		st, lg := openStoreAndLog(cfg, log)
		app := &loggingApp{log: log.With("session", cfg.Name)}
		mgr.Add(ouch.New(cfg, app, st, lg))
		n++
	}
	if n == 0 {
		log.Error("no acceptor sessions found in settings file", "path", *cfgPath)
		os.Exit(1)
	}

	if err := mgr.Listen(); err != nil {
		log.Error("listen", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		mgr.Stop(true)
	}()

	if err := mgr.Wait(); err != nil {
		log.Error("manager exited", "error", err)
		os.Exit(1)
	}
}

func openStoreAndLog(cfg settings.Session, log *slog.Logger) (store.MessageStore, logsink.Log) {
	var st store.MessageStore
	if cfg.FileStorePath != "" {
		fileStore, err := store.NewFileStore(cfg.FileStorePath, cfg.SenderCompID, cfg.TargetCompID)
		if err != nil {
			log.Warn("file store unavailable, falling back to memory", "session", cfg.Name, "error", err)
			st = store.NewMemoryStore()
		} else {
			st = store.NewAsyncFileStore(fileStore, 0, log)
		}
	} else {
		st = store.NewMemoryStore()
	}

	var lg logsink.Log
	if cfg.FileLogPath != "" {
		fileLog, err := logsink.NewFileLog(cfg.FileLogPath, cfg.SenderCompID, cfg.TargetCompID)
		if err != nil {
			log.Warn("file log unavailable, falling back to screen", "session", cfg.Name, "error", err)
			lg = logsink.NewScreenLog(os.Stderr)
		} else {
			lg = logsink.NewAsyncFileLog(fileLog, 0, log)
		}
	} else {
		lg = logsink.NewScreenLog(os.Stderr)
	}
	return st, lg
}
