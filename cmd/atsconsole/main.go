// Command atsconsole runs the session runtime: it loads the console's
// configuration, opens the session-persistence database, and serves the
// HTTP control surface and the websocket watch transport until signalled
// to stop.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/omnilab/atsconsole/internal/api"
	"github.com/omnilab/atsconsole/internal/config"
	"github.com/omnilab/atsconsole/internal/console"
	"github.com/omnilab/atsconsole/internal/messaging"
	"github.com/omnilab/atsconsole/internal/persistence"
	"github.com/omnilab/atsconsole/internal/plugin"
	"github.com/omnilab/atsconsole/internal/session"
	"github.com/omnilab/atsconsole/internal/watcher"
	"github.com/omnilab/atsconsole/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (defaults to the XDG config path)")
	port := flag.Int("port", 0, "Override the configured HTTP port")
	flag.Parse()

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	store, err := persistence.Open(cfg.Persistence.DatabasePath)
	if err != nil {
		log.Fatalf("failed to open session store: %v", err)
	}
	defer store.Close()

	records, err := store.ReconcileSessions()
	if err != nil {
		log.Fatalf("failed to reconcile persisted sessions: %v", err)
	}

	messagingMgr := messaging.NewMessagingManager(cfg.Messaging.SubscriberBufferSize)
	hub := ws.NewHub(cfg.Server.MaxConnections)

	manager := console.NewManager(messagingMgr, hub, store, defaultPlugins, cfg.Messaging.SubscriberBufferSize)
	manager.Reconcile(records)
	log.Printf("reconciled %d persisted session(s)", len(records))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fileWatcher := watcher.New(cfg.Watcher.PollInterval, func(path string, extraArgs []string) {
		log.Printf("command file changed: %s %v", path, extraArgs)
	})
	for _, path := range cfg.Watcher.CommandFiles {
		fileWatcher.Watch(watcher.NewCommandFile(path, nil))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		fileWatcher.Start(ctx)
	}()

	mux := http.NewServeMux()

	httpAPI := api.NewServer(manager, cfg.Server.AuthToken)
	mux.Handle("/", httpAPI.Router())

	wsServer := ws.NewServer(hub, cfg.Server.AllowedOrigins, cfg.Server.AuthToken)
	wsServer.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutting down...")
		cancel()
		wg.Wait()
		os.Exit(0)
	}()

	if err := ws.ListenAndServe(cfg.Server.Host, cfg.Server.Port, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// defaultPlugins returns the fixed set of plugins every session runs with.
// There are none built into the console itself yet; deployments wire their
// own via a custom main that calls console.NewManager directly.
func defaultPlugins(holder *session.DetailHolder) []plugin.Plugin {
	return nil
}
