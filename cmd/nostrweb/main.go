package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/Crackloss/nostrweb/engine/actors"
	"github.com/Crackloss/nostrweb/engine/library"
	"github.com/Crackloss/nostrweb/messaging/signer"
	"github.com/Crackloss/nostrweb/messaging/web"
	"github.com/spf13/viper"
)

func main() {
	// Relays, session backend and signer mode all come from the Viper config.
	conf := viper.New()
	actors.InitConfig(conf)
	settings := actors.LoadSettings(conf)
	library.SetLogLevel(settings.LogLevel)

	store, err := actors.OpenSessionStore(settings)
	if err != nil {
		library.LogCLI(err, 0)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	capability, closeSigner, err := actors.OpenSigner(settings)
	if err != nil {
		library.LogCLI(err, 0)
		os.Exit(1)
	}
	defer closeSigner()
	handshakes := signer.ProbeFactory(capability, web.CallbackURL(settings.PublicURL))

	server, err := web.NewServer(web.Config{
		Follow:    actors.FollowConfig(settings),
		Directory: settings.Directory,
		PublicURL: settings.PublicURL,
	}, actors.NewRelayClient(settings), store, handshakes)
	if err != nil {
		library.LogCLI(err, 0)
		os.Exit(1)
	}
	httpServer := &http.Server{
		Addr:              settings.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	actors.SetTerminateChan(make(chan struct{}))
	actors.TerminateOnSignal()
	failed := make(chan error, 1)
	go func() {
		library.LogCLI("listening on "+settings.Listen+", public address "+settings.PublicURL, 4)
		failed <- httpServer.ListenAndServe()
	}()

	select {
	case <-actors.GetTerminateChan():
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			library.LogCLI(err, 1)
		}
	case err := <-failed:
		if !errors.Is(err, http.ErrServerClosed) {
			library.LogCLI(err, 1)
		}
	}
}
