package actors

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/Crackloss/nostrweb/engine/library"
)

var terminateChan chan struct{}

func SetTerminateChan(term chan struct{}) {
	terminateChan = term
}

func GetTerminateChan() chan struct{} {
	return terminateChan
}

// TerminateOnSignal closes the terminate channel on SIGINT or SIGTERM.
func TerminateOnSignal() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-interrupt
		library.LogCLI("received "+sig.String()+", shutting down", 4)
		close(terminateChan)
	}()
}
