package actors

import (
	"fmt"

	"github.com/Crackloss/nostrweb/engine/follow"
	"github.com/Crackloss/nostrweb/engine/library"
	"github.com/Crackloss/nostrweb/messaging/relays"
)

func NewRelayClient(s Settings) *relays.Client {
	client := relays.NewClient(nil, s.RelayTimeout)
	library.LogCLI(fmt.Sprintf("relays: %d read, %d write, %s per relay", len(s.ReadRelays), len(s.WriteRelays), client.Timeout()), 4)
	return client
}

func FollowConfig(s Settings) follow.Config {
	return follow.Config{ReadRelays: s.ReadRelays, WriteRelays: s.WriteRelays}
}
