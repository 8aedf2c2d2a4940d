package actors

import (
	"fmt"

	"github.com/Crackloss/nostrweb/engine/library"
	"github.com/Crackloss/nostrweb/messaging/signer"
)

// OpenSigner returns the in-process signing capability for the configured mode, or nil when
// signing goes through redirects. In auto mode a missing desktop signer is not an error.
// The returned closer is never nil.
func OpenSigner(s Settings) (signer.Capability, func(), error) {
	switch s.SignerMode {
	case "redirect":
		return nil, func() {}, nil
	case "dbus", "auto", "":
		d, err := signer.NewDBusSigner(s.SignerAppName)
		if err != nil {
			if s.SignerMode == "dbus" {
				return nil, func() {}, fmt.Errorf("%w: %v", library.ErrSignerUnavailable, err)
			}
			library.LogCLI(fmt.Sprintf("no session bus, falling back to redirects: %s", err), 3)
			return nil, func() {}, nil
		}
		closer := func() {
			if err := d.Close(); err != nil {
				library.LogCLI(err, 3)
			}
		}
		return d, closer, nil
	}
	return nil, func() {}, fmt.Errorf("unknown signer mode %q", s.SignerMode)
}
