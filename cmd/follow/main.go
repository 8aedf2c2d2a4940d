package main

import (
	"fmt"
	"io"
	"os"

	"github.com/Crackloss/nostrweb/engine/actors"
	"github.com/Crackloss/nostrweb/engine/follow"
	"github.com/Crackloss/nostrweb/engine/library"
	"github.com/Crackloss/nostrweb/messaging/npub"
	"github.com/Crackloss/nostrweb/messaging/signer"
	"github.com/Crackloss/nostrweb/state/session"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "follow",
		Usage: "Follow nostr accounts using the desktop signer",
		Description: `Reads your contact list from the configured read relays, adds an account to it and
publishes the result to the write relays. Signing is done by the desktop signer over D-Bus.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "root-dir",
				Usage: "Directory holding config.yaml",
			},
			&cli.IntFlag{
				Name:  "log-level",
				Usage: "0 (fatal) to 5 (trace)",
				Value: 2,
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "whoami",
				Usage:  "Print the signer's public key",
				Action: whoamiCommand,
			},
			{
				Name:      "status",
				Usage:     "Show whether you follow the given accounts",
				ArgsUsage: "<npub|hex>...",
				Action:    statusCommand,
			},
			{
				Name:      "follow",
				Usage:     "Add an account to your contact list",
				ArgsUsage: "<npub|hex>",
				Action:    followCommand,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		library.LogCLI(err, 1)
		os.Exit(1)
	}
}

// connect builds an engine around the desktop signer and loads the user's contact list.
func connect(c *cli.Context) (*follow.Engine, func(), error) {
	conf := viper.New()
	if dir := c.String("root-dir"); dir != "" {
		conf.Set("rootDir", dir)
	}
	actors.InitConfig(conf)
	settings := actors.LoadSettings(conf)
	library.SetLogLevel(c.Int("log-level"))

	settings.SignerMode = "dbus"
	capability, closeSigner, err := actors.OpenSigner(settings)
	if err != nil {
		return nil, nil, err
	}
	store := session.NewMemoryStore(0)
	handshake := signer.Probe(capability, store, "")
	if handshake.Mode() != signer.ModeInProcess {
		closeSigner()
		return nil, nil, fmt.Errorf("%w: desktop signer is not ready", library.ErrSignerUnavailable)
	}
	e := follow.New(actors.FollowConfig(settings), actors.NewRelayClient(settings), store, handshake)
	if _, err := e.Connect(c.Context); err != nil {
		closeSigner()
		return nil, nil, err
	}
	return e, closeSigner, nil
}

func whoamiCommand(c *cli.Context) error {
	e, closer, err := connect(c)
	if err != nil {
		return err
	}
	defer closer()
	id, _ := e.Identity()
	n, _ := npub.Encode(id)
	fmt.Fprintf(c.App.Writer, "%s\n%s\nfollowing %d accounts\n", n, id, len(e.Follows()))
	return nil
}

type terminal struct {
	ids []string
	out io.Writer
}

func (t terminal) Candidates() []string { return t.ids }

func (t terminal) Render(id string, state follow.RenderState) {
	fmt.Fprintf(t.out, "%-64s  %s\n", id, state)
}

func statusCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("status needs at least one account", 2)
	}
	e, closer, err := connect(c)
	if err != nil {
		return err
	}
	defer closer()
	for _, id := range c.Args().Slice() {
		if _, ok := npub.Resolve(id); !ok {
			fmt.Fprintf(c.App.ErrWriter, "skipping %s: %s\n", id, library.ErrInvalidIdentifier)
		}
	}
	e.Render(c.Context, terminal{ids: c.Args().Slice(), out: c.App.Writer})
	return nil
}

func followCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("follow takes exactly one account", 2)
	}
	e, closer, err := connect(c)
	if err != nil {
		return err
	}
	defer closer()
	target := c.Args().First()
	step, err := e.Follow(c.Context, target)
	if err != nil {
		return err
	}
	if step.Signed == nil {
		fmt.Fprintf(c.App.Writer, "already following %s\n", target)
		return nil
	}
	fmt.Fprintf(c.App.Writer, "now following %s (contact list %s, %d accounts)\n", target, step.Signed.ID, len(e.Follows()))
	return nil
}
