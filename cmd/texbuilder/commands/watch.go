package commands

import (
	"git.home.luguber.info/inful/texbuilder/internal/daemon"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	BuildFlags `embed:""`
	Root       string `arg:"" name:"root" help:"Root .tex file"`
	Addr       string `help:"Control API listen address (overrides daemon.http_addr)"`
	NoHTTP     bool   `name:"no-http" help:"Do not serve the control API"`
	NoHistory  bool   `name:"no-history" help:"Do not record query history"`
	NATS       string `name:"nats" help:"NATS server URL for build notifications"`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	rootFile, err := rootFileArg(w.Root)
	if err != nil {
		return err
	}
	if _, err := w.apply(cfg); err != nil {
		return err
	}
	cfg.Daemon.Watch = true
	switch {
	case w.NoHTTP:
		cfg.Daemon.HTTPAddr = ""
	case w.Addr != "":
		cfg.Daemon.HTTPAddr = w.Addr
	}
	if w.NoHistory {
		cfg.Daemon.HistoryDB = ""
	}
	if w.NATS != "" {
		cfg.Daemon.NATSURL = w.NATS
	}

	ctx, stop := signalContext()
	defer stop()

	d, err := daemon.New(ctx, daemon.Options{Config: cfg, RootFile: rootFile})
	if err != nil {
		return err
	}
	return d.Run(ctx)
}
