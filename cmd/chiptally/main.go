package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chiptally/internal/app/rooms"
	"chiptally/internal/config"
	"chiptally/internal/room"
	"chiptally/internal/roomclient"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var cli struct {
	Server  string        `help:"chiptally server url (defaults to CHIPTALLY_SERVER)"`
	Timeout time.Duration `help:"request timeout (defaults to CHIPTALLY_TIMEOUT)"`
	Mode    string        `help:"display amounts as chips or cash; defaults to the room setting" enum:",chip,cash" default:""`
	Color   string        `help:"colorize output: auto, always or never" enum:"auto,always,never" default:"auto"`
	Debug   bool          `help:"enable debug logging"`

	Create   CreateCmd   `cmd:"" help:"create a room"`
	Show     ShowCmd     `cmd:"" help:"print a room once"`
	Watch    WatchCmd    `cmd:"" help:"follow a room live until interrupted"`
	Add      AddCmd      `cmd:"" help:"add a player holding one hand"`
	Remove   RemoveCmd   `cmd:"" help:"remove a player"`
	Name     NameCmd     `cmd:"" help:"rename a player"`
	Hands    HandsCmd    `cmd:"" help:"set hands bought"`
	Adjust   AdjustCmd   `cmd:"" help:"add or remove hands"`
	Chips    ChipsCmd    `cmd:"" help:"set a player's current chips"`
	Buyin    BuyinCmd    `cmd:"" help:"set a manual buy-in"`
	Override OverrideCmd `cmd:"" help:"turn the manual buy-in override on or off"`
	Settings SettingsCmd `cmd:"" help:"change room settings"`
}

// session is shared by every command.
type session struct {
	ctx    context.Context
	client *roomclient.Client
	rooms  *rooms.Service
	in     io.Reader
	out    io.Writer
	mode   room.DisplayMode
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("chiptally"),
		kong.Description("Track poker buy-ins and chip counts for a shared room"),
		kong.UsageOnError(),
	)
	setupLogger(cli.Debug)
	applyColor(cli.Color)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession(ctx, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("client setup failed")
	}
	defer s.client.Close()

	if err := kctx.Run(s); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+describeError(err)))
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
}

// applyColor overrides terminal detection. "auto" keeps what termenv found,
// which already honors NO_COLOR.
func applyColor(mode string) {
	switch mode {
	case "always":
		lipgloss.SetColorProfile(termenv.TrueColor)
	case "never":
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

func newSession(ctx context.Context, out io.Writer) (*session, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	if cli.Server != "" {
		cfg.ServerURL = cli.Server
	}
	if cli.Timeout > 0 {
		cfg.Timeout = cli.Timeout
	}
	client, err := roomclient.New(cfg)
	if err != nil {
		return nil, err
	}
	return &session{
		ctx:    ctx,
		client: client,
		rooms:  rooms.NewService(client, rooms.Options{}),
		in:     os.Stdin,
		out:    out,
		mode:   room.DisplayMode(cli.Mode),
	}, nil
}
