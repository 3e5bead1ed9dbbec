package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	openairt "github.com/codewandler/openairt-console"
	"github.com/codewandler/openairt-console/audio"
	"github.com/codewandler/openairt-console/audio/device"
	"github.com/codewandler/openairt-console/console"
	"github.com/codewandler/openairt-console/internal/config"
)

func runConsole(cmd *cobra.Command) error {
	in, out := cmd.InOrStdin(), cmd.OutOrStdout()
	logger := newLogger(cmd.ErrOrStderr())

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	mode, err := console.ParseTurnMode(cfg.TurnMode)
	if err != nil {
		return err
	}

	store := config.NewCredentialStore("")
	var key string
	if cfg.RelayURL == "" {
		if key, err = resolveAPIKey(store, in, out); err != nil {
			return err
		}
	}

	if err := device.Init(); err != nil {
		return fmt.Errorf("init audio: %w", err)
	}
	defer func() { _ = device.Terminate() }()

	opts := []openairt.ClientOption{
		openairt.WithLogger(logger),
		openairt.WithModel(cfg.Model),
		openairt.WithVoice(cfg.Voice),
		openairt.WithInstruction(cfg.Instructions),
		openairt.WithTranscription(cfg.Transcription),
		openairt.WithTemperature(cfg.Temperature),
		openairt.WithDialTimeout(cfg.DialTimeout),
	}
	if cfg.URL != "" {
		opts = append(opts, openairt.WithURL(cfg.URL))
	}
	if cfg.RelayURL != "" {
		opts = append(opts, openairt.WithRelayURL(cfg.RelayURL))
	} else {
		opts = append(opts, openairt.WithKey(key))
	}
	client := openairt.New(opts...)

	recorder := audio.NewRecorder(
		device.NewMicrophone(
			device.WithMicrophoneSampleRate(cfg.MicSampleRate),
			device.WithMicrophoneLogger(logger),
		),
		audio.WithRecorderLogger(logger),
	)
	speaker := device.NewSpeaker(
		device.WithSpeakerSampleRate(cfg.SpeakerSampleRate),
		device.WithSpeakerLogger(logger),
	)
	player := audio.NewPlayer(
		speaker,
		audio.WithPlayerLogger(logger),
		audio.WithOutputLatency(speaker.Latency()),
	)

	r := &repl{
		out:      newRenderer(out, terminalWidth(out)),
		lines:    bufio.NewScanner(in),
		store:    store,
		key:      maskKey(key),
		relayURL: cfg.RelayURL,
		printed:  map[string]bool{},
	}
	if cfg.RelayURL != "" {
		r.key = "relay"
	}
	r.secret = func() (string, error) {
		if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			b, err := term.ReadPassword(int(f.Fd()))
			return string(b), err
		}
		if !r.lines.Scan() {
			return "", fmt.Errorf("no input")
		}
		return strings.TrimSpace(r.lines.Text()), nil
	}

	r.ctrl = console.New(client, recorder, player,
		console.WithLogger(logger),
		console.WithMetrics(newMetrics(metricsAddr, logger)),
		console.WithAudioDir(cfg.AudioDir),
		console.WithGreeting(cfg.Greeting),
		console.WithTurnMode(mode),
		console.OnChange(r.changed),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	return r.run(ctx)
}

func terminalWidth(out any) int {
	if f, ok := out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return 100
}
