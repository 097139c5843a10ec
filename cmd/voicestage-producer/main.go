// ABOUTME: Entry point for the voicestage demo producer
// ABOUTME: Parses CLI flags and serves synthetic or recorded utterances
package main

import (
	"flag"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lanlan-project/voicestage/internal/producer"
	"github.com/lanlan-project/voicestage/internal/version"
)

var (
	addr         = flag.String("addr", ":8927", "Listen address")
	name         = flag.String("name", "lanlan", "Character name served at /ws/{name}")
	mode         = flag.String("mode", producer.ModePCM, "Stream mode: pcm (binary frames) or encoded (base64 WAV clips)")
	clips        = flag.String("clips", "", "Comma-separated audio files to replay (WAV, MP3, FLAC, Ogg/Opus). Default: test tones")
	chunk        = flag.Duration("chunk", 100*time.Millisecond, "Frame or clip length")
	jitter       = flag.Duration("jitter", 0, "Random extra delay added before each frame")
	pace         = flag.Float64("pace", 1.0, "Wall time per second of audio; below 1 sends faster than real time")
	gap          = flag.Duration("gap", 1500*time.Millisecond, "Silence between utterances")
	bargeInEvery = flag.Int("barge-in-every", 0, "Send user_activity halfway through every Nth utterance (0 disables)")
	logFile      = flag.String("log-file", "voicestage-producer.log", "Log file path")
	debug        = flag.Bool("debug", false, "Enable debug logging")
	noMDNS       = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	noTUI        = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
)

func main() {
	flag.Parse()

	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatal("Failed to open log file", "path", *logFile, "err", err)
	}
	defer f.Close()

	if useTUI {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}
	log.SetReportTimestamp(true)
	log.SetTimeFormat(time.TimeOnly)
	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	var paths []string
	if *clips != "" {
		paths = strings.Split(*clips, ",")
	}
	source, err := producer.NewSource(paths)
	if err != nil {
		log.Fatal("Failed to load utterances", "err", err)
	}

	stream := producer.DefaultStreamConfig()
	stream.Mode = *mode
	stream.ChunkDuration = *chunk
	stream.Jitter = *jitter
	stream.Pace = *pace
	stream.Gap = *gap
	stream.BargeInEvery = *bargeInEvery

	srv, err := producer.New(producer.Config{
		Addr:       *addr,
		Name:       *name,
		EnableMDNS: !*noMDNS,
		UseTUI:     useTUI,
		Stream:     stream,
	}, source)
	if err != nil {
		log.Fatal("Invalid producer configuration", "err", err)
	}

	log.Info("Starting "+version.String()+" producer", "character", *name, "addr", *addr, "source", source.Title())
	log.Info("Logging to " + *logFile)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info("Shutting down gracefully", "signal", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatal("Producer error", "err", err)
	}

	log.Info("Producer stopped")
}
