package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-midihub/config"
	"go-midihub/debug"
	"go-midihub/midi"
	"go-midihub/sequencer"
)

var (
	cfg *config.Config

	inPort   string
	outPort  string
	texture  string
	qpm      float64
	verbose  bool
	duration time.Duration
	stopNote int
	replay   bool
	bars     int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "midihub",
	Short: "Real-time MIDI passthrough, capture and playback",
	Long: `midihub connects one MIDI input to one MIDI output. It can pass notes
through, capture them into a sequence, play sequences back and run a
metronome on the output.

Port names match exactly or by case-insensitive substring. Defaults come
from ~/.config/go-midihub/config.json.

Examples:
  midihub list
  midihub thru --in keystation --out iac --texture mono
  midihub record --stop-note 21 --replay
  midihub metronome --qpm 96 --for 30s
  midihub echo --bars 2`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			debug.EnableWriter(os.Stderr)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List MIDI ports",
	RunE:  runList,
}

var thruCmd = &cobra.Command{
	Use:   "thru",
	Short: "Pass input through to output until interrupted",
	RunE:  runThru,
}

var metronomeCmd = &cobra.Command{
	Use:   "metronome",
	Short: "Tick on the output",
	RunE:  runMetronome,
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Capture notes until a stop note or timeout and print them",
	RunE:  runRecord,
}

var echoCmd = &cobra.Command{
	Use:   "echo",
	Short: "Call and response: capture a phrase, play it back, repeat",
	RunE:  runEcho,
}

func init() {
	var err error
	if cfg, err = config.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v (using defaults)\n", err)
		cfg = config.DefaultConfig()
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&inPort, "in", "i", cfg.Ports.Input, "Input port name")
	rootCmd.PersistentFlags().StringVarP(&outPort, "out", "o", cfg.Ports.Output, "Output port name")
	rootCmd.PersistentFlags().StringVarP(&texture, "texture", "t", cfg.Texture, "Note texture (mono, poly)")
	rootCmd.PersistentFlags().Float64VarP(&qpm, "qpm", "q", cfg.QPM, "Tempo in quarter notes per minute")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging to stderr")

	metronomeCmd.Flags().DurationVar(&duration, "for", 0, "Stop after this long (0 runs until interrupted)")

	recordCmd.Flags().DurationVar(&duration, "for", 0, "Stop after this long")
	recordCmd.Flags().IntVar(&stopNote, "stop-note", -1, "Stop when this pitch (channel 1) is released")
	recordCmd.Flags().BoolVar(&replay, "replay", false, "Play the capture back afterwards")

	echoCmd.Flags().IntVar(&bars, "bars", 1, "Phrase length in 4/4 bars")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(thruCmd)
	rootCmd.AddCommand(metronomeCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(echoCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ins, outs, err := midi.PortNames()
	if errors.Is(err, midi.ErrScanTimeout) {
		return fmt.Errorf("%w (on macOS: sudo killall coreaudiod midiserver)", err)
	}
	if err != nil {
		return err
	}
	fmt.Println("=== MIDI Input Ports ===")
	for i, name := range ins {
		fmt.Printf("  %d: %s\n", i, name)
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, name := range outs {
		fmt.Printf("  %d: %s\n", i, name)
	}
	return nil
}

func openHub(passthrough bool) (*sequencer.Hub, error) {
	tex, err := sequencer.ParseTexture(texture)
	if err != nil {
		return nil, err
	}
	if inPort == "" || outPort == "" {
		return nil, errors.New("--in and --out are required (see: midihub list)")
	}
	return sequencer.OpenHub(midi.PortTransport{}, inPort, outPort, tex, passthrough, cfg.HubOptions()...)
}

// interruptible returns a context cancelled by ctrl-c, and by timeout if set
func interruptible(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() { cancel(); stop() }
}

func runThru(cmd *cobra.Command, args []string) error {
	hub, err := openHub(true)
	if err != nil {
		return err
	}
	defer hub.Close()

	fmt.Printf("%s → %s (%s). Ctrl+C to exit.\n", inPort, outPort, hub.Texture())
	ctx, cancel := interruptible(0)
	defer cancel()
	<-ctx.Done()
	return nil
}

func runMetronome(cmd *cobra.Command, args []string) error {
	out, err := midi.PortTransport{}.OpenOutput(outPort)
	if err != nil {
		return err
	}
	defer out.Close()

	m := sequencer.NewMetronome(out, time.Now(), qpm, cfg.MetronomeOptions()...)
	fmt.Printf("%.0f qpm on %s. Ctrl+C to exit.\n", qpm, outPort)

	ctx, cancel := interruptible(duration)
	defer cancel()
	m.Start()
	<-ctx.Done()
	m.Stop()
	return nil
}

func runRecord(cmd *cobra.Command, args []string) error {
	if duration <= 0 && stopNote < 0 {
		return errors.New("give --for or --stop-note")
	}
	hub, err := openHub(cfg.Passthrough)
	if err != nil {
		return err
	}
	defer hub.Close()

	start := time.Now()
	var opts []sequencer.CaptureOption
	if duration > 0 {
		opts = append(opts, sequencer.WithStopTime(start.Add(duration)))
	}
	if stopNote >= 0 {
		// releasing the key stops; note-off carries no velocity to match
		opts = append(opts, sequencer.WithStopSignal(midi.NewNoteOff(0, uint8(stopNote))))
	}

	fmt.Println("Recording...")
	seq, err := hub.CaptureSequence(qpm, start, opts...)
	if err != nil {
		return err
	}
	printSequence(seq, start)

	if !replay || len(seq.Notes) == 0 {
		return nil
	}
	p, err := hub.StartPlayback(seq.Shift(time.Since(start)), false)
	if err != nil {
		return err
	}
	<-p.Done()
	return nil
}

func printSequence(seq *sequencer.NoteSequence, start time.Time) {
	fmt.Printf("%d notes, %.2fs at %.0f qpm\n", len(seq.Notes), seq.TotalTime.Sub(start).Seconds(), seq.QPM())
	for _, n := range seq.Notes {
		fmt.Printf("  pitch=%-3d velocity=%-3d %7.3fs - %7.3fs\n", n.Pitch, n.Velocity,
			n.StartTime.Sub(start).Seconds(), n.EndTime.Sub(start).Seconds())
	}
}

// runEcho alternates phrases: the player listens for bars, then the hub
// plays the phrase back for the same length, over a running metronome.
func runEcho(cmd *cobra.Command, args []string) error {
	hub, err := openHub(cfg.Passthrough)
	if err != nil {
		return err
	}
	defer hub.Close()

	ctx, cancel := interruptible(0)
	defer cancel()

	beat := time.Duration(float64(time.Minute) / qpm)
	phrase := time.Duration(bars*4) * beat
	start := time.Now().Add(beat)
	hub.StartMetronome(start, qpm)

	for ctx.Err() == nil {
		fmt.Println("Your turn")
		seq, err := hub.CaptureSequence(qpm, start, sequencer.WithStopTime(start.Add(phrase)))
		if err != nil {
			return err
		}
		start = start.Add(phrase)

		fmt.Printf("Echo (%d notes)\n", len(seq.Notes))
		p, err := hub.StartPlayback(seq.Shift(phrase), false)
		if err != nil {
			return err
		}
		select {
		case <-p.Done():
		case <-ctx.Done():
			p.Stop()
		}
		// the response takes as long as the call
		select {
		case <-time.After(time.Until(start.Add(phrase))):
		case <-ctx.Done():
		}
		start = start.Add(phrase)
	}
	return nil
}
