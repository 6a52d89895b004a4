package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/RyanBlaney/sonido-tono/algorithms/common"
	"github.com/RyanBlaney/sonido-tono/algorithms/tonal"
	"github.com/RyanBlaney/sonido-tono/analyzer"
	"github.com/RyanBlaney/sonido-tono/capture"
	"github.com/RyanBlaney/sonido-tono/config"
	"github.com/RyanBlaney/sonido-tono/internal/cli"
	"github.com/RyanBlaney/sonido-tono/logging"
	"github.com/RyanBlaney/sonido-tono/playback"
	"github.com/RyanBlaney/sonido-tono/render"
	"github.com/RyanBlaney/sonido-tono/transcode"
)

var (
	version = "0.1.0"
)

// playbackRate is the output device rate; buffers are resampled to it
const playbackRate = 48000

// CLI defines the command-line interface
type CLI struct {
	Version  bool   `short:"v" help:"Show version information"`
	Config   string `short:"c" type:"existingfile" help:"Path to JSON settings file (optional)"`
	Voice    string `help:"Voice profile: default, low, high or child (overrides the settings file)"`
	LogLevel string `name:"log-level" help:"Log level: debug, info, warn or error"`

	Analyze AnalyzeCmd `cmd:"" help:"Estimate the pitch track of an audio file"`
	Render  RenderCmd  `cmd:"" help:"Draw the spectrogram and pitch contour to a PNG"`
	Trim    TrimCmd    `cmd:"" help:"Trim leading and trailing silence and write a WAV file"`
	Play    PlayCmd    `cmd:"" help:"Play an audio file with a progress bar"`
	Record  RecordCmd  `cmd:"" help:"Record from the default microphone and analyse it"`
	Compare CompareCmd `cmd:"" help:"Compare a learner's pitch contour against a reference"`
}

// app is shared by every command
type app struct {
	ctx      context.Context
	settings *config.Settings
	logger   logging.Logger
}

func (a *app) manager(sink playback.Sink, device capture.Device, onProgress func(string, float64)) (*analyzer.Manager, error) {
	opts := a.settings.AnalyzerOptions()
	opts.Sink = sink
	opts.Device = device
	opts.OnProgress = onProgress
	opts.Logger = a.logger
	return analyzer.NewManager(opts)
}

// load creates an instance named after the source and loads it
func (a *app) load(m *analyzer.Manager, name, source string) (*analyzer.Instance, error) {
	in, err := m.Instance(name)
	if err != nil {
		return nil, err
	}
	if err := in.Load(a.ctx, transcode.SourceFor(source)); err != nil {
		return nil, fmt.Errorf("load %s: %w", source, err)
	}
	return in, nil
}

func instanceName(source string) string {
	base := filepath.Base(source)
	return base[:len(base)-len(filepath.Ext(base))]
}

// AnalyzeCmd prints the pitch summary or the full analysis as JSON
type AnalyzeCmd struct {
	Source    string  `arg:"" help:"Audio file or data: URL"`
	JSON      bool    `help:"Print the full pitch track as JSON"`
	Threshold float64 `help:"YIN threshold override"`
	Strategy  string  `help:"Period strategy override: simple, adaptive or first-dip"`
}

func (c *AnalyzeCmd) Run(a *app) error {
	if c.Threshold > 0 {
		a.settings.Yin.Threshold = c.Threshold
	}
	if c.Strategy != "" {
		var s tonal.ThresholdStrategy
		if err := s.UnmarshalText([]byte(c.Strategy)); err != nil {
			return err
		}
		a.settings.Yin.Strategy = s
	}

	m, err := a.manager(nil, nil, nil)
	if err != nil {
		return err
	}
	defer m.Close()

	in, err := a.load(m, instanceName(c.Source), c.Source)
	if err != nil {
		return err
	}
	snap := in.Snapshot()
	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	fmt.Print(cli.FormatSnapshot(snap, 60))
	return nil
}

// RenderCmd writes the spectrogram with the contour overlaid
type RenderCmd struct {
	Source string `arg:"" help:"Audio file or data: URL"`
	Output string `short:"o" help:"PNG path (default <name>.png)"`
	Width  int    `help:"Image width override"`
	Height int    `help:"Image height override"`
}

func (c *RenderCmd) Run(a *app) error {
	m, err := a.manager(nil, nil, nil)
	if err != nil {
		return err
	}
	defer m.Close()

	name := instanceName(c.Source)
	in, err := a.load(m, name, c.Source)
	if err != nil {
		return err
	}

	opts := a.settings.Render
	if c.Width > 0 {
		opts.Width = c.Width
	}
	if c.Height > 0 {
		opts.Height = c.Height
	}
	snap := in.Snapshot()
	img, err := render.Render(snap.Spectrogram, snap.Track, opts)
	if err != nil {
		return err
	}

	out := c.Output
	if out == "" {
		out = name + ".png"
	}
	if err := render.WritePNG(out, img); err != nil {
		return err
	}
	cli.PrintSaved("Image", out)
	return nil
}

// TrimCmd writes the trimmed buffer as 16-bit WAV
type TrimCmd struct {
	Source    string  `arg:"" help:"Audio file or data: URL"`
	Dir       string  `short:"d" type:"path" default:"." help:"Output directory"`
	Normalize bool    `help:"Peak-normalise before writing"`
	Peak      float64 `default:"-1" help:"Normalisation target peak in dBFS"`
}

func (c *TrimCmd) Run(a *app) error {
	m, err := a.manager(nil, nil, nil)
	if err != nil {
		return err
	}
	defer m.Close()

	name := instanceName(c.Source)
	in, err := a.load(m, name, c.Source)
	if err != nil {
		return err
	}
	if !c.Normalize {
		return exportWav(in, c.Dir)
	}

	buf := common.NormalizePeak(in.Snapshot().Buffer, c.Peak)
	path := filepath.Join(c.Dir, transcode.ExportFilename(name, time.Now()))
	if err := os.WriteFile(path, transcode.EncodeWav(buf), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	cli.PrintSaved("Audio", path)
	return nil
}

func exportWav(in *analyzer.Instance, dir string) error {
	name, data, err := in.ExportWav()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	cli.PrintSaved("Audio", path)
	return nil
}

// PlayCmd plays a file until it ends or the user stops it
type PlayCmd struct {
	Source string `arg:"" help:"Audio file or data: URL"`
}

func (c *PlayCmd) Run(a *app) error {
	sink, err := playback.NewDefaultSink(playbackRate)
	if err != nil {
		return err
	}

	var p *tea.Program
	m, err := a.manager(sink, nil, func(name string, percent float64) {
		if p != nil {
			p.Send(cli.ProgressMsg{Name: name, Percent: percent})
		}
	})
	if err != nil {
		return err
	}
	defer m.Close()

	name := instanceName(c.Source)
	in, err := a.load(m, name, c.Source)
	if err != nil {
		return err
	}

	model := cli.NewSessionModel(cli.SessionPlayback, name, func() {
		if err := in.Stop(); err != nil {
			a.logger.Warn("stopping playback", logging.Fields{"error": err.Error()})
		}
	})
	p = tea.NewProgram(model)

	if err := in.Play(); err != nil {
		return err
	}
	go func() {
		for in.State() == analyzer.StatePlaying {
			time.Sleep(50 * time.Millisecond)
		}
		p.Send(cli.DoneMsg{})
	}()

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("UI error: %w", err)
	}
	if sm, ok := final.(cli.SessionModel); ok && sm.Err != nil {
		return sm.Err
	}
	return nil
}

// RecordCmd captures the microphone, then analyses and optionally saves it
type RecordCmd struct {
	Name     string        `default:"learner" help:"Name for the recording"`
	Duration time.Duration `help:"Stop automatically after this long (default: until a key is pressed)"`
	Dir      string        `short:"d" type:"path" help:"Also write the trimmed recording as WAV into this directory"`
	Image    string        `help:"Also render the analysis to this PNG path"`
}

func (c *RecordCmd) Run(a *app) error {
	m, err := a.manager(nil, capture.NewDefaultDevice(), nil)
	if err != nil {
		return err
	}
	defer m.Close()

	in, err := m.Instance(c.Name)
	if err != nil {
		return err
	}
	if err := in.Record(a.ctx, a.settings.Recording); err != nil {
		return err
	}

	var p *tea.Program
	model := cli.NewSessionModel(cli.SessionRecording, c.Name, func() {
		// Called from the UI loop, analysis runs outside it
		go func() { p.Send(cli.DoneMsg{Err: in.StopRecording(a.ctx)}) }()
	})
	model.Limit = c.Duration
	p = tea.NewProgram(model)

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("UI error: %w", err)
	}
	sm, _ := final.(cli.SessionModel)
	if sm.Err != nil {
		return sm.Err
	}
	if !sm.Done {
		return errors.New("recording interrupted")
	}

	snap := in.Snapshot()
	fmt.Print(cli.FormatSnapshot(snap, 60))
	if c.Dir != "" {
		if err := exportWav(in, c.Dir); err != nil {
			return err
		}
	}
	if c.Image != "" {
		img, err := render.Render(snap.Spectrogram, snap.Track, a.settings.Render)
		if err != nil {
			return err
		}
		if err := render.WritePNG(c.Image, img); err != nil {
			return err
		}
		cli.PrintSaved("Image", c.Image)
	}
	return nil
}

// CompareCmd scores a learner file against a reference file
type CompareCmd struct {
	Reference string `arg:"" help:"Reference audio file or data: URL"`
	Learner   string `arg:"" help:"Learner audio file or data: URL"`
	JSON      bool   `help:"Print the comparison as JSON"`
}

func (c *CompareCmd) Run(a *app) error {
	m, err := a.manager(nil, nil, nil)
	if err != nil {
		return err
	}
	defer m.Close()

	if _, err := a.load(m, "reference", c.Reference); err != nil {
		return err
	}
	if _, err := a.load(m, "learner", c.Learner); err != nil {
		return err
	}
	result, err := m.Compare("reference", "learner")
	if err != nil {
		return err
	}
	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Print(cli.FormatComparison(filepath.Base(c.Reference), filepath.Base(c.Learner), result))
	return nil
}

func loadSettings(cliArgs *CLI) (*config.Settings, error) {
	var settings *config.Settings
	if cliArgs.Config != "" {
		s, err := config.Load(cliArgs.Config)
		if err != nil {
			return nil, err
		}
		settings = s
	} else {
		settings = config.Default()
	}

	if cliArgs.Voice != "" {
		voice := config.VoiceType(cliArgs.Voice)
		yin := config.YinParamsForVoice(voice)
		settings.Voice = voice
		settings.Yin.MinFreq, settings.Yin.MaxFreq = yin.MinFreq, yin.MaxFreq
	}
	if cliArgs.LogLevel != "" {
		settings.LogLevel = cliArgs.LogLevel
	}
	return settings, settings.Validate()
}

func main() {
	cliArgs := &CLI{}
	if len(os.Args) > 1 && (os.Args[1] == "-v" || os.Args[1] == "--version") {
		cli.PrintVersion(version)
		os.Exit(0)
	}

	kctx := kong.Parse(cliArgs,
		kong.Name("tonotrace"),
		kong.Description("Pitch contour and spectrogram analysis for tone practice"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
	)

	settings, err := loadSettings(cliArgs)
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}

	logger := logging.NewZapLogger(settings.Level() == logging.DebugLevel)
	logger.SetLevel(settings.Level())
	logging.SetGlobalLogger(logger)
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	err = kctx.Run(&app{ctx: ctx, settings: settings, logger: logger})
	if err != nil {
		cli.PrintError(err.Error())
		logger.Sync()
		os.Exit(1)
	}
}
