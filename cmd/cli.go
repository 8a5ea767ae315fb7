// SPDX-License-Identifier: MIT
package cmd

import (
	"tempo/internal/config"
	"tempo/pkg/build"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Commands selected on the command line.
const (
	CommandRun     = "run"
	CommandList    = "list"
	CommandAnalyze = "analyze"
)

// Options is the parsed command line. Command is empty when there is nothing
// left to do, e.g. after --help or --version.
type Options struct {
	ConfigPath string
	Command    string
	File       string // WAV file for the analyze command
	TUI        bool
	Pick       bool
	Verbose    bool

	overrides []func(*config.Config)
}

// Apply writes the flags that were set explicitly over cfg.
func (o *Options) Apply(cfg *config.Config) {
	for _, override := range o.overrides {
		override(cfg)
	}
}

// ParseArgs parses args (without the program name).
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{}

	var (
		deviceID   int
		backend    string
		sampleRate float64
		engine     string
		lowLatency bool
		udp        bool
		websocket  bool
		mqtt       bool
		metrics    bool
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandRun
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandList
		},
	}
	rootCmd.AddCommand(listCmd)

	// Analyze command
	analyzeCmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Track beats in a WAV file as fast as possible",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandAnalyze
			options.File = args[0]
		},
	}
	rootCmd.AddCommand(analyzeCmd)

	flags := rootCmd.PersistentFlags()

	flags.StringVar(&options.ConfigPath, "config", "",
		"Path to a YAML config file (default: ./config.yaml or ./tempo.yaml)")

	// Audio Device Configuration
	flags.IntVarP(&deviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	flags.StringVar(&backend, "backend", config.DefaultBackend,
		"Capture backend: portaudio, malgo or file")
	flags.Float64VarP(&sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	flags.BoolVarP(&lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")

	// Analysis Configuration
	flags.StringVarP(&engine, "engine", "e", config.DefaultEngine,
		"Beat detection engine: spectral or energy")

	// Output Configuration
	rootCmd.Flags().BoolVarP(&options.TUI, "tui", "t", false,
		"Show the live tempo monitor")
	rootCmd.Flags().BoolVarP(&options.Pick, "pick", "p", false,
		"Choose the input device and sample rate interactively")
	rootCmd.Flags().BoolVar(&udp, "udp", false,
		"Send readings over UDP")
	rootCmd.Flags().BoolVar(&websocket, "websocket", false,
		"Broadcast readings over WebSocket")
	rootCmd.Flags().BoolVar(&mqtt, "mqtt", false,
		"Publish beats to an MQTT broker")
	rootCmd.Flags().BoolVar(&metrics, "metrics", false,
		"Serve Prometheus metrics")

	// Debug Configuration
	flags.BoolVarP(&options.Verbose, "verbose", "v", false,
		"Show verbose output")

	// Execute the CLI. A nil slice would make cobra fall back to os.Args.
	rootCmd.SetArgs(append([]string{}, args...))
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	changed := func(fs *pflag.FlagSet, name string) bool {
		f := fs.Lookup(name)
		return f != nil && f.Changed
	}
	override := func(fs *pflag.FlagSet, name string, fn func(*config.Config)) {
		if changed(fs, name) {
			options.overrides = append(options.overrides, fn)
		}
	}

	override(flags, "device", func(c *config.Config) { c.Audio.InputDevice = deviceID })
	override(flags, "backend", func(c *config.Config) { c.Audio.Backend = backend })
	override(flags, "sample-rate", func(c *config.Config) { c.Audio.SampleRate = sampleRate })
	override(flags, "low-latency", func(c *config.Config) { c.Audio.LowLatency = lowLatency })
	override(flags, "engine", func(c *config.Config) { c.Analysis.Engine = engine })

	local := rootCmd.Flags()
	override(local, "udp", func(c *config.Config) { c.Transport.UDPEnabled = udp })
	override(local, "websocket", func(c *config.Config) { c.Transport.WebSocketEnabled = websocket })
	override(local, "mqtt", func(c *config.Config) { c.Transport.MQTTEnabled = mqtt })
	override(local, "metrics", func(c *config.Config) { c.Metrics.Enabled = metrics })
	if options.Verbose {
		options.overrides = append(options.overrides, func(c *config.Config) { c.LogLevel = "debug" })
	}

	return options, nil
}
