// Package cli implements the starseeker command line tool: gate lookups, route searches,
// journey pricing, favourites and search history against the same storage as the API.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/starseeker/starseeker/internal/app"
	"github.com/starseeker/starseeker/internal/config"
)

// annotationNoApp marks commands that run without configuration or storage.
const annotationNoApp = "starseeker/no-app"

// CLI holds the state shared by all commands of one invocation.
type CLI struct {
	version   string
	buildTime string

	out    io.Writer
	errOut io.Writer

	viper      *viper.Viper
	envFiles   []string
	appOptions app.Options

	configFile string
	format     string
	verbose    bool

	logger zerolog.Logger
	app    *app.App
}

// Option customizes a CLI.
type Option func(*CLI)

// WithOutput redirects command output and log output.
func WithOutput(out, errOut io.Writer) Option {
	return func(c *CLI) {
		c.out = out
		c.errOut = errOut
	}
}

// WithEnvFiles overrides the .env files read at start-up. No arguments disables them.
func WithEnvFiles(files ...string) Option {
	return func(c *CLI) {
		c.envFiles = append([]string{}, files...)
	}
}

// WithAppOptions replaces components such as the store or the HTTP client.
func WithAppOptions(opts app.Options) Option {
	return func(c *CLI) {
		c.appOptions = opts
	}
}

// New creates a CLI with the given build information.
func New(version, buildTime string, opts ...Option) *CLI {
	c := &CLI{
		version:   version,
		buildTime: buildTime,
		out:       os.Stdout,
		errOut:    os.Stderr,
		viper:     viper.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs the command line with args. Storage is released even when the command
// fails.
func (c *CLI) Execute(ctx context.Context, args []string) error {
	root := c.rootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if closeErr := c.teardown(root, nil); err == nil {
		err = closeErr
	}
	return err
}

func (c *CLI) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "starseeker",
		Short: "Hyperspace gate network explorer",
		Long: `starseeker looks up gates of the hyperspace tunnel network, finds the cheapest
route between two gates, prices journeys and keeps favourite gates and routes.

Configuration is read from flags, STARSEEKER_* environment variables, .env files
and an optional starseeker.yaml.`,
		Version:           c.version,
		PersistentPreRunE: c.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	root.SetOut(c.out)
	root.SetErr(c.errOut)
	root.SetVersionTemplate("starseeker {{.Version}}\n")

	root.AddGroup(
		&cobra.Group{ID: "network", Title: "Network Commands:"},
		&cobra.Group{ID: "favourites", Title: "Favourites Commands:"},
		&cobra.Group{ID: "management", Title: "Management Commands:"},
	)

	flags := root.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "config file (default is ./starseeker.yaml)")
	flags.StringVarP(&c.format, "output", "o", "", "output format: table, json, yaml")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "verbose logging")
	flags.String("api-url", "", "gate network API base URL")
	flags.String("api-key", "", "gate network API key")
	flags.String("storage", "", "storage driver: memory, file, redis, postgres")
	flags.String("storage-path", "", "file storage location")
	flags.Bool("all-routes", false, "request every route instead of the cheapest one")

	bindings := map[string]string{
		"api.base_url":   "api-url",
		"api.key":        "api-key",
		"storage.driver": "storage",
		"storage.path":   "storage-path",
		"api.all_routes": "all-routes",
	}
	for key, flag := range bindings {
		// The flags were registered above, so binding cannot fail.
		_ = c.viper.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		c.gatesCommand(),
		c.gateCommand(),
		c.routeCommand(),
		c.costCommand(),
		c.favouritesCommand(),
		c.historyCommand(),
		c.storageCommand(),
		c.versionCommand(),
	)
	return root
}

// setup loads configuration and wires the application before any command runs.
func (c *CLI) setup(cmd *cobra.Command, _ []string) error {
	if _, err := parseFormat(c.format); err != nil {
		return err
	}
	if cmd.Annotations[annotationNoApp] == "true" {
		return nil
	}

	cfg, err := config.Load(config.Options{
		ConfigFile: c.configFile,
		EnvFiles:   c.envFiles,
		Viper:      c.viper,
	})
	if err != nil {
		return err
	}

	level := zerolog.WarnLevel
	if c.verbose {
		level = zerolog.DebugLevel
	}
	c.logger = zerolog.New(zerolog.ConsoleWriter{Out: c.errOut, TimeFormat: "15:04:05"}).
		Level(level).
		With().
		Timestamp().
		Logger()

	application, err := app.New(cmd.Context(), cfg, c.logger, c.appOptions)
	if err != nil {
		return err
	}
	application.Load(cmd.Context())
	c.app = application

	c.logger.Debug().
		Str("config_file", cfg.ConfigFile).
		Str("storage", cfg.Storage.Driver).
		Msg("application ready")
	return nil
}

func (c *CLI) teardown(_ *cobra.Command, _ []string) error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	if err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}

func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		GroupID:     "management",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoApp: "true"},
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.printer().Print(versionInfo{
				Version:   c.version,
				BuildTime: c.buildTime,
			}, func(t *table) {
				t.Header("VERSION", "BUILT")
				t.Row(c.version, c.buildTime)
			})
		},
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"buildTime"`
}
