package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/jeopardy/games/jeopardy"
)

type Config struct {
	apiBurst       int
	apiRate        float64
	apiTimeout     time.Duration
	apiURL         string
	bind           string
	concurrency    int
	maxAttempts    int
	port           int
	prefix         string
	profile        bool
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.apiURL == "" {
		return errors.New("--api-url must not be empty")
	}
	if c.apiRate < 0 {
		return fmt.Errorf("invalid api rate (must be 0 or greater): %v", c.apiRate)
	}
	if c.apiBurst < 1 {
		return fmt.Errorf("invalid api burst (must be 1 or greater): %d", c.apiBurst)
	}
	if c.maxAttempts != 0 && c.maxAttempts < jeopardy.NumCategories {
		return fmt.Errorf("invalid max attempts (must be 0 or at least %d): %d", jeopardy.NumCategories, c.maxAttempts)
	}
	if c.concurrency < 1 {
		return fmt.Errorf("invalid concurrency (must be 1 or greater): %d", c.concurrency)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) logger() jeopardy.Logger {
	return func(format string, args ...any) {
		logf(c, format, args...)
	}
}

func (c *Config) newBuilder() *jeopardy.Builder {
	src := jeopardy.NewJService(c.apiURL, c.apiTimeout, c.apiRate, c.apiBurst)

	return jeopardy.NewBuilder(src, c.maxAttempts, c.concurrency, c.logger())
}

func newBoardCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Build a single board from the trivia API and print it as JSON.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}

			board, err := cfg.newBuilder().Build(cmd.Context())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			return enc.Encode(board)
		},
	}
}

func newCmd(cfg *Config) *cobra.Command {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: unable to load .env: %v\n", err)
	}

	v := viper.New()
	v.SetEnvPrefix("JEOPARDY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "jeopardy",
		Short:         "A trivia board game backed by a jService-compatible API.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.PersistentFlags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.IntVar(&cfg.apiBurst, "api-burst", 2, "maximum burst of trivia api requests (env: JEOPARDY_API_BURST)")
	fs.Float64Var(&cfg.apiRate, "api-rate", 5, "trivia api requests per second, 0 for unlimited (env: JEOPARDY_API_RATE)")
	fs.DurationVar(&cfg.apiTimeout, "api-timeout", 10*time.Second, "timeout for each trivia api request (env: JEOPARDY_API_TIMEOUT)")
	fs.StringVar(&cfg.apiURL, "api-url", "http://jservice.io", "base url of the jService-compatible trivia api (env: JEOPARDY_API_URL)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: JEOPARDY_BIND)")
	fs.IntVar(&cfg.concurrency, "concurrency", jeopardy.NumCategories, "number of categories to curate in parallel (env: JEOPARDY_CONCURRENCY)")
	fs.IntVar(&cfg.maxAttempts, "max-attempts", 0, "random categories to try per board before giving up, 0 for unlimited (env: JEOPARDY_MAX_ATTEMPTS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: JEOPARDY_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: JEOPARDY_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: JEOPARDY_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle game sessions are ended (env: JEOPARDY_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: JEOPARDY_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: JEOPARDY_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: JEOPARDY_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: JEOPARDY_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.AddCommand(newBoardCmd(cfg))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("jeopardy v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
