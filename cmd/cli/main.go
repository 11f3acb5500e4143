package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/channelcheck/internal/config"
	"github.com/hamed0406/channelcheck/internal/dispatcharr"
	"github.com/hamed0406/channelcheck/internal/domain"
	"github.com/hamed0406/channelcheck/internal/evaluator"
	"github.com/hamed0406/channelcheck/internal/logging"
	"github.com/hamed0406/channelcheck/internal/probe"
	"github.com/hamed0406/channelcheck/internal/resolver"
	"github.com/hamed0406/channelcheck/internal/scheduler"
	"github.com/hamed0406/channelcheck/internal/sink"
	"github.com/hamed0406/channelcheck/internal/snapshot"
)

const unauthorizedMsg = "401 Unauthorized: refresh the API key (use --username/--password)"

// CLI flags
var (
	urlFlag          string
	apiKeyFlag       string
	usernameFlag     string
	passwordFlag     string
	settingsFlag     string
	saveSettingsFlag bool
	listFlag         bool
	analyzeFlag      []string
	analyzeAllFlag   bool
	captureFlag      bool
	workersFlag      int
	statusFlag       bool
)

var rootCmd = &cobra.Command{
	Use:   "channelcheck",
	Short: "Check whether the streams behind your channels are actually playing",
	Long: `channelcheck lists channels from the channel-management API and decides for
every stream whether it is Online (codec, resolution and frame rate all known)
or Offline. Missing metadata is filled in by probing the stream with ffprobe.

Examples:
  channelcheck --url http://dispatcharr:9191 --username admin --password secret --save-settings
  channelcheck --list-channels
  channelcheck --analyze 7,News --analyze 12
  channelcheck --analyze-all --workers 8 --capture-images`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runMain,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&urlFlag, "url", "", "Channel-management server URL")
	f.StringVar(&apiKeyFlag, "api-key", "", "API key/token")
	f.StringVar(&usernameFlag, "username", "", "Username for login (to fetch a token)")
	f.StringVar(&passwordFlag, "password", "", "Password for login (to fetch a token)")
	f.StringVar(&settingsFlag, "settings", config.DefaultSettingsFile, "Settings file")
	f.BoolVar(&saveSettingsFlag, "save-settings", false, "Save URL, key and username to the settings file")
	f.BoolVar(&listFlag, "list-channels", false, "List all channels")
	f.StringArrayVar(&analyzeFlag, "analyze", nil, "Analyze channels by ID or name (comma separated, repeatable)")
	f.BoolVar(&analyzeAllFlag, "analyze-all", false, "Analyze all channels")
	f.BoolVar(&captureFlag, "capture-images", false, "Capture a still image per analyzed channel")
	f.IntVar(&workersFlag, "workers", 0, "Parallel channel checks, 1-32 (default from MAX_WORKERS or 4)")
	f.BoolVar(&statusFlag, "status", false, "Show API health and version")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if dispatcharr.IsUnauthorized(err) {
			fmt.Fprintln(os.Stderr, unauthorizedMsg)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) error {
	cfg := config.FromEnv()
	progress := &progressLine{w: os.Stderr}
	logger, err := logging.NewTeeLogger(cfg.LogDir, cfg.LogLevel, progress)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fileSettings, err := config.LoadSettings(settingsFlag)
	if err != nil {
		return err
	}
	settings := config.Settings{ServerURL: urlFlag, APIKey: apiKeyFlag, Username: usernameFlag}.
		Merge(fileSettings).
		Merge(cfg.Settings())
	if settings.ServerURL == "" {
		return errors.New("no server URL: pass --url, save settings, or set DISPATCHARR_URL")
	}

	client := dispatcharr.New(settings.ServerURL, settings.APIKey, cfg.HTTPTimeout, logger)

	if user, password, ok := loginFor(settings, passwordFlag, cfg); ok {
		fmt.Println("Requesting token...")
		token, err := client.Token(ctx, user, password)
		if err != nil {
			return fmt.Errorf("token: %w", err)
		}
		fmt.Println("Token received.")
		settings.APIKey = token
		client.APIKey = token
	}

	if saveSettingsFlag {
		if err := config.SaveSettings(settingsFlag, settings); err != nil {
			return err
		}
		fmt.Println("Settings saved to", settingsFlag)
	}

	switch {
	case statusFlag:
		st := client.Status(ctx)
		fmt.Printf("API %s (%d ms)", st.State, st.LatencyMS)
		if st.Version != "" {
			fmt.Printf(", version %s", st.Version)
		}
		if st.Detail != "" {
			fmt.Printf(": %s", st.Detail)
		}
		fmt.Println()
		return nil
	case listFlag:
		chs, err := client.FetchChannels(ctx)
		if err != nil {
			return err
		}
		dispatcharr.SortByID(chs)
		return writeChannels(os.Stdout, chs)
	case analyzeAllFlag || len(analyzeFlag) > 0:
		return analyze(ctx, cfg, client, logger, progress)
	default:
		if !saveSettingsFlag {
			return cmd.Help()
		}
		return nil
	}
}

// loginFor picks the token credentials: the merged username (flag, settings
// file, then DISPATCHARR_USERNAME) and the password flag or DISPATCHARR_PASSWORD.
func loginFor(settings config.Settings, passwordFlag string, cfg config.Config) (string, string, bool) {
	password := passwordFlag
	if password == "" {
		password = cfg.DispatcharrPassword
	}
	if settings.Username == "" || password == "" {
		return "", "", false
	}
	return settings.Username, password, true
}

func analyze(ctx context.Context, cfg config.Config, client *dispatcharr.Client, logger *zap.Logger, progress *progressLine) error {
	chs, err := client.FetchChannels(ctx)
	if err != nil {
		return err
	}
	if !analyzeAllFlag {
		chs = dispatcharr.SelectChannels(chs, dispatcharr.ParseSelectors(analyzeFlag...))
	}
	if len(chs) == 0 {
		fmt.Println("No channels selected.")
		return nil
	}

	prober := probe.NewFFProbe(cfg.FFProbePath, cfg.ProbeTimeout, logger)
	ev := evaluator.New(prober, logger)
	ev.DNS = probe.NewDNSClassifier()
	src := &authWatch{StreamSource: client}
	runner := scheduler.NewRunner(resolver.New(src), ev, logger)
	if captureFlag || cfg.CaptureImages {
		runner.Snapshot = snapshot.New(cfg.FFmpegPath, cfg.CaptureDir, logger)
	}

	workers := cfg.MaxWorkers
	if workersFlag != 0 {
		workers = config.ClampWorkers(workersFlag)
	}

	table := sink.NewTable()
	runErr := runner.Run(ctx, chs, workers, progress.update, table)

	rows := table.Rows()
	if err := writeResults(os.Stdout, rows); err != nil {
		return err
	}
	online, offline := summarize(rows)
	fmt.Printf("\n%d online, %d offline\n", online, offline)
	if errors.Is(runErr, context.Canceled) {
		fmt.Fprintln(os.Stderr, "interrupted: results are partial")
		return nil
	}
	if src.rejected.Load() {
		fmt.Fprintln(os.Stderr, unauthorizedMsg)
	}
	return runErr
}

// authWatch remembers whether any stream fetch was rejected for the key.
type authWatch struct {
	resolver.StreamSource
	rejected atomic.Bool
}

func (a *authWatch) FetchChannelStreams(ctx context.Context, id domain.ChannelID) ([]byte, error) {
	b, err := a.StreamSource.FetchChannelStreams(ctx, id)
	if dispatcharr.IsUnauthorized(err) {
		a.rejected.Store(true)
	}
	return b, err
}
