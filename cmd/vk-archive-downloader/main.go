package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vkget/vk-archive-downloader/internal/archive"
	"github.com/vkget/vk-archive-downloader/internal/config"
	"github.com/vkget/vk-archive-downloader/internal/download"
	"github.com/vkget/vk-archive-downloader/internal/model"
	"github.com/vkget/vk-archive-downloader/internal/platform"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

const AppName = "vk-archive-downloader"

// Exit codes: failed downloads are distinguished from runs that could not
// start at all
const (
	ExitFailedDownloads = 1
	ExitUsage           = 2
)

// walkFunc selects which part of the archive a command processes
type walkFunc func(ctx context.Context, walker *archive.Walker, rootDir string) (*model.RunReport, error)

// runFailedError marks a run that finished with failed downloads
type runFailedError struct {
	failed int
}

func (e *runFailedError) Error() string {
	return fmt.Sprintf("%d downloads failed", e.failed)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		var runErr *runFailedError
		if errors.As(err, &runErr) {
			// The summary already reported the failures
			os.Exit(ExitFailedDownloads)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitUsage)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	root := &cobra.Command{
		Use:   AppName,
		Short: "Download photo attachments referenced by an exported VK archive",
		Long: `vk-archive-downloader scans the HTML pages of an exported VK archive,
collects attachment and album image links and downloads them into
per-conversation directories. Runs are resumable: files that already
exist are skipped unless --force is given.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newMessagesCmd(&configPath),
		newAlbumsCmd(&configPath),
	)

	return root
}

// newMessagesCmd downloads attachments from the messages part of the archive
func newMessagesCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Download attachments from exported conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWalk(cmd, *configPath, func(ctx context.Context, walker *archive.Walker, rootDir string) (*model.RunReport, error) {
				return walker.RunMessages(ctx, rootDir)
			})
		},
	}
	registerPipelineFlags(cmd)
	return cmd
}

// newAlbumsCmd downloads images from the photo albums part of the archive
func newAlbumsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "albums",
		Short: "Download images from exported photo albums",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWalk(cmd, *configPath, func(ctx context.Context, walker *archive.Walker, rootDir string) (*model.RunReport, error) {
				return walker.RunAlbums(ctx, rootDir)
			})
		},
	}
	registerPipelineFlags(cmd)
	return cmd
}

// registerPipelineFlags declares the flag set shared by the walk commands
func registerPipelineFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("root-dir", "", "Archive directory to scan")
	flags.String("download-dir", config.DefaultDownloadDir, "Directory downloaded files are written to")
	flags.Bool("force", false, "Redownload files that already exist")
	flags.Int("workers", download.DefaultMaxParallel, "Parallel download count")
	flags.Int("retries", download.DefaultRetryLimit, "Attempts per URL for transient errors")
	flags.Duration("retry-delay", download.DefaultRetryDelay, "Base delay before a retry")
	flags.Duration("timeout", download.DefaultHTTPTimeout, "HTTP request timeout")
	flags.String("user-agent", download.DefaultUserAgent, "HTTP User-Agent header")
}

// bindPipelineFlags maps flags onto their config keys. Flag names use dashes
// while config keys use underscores, so every pair is bound explicitly.
func bindPipelineFlags(v *viper.Viper, cmd *cobra.Command) error {
	bindings := map[string]string{
		config.KeyRootDir:     "root-dir",
		config.KeyDownloadDir: "download-dir",
		config.KeyForce:       "force",
		config.KeyMaxParallel: "workers",
		config.KeyRetryLimit:  "retries",
		config.KeyRetryDelay:  "retry-delay",
		config.KeyHTTPTimeout: "timeout",
		config.KeyUserAgent:   "user-agent",
	}

	for key, name := range bindings {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// runWalk assembles the pipeline from settings and executes one walk
func runWalk(cmd *cobra.Command, configPath string, walk walkFunc) error {
	v := viper.New()
	settings := config.NewSettings(v)

	if err := bindPipelineFlags(v, cmd); err != nil {
		return err
	}
	if err := settings.LoadConfigFile(configPath); err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"version": version,
		"root":    settings.GetRootDirectory(),
		"workers": settings.GetMaxParallelDownloads(),
	}).Info("Starting run")

	downloadDir := settings.GetDownloadDirectory()
	if err := platform.CreateDirectoryIfNotExists(downloadDir); err != nil {
		return fmt.Errorf("failed to ensure download dir: %w", err)
	}

	engine := download.NewService(download.Options{
		UserAgent:   settings.GetUserAgent(),
		RetryLimit:  settings.GetRetryLimit(),
		RetryDelay:  settings.GetRetryDelay(),
		HTTPTimeout: settings.GetHTTPTimeout(),
		MaxParallel: settings.GetMaxParallelDownloads(),
		Force:       settings.GetForce(),
	})

	walker := archive.NewWalker(downloadDir, engine)
	report, err := walk(cmd.Context(), walker, settings.GetRootDirectory())
	if err != nil {
		return err
	}

	printSummary(report)

	if report.HasFailures() {
		return &runFailedError{failed: report.Failed}
	}
	return nil
}

// printSummary renders the run outcome for humans; the log carries details
func printSummary(report *model.RunReport) {
	bold := color.New(color.Bold)
	bold.Printf("\nRun %s finished in %s\n", report.ID, report.Duration().Round(time.Millisecond))

	fmt.Printf("Pages scanned: %d, references found: %d\n", report.Pages, report.Discovered)
	color.Green("Downloaded: %d (%s)", report.Downloaded, formatBytes(report.BytesWritten))
	color.Yellow("Skipped: %d, rejected: %d", report.Skipped, report.Rejected)

	if report.Failed > 0 {
		color.Red("Failed: %d", report.Failed)
		for _, failure := range report.Failures {
			color.Red("  %s (%s): %s", failure.URL, failure.GroupName, failure.Reason)
		}
	}
}

func formatBytes(n int64) string {
	switch {
	case n >= 1024*1024*1024:
		return fmt.Sprintf("%.1fGB", float64(n)/1024/1024/1024)
	case n >= 1024*1024:
		return fmt.Sprintf("%.1fMB", float64(n)/1024/1024)
	case n >= 1024:
		return fmt.Sprintf("%.1fKB", float64(n)/1024)
	default:
		return fmt.Sprintf("%dB", n)
	}
}
