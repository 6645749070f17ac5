package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/naka-gawa/github-taskmail/internal/config"
	"github.com/naka-gawa/github-taskmail/internal/gateway"
	"github.com/naka-gawa/github-taskmail/internal/mailer"
	"github.com/naka-gawa/github-taskmail/internal/task"
	"github.com/naka-gawa/github-taskmail/internal/usecase"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Audits the configured repositories and emails every assignee their report",
	Long: `Fetches every open issue and pull request of the configured repositories, evaluates the
configured tasks on them and emails each assignee the items that need their attention.
The run summary is printed as JSON.`,
	Run: func(cmd *cobra.Command, args []string) {
		if code := runAudit(cmd); code != 0 {
			os.Exit(code)
		}
	},
}

// runAudit performs one run and returns the process exit code.
func runAudit(cmd *cobra.Command) int {
	verbose, _ := cmd.InheritedFlags().GetBool("verbose")
	logger := log.New(io.Discard, "", log.LstdFlags) // Default: discard all logs.
	if verbose {
		logger.SetOutput(os.Stderr) // If verbose, log to standard error.
	}

	configPath, _ := cmd.InheritedFlags().GetString("config")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	strict, _ := cmd.Flags().GetBool("strict")

	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	registry := task.NewRegistry()
	if err := registry.RegisterConfigured(cfg.Tasks, time.Now); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to register tasks: %v\n", err)
		return 1
	}
	if registry.Len() == 0 {
		fmt.Fprintln(os.Stderr, "Warning: no tasks configured, nothing will be reported.")
	}

	githubGateway, err := gateway.NewGitHubGateway(cfg.GitHub, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create GitHub gateway: %v\n", err)
		return 1
	}

	renderer, err := mailer.NewRenderer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	var deliverer usecase.Deliverer
	if dryRun {
		deliverer = mailer.NewWriter(os.Stdout, cfg.Mail, renderer)
	} else {
		smtpMailer, err := mailer.NewSMTPMailer(cfg.SMTP, cfg.Mail, renderer, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v (use --dry-run to print the reports instead).\n", err)
			return 1
		}
		if !smtpMailer.IsConfigured() {
			fmt.Fprintln(os.Stderr, "Error: smtp.host is not configured (use --dry-run to print the reports instead).")
			return 1
		}
		deliverer = smtpMailer
	}

	// Inject dependencies and run the main business logic.
	scanner := usecase.NewScanner(githubGateway, registry, logger)
	reporter := usecase.NewReporter(githubGateway, cfg, deliverer, cfg.Concurrency, logger)
	orchestrator := usecase.NewOrchestrator(githubGateway, scanner, reporter, cfg.Concurrency, logger)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	summary, err := orchestrator.Run(ctx, cfg.Repositories)
	if err != nil {
		if errors.Is(err, usecase.ErrAuthentication) {
			fmt.Fprintf(os.Stderr, "Aborting before any scan: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)
		}
		return 1
	}

	// Marshal the summary into a pretty-printed JSON string.
	jsonData, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal summary to JSON: %v\n", err)
		return 1
	}
	fmt.Println(string(jsonData))

	if strict && summary.HasFailures() {
		return 2
	}
	return 0
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("dry-run", false, "Print the reports instead of emailing them")
	runCmd.Flags().Bool("strict", false, "Exit with status 2 when any repository scan or delivery failed")
}
