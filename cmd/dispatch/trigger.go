package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"

	"github.com/Projeto12026/crmcontador-sub000/internal/interfaces/http/dto"
	"github.com/Projeto12026/crmcontador-sub000/internal/interfaces/http/middleware"
)

// triggerJobs lists the jobs a running server exposes without a request body
var triggerJobs = []string{"sync-clone", "run-scheduled-sends", "run-daily"}

const triggerConnectRetries = 3

// triggerOptions describes one remote job call
type triggerOptions struct {
	BaseURL string
	Secret  string
	Job     string
	Timeout time.Duration
	Gateway dto.GatewayOverride
}

func newTriggerCmd() *cobra.Command {
	var override dto.GatewayOverride
	cmd := &cobra.Command{
		Use:   "trigger <job>",
		Short: "Ask a running server to run a job (" + strings.Join(triggerJobs, ", ") + ")",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageError{fmt.Errorf("expected exactly one job, got %d", len(args))}
			}
			for _, job := range triggerJobs {
				if args[0] == job {
					return nil
				}
			}
			return usageError{fmt.Errorf("unknown job %q", args[0])}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			return triggerJob(cmd.Context(), http.DefaultClient, triggerOptions{
				BaseURL: cfg.Jobs.BackendBaseURL,
				Secret:  cfg.Jobs.CronSecret,
				Job:     args[0],
				Timeout: cfg.Jobs.RunTimeout,
				Gateway: override,
			}, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&override.GatewayBaseURL, "gateway-base-url", "", "Messaging gateway base URL for this run")
	cmd.Flags().StringVar(&override.GatewayToken, "gateway-token", "", "Messaging gateway token for this run")
	return cmd
}

// triggerJob posts the job request and copies the response envelope to out.
// Only failures to reach the server are retried; a response of any status is final.
func triggerJob(ctx context.Context, client *http.Client, opts triggerOptions, out io.Writer) error {
	if opts.BaseURL == "" {
		return errors.New("jobs.backend_base_url is not configured")
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var body []byte
	if opts.Gateway.Settings() != nil {
		var err error
		if body, err = json.Marshal(dto.RunScheduledSendsRequest{GatewayOverride: opts.Gateway}); err != nil {
			return err
		}
	}
	url := strings.TrimRight(opts.BaseURL, "/") + "/api/v1/jobs/" + opts.Job

	var resp *http.Response
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), triggerConnectRetries), ctx)
	err := backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if opts.Secret != "" {
			req.Header.Set(middleware.CronSecretHeader, opts.Secret)
		}
		resp, err = client.Do(req)
		return err
	}, b)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", url, err)
	}
	defer resp.Body.Close()

	var envelope dto.Response
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("unexpected response (status %d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := writeJSON(out, envelope); err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest || !envelope.Success {
		if envelope.Error != nil {
			return fmt.Errorf("%s failed with status %d: %s", opts.Job, resp.StatusCode, envelope.Error.Message)
		}
		return fmt.Errorf("%s failed with status %d", opts.Job, resp.StatusCode)
	}
	return nil
}
