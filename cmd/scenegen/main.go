// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command scenegen submits YAML scene plans to a movielab server and follows
// their progress.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"github.com/jaycherian/movielab/internal/core/model"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(&http.Client{}).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(httpClient *http.Client) *cobra.Command {
	root := &cobra.Command{
		Use:          "scenegen",
		Short:        "Generate narrated multi-scene videos from a scene plan",
		SilenceUsage: true,
	}
	root.AddCommand(newValidateCommand(), newRunCommand(httpClient))
	return root
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <plan.yaml>",
		Short: "Check a scene plan without submitting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := LoadPlan(args[0])
			if err != nil {
				return err
			}
			if err := plan.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "plan ok: %d scenes\n", len(plan.Scenes))
			return nil
		},
	}
}

func newRunCommand(httpClient *http.Client) *cobra.Command {
	var server string
	var detach bool

	cmd := &cobra.Command{
		Use:   "run <plan.yaml>",
		Short: "Submit a scene plan and follow its progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := LoadPlan(args[0])
			if err != nil {
				return err
			}
			if err := plan.Validate(); err != nil {
				return err
			}
			body, err := plan.Request()
			if err != nil {
				return err
			}

			client := &Client{BaseURL: server, HTTP: httpClient}
			runID, err := client.Submit(cmd.Context(), body)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s started\n", runID)
			if detach {
				return nil
			}

			run, err := client.Follow(cmd.Context(), runID, func(event model.ProgressEvent) {
				printEvent(out, event)
			})
			if err != nil {
				return err
			}
			return printResult(out, run)
		},
	}
	cmd.Flags().StringVar(&server, "server", envOr("MOVIELAB_SERVER", "http://localhost:8080"), "movielab server URL")
	cmd.Flags().BoolVar(&detach, "detach", false, "return once the run is accepted")
	return cmd
}

func envOr(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printEvent(w io.Writer, event model.ProgressEvent) {
	fmt.Fprintf(w, "[%3.0f%%] %s\n", event.Percent, event.Step)
}

func printResult(w io.Writer, run *model.PipelineRun) error {
	for _, warning := range run.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	if run.Status != model.RunSucceeded {
		if run.Error != "" {
			return errors.New(run.Error)
		}
		return fmt.Errorf("run ended as %s", run.Status)
	}
	for i, url := range run.SyncedVideoURLs {
		fmt.Fprintf(w, "scene %d: %s\n", i+1, url)
	}
	if run.MergedVideoURL != "" {
		fmt.Fprintf(w, "final video: %s\n", run.MergedVideoURL)
	}
	return nil
}
