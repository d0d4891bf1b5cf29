package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"lectern/internal/api"
	"lectern/internal/jobs"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "submit <video-path>",
		Short: "Submit a video for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			view, err := ctx.client().Submit(cmd.Context(), path, owner)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Submitted job %s\n", view.ID)
			fmt.Fprintf(out, "  Title:  %s\n", view.Title)
			fmt.Fprintf(out, "  Status: %s\n", view.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner identifier recorded with the job")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show daemon status, or detailed status for one job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return printDaemonOverview(cmd, ctx)
			}
			view, err := ctx.client().Job(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printJobDetail(cmd, view)
			return nil
		},
	}
}

func printJobDetail(cmd *cobra.Command, view api.JobView) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Job "+view.ID, colorize) {
		fmt.Fprintln(out, line)
	}

	statusMessage := strconv.Itoa(view.Progress) + "%"
	if view.CurrentStage != "" {
		statusMessage += ", stage " + view.CurrentStage
	}
	fmt.Fprintln(out, renderStatusLine("Status", kindForJobStatus(view.Status), view.Status+" ("+statusMessage+")", colorize))
	fmt.Fprintln(out, renderStatusLine("Source", statusInfo, view.SourcePath, colorize))
	if view.Title != "" {
		fmt.Fprintln(out, renderStatusLine("Title", statusInfo, view.Title, colorize))
	}
	if view.Owner != "" {
		fmt.Fprintln(out, renderStatusLine("Owner", statusInfo, view.Owner, colorize))
	}
	if view.RetryCount > 0 {
		fmt.Fprintln(out, renderStatusLine("Retries", statusWarn, strconv.Itoa(view.RetryCount), colorize))
	}
	if view.ErrorMessage != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, view.ErrorMessage, colorize))
	}
	if view.OutputPath != "" {
		fmt.Fprintln(out, renderStatusLine("Output", statusOK, view.OutputPath, colorize))
	}

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Stages", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, stageID := range jobs.StageOrder() {
		stageStatus, ok := view.Stages[string(stageID)]
		if !ok {
			continue
		}
		fmt.Fprintln(out, renderStatusLine(string(stageID), kindForStageStatus(stageStatus), stageStatus, colorize))
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			views, err := ctx.client().List(cmd.Context(), statusFilter)
			if err != nil {
				return err
			}
			if len(views) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
				return nil
			}
			rows := make([][]string, 0, len(views))
			for _, view := range views {
				rows = append(rows, []string{
					shortID(view.ID),
					view.Title,
					view.Status,
					strconv.Itoa(view.Progress) + "%",
					view.CurrentStage,
					formatTimestamp(view.CreatedAt),
				})
			}
			table := renderColumns(
				[]column{
					{title: "ID"},
					{title: "Title"},
					{title: "Status"},
					{title: "Progress", numeric: true},
					{title: "Stage"},
					{title: "Created"},
				},
				rows,
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show jobs with this status")
	return cmd
}

func newResultCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "result <job-id>",
		Short: "Fetch the unified transcript for a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := ctx.client().Result(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			var pretty json.RawMessage = raw
			if indented, err := indentJSON(raw); err == nil {
				pretty = indented
			}

			if outputPath != "" {
				if err := os.WriteFile(outputPath, pretty, 0o644); err != nil {
					return fmt.Errorf("write result: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote result to %s\n", outputPath)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(pretty))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the result to a file instead of stdout")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a queued or processing job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := ctx.client().Cancel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s is now %s\n", view.ID, view.Status)
			return nil
		},
	}
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Requeue a failed job from its failed stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := ctx.client().Retry(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s requeued (retry %d)\n", view.ID, view.RetryCount)
			return nil
		},
	}
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show daemon health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printDaemonOverview(cmd, ctx)
		},
	}
}

func printDaemonOverview(cmd *cobra.Command, ctx *commandContext) error {
	payload, ready, err := ctx.client().Health(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	overall := statusOK
	message := "ready"
	if !ready {
		overall = statusWarn
		message = "degraded"
	}
	fmt.Fprintln(out, renderStatusLine("Daemon", overall, message, colorize))

	if queue, ok := payload["queue"].(map[string]any); ok {
		for _, key := range sortedKeys(queue) {
			if count, ok := queue[key].(float64); ok {
				fmt.Fprintln(out, renderStatusLine("queue "+key, statusInfo, strconv.Itoa(int(count)), colorize))
			}
		}
	}
	if stages, ok := payload["stages"].(map[string]any); ok {
		for _, key := range sortedKeys(stages) {
			detail, _ := stages[key].(string)
			kind := statusOK
			if detail != "ready" {
				kind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine(key, kind, detail, colorize))
		}
	}
	return nil
}

func newClearCompletedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-completed",
		Short: "Remove completed jobs from the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := jobs.Open(cfg)
			if err != nil {
				return fmt.Errorf("open job store: %w", err)
			}
			defer store.Close()

			removed, err := store.ClearCompleted(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d completed job(s)\n", removed)
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTimestamp(value string) string {
	if value == "" {
		return ""
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return parsed.Local().Format("2006-01-02 15:04")
}

func indentJSON(raw []byte) (json.RawMessage, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	return json.MarshalIndent(decoded, "", "  ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
