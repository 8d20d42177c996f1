package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/filo/internal/server"
	"github.com/cwbudde/filo/internal/solution"
)

var (
	serverURL string
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listJobs(cmd.OutOrStdout(), fmt.Sprintf("%s/api/v1/jobs", serverURL))
	}
	jobID := args[0]
	return getJobStatus(cmd.OutOrStdout(), fmt.Sprintf("%s/api/v1/jobs/%s/status", serverURL, jobID), jobID)
}

func fetchJSON(url string, v any) (int, error) {
	resp, err := http.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server returned error: %s", string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func listJobs(out io.Writer, url string) error {
	var jobs []server.JobStatus
	if _, err := fetchJSON(url, &jobs); err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tSTATE\tINSTANCE\tITERATIONS\tBEST COST\tROUTES")
	for _, job := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%d\n",
			job.ID,
			job.State,
			filepath.Base(job.Config.InstancePath),
			job.Iterations,
			solution.FormatCost(job.BestCost),
			job.Routes,
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nFound %d job(s)\n", len(jobs))
	return nil
}

func getJobStatus(out io.Writer, url, jobID string) error {
	var status server.JobStatus
	code, err := fetchJSON(url, &status)
	if code == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Job: %s\n", status.ID)
	fmt.Fprintf(out, "State: %s\n", status.State)
	if status.ResumedFrom != "" {
		fmt.Fprintf(out, "Resumed from: %s\n", status.ResumedFrom)
	}
	fmt.Fprintln(out)

	cfg := status.Config.Solver
	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "  Instance: %s\n", status.Config.InstancePath)
	fmt.Fprintf(out, "  Solver: %s\n", cfg.String())
	if status.Config.CheckpointInterval > 0 {
		fmt.Fprintf(out, "  Checkpoint interval: %ds\n", status.Config.CheckpointInterval)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Progress:")
	fmt.Fprintf(out, "  Iterations: %d\n", status.Iterations)
	if status.InitialCost > 0 {
		fmt.Fprintf(out, "  Initial Cost: %s\n", solution.FormatCost(status.InitialCost))
	}
	if status.BestCost > 0 {
		fmt.Fprintf(out, "  Best Cost: %s (%d routes)\n", solution.FormatCost(status.BestCost), status.Routes)
		if status.InitialCost > 0 {
			improvement := status.InitialCost - status.BestCost
			fmt.Fprintf(out, "  Improvement: %.2f (%.2f%%)\n", improvement, improvement/status.InitialCost*100)
		}
	}

	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Fprintf(out, "  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	if status.IPS > 0 {
		fmt.Fprintf(out, "  Throughput: %.0f iterations/sec\n", status.IPS)
	}

	if status.Error != "" {
		fmt.Fprintf(out, "\nError: %s\n", status.Error)
	}

	return nil
}
