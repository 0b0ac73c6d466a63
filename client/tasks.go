package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/wtcops/resyncd/client/httpclient"
	bar "github.com/wtcops/resyncd/client/progress_bar"
	"github.com/wtcops/resyncd/internal/httpserver"
	"github.com/wtcops/resyncd/internal/task"

	cli "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

var output io.Writer = os.Stdout

func TaskSubmit(ctx context.Context, kind string, c *cli.Command, apiClient *httpclient.Client) error {
	req := httpserver.SubmitRequest{
		Version:           c.String("version"),
		NginxReuseVersion: c.String("nginx-reuse-version"),
	}

	if c.IsSet("skip-check") {
		v := c.Bool("skip-check")
		req.SkipCheck = &v
	}

	resp, err := apiClient.Submit(ctx, task.Kind(kind), &req)
	if err != nil {
		return err
	}

	if !c.Bool("follow") && !c.Bool("progress") {
		fmt.Fprintln(output, resp.TaskID)

		return nil
	}

	fmt.Fprintf(output, "Task %s created\n", resp.TaskID)

	if c.Bool("progress") {
		return TaskShowProgress(ctx, resp.TaskID, c, apiClient)
	}

	return TaskFollow(ctx, resp.TaskID, c, apiClient)
}

func TaskPrintStatus(ctx context.Context, id string, c *cli.Command, apiClient *httpclient.Client) error {
	rec, err := apiClient.Status(ctx, id)
	if err != nil {
		return err
	}

	switch c.String("format") {
	case "json":
		return printJSON(rec)
	case "yaml":
		return printYAML(rec)
	}

	fmt.Fprintf(output, "%-10s %s\n", "ID:", rec.ID)
	fmt.Fprintf(output, "%-10s %s\n", "Type:", rec.Type)
	fmt.Fprintf(output, "%-10s %s\n", "Status:", rec.Status)
	fmt.Fprintf(output, "%-10s %d%%\n", "Progress:", rec.Progress)
	fmt.Fprintf(output, "%-10s %s\n", "Created:", rec.CreatedAt.Format(time.DateTime))

	if rec.StartedAt != nil {
		fmt.Fprintf(output, "%-10s %s\n", "Started:", rec.StartedAt.Format(time.DateTime))
	}
	if rec.CompletedAt != nil {
		fmt.Fprintf(output, "%-10s %s\n", "Finished:", rec.CompletedAt.Format(time.DateTime))
	}
	if len(rec.Error) > 0 {
		fmt.Fprintf(output, "%-10s %s\n", "Error:", rec.Error)
	}

	if c.Bool("logs") {
		fmt.Fprintln(output)

		for i := range rec.Logs {
			printLogEntry(&rec.Logs[i])
		}
	}

	return nil
}

func TaskPrintList(ctx context.Context, _ string, c *cli.Command, apiClient *httpclient.Client) error {
	tasks, err := apiClient.List(ctx)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return printJSON(tasks)
	}

	if len(tasks) == 0 {
		return nil
	}

	fmt.Fprintf(output, "%-36s  %-16s  %-9s  %8s  %s\n", "ID", "TYPE", "STATUS", "PROGRESS", "CREATED")

	for _, t := range tasks {
		fmt.Fprintf(output, "%-36s  %-16s  %-9s  %7d%%  %s\n", t.ID, t.Type, t.Status, t.Progress, t.CreatedAt.Format(time.DateTime))
	}

	return nil
}

func ServerHealth(ctx context.Context, _ string, _ *cli.Command, apiClient *httpclient.Client) error {
	resp, err := apiClient.Health(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(output, "%s (%s)\n", resp.Status, resp.Timestamp.Local().Format(time.DateTime))

	return nil
}

// TaskFollow prints the task log as it grows until the task is finished.
// A failed task is reported as an error.
func TaskFollow(ctx context.Context, id string, _ *cli.Command, apiClient *httpclient.Client) error {
	var final *task.Record

	err := apiClient.Stream(ctx, id, func(f *httpserver.Frame) error {
		switch f.Type {
		case httpserver.FrameConnected:
			final = f.Task
			fmt.Fprintf(output, "Attached to %s task %s (%s)\n", f.Task.Type, f.Task.ID, f.Task.Status)
		case httpserver.FrameLog:
			printLogEntry(f.Log)
		case httpserver.FrameUpdate:
			final = f.Task
		}

		return nil
	})
	if err != nil {
		return err
	}

	return finalState(final)
}

// TaskShowProgress renders the task progress as a bar instead of the log.
func TaskShowProgress(ctx context.Context, id string, _ *cli.Command, apiClient *httpclient.Client) error {
	var final *task.Record

	collect := func(ctx context.Context, update func(string, int)) error {
		err := apiClient.Stream(ctx, id, func(f *httpserver.Frame) error {
			if f.Task == nil {
				return nil
			}

			final = f.Task

			switch f.Task.Status {
			case task.StatusFailed:
				update(id, bar.Failed)
			default:
				update(id, f.Task.Progress)
			}

			return nil
		})
		if err != nil {
			update(id, bar.Failed)
		}

		return err
	}

	progressBar := bar.NewProgressBar(collect, id)

	progressBar.Show()

	if err := progressBar.Err(); err != nil {
		return err
	}

	if err := finalState(final); err != nil {
		return err
	}

	fmt.Fprintln(output, "Successfully completed")

	return nil
}

func finalState(rec *task.Record) error {
	if rec == nil {
		return fmt.Errorf("no task state received")
	}

	if rec.Status == task.StatusFailed {
		return fmt.Errorf("task failed: %s", rec.Error)
	}

	// Standalone tasks report failed commands in the result
	if m, ok := rec.Result.(map[string]interface{}); ok {
		if success, ok := m["success"].(bool); ok && !success {
			return fmt.Errorf("task completed with failed commands")
		}
	}

	return nil
}

func printLogEntry(e *task.LogEntry) {
	if e == nil {
		return
	}

	fmt.Fprintf(output, "[%s] %-7s %s\n", e.Timestamp.Format(time.TimeOnly), strings.ToUpper(string(e.Level)), e.Message)
}

func printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}

	fmt.Fprintf(output, "%s\n", b)

	return nil
}

// printYAML keeps the JSON field names by converting through a generic value.
func printYAML(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	var generic interface{}

	if err := yaml.Unmarshal(b, &generic); err != nil {
		return err
	}

	out, err := yaml.Marshal(generic)
	if err != nil {
		return err
	}

	_, err = output.Write(out)

	return err
}
