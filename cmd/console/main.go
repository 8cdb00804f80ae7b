// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/adiadia/agent-console/internal/api"
	"github.com/adiadia/agent-console/internal/config"
	"github.com/adiadia/agent-console/internal/domain"
	"github.com/adiadia/agent-console/internal/logging"
	"github.com/adiadia/agent-console/internal/stream"
	"github.com/adiadia/agent-console/internal/timeline"
)

func main() {
	logger := logging.NewComponentLogger(os.Getenv("ENV"), "console")

	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	cfg, err := config.LoadConsole(configPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	client := api.NewClient(cfg.Server.BaseURL, cfg.Server.Token, cfg.Server.Timeout, logger)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	switch os.Args[1] {
	case "sessions":
		err = runSessions(ctx, client)
	case "agents":
		err = runAgents(ctx, client, os.Args[2:])
	case "tasks":
		err = runTasks(ctx, client, os.Args[2:])
	case "task-add":
		err = runTaskAdd(ctx, client, os.Args[2:])
	case "task-done":
		err = runTaskDone(ctx, client, os.Args[2:])
	case "watch":
		err = runWatch(ctx, logger, cfg, client, os.Args[2:])
	default:
		printUsage(os.Stderr)
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func runSessions(ctx context.Context, client *api.Client) error {
	sessions, err := client.ListSessions(ctx, uuid.Nil)
	if err != nil {
		return err
	}

	for _, s := range sessions {
		fmt.Printf("%s  %s  %s\n", s.ID, s.CreatedAt.Format(time.RFC3339), s.Title)
	}
	return nil
}

func runAgents(ctx context.Context, client *api.Client, args []string) error {
	sessionID := uuid.Nil
	if len(args) > 0 {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid session id %q: %w", args[0], err)
		}
		sessionID = id
	}

	agents, err := client.ListAgents(ctx, sessionID)
	if err != nil {
		return err
	}

	for _, a := range agents {
		fmt.Printf("%s  %-14s  %s\n", a.ID, a.Status, a.Name)
	}
	return nil
}

func runTasks(ctx context.Context, client *api.Client, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: tasks <session-id>")
	}
	sessionID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", args[0], err)
	}

	tasks, err := client.ListTasks(ctx, sessionID)
	if err != nil {
		return err
	}

	for _, task := range tasks {
		fmt.Printf("%s  %-12s  %s\n", task.ID, task.Status, task.Title)
	}
	return nil
}

func runTaskAdd(ctx context.Context, client *api.Client, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: task-add <session-id> <title>")
	}
	sessionID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", args[0], err)
	}

	task, err := client.CreateTask(ctx, sessionID, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}

	fmt.Printf("%s  %-12s  %s\n", task.ID, task.Status, task.Title)
	return nil
}

func runTaskDone(ctx context.Context, client *api.Client, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: task-done <task-id>")
	}
	taskID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid task id %q: %w", args[0], err)
	}

	return client.UpdateTaskStatus(ctx, taskID, domain.TaskDone)
}

// runWatch loads an agent's event history, prints it, then follows the live
// stream. History and stream overlap on restarts; the timeline buffer dedups
// the overlap so each event prints once.
func runWatch(ctx context.Context, logger *slog.Logger, cfg config.ConsoleConfig, client *api.Client, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: watch <agent-id>")
	}
	agentID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid agent id %q: %w", args[0], err)
	}

	agent, err := client.GetAgent(ctx, agentID)
	if err != nil {
		return err
	}
	fmt.Printf("watching %s (%s)\n", agent.Name, agent.Status)

	buf := timeline.New(client, logger)
	buf.Reset(ctx, agentID)

	for buf.Loading() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	for _, ev := range buf.Events() {
		printEvent(ev)
	}

	sub := stream.NewSubscriber(cfg.Server.BaseURL, cfg.Server.Token, logger)
	return sub.Subscribe(ctx, agentID, 0, func(rec domain.EventRecord) error {
		if domain.IsInternalEvent(rec.Type) {
			return nil
		}
		ev := rec.TimelineEvent()
		if buf.IngestLive(ev) {
			printEvent(ev)
		}
		return nil
	})
}

func printEvent(ev domain.Event) {
	data := strings.TrimSpace(string(ev.Data))
	if data == "{}" || data == "null" {
		data = ""
	}
	fmt.Printf("%s  %-16s  %-14s  %s\n",
		ev.Timestamp.Local().Format("15:04:05.000"),
		ev.ThreadID,
		ev.Type,
		data,
	)
}

func configPath() string {
	if path := strings.TrimSpace(os.Getenv("CONSOLE_CONFIG")); path != "" {
		return path
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.agent-console.yaml"
	}
	return "agent-console.yaml"
}

func printUsage(w *os.File) {
	_, _ = fmt.Fprintln(w, `usage: console <command> [args]

commands:
  sessions                     list sessions
  agents [session-id]          list agents, optionally for one session
  tasks <session-id>           list tasks in a session
  task-add <session-id> <title>  create a task
  task-done <task-id>          mark a task done
  watch <agent-id>             follow an agent's event timeline`)
}
