package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nidhogg/holiday-agent/internal/criteria"
	"github.com/nidhogg/holiday-agent/internal/task"
)

// Tasks is the part of the task manager the chat commands need.
type Tasks interface {
	Submit(req criteria.Request, caller task.CallerRef) (string, error)
	Get(id string) (task.Task, error)
}

const greeting = "Hallo! Sende mir deine Reiseanfrage in natürlicher Sprache, " +
	"z.B. '2 Personen nach Kreta im August, Budget 1200€'."

// RegisterBuiltins registers /start, /help, /search and /status.
// statusURL turns a task id into a link; it may be nil.
func RegisterBuiltins(reg *Registry, tasks Tasks, statusURL func(id string) string) {
	reg.Register(startCommand())
	reg.Register(helpCommand(reg))
	reg.Register(searchCommand(tasks, statusURL))
	reg.Register(statusCommand(tasks))
}

func startCommand() *Command {
	return &Command{
		Name:        "start",
		Description: "Begrüßung und Beispielanfrage",
		Usage:       "/start",
		Handler: func(context.Context, string, *CommandContext) (*CommandResult, error) {
			return &CommandResult{Content: greeting}, nil
		},
	}
}

func helpCommand(reg *Registry) *Command {
	return &Command{
		Name:        "help",
		Aliases:     []string{"hilfe"},
		Description: "Alle Befehle anzeigen",
		Usage:       "/help",
		Handler: func(context.Context, string, *CommandContext) (*CommandResult, error) {
			var sb strings.Builder
			sb.WriteString("Befehle:\n")
			for _, cmd := range reg.List() {
				fmt.Fprintf(&sb, "  %s - %s", cmd.Usage, cmd.Description)
				if len(cmd.Aliases) > 0 {
					fmt.Fprintf(&sb, " (auch /%s)", strings.Join(cmd.Aliases, ", /"))
				}
				sb.WriteString("\n")
			}
			sb.WriteString("\nJede andere Nachricht startet eine Suche.")
			return &CommandResult{Content: sb.String()}, nil
		},
	}
}

func searchCommand(tasks Tasks, statusURL func(string) string) *Command {
	return &Command{
		Name:        "search",
		Aliases:     []string{"suche"},
		Description: "Suche mit einer Reisebeschreibung starten",
		Usage:       "/search <Anfrage>",
		Handler: func(_ context.Context, args string, cc *CommandContext) (*CommandResult, error) {
			if strings.TrimSpace(args) == "" {
				return &CommandResult{Content: "Verwendung: /search <Anfrage>"}, nil
			}
			return Submit(tasks, statusURL, args, cc), nil
		},
	}
}

func statusCommand(tasks Tasks) *Command {
	return &Command{
		Name:        "status",
		Aliases:     []string{"stand"},
		Description: "Status einer Suche abfragen",
		Usage:       "/status <Task-ID>",
		Handler: func(_ context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			id := strings.TrimSpace(args)
			if id == "" {
				return &CommandResult{Content: "Verwendung: /status <Task-ID>"}, nil
			}
			t, err := tasks.Get(id)
			if errors.Is(err, task.ErrNotFound) {
				return &CommandResult{Content: "Keine Suche mit dieser Task-ID gefunden."}, nil
			}
			if err != nil {
				return nil, err
			}
			return &CommandResult{Content: describe(t), Data: t}, nil
		},
	}
}

// Submit starts a free-text search for a chat caller and returns the
// confirmation to send back.
func Submit(tasks Tasks, statusURL func(string) string, text string, cc *CommandContext) *CommandResult {
	caller := task.CallerRef{Platform: cc.Platform, ChannelID: cc.ChannelID, ReplyTo: cc.ReplyTo}
	id, err := tasks.Submit(criteria.Request{FreeText: text}, caller)
	if err != nil {
		if errors.Is(err, task.ErrShuttingDown) {
			return &CommandResult{Content: "Das Backend ist derzeit nicht erreichbar. Bitte später erneut versuchen."}
		}
		return &CommandResult{Content: "Die Anfrage konnte nicht gestartet werden. Bitte erneut versuchen."}
	}

	reply := "Suche gestartet!"
	if statusURL != nil {
		reply += "\nStatus abrufen: " + statusURL(id)
	}
	reply += "\nTask-ID: " + id
	return &CommandResult{Content: reply, Data: map[string]string{"task_id": id}}
}

func describe(t task.Task) string {
	switch t.Status {
	case task.StatusPending:
		return "Die Suche wartet auf einen freien Platz."
	case task.StatusRunning:
		return "Die Suche läuft noch."
	case task.StatusFailed:
		return "Die Suche ist fehlgeschlagen: " + t.Error
	}
	if t.Report == nil {
		return "Die Suche ist abgeschlossen."
	}
	return t.Report.Text
}
