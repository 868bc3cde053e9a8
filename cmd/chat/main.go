package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

type taskStatus struct {
	TaskID     string     `json:"task_id"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Report     *struct {
		Text       string `json:"text"`
		OfferCount int    `json:"offer_count"`
	} `json:"report,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func main() {
	server := flag.String("server", "http://localhost:8080", "Holiday agent server URL")
	poll := flag.Duration("poll", 2*time.Second, "Status poll interval")
	wait := flag.Duration("wait", 3*time.Minute, "Give up waiting for a search after this long")
	flag.Parse()

	fmt.Println("Holiday Agent CLI")
	fmt.Printf("Server: %s\n", *server)
	fmt.Println("Beschreibe deine Wunschreise, z.B. \"2 Personen nach Kreta im Juni, Budget 2000 €\".")
	fmt.Println("Commands: /status, /task <id>, exit")
	fmt.Println("---")

	client := &http.Client{Timeout: 15 * time.Second}
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		switch {
		case input == "exit" || input == "quit":
			fmt.Println("Tschüss!")
			return
		case input == "/status":
			fetchGatewayStatus(client, *server)
		case strings.HasPrefix(input, "/task "):
			if t, err := fetchTask(client, *server, strings.TrimSpace(strings.TrimPrefix(input, "/task "))); err != nil {
				printError("%v", err)
			} else {
				printTask(t)
			}
		default:
			search(client, *server, input, *poll, *wait)
		}
	}
}

// search submits text the way the chat bot does and waits for the result.
func search(client *http.Client, server, text string, poll, wait time.Duration) {
	body, _ := json.Marshal(map[string]string{"free_text": text})
	resp, err := client.Post(server+"/search", "application/json", bytes.NewReader(body))
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
		return
	}
	var accepted struct {
		TaskID    string `json:"task_id"`
		StatusURL string `json:"status_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		printError("Failed to parse response: %v", err)
		return
	}
	fmt.Printf("\033[36mSuche gestartet\033[0m (Task %s)\n", accepted.TaskID)

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		time.Sleep(poll)
		t, err := fetchTask(client, server, accepted.TaskID)
		if err != nil {
			printError("%v", err)
			return
		}
		if t.Status == "done" || t.Status == "failed" {
			printTask(t)
			return
		}
		fmt.Printf("  … %s\n", t.Status)
	}
	printError("Keine Antwort nach %s. Später nachsehen mit /task %s", wait, accepted.TaskID)
}

func fetchTask(client *http.Client, server, id string) (*taskStatus, error) {
	resp, err := client.Get(server + "/status/" + id)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("task %s not found", id)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server error (%d)", resp.StatusCode)
	}
	var t taskStatus
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to parse status: %w", err)
	}
	return &t, nil
}

func printTask(t *taskStatus) {
	when := humanize.Time(t.CreatedAt)
	if t.FinishedAt != nil {
		when = "fertig " + humanize.Time(*t.FinishedAt)
	}
	fmt.Printf("\033[36m[%s]\033[0m %s, %s\n", t.TaskID, t.Status, when)

	switch {
	case t.Status == "failed":
		printError("Die Suche ist fehlgeschlagen: %s", t.Error)
	case t.Report != nil:
		fmt.Println(t.Report.Text)
		for _, w := range t.Warnings {
			fmt.Printf("\033[33mHinweis: %s\033[0m\n", w)
		}
	}
}

func fetchGatewayStatus(client *http.Client, server string) {
	resp, err := client.Get(server + "/api/gateway/status")
	if err != nil {
		printError("Failed to fetch status: %v", err)
		return
	}
	defer resp.Body.Close()

	var statuses []struct {
		Platform    string     `json:"platform"`
		Connected   bool       `json:"connected"`
		ConnectedAt *time.Time `json:"connected_at,omitempty"`
		Error       string     `json:"error,omitempty"`
		Details     string     `json:"details,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		printError("Failed to parse status: %v", err)
		return
	}
	fmt.Println("Gateway Status:")
	for _, s := range statuses {
		icon := "\033[31m✗\033[0m"
		if s.Connected {
			icon = "\033[32m✓\033[0m"
		}
		fmt.Printf("  %s %s", icon, s.Platform)
		if s.ConnectedAt != nil {
			fmt.Printf(" (since %s)", humanize.Time(*s.ConnectedAt))
		}
		if s.Details != "" {
			fmt.Printf(" %s", s.Details)
		}
		if s.Error != "" {
			fmt.Printf(" \033[31m(%s)\033[0m", s.Error)
		}
		fmt.Println()
	}
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
