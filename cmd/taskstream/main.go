// Command taskstream is a small CLI client for the proxy API.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"

	"github.com/taskstream/taskstream/internal/task"
	"github.com/taskstream/taskstream/pkg/ndjson"
)

var (
	app  = kingpin.New("taskstream", "Client for the taskstream proxy API")
	addr = app.Flag("addr", "Proxy base URL").Default("http://localhost:8081").String()

	streamCmd  = app.Command("stream", "Stream all tasks for a user")
	streamUser = streamCmd.Arg("user", "User ID").Required().String()

	listCmd  = app.Command("list", "List all tasks for a user")
	listUser = listCmd.Arg("user", "User ID").Required().String()

	countCmd  = app.Command("count", "Count tasks for a user")
	countUser = countCmd.Arg("user", "User ID").Required().String()

	filterCmd  = app.Command("filter", "Show only HIGH/CRITICAL priority tasks for a user")
	filterUser = filterCmd.Arg("user", "User ID").Required().String()

	healthCmd = app.Command("health", "Show combined proxy and backend health")
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	var err error
	switch command {
	case streamCmd.FullCommand():
		err = streamTasks(*streamUser, "")
	case listCmd.FullCommand():
		err = streamTasks(*listUser, "/list")
	case countCmd.FullCommand():
		err = printBody(userPath(*countUser) + "/count")
	case filterCmd.FullCommand():
		err = streamTasks(*filterUser, "/filter")
	case healthCmd.FullCommand():
		err = printBody("/api/health")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func userPath(user string) string {
	return "/api/user/" + url.PathEscape(user) + "/tasks"
}

func get(path string) (*http.Response, error) {
	resp, err := http.Get(strings.TrimRight(*addr, "/") + path)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("proxy returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

func streamTasks(user, suffix string) error {
	resp, err := get(userPath(user) + suffix)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	n := 0
	if suffix == "/list" {
		var records []task.Record
		if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
			return err
		}
		for _, rec := range records {
			printTask(rec)
			n++
		}
	} else {
		dec := ndjson.NewDecoder(resp.Body)
		for {
			var rec task.Record
			err := dec.Decode(&rec)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			printTask(rec)
			n++
		}
	}
	fmt.Printf("%d tasks\n", n)
	return nil
}

func printTask(rec task.Record) {
	prio := color.New(priorityColor(rec.Priority)).Sprint(rec.Priority)
	fmt.Printf("%6d  %-13s %-9s %2dh  %-14s %s\n",
		rec.ID, prio, rec.Status, rec.EstimatedHours, rec.Category, rec.Title)
}

func priorityColor(p task.Priority) color.Attribute {
	switch p {
	case task.PriorityCritical:
		return color.FgRed
	case task.PriorityHigh:
		return color.FgYellow
	case task.PriorityMedium:
		return color.FgCyan
	default:
		return color.FgWhite
	}
}

func printBody(path string) error {
	resp, err := get(path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Println(strings.TrimSpace(string(body)))
	return nil
}
