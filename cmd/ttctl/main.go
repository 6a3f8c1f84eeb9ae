// Command ttctl drives the timetable engine API from the terminal. It maps
// API error classes onto distinct exit codes so cron jobs and CI checks can
// branch on the outcome:
//
//	0 success
//	1 unexpected failure (network, 5xx)
//	2 validation rejected the request
//	3 scheduling conflict
//	4 authorization denied
//	5 target not found
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	exitOK           = 0
	exitUnexpected   = 1
	exitValidation   = 2
	exitConflict     = 3
	exitUnauthorized = 4
	exitNotFound     = 5
)

type clientConfig struct {
	base    string
	token   string
	timeout time.Duration
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(exitValidation)
	}

	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)

	var cfg clientConfig
	fs.StringVar(&cfg.base, "base", envOr("TTCTL_BASE", "http://localhost:8080/api/v1"), "API base URL")
	fs.StringVar(&cfg.token, "token", os.Getenv("TTCTL_TOKEN"), "Bearer token")
	fs.DurationVar(&cfg.timeout, "timeout", 30*time.Second, "HTTP client timeout")

	var run func(*flag.FlagSet, clientConfig) int
	switch cmd {
	case "create":
		run = cmdCreate
	case "cancel":
		run = cmdCancel
	case "makeup":
		run = cmdMakeup
	case "expand":
		run = cmdExpand
	case "view":
		run = cmdView
	default:
		usage()
		os.Exit(exitValidation)
	}

	os.Exit(run(fs, cfg))
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: ttctl <command> [flags]

commands:
  create   create a session from flags
  cancel   cancel a session with a reason
  makeup   schedule a makeup from a slots file
  expand   expand a template file into sessions
  view     print a weekly view

common flags: -base, -token, -timeout`)
}

func cmdCreate(fs *flag.FlagSet, cfg clientConfig) int {
	var date, start, end, room, subject, group, teacher string
	fs.StringVar(&date, "date", "", "Session date YYYY-MM-DD")
	fs.StringVar(&start, "start", "", "Start time HH:MM")
	fs.StringVar(&end, "end", "", "End time HH:MM")
	fs.StringVar(&room, "room", "", "Room ID")
	fs.StringVar(&subject, "subject", "", "Subject ID")
	fs.StringVar(&group, "group", "", "Group ID")
	fs.StringVar(&teacher, "teacher", "", "Teacher ID")
	fs.Parse(os.Args[2:]) //nolint:errcheck

	payload := map[string]string{
		"date": date, "start_time": start, "end_time": end,
		"room_id": room, "subject_id": subject, "group_id": group, "teacher_id": teacher,
	}
	return call(cfg, http.MethodPost, "/sessions", payload)
}

func cmdCancel(fs *flag.FlagSet, cfg clientConfig) int {
	var id, reason string
	fs.StringVar(&id, "id", "", "Session ID")
	fs.StringVar(&reason, "reason", "", "Cancellation reason")
	fs.Parse(os.Args[2:]) //nolint:errcheck

	if id == "" {
		fmt.Fprintln(os.Stderr, "cancel: -id is required")
		return exitValidation
	}
	return call(cfg, http.MethodPost, "/sessions/"+id+"/cancel", map[string]string{"reason": reason})
}

func cmdMakeup(fs *flag.FlagSet, cfg clientConfig) int {
	var id, slotsPath string
	fs.StringVar(&id, "id", "", "Cancelled session ID")
	fs.StringVar(&slotsPath, "slots", "", "Path to JSON file with candidate slots")
	fs.Parse(os.Args[2:]) //nolint:errcheck

	if id == "" || slotsPath == "" {
		fmt.Fprintln(os.Stderr, "makeup: -id and -slots are required")
		return exitValidation
	}
	slots, err := readJSONFile(slotsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "makeup: %v\n", err)
		return exitValidation
	}
	return call(cfg, http.MethodPost, "/sessions/"+id+"/makeup", map[string]interface{}{"slots": slots})
}

func cmdExpand(fs *flag.FlagSet, cfg clientConfig) int {
	var templatePath, mode string
	var replace bool
	fs.StringVar(&templatePath, "template", "", "Path to JSON template file")
	fs.StringVar(&mode, "mode", "", "Conflict mode: STRICT, SKIP or FORCE")
	fs.BoolVar(&replace, "replace", false, "Replace prior template output in the range")
	fs.Parse(os.Args[2:]) //nolint:errcheck

	if templatePath == "" {
		fmt.Fprintln(os.Stderr, "expand: -template is required")
		return exitValidation
	}
	template, err := readJSONFile(templatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "expand: %v\n", err)
		return exitValidation
	}
	payload := map[string]interface{}{"template": template, "replace": replace}
	if mode != "" {
		payload["mode"] = strings.ToUpper(mode)
	}
	return call(cfg, http.MethodPost, "/templates/expand", payload)
}

func cmdView(fs *flag.FlagSet, cfg clientConfig) int {
	var kind, id, week, grid string
	fs.StringVar(&kind, "kind", "group", "Actor kind: student, teacher, room, group, department")
	fs.StringVar(&id, "id", "", "Actor ID")
	fs.StringVar(&week, "week", "", "ISO week YYYY-Www")
	fs.StringVar(&grid, "grid", "", "Grid: free or fixed")
	fs.Parse(os.Args[2:]) //nolint:errcheck

	if id == "" {
		fmt.Fprintln(os.Stderr, "view: -id is required")
		return exitValidation
	}
	path := "/views/" + kind + "/" + id
	query := []string{}
	if week != "" {
		query = append(query, "week="+week)
	}
	if grid != "" {
		query = append(query, "grid="+grid)
	}
	if len(query) > 0 {
		path += "?" + strings.Join(query, "&")
	}
	return call(cfg, http.MethodGet, path, nil)
}

func call(cfg clientConfig, method, path string, payload interface{}) int {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(os.Stderr, "encode payload: %v\n", err)
			return exitUnexpected
		}
		body = bytes.NewReader(data)
	}

	url := strings.TrimRight(cfg.base, "/") + path
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build request: %v\n", err)
		return exitUnexpected
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.token)
	}

	client := &http.Client{Timeout: cfg.timeout}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
		return exitUnexpected
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read response: %v\n", err)
		return exitUnexpected
	}
	printBody(raw)

	return exitCode(resp.StatusCode)
}

func exitCode(status int) int {
	switch {
	case status >= 200 && status < 300:
		return exitOK
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return exitValidation
	case status == http.StatusConflict:
		return exitConflict
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return exitUnauthorized
	case status == http.StatusNotFound:
		return exitNotFound
	default:
		return exitUnexpected
	}
}

func printBody(raw []byte) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		os.Stdout.Write(raw) //nolint:errcheck
		fmt.Println()
		return
	}
	fmt.Println(pretty.String())
}

func readJSONFile(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return value, nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
