package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)
	call(http.MethodGet, adminURL(*baseURL, "state"), nil, 5*time.Second)
}

func reloadCmd(args []string) {
	fs := flag.NewFlagSet("reload", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)
	call(http.MethodPost, adminURL(*baseURL, "reload"), nil, 15*time.Second)
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)
	call(http.MethodPost, adminURL(*baseURL, "snapshot"), nil, 10*time.Second)
}

// upsertCmd posts one JSON definition: upsert item|resource|spawn -file def.json.
func upsertCmd(args []string) {
	fs := flag.NewFlagSet("upsert", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	file := fs.String("file", "", "json file with one definition (- for stdin)")
	_ = fs.Parse(args)

	kind := strings.TrimSpace(fs.Arg(0))
	endpoint := map[string]string{"item": "items", "resource": "resources", "spawn": "spawns"}[kind]
	if endpoint == "" || *file == "" {
		fmt.Fprintln(os.Stderr, "usage: upsert item|resource|spawn -file def.json")
		os.Exit(2)
	}
	var (
		body []byte
		err  error
	)
	if *file == "-" {
		body, err = io.ReadAll(os.Stdin)
	} else {
		body, err = os.ReadFile(*file)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	call(http.MethodPost, adminURL(*baseURL, endpoint), body, 15*time.Second)
}

func adminURL(base, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + "/admin/v1/" + path
}

func call(method, u string, body []byte, timeout time.Duration) {
	req, _ := http.NewRequest(method, u, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
