package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)
	call(http.MethodGet, endpoint(*baseURL, "/admin/v1/state", nil), 5*time.Second)
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)
	call(http.MethodPost, endpoint(*baseURL, "/admin/v1/snapshot", nil), 10*time.Second)
}

func weatherCmd(args []string) {
	fs := flag.NewFlagSet("weather", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	rain := fs.String("rain", "auto", "on, off or auto")
	_ = fs.Parse(args)
	call(http.MethodPost, endpoint(*baseURL, "/admin/v1/weather", url.Values{"rain": {*rain}}), 5*time.Second)
}

func radiusCmd(args []string) {
	fs := flag.NewFlagSet("radius", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	active := fs.Int("active", -1, "active radius in chunks (-1 keeps current)")
	render := fs.Int("render", -1, "render distance in chunks (-1 keeps current)")
	_ = fs.Parse(args)

	q := url.Values{}
	if *active >= 0 {
		q.Set("active", strconv.Itoa(*active))
	}
	if *render >= 0 {
		q.Set("render", strconv.Itoa(*render))
	}
	if len(q) == 0 {
		fmt.Fprintln(os.Stderr, "need -active or -render")
		os.Exit(2)
	}
	call(http.MethodPost, endpoint(*baseURL, "/admin/v1/radius", q), 5*time.Second)
}

func loadCmd(args []string) {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	cx := fs.Int("cx", 0, "chunk x")
	cy := fs.Int("cy", 0, "chunk y")
	_ = fs.Parse(args)
	q := url.Values{"cx": {strconv.Itoa(*cx)}, "cy": {strconv.Itoa(*cy)}}
	call(http.MethodPost, endpoint(*baseURL, "/admin/v1/load", q), 10*time.Second)
}

func endpoint(base, path string, q url.Values) string {
	u := strings.TrimRight(strings.TrimSpace(base), "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func call(method, u string, timeout time.Duration) {
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(2)
	}
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if len(b) > 0 {
		fmt.Println(strings.TrimSpace(string(b)))
	} else {
		fmt.Println(resp.Status)
	}
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
