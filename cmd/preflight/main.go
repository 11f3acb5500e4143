// cmd/preflight/main.go
package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/joho/godotenv"
)

type level int

const (
	levelOK level = iota
	levelWarn
	levelFail
)

type finding struct {
	level level
	msg   string
}

func (f finding) String() string {
	switch f.level {
	case levelFail:
		return "✖ " + f.msg
	case levelWarn:
		return "⚠ " + f.msg
	default:
		return "✔ " + f.msg
	}
}

// inspect checks the environment the daemon would start with.
func inspect(getenv func(string) string, lookPath func(string) (string, error)) []finding {
	var out []finding
	ok := func(msg string) { out = append(out, finding{levelOK, msg}) }
	warn := func(msg string) { out = append(out, finding{levelWarn, msg}) }
	fail := func(msg string) { out = append(out, finding{levelFail, msg}) }
	env := func(k string) string { return strings.TrimSpace(getenv(k)) }

	if u := env("DISPATCHARR_URL"); u == "" {
		fail("DISPATCHARR_URL is empty (nothing to check).")
	} else {
		ok("DISPATCHARR_URL=" + u)
	}
	switch {
	case env("DISPATCHARR_API_KEY") != "":
		ok("DISPATCHARR_API_KEY present")
	case env("DISPATCHARR_USERNAME") != "" && env("DISPATCHARR_PASSWORD") != "":
		ok("DISPATCHARR_USERNAME/PASSWORD present (token fetched at startup)")
	default:
		fail("no upstream credentials: set DISPATCHARR_API_KEY or DISPATCHARR_USERNAME and DISPATCHARR_PASSWORD.")
	}

	for _, tool := range []struct{ env, def string }{{"FFPROBE_PATH", "ffprobe"}, {"FFMPEG_PATH", "ffmpeg"}} {
		bin := env(tool.env)
		if bin == "" {
			bin = tool.def
		}
		if p, err := lookPath(bin); err != nil {
			if tool.def == "ffprobe" {
				fail(bin + " not found; streams missing metadata will be Offline.")
			} else {
				warn(bin + " not found; image capture will fail.")
			}
		} else {
			ok(tool.def + " at " + p)
		}
	}

	admin := env("ADMIN_API_KEYS")
	pub := env("PUBLIC_API_KEYS")
	if admin == "" {
		fail("ADMIN_API_KEYS is empty (triggering runs will 401).")
	}
	if pub == "" && admin == "" {
		fail("PUBLIC_API_KEYS is empty (read routes will 401).")
	}
	for name, v := range map[string]string{"ADMIN_API_KEYS": admin, "PUBLIC_API_KEYS": pub} {
		if strings.Contains(v, " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	if addr := env("API_ADDR"); addr != "" {
		ok("API_ADDR=" + addr)
	} else {
		warn("API_ADDR is empty; 127.0.0.1:8080 will be used.")
	}
	if env("DATABASE_URL") == "" {
		warn("DATABASE_URL empty; results and alert state stay in memory.")
	} else {
		ok("DATABASE_URL present")
	}
	if allowed := env("ALLOWED_ORIGINS"); allowed == "" {
		warn("ALLOWED_ORIGINS empty; every origin is allowed.")
	} else {
		ok("ALLOWED_ORIGINS=" + allowed)
	}
	return out
}

func report(w io.Writer, fs []finding) bool {
	passed := true
	for _, f := range fs {
		fmt.Fprintln(w, f)
		if f.level == levelFail {
			passed = false
		}
	}
	return passed
}

func main() {
	_ = godotenv.Load()
	if !report(os.Stdout, inspect(os.Getenv, exec.LookPath)) {
		fmt.Fprintln(os.Stderr, "✖ preflight failed")
		os.Exit(1)
	}
	fmt.Println("✔ preflight passed")
}
