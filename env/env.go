package env

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads .env files into the process environment. Missing files are
// ignored; variables already set win over the file.
func Load(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Fatalf("load %s: %v", f, err)
		}
	}
}

func Env(k, d string) string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	return v
}

func EnvInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("env %s must be int", k)
	}
	return n
}

func EnvBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch strings.ToLower(v) {
	case "1", "t", "true", "y", "yes":
		return true
	case "0", "f", "false", "n", "no":
		return false
	default:
		log.Fatalf("env %s must be boolean", k)
		return false
	}
}

// EnvDuration accepts Go duration strings ("90s", "1h") or a bare number of
// seconds.
func EnvDuration(k string, d time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("env %s must be a duration", k)
	}
	return dur
}

// EnvList splits a comma-separated variable, dropping empty items. An unset
// variable yields d.
func EnvList(k string, d []string) []string {
	v, ok := os.LookupEnv(k)
	if !ok {
		return d
	}
	return SplitList(v)
}

func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
