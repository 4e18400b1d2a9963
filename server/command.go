package server

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// requestDuration tracks the handling time per command
func requestDuration(cmd string) *metrics.Histogram {
	return metrics.GetOrCreateHistogram(fmt.Sprintf(`kvs_request_duration_seconds{cmd=%q}`, cmd))
}

// requestCount counts handled requests per command
func requestCount(cmd string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`kvs_requests_total{cmd=%q}`, cmd))
}

// execute runs one protocol line against the store and returns the
// complete response including the trailing newline. Empty lines yield
// an empty response so interactive sessions stay quiet on blank input.
func (s *Server) execute(line string) []byte {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	cmd := parts[0]
	start := time.Now()
	defer func() {
		requestCount(cmd).Inc()
		requestDuration(cmd).UpdateDuration(start)
	}()

	switch cmd {
	case "SET":
		if len(parts) < 3 {
			return errorLine("SET requires a key and a value")
		}
		// a value containing single spaces survives the token split
		key := []byte(parts[1])
		value := []byte(strings.Join(parts[2:], " "))
		if err := s.store.Set(key, value); err != nil {
			return errorLine(err.Error())
		}
		return []byte("OK\n")

	case "GET":
		if len(parts) < 2 {
			return errorLine("GET requires a key")
		}
		value, found, err := s.store.Get([]byte(parts[1]))
		if err != nil {
			return errorLine(err.Error())
		}
		if !found {
			return []byte("(nil)\n")
		}
		return append(value, '\n')

	case "DEL":
		if len(parts) < 2 {
			return errorLine("DEL requires a key")
		}
		existed, err := s.store.Delete([]byte(parts[1]))
		if err != nil {
			return errorLine(err.Error())
		}
		if existed {
			return []byte("1\n")
		}
		return []byte("0\n")

	case "SCAN":
		var prefix []byte
		if len(parts) > 1 {
			prefix = []byte(parts[1])
		}
		keys, err := s.store.Scan(prefix)
		if err != nil {
			return errorLine(err.Error())
		}
		var buf bytes.Buffer
		for _, key := range keys {
			buf.Write(key)
			buf.WriteByte('\n')
		}
		buf.WriteString("OK\n")
		return buf.Bytes()

	case "SNAPSHOT":
		gen, err := s.store.Snapshot()
		if err != nil {
			return errorLine(err.Error())
		}
		return []byte(fmt.Sprintf("OK snapshot-%04d\n", gen))

	default:
		return errorLine("invalid command")
	}
}

func errorLine(msg string) []byte {
	return []byte(fmt.Sprintf("ERROR: %s\n", msg))
}
