package evlog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodecore/evnet"
	"github.com/nodecore/evnet/config"
)

func TestNewDefaultsToJSONOnStdout(t *testing.T) {
	log, closer := New(config.LoggingConfig{Level: "info", Format: "json"})
	defer closer.Close()
	require.NotNil(t, log)
}

func TestNewWritesToFileWhenFilePathSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.log")

	log, closer := New(config.LoggingConfig{Level: "debug", Format: "json", FilePath: path})
	log.Debug("hello", "key", "value")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello")

	var decoded map[string]interface{}
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &decoded))
	require.Equal(t, "hello", decoded["msg"])
	require.Equal(t, "value", decoded["key"])
}

func TestNewTextFormatUsesTextHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "text.log")
	log, closer := New(config.LoggingConfig{Level: "info", Format: "text", FilePath: path})
	log.Info("probe")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "msg=probe"))
}

func TestParseLevelRecognizesNamesCaseInsensitively(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, parseLevel("warn"))
	require.Equal(t, slog.LevelWarn, parseLevel("warning"))
	require.Equal(t, slog.LevelError, parseLevel("Error"))
	require.Equal(t, slog.LevelInfo, parseLevel("nonsense"))
	require.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestLifecycleAttachLogsSocketEvents(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	lc := NewLifecycle(slog.New(handler))

	sock := evnet.NewSocket(nil)
	lc.Attach(sock)

	sock.Emit("connect")
	sock.Emit("error", assertableError{"boom"})
	sock.Emit("close", true)

	out := buf.String()
	require.Contains(t, out, "socket connected")
	require.Contains(t, out, "socket error")
	require.Contains(t, out, "socket closed")
	require.Contains(t, out, `"hadError":true`)
}

func TestLifecycleAttachParserLogsParseErrors(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	lc := NewLifecycle(slog.New(handler))

	p := evnet.NewHttpParser(evnet.ParserRequest, nil, 0)
	lc.AttachParser(p)

	_, err := p.Execute([]byte("BAD REQUEST LINE\r\n\r\n"))
	require.Error(t, err)
	require.Contains(t, buf.String(), "http parse error")
}

func TestNewLifecycleNilLoggerFallsBackToDefault(t *testing.T) {
	lc := NewLifecycle(nil)
	require.NotNil(t, lc)
}

type assertableError struct{ msg string }

func (e assertableError) Error() string { return e.msg }
