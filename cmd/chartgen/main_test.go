package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/chartgen/internal/config"
	"github.com/vbonduro/chartgen/internal/imagestore/local"
)

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDetectCommandFromStdin(t *testing.T) {
	out, err := runCmd(t, "flowchart LR\n  A --> B\n", "detect")
	require.NoError(t, err)
	assert.Contains(t, out, `"chartKind": "diagram"`)
	assert.Contains(t, out, `flowchart LR`)
}

func TestDetectCommandFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
	  "title": "Share",
	  "chartType": "pie",
	  "data": [{"name": "a", "value": 1}]
	}`), 0o600))

	out, err := runCmd(t, "", "detect", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"chartKind": "pie"`)
	assert.NotContains(t, out, `"chartType"`)
	assert.Contains(t, out, `"dataPoints"`)
}

func TestDetectCommandRejectsUnknownText(t *testing.T) {
	_, err := runCmd(t, "hello there", "detect")
	assert.Error(t, err)
}

func TestReadImage(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(png, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, 0o600))
	webp := filepath.Join(dir, "a.webp")
	require.NoError(t, os.WriteFile(webp, append([]byte("RIFF\x00\x00\x00\x00WEBP"), make([]byte, 8)...), 0o600))
	txt := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(txt, []byte("not an image"), 0o600))

	img, err := readImage(png)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)

	img, err = readImage(webp)
	require.NoError(t, err)
	assert.Equal(t, "image/webp", img.MIMEType)

	_, err = readImage(txt)
	assert.Error(t, err)
	_, err = readImage(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestNewImageStoreLocal(t *testing.T) {
	cfg := &config.Config{ImageBackend: "local", ImageLocalPath: t.TempDir()}
	st, err := newImageStore(cfg, slog.Default())
	require.NoError(t, err)
	assert.IsType(t, &local.Store{}, st)
}

func TestNewAppWiresService(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		DBPath:          filepath.Join(dir, "chartgen.db"),
		ImageBackend:    "local",
		ImageLocalPath:  filepath.Join(dir, "images"),
		DetectCacheSize: 8,
	}
	a, err := newApp(cfg, slog.Default())
	require.NoError(t, err)
	defer a.close()

	cfgOut, err := a.service.Detect("<div class=\"card\">hi</div>")
	require.NoError(t, err)
	assert.Equal(t, "markup", string(cfgOut.Kind))
}

func TestNewAppTagsComponentLogs(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		DBPath:          filepath.Join(dir, "chartgen.db"),
		ImageBackend:    "local",
		ImageLocalPath:  filepath.Join(dir, "images"),
		DetectCacheSize: 8,
	}
	var buf bytes.Buffer
	a, err := newApp(cfg, slog.New(slog.NewJSONHandler(&buf, nil)))
	require.NoError(t, err)
	defer a.close()

	assert.Contains(t, buf.String(), `"msg":"using local image store","component":"imagestore"`)
	assert.Contains(t, buf.String(), `"msg":"providers registered"`)
}
