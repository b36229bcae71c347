package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogger_ConsoleFiltersDebug(t *testing.T) {
	var console bytes.Buffer
	logger := NewLogger("cli", Options{Console: &console})

	logger.Debug().Msg("hidden debug line")
	logger.Info().Msg("visible info line")

	out := console.String()
	if strings.Contains(out, "hidden debug line") {
		t.Errorf("Debug line should be filtered from console, got %q", out)
	}
	if !strings.Contains(out, "visible info line") {
		t.Errorf("Info line should reach console, got %q", out)
	}
}

func TestLogger_VerboseShowsDebug(t *testing.T) {
	var console bytes.Buffer
	logger := NewLogger("cli", Options{Console: &console, Verbose: true})

	logger.Debug().Msgf("adb output %d", 7)

	if !strings.Contains(console.String(), "adb output 7") {
		t.Errorf("Verbose console should show debug lines, got %q", console.String())
	}
}

func TestLogger_FileReceivesDebug(t *testing.T) {
	var console, file bytes.Buffer
	logger := NewLogger("engine", Options{Console: &console, File: &file})

	logger.Debug().Str("line", "[ 42%] /sdcard/x.apk").Msg("adb")

	if !strings.Contains(file.String(), "42%") {
		t.Errorf("File sink should receive debug entries, got %q", file.String())
	}
	if console.Len() != 0 {
		t.Errorf("Console should stay quiet for debug entries, got %q", console.String())
	}
}

func TestLogger_Named(t *testing.T) {
	var console bytes.Buffer
	logger := NewLogger("cli", Options{Console: &console}).Named("registry")

	logger.Info().Msg("hello")

	if !strings.Contains(console.String(), "registry") {
		t.Errorf("Expected component name in output, got %q", console.String())
	}
}

func TestNop(t *testing.T) {
	logger := Nop().Named("runner")
	logger.Info().Msg("nothing")
	if logger.zlog.GetLevel() != zerolog.Disabled {
		t.Errorf("Expected disabled level, got %s", logger.zlog.GetLevel())
	}
}

func TestFileSink_Writes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "adb_file_browser.log")

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}
	defer sink.Close()

	logger := NewLogger("engine", Options{Console: &bytes.Buffer{}, File: sink})
	logger.Debug().Msg("first entry")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "first entry") {
		t.Errorf("Expected first entry in log file, got %q", string(data))
	}
	if sink.Path() != path {
		t.Errorf("Expected path %s, got %s", path, sink.Path())
	}
}
