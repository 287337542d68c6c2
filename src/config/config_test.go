package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetDataDir(t *testing.T) {
	c := NewDefaultConfig()

	c.SetDataDir("/tmp/node0")
	if c.DatabaseDir != filepath.Join("/tmp/node0", DefaultBadgerFile) {
		t.Fatalf("database dir should follow the data dir, not %s", c.DatabaseDir)
	}

	c = NewDefaultConfig()
	c.DatabaseDir = "/var/db"
	c.SetDataDir("/tmp/node0")
	if c.DatabaseDir != "/var/db" {
		t.Fatalf("explicit database dir should be kept, not %s", c.DatabaseDir)
	}
}

func TestLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"info":    logrus.InfoLevel,
		"warn":    logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"unknown": logrus.DebugLevel,
	}
	for s, l := range cases {
		if LogLevel(s) != l {
			t.Fatalf("%s should parse to %s, not %s", s, l, LogLevel(s))
		}
	}
}

func TestLoggerFile(t *testing.T) {
	c := NewDefaultConfig()
	c.LogLevel = "info"
	c.LogFile = filepath.Join(t.TempDir(), "tsae.log")

	c.Logger().WithField("session", 3).Info("session finished")

	data, err := os.ReadFile(c.LogFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "session finished") {
		t.Fatalf("log file should contain the entry, got %q", data)
	}
}
