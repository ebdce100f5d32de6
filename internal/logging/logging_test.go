package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestErrorFields(t *testing.T) {
	var buf bytes.Buffer
	logg.SetOutput(&buf)
	t.Cleanup(func() { logg.SetOutput(os.Stdout) })

	Error("budget", "Consume", "conditional update", map[string]string{"code": "C2025-1"}, errors.New("boom"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("not json: %q", buf.String())
	}
	if entry["module"] != "budget" || entry["funcName"] != "Consume" || entry["msg"] != "boom" {
		t.Fatalf("entry = %v", entry)
	}
	if _, ok := entry["data"]; !ok {
		t.Fatal("data field missing")
	}
}

func TestSetLevelIgnoresGarbage(t *testing.T) {
	SetLevel("debug")
	SetLevel("loud")
	if logg.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level = %s", logg.GetLevel())
	}
	SetLevel("info")
}
