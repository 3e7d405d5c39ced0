package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestPlaceholders(t *testing.T) {
	cmd := Command{Name: "copy", Cmd: "cp {src} {dst}"}

	got := cmd.Placeholders()
	want := []string{"src", "dst"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected placeholders %v, got %v", want, got)
	}
}

func TestPlaceholdersNone(t *testing.T) {
	cmd := Command{Name: "list", Cmd: "ls -la"}

	if got := cmd.Placeholders(); len(got) != 0 {
		t.Errorf("Expected no placeholders, got %v", got)
	}
}

func TestPlaceholdersRepeated(t *testing.T) {
	cmd := Command{Cmd: "echo {a} {b} {a}"}

	got := cmd.Placeholders()
	want := []string{"a", "b", "a"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected placeholders %v, got %v", want, got)
	}
}

func TestResolve(t *testing.T) {
	cmd := Command{Cmd: "ping -c 1 {host}"}

	got := cmd.Resolve(map[string]string{"host": "localhost"})
	if got != "ping -c 1 localhost" {
		t.Errorf("Expected resolved command, got %q", got)
	}
}

func TestResolveLeavesUnknownsIntact(t *testing.T) {
	cmd := Command{Cmd: "echo {a}-{b}"}

	got := cmd.Resolve(map[string]string{"a": "x"})
	if got != "echo x-{b}" {
		t.Errorf("Expected unresolved placeholder to pass through, got %q", got)
	}
}

func TestResolveReplacesEveryOccurrence(t *testing.T) {
	cmd := Command{Cmd: "mv {f} {f}.bak"}

	got := cmd.Resolve(map[string]string{"f": "data"})
	if got != "mv data data.bak" {
		t.Errorf("Expected both occurrences replaced, got %q", got)
	}
}

func TestCommandByNameFirstMatchWins(t *testing.T) {
	folder := NewFolder("proj", "/tmp/proj")
	folder.Commands = []Command{
		NewCommand("build", "make all"),
		NewCommand("build", "make fast"),
	}

	cmd, ok := folder.CommandByName("build")
	if !ok {
		t.Fatal("Expected a match")
	}
	if cmd.Cmd != "make all" {
		t.Errorf("Expected first declared command to win, got %q", cmd.Cmd)
	}

	if _, ok := folder.CommandByName("deploy"); ok {
		t.Error("Expected no match for unknown name")
	}
}

func TestExecutionRecordJSONShape(t *testing.T) {
	rec := NewRemoteExecutionRecord("ping", "ping -c 1 localhost", "ok", 0, 7)

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Failed to marshal record: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal record: %v", err)
	}

	if decoded["remoteCommandId"] != float64(7) {
		t.Errorf("Expected remoteCommandId 7, got %v", decoded["remoteCommandId"])
	}
	if decoded["isRemote"] != true {
		t.Error("Expected isRemote true")
	}

	local := NewExecutionRecord("ls", "ls", "ok", 0)
	data, err = json.Marshal(local)
	if err != nil {
		t.Fatalf("Failed to marshal record: %v", err)
	}
	var localDecoded map[string]interface{}
	if err := json.Unmarshal(data, &localDecoded); err != nil {
		t.Fatalf("Failed to unmarshal record: %v", err)
	}
	if _, present := localDecoded["remoteCommandId"]; present {
		t.Error("Expected remoteCommandId to be omitted for local runs")
	}
}
