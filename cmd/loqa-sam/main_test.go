package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/loqalabs/loqa-sam/internal/config"
	"github.com/loqalabs/loqa-sam/internal/formant"
)

func TestVoiceFlagsOverridePreset(t *testing.T) {
	v := voiceFlags{voice: "elf", pitch: 90, speed: -1, mouth: -1, throat: -1, timing: "aggregate"}
	opts, err := v.options(config.Default().Voice)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Pitch != 90 || opts.Speed != 72 || opts.Mouth != 110 || opts.Throat != 160 {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if opts.Timing != formant.TimingAggregate {
		t.Fatalf("timing = %v", opts.Timing)
	}
}

func TestVoiceFlagsRejectOutOfRange(t *testing.T) {
	for _, v := range []voiceFlags{
		{pitch: 300, speed: -1, mouth: -1, throat: -1},
		{pitch: -1, speed: 0, mouth: -1, throat: -1},
		{voice: "nobody", pitch: -1, speed: -1, mouth: -1, throat: -1},
	} {
		if _, err := v.options(config.Default().Voice); err == nil {
			t.Fatalf("expected error for %+v", v)
		}
	}
}

func TestRunVoicesMarksDefault(t *testing.T) {
	var out bytes.Buffer
	if err := runVoices(nil, &out); err != nil {
		t.Fatalf("runVoices: %v", err)
	}
	if !strings.Contains(out.String(), "* sam") {
		t.Fatalf("default voice not marked:\n%s", out.String())
	}
}

func TestRunTablesBuiltin(t *testing.T) {
	var out bytes.Buffer
	if err := runTables(nil, &out); err != nil {
		t.Fatalf("runTables: %v", err)
	}
	if !strings.HasPrefix(out.String(), "tables valid") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRunSpeakToStdout(t *testing.T) {
	var out bytes.Buffer
	if err := runSpeak([]string{"-o", "-", "HELLO"}, &out); err != nil {
		t.Fatalf("runSpeak: %v", err)
	}
	if !bytes.HasPrefix(out.Bytes(), []byte("RIFF")) {
		t.Fatal("stdout is not a wav file")
	}
}
