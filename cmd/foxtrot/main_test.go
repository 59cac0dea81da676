package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	triangleFixture = "../../pkg/loader/testdata/triangle.step"
	plateFixture    = "../../pkg/loader/testdata/plate.step"
	cylinderFixture = "../../pkg/loader/testdata/cylinder.step"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"native", []string{triangleFixture}, []string{"vertices=3 triangles=1", "bounds=[0 0 0]..[1 1 0]"}},
		{"ffi", []string{"-ffi", triangleFixture}, []string{"vertices=3 triangles=1"}},
		{"plate", []string{plateFixture}, []string{"vertices=8 triangles=8", "bounds=[0 0 0]..[4 4 0]"}},
		{"stats", []string{"-stats", triangleFixture}, []string{"faces: 1", "meshed: 1", "triangles: 1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if err := run(&stdout, &stderr, tt.args); err != nil {
				t.Fatalf("run(%v) error = %v\nstderr:\n%s", tt.args, err, stderr.String())
			}
			for _, want := range tt.want {
				if !strings.Contains(stdout.String(), want) {
					t.Errorf("stdout = %q, want it to contain %q", stdout.String(), want)
				}
			}
		})
	}
}

func TestRunStatsOnFailure(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(&stdout, &stderr, []string{"-stats", cylinderFixture})
	if err == nil || !strings.Contains(err.Error(), "geometry error") {
		t.Fatalf("run() error = %v, want geometry error", err)
	}
	for _, want := range []string{"skipped: 1", "CYLINDRICAL_SURFACE: 1"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("stdout = %q, want it to contain %q", stdout.String(), want)
		}
	}
}

func TestRunWritesSTL(t *testing.T) {
	out := filepath.Join(t.TempDir(), "plate.stl")
	var stdout, stderr bytes.Buffer
	if err := run(&stdout, &stderr, []string{"-stl", out, plateFixture}); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	// Binary STL: 80 byte header, uint32 count, 50 bytes per triangle.
	if got, want := info.Size(), int64(84+50*8); got != want {
		t.Errorf("STL size = %d, want %d", got, want)
	}
}

func TestRunTrace(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(&stdout, &stderr, []string{"-trace", triangleFixture}); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	for _, want := range []string{`"Name": "loader.Load"`, `"Name": "triangulate"`} {
		if !strings.Contains(stderr.String(), want) {
			t.Errorf("stderr missing %s", want)
		}
	}
}

func TestRunVerbose(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(&stdout, &stderr, []string{"-v", triangleFixture}); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(stderr.String(), "level=DEBUG msg=parsed") {
		t.Errorf("stderr = %q, want debug stage logs", stderr.String())
	}
}

func TestRunErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.step")
	tests := []struct {
		name string
		args []string
		code int    // 0 when not an exitError
		want string // substring of the error
	}{
		{"no file", nil, 2, "expected exactly one STEP file"},
		{"two files", []string{triangleFixture, plateFixture}, 2, "expected exactly one STEP file"},
		{"unknown flag", []string{"-nope", triangleFixture}, 2, "-nope"},
		{"stats with ffi", []string{"-ffi", "-stats", triangleFixture}, 2, "-stats is not available"},
		{"verbose with ffi", []string{"-ffi", "-v", triangleFixture}, 2, "-v is not available"},
		{"missing", []string{missing}, 0, "io error"},
		{"missing through ffi", []string{"-ffi", missing}, 0, "foxtrot_load_step failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(&stdout, &stderr, tt.args)
			if err == nil {
				t.Fatal("run() error = nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("run() error = %v, want it to contain %q", err, tt.want)
			}
			var exit *exitError
			if errors.As(err, &exit) {
				if exit.code != tt.code {
					t.Errorf("exit code = %d, want %d", exit.code, tt.code)
				}
			} else if tt.code != 0 {
				t.Errorf("run() error = %T, want *exitError", err)
			}
		})
	}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(&stdout, &stderr, []string{"-h"}); err != nil {
		t.Fatalf("run(-h) error = %v", err)
	}
	if !strings.Contains(stderr.String(), "Usage:") {
		t.Errorf("stderr = %q, want usage", stderr.String())
	}
}
