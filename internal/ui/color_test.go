package ui

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

// captureColorOutput captures output from the color package.
// The color package writes to color.Output, which defaults to os.Stdout.
func captureColorOutput(fn func()) string {
	oldNoColor := color.NoColor
	oldOutput := color.Output

	color.NoColor = true

	r, w, _ := os.Pipe()
	color.Output = w

	fn()

	w.Close()

	color.Output = oldOutput
	color.NoColor = oldNoColor

	var buf bytes.Buffer
	io.Copy(&buf, r)
	r.Close()

	return buf.String()
}

func TestMessages(t *testing.T) {
	tests := []struct {
		name   string
		print  func()
		want   string
		symbol string
	}{
		{"success", func() { Success("pushed %d manifests", 2) }, "pushed 2 manifests", "✓"},
		{"error", func() { Error("push failed: %s", "409") }, "push failed: 409", "✗"},
		{"warning", func() { Warning("no secrets file for %s", "dev") }, "no secrets file for dev", "⚠"},
		{"info", func() { Info("rendering %s", "grafana") }, "rendering grafana", ""},
		{"header", func() { Header("=== deploy %s ===", "dev") }, "=== deploy dev ===", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := captureColorOutput(tt.print)
			assert.Contains(t, output, tt.want)
			assert.Contains(t, output, tt.symbol)
			assert.Contains(t, output, "\n")
		})
	}
}

func TestStep(t *testing.T) {
	output := captureColorOutput(func() {
		Step(3, "push %s", "grafana")
	})
	assert.Contains(t, output, "[3]")
	assert.Contains(t, output, "push grafana")
}

func TestOutcome(t *testing.T) {
	t.Run("success line", func(t *testing.T) {
		output := captureColorOutput(func() {
			Outcome(true, "grafana_test_app", "v0.2.0")
		})
		assert.Contains(t, output, "✓")
		assert.Contains(t, output, "grafana_test_app")
		assert.Contains(t, output, "v0.2.0")
	})

	t.Run("failure line", func(t *testing.T) {
		output := captureColorOutput(func() {
			Outcome(false, "kairos", "[HOOK_FAILED]")
		})
		assert.Contains(t, output, "✗")
		assert.Contains(t, output, "[HOOK_FAILED]")
	})
}

func TestColorVariables(t *testing.T) {
	assert.NotNil(t, Red)
	assert.NotNil(t, Green)
	assert.NotNil(t, Yellow)
	assert.NotNil(t, Blue)
	assert.NotNil(t, Cyan)
	assert.NotNil(t, Bold)
}
