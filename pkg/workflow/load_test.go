package workflow_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opsforge/taskkit/internal/assert"
	"github.com/opsforge/taskkit/pkg/workflow"
)

const sampleYAML = `
name: smoke-test
platform: homelab
handler_prefix: smoke-test
default_retries: 2
timeout_seconds: 600
steps:
  - name: init
    template: init
  - name: check-dns
    depends: [init]
    params:
      timeout: 5
  - name: check-http
    depends: [init]
    when_flow_control: "skip_http != true"
  - name: finalize
    template: finalize
    depends: [check-dns, check-http]
`

func TestParse(t *testing.T) {
	as := assert.New(t)

	def, err := workflow.Parse([]byte(sampleYAML))
	as.Require.NoError(err)

	as.Equal("smoke-test", def.Name)
	as.Equal("homelab", def.Platform)
	as.Equal("smoke-test", def.HandlerPrefix)
	as.Equal(2, def.DefaultRetries)
	as.Equal(600, def.TimeoutSeconds)
	as.Equal(workflow.DefaultContext, def.Context)
	as.Require.Len(def.Steps, 4)

	dns := def.StepByName("check-dns")
	as.Require.NotNil(dns)
	as.Equal([]string{"init"}, dns.Depends)
	as.Equal(workflow.TemplateAction, dns.Template)
	as.Equal(5, dns.Params["timeout"])

	http := def.StepByName("check-http")
	as.Require.NotNil(http)
	as.Require.NotNil(http.Guard())
	as.Equal("skip_http", http.Guard().Key)
	as.Equal(workflow.OpNotEqual, http.Guard().Op)
}

func TestParseDefaults(t *testing.T) {
	as := assert.New(t)

	def, err := workflow.Parse([]byte(
		"name: bare\nplatform: homelab\nsteps:\n  - name: only\n",
	))
	as.Require.NoError(err)
	as.Equal(workflow.DefaultRetries, def.DefaultRetries)
	as.Equal(workflow.DefaultTimeoutSeconds, def.TimeoutSeconds)
}

func TestParseExplicitZeroRetries(t *testing.T) {
	as := assert.New(t)

	def, err := workflow.Parse([]byte(
		"name: strict\nplatform: homelab\ndefault_retries: 0\n" +
			"steps:\n  - name: only\n",
	))
	as.Require.NoError(err)
	as.Equal(0, def.DefaultRetries)
}

func TestParseErrors(t *testing.T) {
	as := assert.New(t)

	tests := []struct {
		name     string
		source   string
		contains string
	}{
		{
			name:     "missing_name",
			source:   "platform: homelab\n",
			contains: "name is required",
		},
		{
			name:     "missing_platform",
			source:   "name: x\n",
			contains: "platform is required",
		},
		{
			name:     "malformed_yaml",
			source:   "name: [unclosed\n",
			contains: "invalid workflow definition",
		},
		{
			name: "unknown_template",
			source: "name: x\nplatform: homelab\n" +
				"steps:\n  - name: s\n    template: bogus\n",
			contains: "unknown step template",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := workflow.Parse([]byte(tt.source))
			as.Require.ErrorIs(err, workflow.ErrInvalidWorkflow)
			as.Contains(err.Error(), tt.contains)
		})
	}
}

func TestLoad(t *testing.T) {
	as := assert.New(t)

	path := filepath.Join(t.TempDir(), "workflow.yaml")
	as.Require.NoError(os.WriteFile(path, []byte(sampleYAML), 0o644))

	def, err := workflow.Load(path)
	as.Require.NoError(err)
	as.Equal("smoke-test", def.Name)
}

func TestLoadMissingFile(t *testing.T) {
	as := assert.New(t)

	_, err := workflow.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	as.ErrorIs(err, workflow.ErrWorkflowNotFound)
}
