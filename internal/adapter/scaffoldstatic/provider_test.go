package scaffoldstatic

import (
	"strings"
	"testing"

	"github.com/Strob0t/CodeForge/internal/domain/agentsession"
	"github.com/Strob0t/CodeForge/internal/port/scaffold"
)

func TestRenderWorkflowIsDeterministic(t *testing.T) {
	req := scaffold.Request{
		ProjectType:  agentsession.ProjectTypeWorkflow,
		WorkflowName: "my-workflow",
		WorkflowCode: "export class OrderPipeline extends WorkflowEntrypoint {}",
		Metadata: &agentsession.WorkflowMetadata{
			Name:        "OrderPipeline",
			Description: "Processes orders end to end.",
			ParamsSchema: map[string]any{
				"orderId": map[string]any{"type": "string"},
			},
			EnvVars: map[string]string{"STAGE": "prod"},
			Resources: map[string]agentsession.ResourceBinding{
				"cache":  {Name: "CACHE", Kind: agentsession.ResourceKindKV, ID: "ns-1"},
				"assets": {Name: "ASSETS", Kind: agentsession.ResourceKindR2, ID: "bucket-1"},
				"db":     {Name: "DB", Kind: agentsession.ResourceKindD1, ID: "db-1"},
				"jobs":   {Name: "JOBS", Kind: agentsession.ResourceKindQueue, ID: "jobs-queue"},
				"model":  {Name: "AI", Kind: agentsession.ResourceKindAI},
			},
		},
	}

	p := NewProvider()
	first, err := p.Render(req)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	second, err := p.Render(req)
	if err != nil {
		t.Fatalf("Render (second): %v", err)
	}

	if first.AllFiles["wrangler.jsonc"] != second.AllFiles["wrangler.jsonc"] {
		t.Fatal("wrangler.jsonc not byte-identical across renders")
	}
	if first.AllFiles["README.md"] != second.AllFiles["README.md"] {
		t.Fatal("README.md not byte-identical across renders")
	}

	wrangler := first.AllFiles["wrangler.jsonc"]
	for _, want := range []string{
		`"kv_namespaces"`, `"r2_buckets"`, `"d1_databases"`, `"queues"`, `"ai"`,
		"OrderPipeline", "ns-1", "bucket-1", "db-1", "jobs-queue",
	} {
		if !strings.Contains(wrangler, want) {
			t.Errorf("wrangler.jsonc missing %q:\n%s", want, wrangler)
		}
	}

	readme := first.AllFiles["README.md"]
	for _, want := range []string{"orderId", "CACHE", "kv", "ns-1", "wrangler dev", "wrangler deploy"} {
		if !strings.Contains(readme, want) {
			t.Errorf("README.md missing %q:\n%s", want, readme)
		}
	}

	for _, f := range []string{"wrangler.jsonc", "README.md", "src/index.ts", "package.json"} {
		if _, ok := first.AllFiles[f]; !ok {
			t.Errorf("missing expected file %q", f)
		}
	}
}

func TestWorkflowClassNameDefaultsWhenNoMatch(t *testing.T) {
	if got := workflowClassName("const x = 1;"); got != "MyWorkflow" {
		t.Fatalf("got %q, want MyWorkflow", got)
	}
	if got := workflowClassName("export class Foo extends WorkflowEntrypoint {}"); got != "Foo" {
		t.Fatalf("got %q, want Foo", got)
	}
}

func TestRenderAppProducesValidJSONC(t *testing.T) {
	p := NewProvider()
	result, err := p.Render(scaffold.Request{ProjectType: agentsession.ProjectTypeApp})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if _, ok := result.AllFiles["wrangler.jsonc"]; !ok {
		t.Fatal("expected wrangler.jsonc in app scaffold")
	}
}

func TestRenderWorkflowWithNoMetadata(t *testing.T) {
	p := NewProvider()
	result, err := p.Render(scaffold.Request{ProjectType: agentsession.ProjectTypeWorkflow})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(result.AllFiles["README.md"], "no declared parameters") {
		t.Fatal("expected no-params fallback text in README.md")
	}
	if !strings.Contains(result.AllFiles["README.md"], "no Cloudflare resource bindings") {
		t.Fatal("expected no-bindings fallback text in README.md")
	}
}
