package scaffoldstatic

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Strob0t/CodeForge/internal/domain/agentsession"
	"github.com/Strob0t/CodeForge/internal/port/scaffold"
)

// wranglerBinding is the shared {binding, <id-field>} shape wrangler.jsonc
// uses for every resource section.
type wranglerBinding struct {
	Binding    string `json:"binding"`
	ID         string `json:"id,omitempty"`
	BucketName string `json:"bucket_name,omitempty"`
	DatabaseID string `json:"database_id,omitempty"`
	Queue      string `json:"queue,omitempty"`
}

type wranglerWorkflow struct {
	Name      string `json:"name"`
	Binding   string `json:"binding"`
	ClassName string `json:"class_name"`
}

type wranglerQueues struct {
	Producers []wranglerBinding `json:"producers,omitempty"`
}

type wranglerAI struct {
	Binding string `json:"binding"`
}

// wranglerConfig mirrors the subset of wrangler.jsonc fields this scaffold
// controls. encoding/json sorts map keys (Vars) and preserves struct field
// order, giving Render the byte-identical-for-identical-input determinism
// §8 requires without any extra sorting logic on our part beyond the
// resource-binding slices, which are built from a sorted key walk below.
type wranglerConfig struct {
	Name               string             `json:"name"`
	Main               string             `json:"main"`
	CompatibilityDate  string             `json:"compatibility_date"`
	Workflows          []wranglerWorkflow `json:"workflows,omitempty"`
	KVNamespaces       []wranglerBinding  `json:"kv_namespaces,omitempty"`
	R2Buckets          []wranglerBinding  `json:"r2_buckets,omitempty"`
	D1Databases        []wranglerBinding  `json:"d1_databases,omitempty"`
	Queues             *wranglerQueues    `json:"queues,omitempty"`
	AI                 *wranglerAI        `json:"ai,omitempty"`
	Vars               map[string]string  `json:"vars,omitempty"`
}

// renderWranglerJSONC builds wrangler.jsonc for a workflow, mapping each
// declared resource kind to its dedicated wrangler section (§4.17):
// kv_namespaces, r2_buckets, d1_databases, queues.producers, ai.
func renderWranglerJSONC(req scaffold.Request, className string) (string, error) {
	cfg := wranglerConfig{
		Name:              workerPackageName(req),
		Main:              "src/index.ts",
		CompatibilityDate: "2024-09-23",
		Workflows: []wranglerWorkflow{{
			Name:      workerPackageName(req),
			Binding:   "WORKFLOW",
			ClassName: className,
		}},
	}

	if req.Metadata != nil {
		var names []string
		for name := range req.Metadata.Resources {
			names = append(names, name)
		}
		sort.Strings(names)

		var producers []wranglerBinding
		for _, name := range names {
			b := req.Metadata.Resources[name]
			switch b.Kind {
			case agentsession.ResourceKindKV:
				cfg.KVNamespaces = append(cfg.KVNamespaces, wranglerBinding{Binding: b.Name, ID: b.ID})
			case agentsession.ResourceKindR2:
				cfg.R2Buckets = append(cfg.R2Buckets, wranglerBinding{Binding: b.Name, BucketName: b.ID})
			case agentsession.ResourceKindD1:
				cfg.D1Databases = append(cfg.D1Databases, wranglerBinding{Binding: b.Name, DatabaseID: b.ID})
			case agentsession.ResourceKindQueue:
				producers = append(producers, wranglerBinding{Binding: b.Name, Queue: b.ID})
			case agentsession.ResourceKindAI:
				cfg.AI = &wranglerAI{Binding: b.Name}
			}
		}
		if len(producers) > 0 {
			cfg.Queues = &wranglerQueues{Producers: producers}
		}
		if len(req.Metadata.EnvVars) > 0 {
			cfg.Vars = req.Metadata.EnvVars
		}
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("scaffoldstatic: marshal wrangler config: %w", err)
	}

	// Insert the scaffold-provenance comment as the first line inside the
	// object; a leading-line `//` comment is valid JSONC and keeps the
	// file self-describing without touching the JSON structure above.
	out := string(data)
	brace := strings.Index(out, "{")
	return out[:brace+1] + "\n  // Scaffolded by the Scaffold Provider from workflow metadata." + out[brace+1:], nil
}
