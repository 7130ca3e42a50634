package scaffoldstatic

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Strob0t/CodeForge/internal/port/scaffold"
)

// renderReadme builds README.md fully from metadata (§4.17): a parameter
// table derived from ParamsSchema, a bindings table derived from
// Resources, and run/deploy snippets naming the rendered worker.
func renderReadme(req scaffold.Request, className string) (string, error) {
	var b strings.Builder

	name := req.WorkflowName
	if name == "" {
		name = className
	}
	fmt.Fprintf(&b, "# %s\n\n", name)

	if req.Metadata != nil && req.Metadata.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", req.Metadata.Description)
	}

	b.WriteString("## Parameters\n\n")
	if req.Metadata == nil || len(req.Metadata.ParamsSchema) == 0 {
		b.WriteString("This workflow takes no declared parameters.\n\n")
	} else {
		b.WriteString("| Name | Type |\n|---|---|\n")
		names := sortedSchemaKeys(req.Metadata.ParamsSchema)
		for _, k := range names {
			fmt.Fprintf(&b, "| %s | %s |\n", k, schemaTypeOf(req.Metadata.ParamsSchema[k]))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Bindings\n\n")
	if req.Metadata == nil || len(req.Metadata.Resources) == 0 {
		b.WriteString("This workflow declares no Cloudflare resource bindings.\n\n")
	} else {
		b.WriteString("| Binding | Kind | Resource |\n|---|---|---|\n")
		var rnames []string
		for rn := range req.Metadata.Resources {
			rnames = append(rnames, rn)
		}
		sort.Strings(rnames)
		for _, rn := range rnames {
			r := req.Metadata.Resources[rn]
			id := r.ID
			if id == "" {
				id = "-"
			}
			fmt.Fprintf(&b, "| %s | %s | %s |\n", r.Name, r.Kind, id)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Run\n\n```sh\nnpx wrangler dev\n```\n\n")
	b.WriteString("## Deploy\n\n```sh\nnpx wrangler deploy\n```\n")

	return b.String(), nil
}

func sortedSchemaKeys(schema map[string]any) []string {
	out := make([]string, 0, len(schema))
	for k := range schema {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// schemaTypeOf reads a JSON-Schema-style {"type": "..."} entry, falling
// back to "any" for entries that don't declare one.
func schemaTypeOf(entry any) string {
	m, ok := entry.(map[string]any)
	if !ok {
		return "any"
	}
	t, ok := m["type"].(string)
	if !ok || t == "" {
		return "any"
	}
	return t
}
