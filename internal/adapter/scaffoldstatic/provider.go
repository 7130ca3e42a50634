// Package scaffoldstatic implements the Scaffold Provider port
// (internal/port/scaffold) deterministically: no teacher file models this
// concern directly, so it is built straight from §4.17's contract, using
// encoding/json to render wrangler.jsonc (its field order and sorted map
// keys give byte-for-byte determinism for free) and plain string building
// for README.md. github.com/tidwall/jsonc validates the rendered
// wrangler.jsonc is well-formed JSONC before it is returned, since Render
// must be deterministic and byte-identical across calls (§8) and a
// malformed-but-silently-accepted render would violate that silently.
package scaffoldstatic

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/tidwall/jsonc"

	"github.com/Strob0t/CodeForge/internal/domain/agentsession"
	"github.com/Strob0t/CodeForge/internal/port/scaffold"
)

// isValidJSONC reports whether b is well-formed JSONC by stripping
// comments/trailing commas via jsonc.ToJSON and validating the result
// as JSON.
func isValidJSONC(b []byte) bool {
	return json.Valid(jsonc.ToJSON(b))
}

// Provider renders deterministic starter file sets for both project
// types.
type Provider struct{}

// NewProvider returns a Provider. It is a zero-cost value; no
// configuration is needed since every input arrives through Request.
func NewProvider() *Provider {
	return &Provider{}
}

var classNameRE = regexp.MustCompile(`export\s+class\s+(\w+)\s+extends\s+WorkflowEntrypoint`)

// Render implements scaffold.Provider.
func (p *Provider) Render(req scaffold.Request) (scaffold.Result, error) {
	switch req.ProjectType {
	case agentsession.ProjectTypeWorkflow:
		return p.renderWorkflow(req)
	default:
		return p.renderApp(req)
	}
}

func (p *Provider) renderApp(req scaffold.Request) (scaffold.Result, error) {
	files := map[string]string{
		"package.json": appPackageJSON,
		"wrangler.jsonc": appWranglerJSONC,
		"README.md": "# Generated Application\n\nThis project was scaffolded for a Cloudflare Workers application.\n",
	}
	if !isValidJSONC([]byte(files["wrangler.jsonc"])) {
		return scaffold.Result{}, fmt.Errorf("scaffoldstatic: rendered app wrangler.jsonc is not valid JSONC")
	}
	return scaffold.Result{
		AllFiles:       files,
		FileTree:       sortedKeys(files),
		Deps:           []string{"wrangler"},
		ImportantFiles: []string{"wrangler.jsonc"},
	}, nil
}

func (p *Provider) renderWorkflow(req scaffold.Request) (scaffold.Result, error) {
	className := workflowClassName(req.WorkflowCode)

	wrangler, err := renderWranglerJSONC(req, className)
	if err != nil {
		return scaffold.Result{}, err
	}
	if !isValidJSONC([]byte(wrangler)) {
		return scaffold.Result{}, fmt.Errorf("scaffoldstatic: rendered workflow wrangler.jsonc is not valid JSONC")
	}

	readme, err := renderReadme(req, className)
	if err != nil {
		return scaffold.Result{}, err
	}

	files := map[string]string{
		"wrangler.jsonc": wrangler,
		"README.md":      readme,
		"package.json":   workflowPackageJSON(req, className),
	}
	if req.WorkflowCode != "" {
		files["src/index.ts"] = req.WorkflowCode
	}

	return scaffold.Result{
		AllFiles:       files,
		FileTree:       sortedKeys(files),
		Deps:           []string{"wrangler"},
		ImportantFiles: []string{"wrangler.jsonc", "README.md"},
		DontTouchFiles: []string{"wrangler.jsonc"},
	}, nil
}

// workflowClassName matches `export class <Name> extends
// WorkflowEntrypoint` in code, defaulting to MyWorkflow (§4.17).
func workflowClassName(code string) string {
	if m := classNameRE.FindStringSubmatch(code); len(m) == 2 {
		return m[1]
	}
	return "MyWorkflow"
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

const appPackageJSON = `{
  "name": "generated-app",
  "private": true,
  "scripts": {
    "dev": "wrangler dev",
    "deploy": "wrangler deploy"
  }
}
`

const appWranglerJSONC = `{
  // Scaffolded Worker configuration.
  "name": "generated-app",
  "main": "src/index.ts",
  "compatibility_date": "2024-09-23"
}
`

func workflowPackageJSON(req scaffold.Request, className string) string {
	return fmt.Sprintf(`{
  "name": %q,
  "private": true,
  "scripts": {
    "dev": "wrangler dev",
    "deploy": "wrangler deploy"
  }
}
`, workerPackageName(req))
}

func workerPackageName(req scaffold.Request) string {
	if req.WorkflowName != "" {
		return req.WorkflowName
	}
	return "generated-workflow"
}
