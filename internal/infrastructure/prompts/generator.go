// Package prompts renders the system and task prompts sent to generation backends.
package prompts

import (
	"bytes"
	"encoding/json"
	"sort"
	"text/template"

	"exo-agent/internal/domain/entity"
)

type WebAgentPromptData struct {
	Tools []entity.ToolDefinition
}

type ResearchPromptData struct {
	Query   string
	Sources []entity.ResearchSource
}

var funcs = template.FuncMap{
	"argsOf": argsOf,
	"inc":    func(i int) int { return i + 1 },
}

// GenerateWebAgentPrompt renders tmpl with tools listed by name.
func GenerateWebAgentPrompt(tmpl string, tools []entity.ToolDefinition) (string, error) {
	sorted := append([]entity.ToolDefinition(nil), tools...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})
	return render("webagent", tmpl, WebAgentPromptData{Tools: sorted})
}

func GenerateResearchPrompt(tmpl string, query string, sources []entity.ResearchSource) (string, error) {
	return render("research", tmpl, ResearchPromptData{Query: query, Sources: sources})
}

func render(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).Funcs(funcs).Parse(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// argsOf renders the properties of a JSON-schema tool definition compactly.
func argsOf(def entity.ToolDefinition) string {
	props, _ := def.Parameters["properties"].(map[string]interface{})
	if len(props) == 0 {
		return "{}"
	}
	out := make(map[string]string, len(props))
	for name, raw := range props {
		prop, _ := raw.(map[string]interface{})
		typ, _ := prop["type"].(string)
		desc, _ := prop["description"].(string)
		out[name] = typ
		if desc != "" {
			out[name] = typ + ", " + desc
		}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "{}"
	}
	return string(b)
}
