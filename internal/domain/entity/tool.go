package entity

type ToolName string

const (
	ToolWebSearch     ToolName = "web_search"
	ToolScrapeWebsite ToolName = "scrape_website"
	ToolScreenshot    ToolName = "screenshot"
)

func (t ToolName) String() string {
	return string(t)
}

type ToolDefinition struct {
	Name        ToolName               `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ToolCall is a tool invocation requested by a model. Arguments is a JSON object.
type ToolCall struct {
	Name      ToolName
	Arguments string
}
