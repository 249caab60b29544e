package entity

type AgentType string

const (
	AgentTypeWeb      AgentType = "web"
	AgentTypeResearch AgentType = "research"
)

type AgentInfo struct {
	Name        AgentType  `json:"name"`
	Model       ModelInfo  `json:"model"`
	Tools       []ToolName `json:"tools"`
	Initialized bool       `json:"initialized"`
}

type AgentResponse struct {
	Answer     string     `json:"answer"`
	Iterations int        `json:"iterations"`
	ToolCalls  []ToolCall `json:"-"`
}

// ResearchSource is one scraped search hit. Err is set when the page could not be fetched.
type ResearchSource struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ResearchReport struct {
	Query   string           `json:"query"`
	Sources []ResearchSource `json:"sources"`
	Summary string           `json:"summary"`
}
