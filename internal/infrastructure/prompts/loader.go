package prompts

import (
	_ "embed"
)

//go:embed webagent.txt
var WebAgentPrompt string

//go:embed research.txt
var ResearchPrompt string
