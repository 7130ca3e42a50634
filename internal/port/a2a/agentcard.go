package a2a

// BuildAgentCard returns a static AgentCard describing this runtime's two
// skills: driving an app session end to end, and decomposing a feature
// request into a workflow session's phase list.
func BuildAgentCard(baseURL string) AgentCard {
	return AgentCard{
		Name:        "agentrt",
		Description: "AI coding agent session runtime",
		URL:         baseURL,
		Version:     "0.1.0",
		Skills: []Skill{
			{
				ID:          "code-task",
				Name:        "Code Task",
				Description: "Drive an app session to generate, preview, and deploy a project from a prompt",
				InputModes:  []string{"text"},
				OutputModes: []string{"text"},
			},
			{
				ID:          "decompose",
				Name:        "Feature Decomposition",
				Description: "Drive a workflow session that decomposes a feature into implementation phases",
				InputModes:  []string{"text"},
				OutputModes: []string{"text"},
			},
		},
		Capabilities: struct {
			Streaming bool `json:"streaming"`
		}{Streaming: true},
	}
}
