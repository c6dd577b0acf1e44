package architect

import "fmt"

// planPromptTemplate instructs a backend to answer with plan JSON.
// Backends that recognize a need for external service credentials must
// set needsAgent and populate requiredInfo instead of inventing steps.
const planPromptTemplate = `You are an infrastructure architect. Break the following operator request into an ordered execution plan.

Request: %s

Respond with a single JSON object and nothing else, using exactly this shape:
{
  "needsAgent": false,
  "requiredInfo": [],
  "steps": [
    {"description": "what this step does", "command": "shell command", "critical": true}
  ],
  "dependencies": [],
  "monitoring": [],
  "notifications": [],
  "estimatedTime": "5m",
  "complexity": "low|medium|high"
}

Rules:
- Steps run sequentially on the host shell; one command per step.
- Mark a step critical only if later steps are useless after it fails.
- If the request needs credentials, tokens, or account details for an
  external service, set needsAgent to true and list the missing items
  in requiredInfo instead of guessing.`

// BuildPrompt renders the architecting prompt for a request.
func BuildPrompt(request string) string {
	return fmt.Sprintf(planPromptTemplate, request)
}
