package router

import "github.com/resumekit/airouter/internal/llm"

// taskPreferences maps each task kind to an ordered provider preference
// list. Precision work leans on deepseek first, creative work on openai.
// Entries are only hints; unavailable providers are skipped at routing
// time.
var taskPreferences = map[llm.TaskKind][]string{
	llm.TaskParsing:     {"deepseek", "openai", "ollama"},
	llm.TaskAnalysis:    {"deepseek", "openai", "ollama"},
	llm.TaskTranslation: {"deepseek", "openai", "ollama"},
	llm.TaskGeneration:  {"openai", "deepseek", "ollama"},
	llm.TaskEnhancement: {"openai", "deepseek", "ollama"},
}

// PreferenceFor returns the ordered provider preference for a task, or nil
// when the task is unknown.
func PreferenceFor(task llm.TaskKind) []string {
	prefs, ok := taskPreferences[task]
	if !ok {
		return nil
	}
	out := make([]string, len(prefs))
	copy(out, prefs)
	return out
}
