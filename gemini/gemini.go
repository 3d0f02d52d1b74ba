// Package gemini implements a praxis transport that talks to Gemini
// directly, for running the tutor without its backend.
//
// It wraps the google.golang.org/genai SDK. Conversations are kept in memory
// and keyed by session tokens the client mints itself. Replies are streamed
// as plain text through an [io.Pipe], the same shape the HTTP backend
// produces.
package gemini

import "github.com/fwojciec/praxis"

const defaultModel = "gemini-2.5-flash"

// defaultSystemPrompt is used for modules without a prompt of their own.
const defaultSystemPrompt = "You are a helpful AI Tutor."

// systemPrompts holds the tutor persona for each module.
var systemPrompts = map[string]string{
	"assessment":         "You are an AI Tutor conducting an assessment. Ask the user questions to gauge their understanding of AI and Prompt Engineering. Ask one question at a time. Be encouraging but objective.",
	"fundamentals":       "You are an AI Tutor teaching Prompting Fundamentals. Explain concepts clearly, use examples, and ensure the user understands before moving on. Topics: Zero-shot, Few-shot, Chain of thought.",
	"advanced":           "You are an expert AI Tutor teaching Advanced Prompting. Cover topics like ReAct, Self-Consistency, and Prompt Chaining. Assume the user has basic knowledge.",
	"practice":           "You are a Practice Partner. Give the user coding or writing challenges and provide feedback on their prompts. Don't just give the answer, guide them.",
	"genai_fundamentals": "You are an AI Tutor teaching Generative AI Fundamentals. Explain how LLMs work, tokens, context windows, and temperature. Keep it accessible.",
}

// modules is the catalogue offered in standalone mode, in display order.
var modules = []praxis.Module{
	{ID: "assessment", Title: "Assessment", Description: "Gauge your current knowledge level."},
	{ID: "fundamentals", Title: "Prompting Fundamentals", Description: "Learn the basics of interacting with AI."},
	{ID: "advanced", Title: "Advanced Prompting", Description: "Master complex prompting techniques."},
	{ID: "practice", Title: "Practice Prompting", Description: "Hands-on exercises to refine your skills."},
	{ID: "genai_fundamentals", Title: "Generative AI Fundamentals", Description: "Understand the core concepts of GenAI."},
}

// SystemPrompt returns the tutor persona for a module.
func SystemPrompt(moduleID string) string {
	if p, ok := systemPrompts[moduleID]; ok {
		return p
	}
	return defaultSystemPrompt
}
