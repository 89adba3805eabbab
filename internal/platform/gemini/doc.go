// Package gemini provides the Gemini-backed implementation of the
// generation.Generator interface. It owns the versioned prompt templates,
// the system prompt assembly that embeds the output schema, and the
// single-repair flow that gives the model one chance to fix invalid
// output before the failure becomes terminal.
package gemini
