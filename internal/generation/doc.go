// Package generation provides interfaces and implementations for interacting
// with external AI/LLM services for structured artifact generation. It
// abstracts the details of LLM API integration (Gemini), allowing the
// application to turn normalized documents into schema-validated artifacts
// without coupling to specific external services.
package generation
