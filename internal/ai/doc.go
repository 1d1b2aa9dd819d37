// Package ai is the gateway between assistant operations and an inference
// provider.
//
// A Gateway turns domain requests (frame analysis, text simplification,
// checklist generation) into provider prompts, calls the provider selected in
// the settings record, and converts the free-form reply into typed results.
// Replies are parsed by Extract, an ordered pipeline that tries the whole text
// as JSON, then a fenced code block, then the first balanced object or array
// embedded in prose. When every strategy fails the caller's default result is
// used instead of failing the request.
//
// Providers:
//   - gemini: REST generateContent endpoint over net/http with retry
//   - gemini-sdk: the google.golang.org/genai client
//   - mock: deterministic canned replies for offline use and tests
//
// Missing or placeholder API keys are rejected before any network call.
// Confusion scoring is a pure function of a behavior sample.
package ai
