// Package services defines shared utilities consumed by pipeline stages and
// the external integrations under internal/services/*.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs and stage names for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (configuration, storage, external) without string matching.
//
// Integrations with Gmail, the LLM endpoint, and article web pages live in
// subpackages, next to the Scholar alert extractor.
package services
