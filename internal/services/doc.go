// Package services defines shared utilities consumed by the processing
// components and the HTTP API.
//
// Key responsibilities:
//   - Context helpers that stamp request IDs and stage names for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified into API status codes and journal entries.
//   - A poison-aware mutex guarding the shared registries.
package services
