// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Interfaces
//
//   - ContentExtractor: Turns a path or URI into plain text (one per format)
//   - TextSplitter: Turns extracted text into ordered, bounded chunks
//   - EmbeddingGenerator: Turns text into fixed-dimension vectors
//   - VectorMemory: Durable chunk storage with similarity search
//   - ProgressSink: Best-effort, one-way progress reporting
//   - ConfigStore: Flat key/value settings persistence
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, extractor, or splitter package
package driven
