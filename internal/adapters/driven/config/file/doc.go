// Package file provides the file-based configuration adapters.
//
// Adapters:
//   - Config: typed settings loaded from config.toml, .env files and
//     SERCHA_RAG_* environment variables, then validated
//   - ConfigStore: dotted-key access to the same TOML file, used by the
//     `config get/set` commands
package file
