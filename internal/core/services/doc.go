// Package services implements the driving ports: document ingestion and
// retrieval. Services orchestrate the driven ports (extractors, splitter,
// embedding generator, vector memory) and contain no storage or network
// code of their own.
package services
