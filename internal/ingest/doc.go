// Package ingest drives an events file through projection.
//
// Lines are read in order and applied one at a time. Each line is decoded,
// filtered by the admissible time window, validated and handed to the
// projection coordinator. Lines that cannot be applied are skipped or
// rejected and counted in the run's Report; only store failures stop a run.
//
// The package also loads the countries reference file.
package ingest
