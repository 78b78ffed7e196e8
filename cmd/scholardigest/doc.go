// Package main hosts the scholardigest CLI entrypoint and command graph.
//
// The Cobra-based command tree wires the Gmail source, alert extractor,
// relevance scorer, web fetcher, and report renderer into a pipeline run,
// and exposes the record store and watermark for inspection and repair.
// Configuration resolution, logger setup, and the run lock live here so
// subcommands can stay small.
//
// Keep this package lean: add behavior to the internal packages first, then
// surface it through a command or flag here.
package main
