package main

import (
	"io"
	"os"

	"github.com/google/uuid"
)

// cmdOut is the writer the metric and dashboard --json output goes to.
// It always returns os.Stdout; human-readable output is written with
// fmt.Print* directly.
func cmdOut() io.Writer {
	return os.Stdout
}

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// resolveActorAndSource parses the --actor/--data-source flags shared
// by the metric and dashboard subcommands, defaulting actor to a fresh
// id when the caller has no identity of its own to supply (local/dev
// use; a real deployment always passes one explicitly).
func resolveActorAndSource() (actor uuid.UUID, dataSourceID uuid.UUID, err error) {
	actor = uuid.New()
	if metricActor != "" {
		actor, err = uuid.Parse(metricActor)
		if err != nil {
			return actor, dataSourceID, err
		}
	}
	if metricSource != "" {
		dataSourceID, err = uuid.Parse(metricSource)
		if err != nil {
			return actor, dataSourceID, err
		}
	}
	return actor, dataSourceID, nil
}
