package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/robert-malhotra/go-dataspace-client/pkg/stac"
)

type collectionSummary struct {
	ID          string       `json:"id"`
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Extent      *stac.Extent `json:"extent,omitempty"`
}

func newCollectionSummary(collection *stac.Collection) *collectionSummary {
	return &collectionSummary{
		ID:          collection.Id,
		Title:       collection.Title,
		Description: collection.Description,
		Extent:      collection.Extent,
	}
}

func newCollectionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "collections",
		Usage: "Inspect catalog collections",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List available collections",
				Action: listCollectionsAction,
			},
			{
				Name:      "get",
				Usage:     "Fetch a collection by id",
				ArgsUsage: "<collection-id>",
				Action:    getCollectionAction,
			},
		},
	}
}

func listCollectionsAction(ctx context.Context, cmd *cli.Command) error {
	client, cleanup, err := newClientFromCommand(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := client.Collections().List(ctx)
	if err != nil {
		return err
	}

	entries := make([][]byte, 0, len(result.Collections))
	for _, collection := range result.Collections {
		data, err := json.MarshalIndent(newCollectionSummary(collection), "", "  ")
		if err != nil {
			return err
		}
		entries = append(entries, data)
	}
	return printJSONArray(entries)
}

func getCollectionAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected 1 argument: collection id")
	}

	client, cleanup, err := newClientFromCommand(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	collection, err := client.Collections().Get(ctx, cmd.Args().First())
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(collection, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(data))
	return nil
}
