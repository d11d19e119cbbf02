package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"time"

	"github.com/robert-malhotra/go-dataspace-client/pkg/stac"
)

// itemSummary is the per-item shape printed by search: enough to pick
// products for download without the full GeoJSON payload.
type itemSummary struct {
	ID         string    `json:"id"`
	Collection string    `json:"collection,omitempty"`
	Datetime   time.Time `json:"datetime,omitempty"`
	CloudCover any       `json:"cloud_cover,omitempty"`
	Assets     []string  `json:"assets,omitempty"`
	SizeBytes  int64     `json:"size_bytes,omitempty"`
}

func newItemSummary(item *stac.Item) *itemSummary {
	summary := &itemSummary{
		ID:         item.Id,
		Collection: item.Collection,
		Datetime:   item.Datetime(),
		CloudCover: item.Properties["eo:cloud_cover"],
	}
	for key, asset := range item.Assets {
		summary.Assets = append(summary.Assets, key)
		if size := asset.SizeBytes(); size > summary.SizeBytes {
			summary.SizeBytes = size
		}
	}
	return summary
}

// summarize converts an item sequence into a summary sequence, preserving
// errors and laziness.
func summarize(seq iter.Seq2[*stac.Item, error]) iter.Seq2[*itemSummary, error] {
	return func(yield func(*itemSummary, error) bool) {
		for item, err := range seq {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(newItemSummary(item), nil) {
				return
			}
		}
	}
}

func collectForCLI[T any](seq iter.Seq2[*T, error], marshal func(*T) ([]byte, error)) ([][]byte, error) {
	var (
		results [][]byte
		iterErr error
	)

	seq(func(value *T, err error) bool {
		if err != nil {
			iterErr = err
			return false
		}
		data, err := marshal(value)
		if err != nil {
			iterErr = err
			return false
		}
		results = append(results, data)
		return true
	})

	if iterErr != nil {
		return nil, iterErr
	}
	return results, nil
}

func printJSONArray(entries [][]byte) error {
	if _, err := fmt.Fprintln(os.Stdout, "["); err != nil {
		return err
	}
	for i, entry := range entries {
		if i > 0 {
			if _, err := fmt.Fprintln(os.Stdout, ","); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(os.Stdout, string(entry)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(os.Stdout, "]")
	return err
}

const interactivePageSize = 10

func printJSONArrayInteractive[T any](seq iter.Seq2[*T, error], marshal func(*T) ([]byte, error)) error {
	if _, err := fmt.Fprintln(os.Stdout, "["); err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	var (
		printedAny bool
		processed  int
		iterErr    error
	)

	seq(func(value *T, err error) bool {
		if err != nil {
			iterErr = err
			return false
		}

		data, err := marshal(value)
		if err != nil {
			iterErr = err
			return false
		}

		if printedAny {
			if _, err := fmt.Fprintln(os.Stdout, ","); err != nil {
				iterErr = err
				return false
			}
		}

		if _, err := fmt.Fprintln(os.Stdout, string(data)); err != nil {
			iterErr = err
			return false
		}

		printedAny = true
		processed++

		if processed%interactivePageSize == 0 {
			if _, err := fmt.Fprint(os.Stderr, "Press Enter to continue, or type 'q' to quit: "); err != nil {
				iterErr = err
				return false
			}

			input, err := reader.ReadString('\n')
			if err != nil {
				if errors.Is(err, io.EOF) {
					return true
				}
				iterErr = err
				return false
			}

			if strings.EqualFold(strings.TrimSpace(input), "q") {
				return false
			}
		}

		return true
	})

	if _, err := fmt.Fprintln(os.Stdout, "]"); err != nil && iterErr == nil {
		iterErr = err
	}
	return iterErr
}
