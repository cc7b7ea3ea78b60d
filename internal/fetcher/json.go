package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/rotisserie/eris"
)

// DecodeJSONArray streams the elements of a top-level JSON array. Empty
// input yields no elements and no error. Both channels are closed when the
// array ends, decoding fails or ctx is done.
func DecodeJSONArray[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		if err := decodeArray(ctx, json.NewDecoder(r), outCh); err != nil {
			errCh <- err
		}
	}()

	return outCh, errCh
}

func decodeArray[T any](ctx context.Context, dec *json.Decoder, outCh chan<- T) error {
	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return eris.Wrap(err, "json: read opening token")
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return eris.Errorf("json: expected '[', got %v", tok)
	}

	for dec.More() {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "json: context cancelled")
		}
		var item T
		if err := dec.Decode(&item); err != nil {
			return eris.Wrap(err, "json: decode element")
		}
		select {
		case outCh <- item:
		case <-ctx.Done():
			return eris.Wrap(ctx.Err(), "json: context cancelled")
		}
	}

	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return eris.Wrap(err, "json: read closing token")
	}
	return nil
}

// collect drains a DecodeJSONArray pair.
func collect[T any](outCh <-chan T, errCh <-chan error) ([]T, error) {
	var items []T
	for item := range outCh {
		items = append(items, item)
	}
	return items, <-errCh
}
