// Copyright 2025 Sonic Labs
// This file is part of Aida Testing Infrastructure for Sonic
//
// Aida is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Aida is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Aida. If not, see <http://www.gnu.org/licenses/>.

package statesource

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/0xsoniclabs/tryruntime/logger"
	"github.com/0xsoniclabs/tryruntime/state"
	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

const (
	defaultKeysPageSize = 1000
	defaultBatchSize    = 256
	defaultParallelism  = 8
)

// Twox128 returns the 128 bit xxhash used to derive pallet storage prefixes.
func Twox128(data []byte) []byte {
	out := make([]byte, 16)
	binary.LittleEndian.PutUint64(out[:8], xxhash.Sum64(data))
	h := xxhash.NewWithSeed(1)
	_, _ = h.Write(data)
	binary.LittleEndian.PutUint64(out[8:], h.Sum64())
	return out
}

// downloader copies the storage of a remote node into a backend.
type downloader struct {
	remote      Remote
	log         logger.Logger
	pageSize    uint32
	batchSize   int
	parallelism int
}

func newDownloader(remote Remote, log logger.Logger) *downloader {
	return &downloader{
		remote:      remote,
		log:         log,
		pageSize:    defaultKeysPageSize,
		batchSize:   defaultBatchSize,
		parallelism: defaultParallelism,
	}
}

// prefixes returns the key prefixes to download. No filter yields the
// empty prefix covering the whole state.
func prefixes(pallets []string, hashed [][]byte) [][]byte {
	out := make([][]byte, 0, len(pallets)+len(hashed))
	for _, p := range pallets {
		out = append(out, Twox128([]byte(p)))
	}
	out = append(out, hashed...)
	if len(out) == 0 {
		out = append(out, []byte{})
	}
	return out
}

// download fetches all keys under the given prefixes at block at. With a
// filter the well known keys needed to run the runtime are added.
// The returned backend is not sealed.
func (d *downloader) download(ctx context.Context, at common.Hash, filter [][]byte, childTree bool) (*state.Backend, error) {
	seen := make(map[string]struct{})
	var keys [][]byte
	for _, prefix := range filter {
		page, err := d.keys(ctx, prefix, at, func(count uint32, start []byte) ([][]byte, error) {
			return d.remote.KeysPaged(ctx, prefix, count, start, at)
		})
		if err != nil {
			return nil, err
		}
		for _, k := range page {
			if _, ok := seen[string(k)]; !ok {
				seen[string(k)] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	if len(filter) > 1 || len(filter[0]) > 0 {
		for _, k := range [][]byte{state.CodeKey, state.HeapPagesKey} {
			if _, ok := seen[string(k)]; !ok {
				seen[string(k)] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })

	values, err := d.values(ctx, keys, func(batch [][]byte) ([][]byte, error) {
		return d.remote.Storage(ctx, batch, at)
	})
	if err != nil {
		return nil, err
	}

	backend := state.NewBackend()
	var childKeys [][]byte
	for i, k := range keys {
		if values[i] == nil {
			continue
		}
		backend.Insert(k, values[i])
		if bytes.HasPrefix(k, state.DefaultChildPrefix) {
			childKeys = append(childKeys, k)
		}
	}
	d.log.Infof("Downloaded %d top level keys", backend.Len())

	if !childTree {
		return backend, nil
	}
	for _, childKey := range childKeys {
		if err = d.downloadChild(ctx, backend, childKey, at); err != nil {
			return nil, err
		}
	}
	if len(childKeys) > 0 {
		d.log.Infof("Downloaded %d child tries", len(childKeys))
	}
	return backend, nil
}

func (d *downloader) downloadChild(ctx context.Context, backend *state.Backend, childKey []byte, at common.Hash) error {
	keys, err := d.keys(ctx, nil, at, func(count uint32, start []byte) ([][]byte, error) {
		return d.remote.ChildKeysPaged(ctx, childKey, nil, count, start, at)
	})
	if err != nil {
		return fmt.Errorf("child trie %x; %w", childKey, err)
	}
	values, err := d.values(ctx, keys, func(batch [][]byte) ([][]byte, error) {
		return d.remote.ChildStorage(ctx, childKey, batch, at)
	})
	if err != nil {
		return fmt.Errorf("child trie %x; %w", childKey, err)
	}
	for i, k := range keys {
		if values[i] != nil {
			backend.InsertChild(childKey, k, values[i])
		}
	}
	return nil
}

// keys pages through all keys returned by fetch.
func (d *downloader) keys(ctx context.Context, prefix []byte, at common.Hash, fetch func(count uint32, start []byte) ([][]byte, error)) ([][]byte, error) {
	var (
		all   [][]byte
		start []byte
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := fetch(d.pageSize, start)
		if err != nil {
			return nil, fmt.Errorf("cannot fetch keys with prefix %x at %v; %w", prefix, at, err)
		}
		all = append(all, page...)
		if uint32(len(page)) < d.pageSize {
			return all, nil
		}
		start = page[len(page)-1]
		d.log.Debugf("Fetched %d keys with prefix %x", len(all), prefix)
	}
}

// values fetches the values of keys in parallel batches. The result is
// aligned with keys, missing entries are nil.
func (d *downloader) values(ctx context.Context, keys [][]byte, fetch func(batch [][]byte) ([][]byte, error)) ([][]byte, error) {
	values := make([][]byte, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.parallelism)
	for from := 0; from < len(keys); from += d.batchSize {
		to := min(from+d.batchSize, len(keys))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			batch, err := fetch(keys[from:to])
			if err != nil {
				return fmt.Errorf("cannot fetch values; %w", err)
			}
			if len(batch) != to-from {
				return fmt.Errorf("expected %d values, got %d", to-from, len(batch))
			}
			copy(values[from:to], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}
