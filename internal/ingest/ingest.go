// Package ingest moves saga logs in and out of a store as JSON lines.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"ambientsaga/internal/replay"
	"ambientsaga/internal/sagaerr"
	"ambientsaga/internal/store"
	"ambientsaga/internal/txn"
)

type Result struct {
	Instances    int
	Transactions int
	Skipped      int
	Errors       []error
}

type ExportOptions struct {
	// SagaRef limits the export to one saga. Empty exports every saga.
	SagaRef string
}

// Export writes every instance log of avatarID to w.
func Export(ctx context.Context, r Reader, w io.Writer, avatarID string, options ExportOptions) (*Result, error) {
	instances, err := r.ListInstances(ctx, avatarID)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}

	bw := bufio.NewWriter(w)
	result := &Result{}
	for _, inst := range instances {
		if options.SagaRef != "" && !strings.EqualFold(inst.SagaRef, options.SagaRef) {
			continue
		}
		txs, err := r.ReadAll(ctx, inst.InstanceID)
		if err != nil && !errors.Is(err, sagaerr.ErrNotFound) {
			return nil, fmt.Errorf("read instance %s: %w", inst.InstanceID, err)
		}
		if err := writeLine(bw, lineInstance, inst); err != nil {
			return nil, err
		}
		for _, tx := range txs {
			if err := writeLine(bw, lineTransaction, tx); err != nil {
				return nil, err
			}
		}
		result.Instances++
		result.Transactions += len(txs)
	}
	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("flush export: %w", err)
	}
	return result, nil
}

func writeLine(w *bufio.Writer, kind string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", kind, err)
	}
	line, err := json.Marshal(Line{Type: kind, Data: data})
	if err != nil {
		return fmt.Errorf("encoding %s line: %w", kind, err)
	}
	if _, err := w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("writing %s: %w", kind, err)
	}
	return nil
}

type block struct {
	instance store.Instance
	txs      []txn.Transaction
}

// Import reads blocks written by Export and appends them through the store
// contract. Each block must replay cleanly before anything is written. A
// block whose prefix is already stored (matched by transaction id) only
// appends the rest, so importing the same file twice is a no-op. Blocks
// that fail are reported in Result.Errors and do not stop the import.
func Import(ctx context.Context, w Writer, r io.Reader) (*Result, error) {
	blocks, err := readBlocks(r)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, b := range blocks {
		appended, skipped, err := importBlock(ctx, w, b)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("instance %s (%s/%s): %w",
				b.instance.InstanceID, b.instance.AvatarID, b.instance.SagaRef, err))
			continue
		}
		result.Instances++
		result.Transactions += appended
		result.Skipped += skipped
	}
	return result, nil
}

func readBlocks(r io.Reader) ([]block, error) {
	var blocks []block
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var line Line
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		switch line.Type {
		case lineInstance:
			var inst store.Instance
			if err := json.Unmarshal(line.Data, &inst); err != nil {
				return nil, fmt.Errorf("line %d: decoding instance: %w", lineNo, err)
			}
			if inst.AvatarID == "" || inst.SagaRef == "" {
				return nil, fmt.Errorf("line %d: instance needs avatar and saga", lineNo)
			}
			blocks = append(blocks, block{instance: inst})
		case lineTransaction:
			if len(blocks) == 0 {
				return nil, fmt.Errorf("line %d: transaction before any instance", lineNo)
			}
			var tx txn.Transaction
			if err := json.Unmarshal(line.Data, &tx); err != nil {
				return nil, fmt.Errorf("line %d: decoding transaction: %w", lineNo, err)
			}
			cur := &blocks[len(blocks)-1]
			cur.txs = append(cur.txs, tx)
		default:
			return nil, fmt.Errorf("line %d: unknown line type %q", lineNo, line.Type)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading import: %w", err)
	}
	return blocks, nil
}

func importBlock(ctx context.Context, w Writer, b block) (appended, skipped int, err error) {
	if _, err := replay.Fold(b.txs); err != nil {
		return 0, 0, err
	}

	inst, err := w.ResolveInstance(ctx, b.instance.AvatarID, b.instance.SagaRef, true)
	if err != nil {
		return 0, 0, fmt.Errorf("resolve instance: %w", err)
	}
	existing, err := w.ReadAll(ctx, inst.InstanceID)
	if err != nil && !errors.Is(err, sagaerr.ErrNotFound) {
		return 0, 0, fmt.Errorf("read instance: %w", err)
	}
	if len(existing) > len(b.txs) {
		return 0, 0, fmt.Errorf("store holds %d transactions, file only %d", len(existing), len(b.txs))
	}
	for i, tx := range existing {
		if tx.ID != b.txs[i].ID {
			return 0, 0, fmt.Errorf("seq %d: stored transaction %s differs from imported %s", tx.Seq, tx.ID, b.txs[i].ID)
		}
	}

	rest := b.txs[len(existing):]
	if len(rest) == 0 {
		return 0, len(existing), nil
	}
	if _, err := w.Append(ctx, inst.InstanceID, uint64(len(existing)), rest...); err != nil {
		return 0, 0, err
	}
	return len(rest), len(existing), nil
}
