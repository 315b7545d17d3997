package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ambientsaga/internal/sagaerr"
)

func logCmd() *cobra.Command {
	var afterSeq uint64
	cmd := &cobra.Command{
		Use:   "log <avatar> <saga>",
		Short: "Print the transactions of a saga instance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(args[0], args[1], afterSeq)
		},
	}
	cmd.Flags().Uint64Var(&afterSeq, "after", 0, "Only print transactions after this sequence number")
	return cmd
}

func runLog(avatarID, sagaRef string, afterSeq uint64) error {
	ctx := context.Background()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	inst, err := a.store.ResolveInstance(ctx, avatarID, sagaRef, false)
	if errors.Is(err, sagaerr.ErrNotFound) {
		fmt.Fprintf(os.Stdout, "No instance for %q in saga %q.\n", avatarID, sagaRef)
		return nil
	}
	if err != nil {
		return err
	}
	txs, err := a.store.ReadAll(ctx, inst.InstanceID)
	if err != nil {
		return err
	}

	for _, tx := range txs {
		if tx.Seq <= afterSeq {
			continue
		}
		fields := make([]string, 0, len(tx.Payload))
		for _, key := range sortedKeys(tx.Payload) {
			fields = append(fields, key+"="+tx.Payload[key])
		}
		fmt.Fprintf(os.Stdout, "%4d  %s  %-24s %s\n",
			tx.Seq, tx.Timestamp.Format(time.RFC3339), tx.Kind, strings.Join(fields, " "))
	}
	return nil
}
