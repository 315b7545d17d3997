package main

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"ambientsaga/internal/mcp"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		RunE:  runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	server := mcp.NewServer(mcp.Deps{
		Dispatcher: a.dispatcher,
		States:     a.service,
		Log:        a.store,
		Cache:      a.cache,
		World:      a.world,
		Version:    version,
	})
	return server.Run(ctx, &sdk.StdioTransport{})
}
