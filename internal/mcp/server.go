// Package mcp exposes saga state and a subset of commands as MCP tools.
package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"ambientsaga/internal/command"
	"ambientsaga/internal/replay"
	"ambientsaga/internal/store"
	"ambientsaga/internal/txn"
	"ambientsaga/internal/world"
)

// Dispatcher runs commands through the pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd command.Command) (command.Result, error)
}

// StateReader folds one saga instance of an avatar.
type StateReader interface {
	State(ctx context.Context, avatarID, sagaRef string) (replay.State, error)
}

// LogReader is the read side of the transaction store.
type LogReader interface {
	ResolveInstance(ctx context.Context, avatarID, sagaRef string, create bool) (store.Instance, error)
	ReadAll(ctx context.Context, instanceID string) ([]txn.Transaction, error)
	ReadAllForAvatar(ctx context.Context, avatarID string) (map[string][]txn.Transaction, error)
}

type Deps struct {
	Dispatcher Dispatcher
	States     StateReader
	Log        LogReader
	Cache      *replay.Cache
	World      *world.Host
	Version    string
}

type Server struct {
	dispatcher Dispatcher
	states     StateReader
	log        LogReader
	cache      *replay.Cache
	world      *world.Host
	mcp        *sdk.Server
}

func NewServer(deps Deps) *Server {
	cache := deps.Cache
	if cache == nil {
		cache = replay.NewCache()
	}
	s := &Server{
		dispatcher: deps.Dispatcher,
		states:     deps.States,
		log:        deps.Log,
		cache:      cache,
		world:      deps.World,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "ambientsaga",
			Version: deps.Version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
