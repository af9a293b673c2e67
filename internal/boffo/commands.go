package boffo

import (
	"context"
	"fmt"
	"sort"

	"boffo/internal/folio"
)

// Args carries the parameters of a dispatched command. Each command reads
// only the fields it needs.
type Args struct {
	Barcodes []string `json:"barcodes,omitempty"`
	First    string   `json:"first,omitempty"`
	Last     string   `json:"last,omitempty"`
	Location string   `json:"location,omitempty"`
	Flags    []bool   `json:"flags,omitempty"`
}

// Command is one entry of the dispatch table.
type Command func(ctx context.Context, s *Service, host Host, args Args) (any, error)

var commands = map[string]Command{
	OpLookupByBarcodes: func(ctx context.Context, s *Service, host Host, args Args) (any, error) {
		return s.LookupByBarcodes(ctx, host, args.Barcodes)
	},
	OpLookupByCallNumberRange: func(ctx context.Context, s *Service, host Host, args Args) (any, error) {
		return s.LookupByCallNumberRange(ctx, host, args.First, args.Last, args.Location)
	},
	OpListLocations: func(ctx context.Context, s *Service, host Host, _ Args) (any, error) {
		return s.ListLocations(ctx, host)
	},
	OpGetEnabledFieldNames: func(ctx context.Context, s *Service, _ Host, _ Args) (any, error) {
		return s.GetEnabledFieldNames(ctx)
	},
	OpSetFieldSelections: func(ctx context.Context, s *Service, _ Host, args Args) (any, error) {
		if err := s.SetFieldSelections(ctx, args.Flags); err != nil {
			return nil, err
		}
		return s.GetEnabledFieldNames(ctx)
	},
	OpLogout: func(ctx context.Context, s *Service, _ Host, _ Args) (any, error) {
		return nil, s.Logout(ctx)
	},
}

// Commands returns the names Dispatch accepts, sorted.
func Commands() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the command called name.
func (s *Service) Dispatch(ctx context.Context, host Host, name string, args Args) (any, error) {
	cmd, ok := commands[name]
	if !ok {
		return nil, &folio.Error{Kind: folio.KindConfig, Op: "dispatch", Detail: fmt.Sprintf("unknown command %q", name)}
	}
	return cmd(ctx, s, host, args)
}
