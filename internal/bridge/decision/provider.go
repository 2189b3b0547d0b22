// Package decision answers whether an action on an entry may proceed.
package decision

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledger-rail-bridge/internal/domain/entry"
	"github.com/ledger-rail-bridge/internal/domain/shared"
)

// Request is everything a provider may base its decision on
type Request struct {
	Side     shared.Side
	Action   entry.Action
	Handle   string
	Entry    *entry.Entry
	Transfer entry.Transfer // display fields, stored entry first then request payload
}

// Provider decides whether an action proceeds
type Provider interface {
	Decide(ctx context.Context, req Request) bool
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(ctx context.Context, req Request) bool

func (f ProviderFunc) Decide(ctx context.Context, req Request) bool {
	return f(ctx, req)
}

// AlwaysAccept accepts every action
type AlwaysAccept struct{}

func (AlwaysAccept) Decide(context.Context, Request) bool {
	return true
}

// Summary renders the request for a human, e.g.
//
//	CREDIT PREPARE
//	  Handle: H1
//	  Amount: 10 USD
func (r Request) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", strings.ToUpper(r.Side.String()), strings.ToUpper(string(r.Action)))
	fmt.Fprintf(&b, "  Handle: %s\n", r.Handle)
	if amount := r.Transfer.DisplayAmount(); amount != "" {
		fmt.Fprintf(&b, "  Amount: %s %s\n", amount, r.Transfer.Symbol.Handle)
	}
	if r.Transfer.Source.Handle != "" {
		fmt.Fprintf(&b, "  Source: %s\n", r.Transfer.Source.Handle)
	}
	if r.Transfer.Target.Handle != "" {
		fmt.Fprintf(&b, "  Target: %s\n", r.Transfer.Target.Handle)
	}
	return strings.TrimRight(b.String(), "\n")
}
