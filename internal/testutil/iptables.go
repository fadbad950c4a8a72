package testutil

import (
	"context"
	"strings"
	"sync"

	"blockwatch/internal/firewall"
)

// FakeIPTables is a firewall.Runner that keeps iptables chains in memory. It
// understands -S, -I and -D, which is all the iptables backend issues.
type FakeIPTables struct {
	mu         sync.Mutex
	chains     map[string][]string
	failDelete string
}

func NewFakeIPTables() *FakeIPTables {
	return &FakeIPTables{chains: map[string][]string{}}
}

func (f *FakeIPTables) Run(_ context.Context, name string, args ...string) (firewall.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := name + "/" + args[1]
	switch args[0] {
	case "-S":
		out := "-P " + args[1] + " ACCEPT\n"
		for _, line := range f.chains[key] {
			out += line + "\n"
		}
		return firewall.Result{Stdout: out}, nil
	case "-I":
		f.chains[key] = append([]string{listedRule(args[1], args[3:])}, f.chains[key]...)
		return firewall.Result{}, nil
	case "-D":
		if args[1] == f.failDelete {
			return firewall.Result{ExitCode: 1, Stderr: "iptables: Resource temporarily unavailable."}, nil
		}
		line := listedRule(args[1], args[2:])
		for i, existing := range f.chains[key] {
			if existing == line {
				f.chains[key] = append(f.chains[key][:i:i], f.chains[key][i+1:]...)
				return firewall.Result{}, nil
			}
		}
		return firewall.Result{ExitCode: 1, Stderr: "iptables: Bad rule (does a matching rule exist in that chain?)."}, nil
	}

	return firewall.Result{ExitCode: 2, Stderr: "unknown option"}, nil
}

// Rules returns the rules of chain as iptables -S prints them.
func (f *FakeIPTables) Rules(bin, chain string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.chains[bin+"/"+chain]...)
}

// Flush empties chain, as an operator running iptables -F would.
func (f *FakeIPTables) Flush(bin, chain string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.chains, bin+"/"+chain)
}

// SetFailDelete makes every -D on chain exit with status 1.
func (f *FakeIPTables) SetFailDelete(chain string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failDelete = chain
}

// listedRule renders an inserted rule the way iptables -S lists it.
func listedRule(chain string, spec []string) string {
	out := make([]string, 0, len(spec))
	for i, field := range spec {
		switch {
		case i > 0 && (spec[i-1] == "-s" || spec[i-1] == "-d") && !strings.Contains(field, "/"):
			if strings.Contains(field, ":") {
				field += "/128"
			} else {
				field += "/32"
			}
		case i > 0 && spec[i-1] == "--comment":
			field = `"` + strings.Trim(field, `"`) + `"`
		}
		out = append(out, field)
	}
	return "-A " + chain + " " + strings.Join(out, " ")
}
