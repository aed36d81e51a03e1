// Package keyctl implements the operator command for runtime config keys.
package keyctl

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/phone-auth-api/internal/domain"
)

// ErrUsage is returned when the command line does not name a known action.
var ErrUsage = errors.New("usage: keyctl [-json] list | get NAME | set NAME VALUE | update ID NAME VALUE")

// KeyManager is satisfied by keys.Manager.
type KeyManager interface {
	String(ctx context.Context, name, def string) (string, error)
	Set(ctx context.Context, name, value string) (*domain.ConfigKey, error)
	Update(ctx context.Context, keyID, name, value string) (*domain.ConfigKey, error)
	List(ctx context.Context) ([]domain.ConfigKey, error)
}

// Config holds parsed command-line options.
type Config struct {
	JSON   bool
	Action string
	Args   []string
}

// ParseConfig parses flags and the positional action into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	fs.BoolVar(&cfg.JSON, "json", false, "print keys as JSON")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return Config{}, ErrUsage
	}
	cfg.Action, cfg.Args = rest[0], rest[1:]
	want := map[string]int{"list": 0, "get": 1, "set": 2, "update": 3}
	n, ok := want[cfg.Action]
	if !ok || len(cfg.Args) != n {
		return Config{}, ErrUsage
	}
	return cfg, nil
}

// Run executes the parsed action against m and writes the result to out.
func Run(ctx context.Context, cfg Config, m KeyManager, out io.Writer) error {
	switch cfg.Action {
	case "list":
		ks, err := m.List(ctx)
		if err != nil {
			return err
		}
		sort.Slice(ks, func(i, j int) bool { return ks[i].Name < ks[j].Name })
		return printKeys(out, cfg.JSON, ks)
	case "get":
		v, err := m.String(ctx, cfg.Args[0], "")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, v)
		return err
	case "set":
		k, err := m.Set(ctx, cfg.Args[0], cfg.Args[1])
		if err != nil {
			return err
		}
		return printKeys(out, cfg.JSON, []domain.ConfigKey{*k})
	case "update":
		k, err := m.Update(ctx, cfg.Args[0], cfg.Args[1], cfg.Args[2])
		if err != nil {
			return err
		}
		return printKeys(out, cfg.JSON, []domain.ConfigKey{*k})
	default:
		return ErrUsage
	}
}

func printKeys(out io.Writer, asJSON bool, ks []domain.ConfigKey) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(ks)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tVALUE")
	for _, k := range ks {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", k.KeyID, k.Name, k.Value)
	}
	return tw.Flush()
}
