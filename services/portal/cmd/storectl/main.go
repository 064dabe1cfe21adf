// Command storectl inspects and resets the persisted portal document.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"eduportal/pkg/kv"
	"eduportal/pkg/pdfdata"
	"eduportal/pkg/session"
	"eduportal/pkg/store"
	"eduportal/services/portal/internal/config"
)

const usage = "usage: storectl [-config path] dump|reset|stats|session"

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		exitErr(err)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("storectl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "portal config file (defaults to "+config.ConfigPath+")")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w\n%s", err, usage)
	}
	if fs.NArg() != 1 {
		return errors.New(usage)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	area, err := kv.New(kv.Config{
		Backend:       strings.ToLower(cfg.StoreBackend),
		DataDir:       cfg.DataDir,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisPrefix:   cfg.RedisPrefix,
		DatabaseURL:   cfg.DatabaseURL,
		QuotaBytes:    cfg.StoreQuotaBytes,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if c, ok := area.(io.Closer); ok {
		defer c.Close()
	}
	st := store.New(area, store.Options{Key: cfg.StoreKey})

	switch fs.Arg(0) {
	case "dump":
		doc, err := st.Snapshot(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "reset":
		if err := st.Reset(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "store reset to seed data")
		return nil
	case "stats":
		doc, err := st.Snapshot(ctx)
		if err != nil {
			return err
		}
		key := cfg.StoreKey
		if key == "" {
			key = store.DefaultKey
		}
		raw, _, err := area.Get(ctx, key)
		if err != nil {
			return err
		}
		downloadable := 0
		for _, b := range doc.Books {
			if !pdfdata.IsPlaceholder(b.PDFURL) {
				downloadable++
			}
		}
		fmt.Fprintf(out, "backend\t%s\nkey\t%s\nbytes\t%d\nusers\t%d\nbooks\t%d\ndownloadable\t%d\nreviews\t%d\nloginLogs\t%d\n",
			cfg.StoreBackend, key, len(raw), len(doc.Users), len(doc.Books), downloadable, len(doc.Reviews), len(doc.LoginLogs))
		return nil
	case "session":
		admin, err := session.NewAdminCredential(cfg.AdminUsername, cfg.AdminPassword)
		if err != nil {
			return err
		}
		m := session.NewManager(session.NewAuthenticator(st, admin, nil), area, nil)
		state := m.Restore(ctx)
		fmt.Fprintf(out, "state\t%s\n", state)
		if user, ok := m.Principal(); ok {
			fmt.Fprintf(out, "username\t%s\nrole\t%s\nadmin\t%t\n", user.Username, user.Role, m.IsAdmin())
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", fs.Arg(0), usage)
	}
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
