package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codibre/tree-key-cache-storage/janitor"
	"github.com/codibre/tree-key-cache-storage/storage"
	"github.com/codibre/tree-key-cache-storage/userconfig"
)

const usage = `usage: treekv [-config path] [-level level] <command> [args]

commands:
  get <key>
  set [-ttl duration] <key> <value>
  ttl <key>
  history [-limit n] <key>
  children [parent]
  register <parent> <child>
  scan [-pattern glob] [-limit n]
  clear-children
  probe
  gc [-every interval]
`

func main() {
	// Log with filename and line number. This writes to stderr, so it should
	// be thread safe.
	log.Logger = log.With().Caller().Logger()

	configPath := flag.String(
		"config",
		"./config.yaml",
		"path to a YAML file containing your storage configuration",
	)
	level := flag.String(
		"level",
		"info",
		`log level: "info", "debug", or "warn"`,
	)
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	switch *level {
	case "debug":
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	case "warn":
		log.Logger = log.Logger.Level(zerolog.WarnLevel)
	default:
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	f, err := os.Open(*configPath)
	if err != nil {
		log.Error().
			Str("config-path", *configPath).
			Err(err).
			Msg("We can't open the storage config file")
		os.Exit(1)
	}
	config, err := userconfig.Parse(f)
	f.Close()
	if err != nil {
		log.Error().
			Err(err).
			Msg("Problem parsing your config")
		os.Exit(1)
	}

	// Abandon in-flight requests on an interrupt
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if config.BufferMode {
		err = open[[]byte](ctx, config, flag.Args(), os.Stdout)
	} else {
		err = open[string](ctx, config, flag.Args(), os.Stdout)
	}
	if err != nil {
		log.Error().Err(err).Str("command", flag.Arg(0)).Msg("command failed")
		os.Exit(1)
	}
}

func open[V storage.Value](ctx context.Context, config *userconfig.Meta, args []string, out io.Writer) error {
	h, err := userconfig.Build[V](config)
	if err != nil {
		return err
	}
	defer func() {
		if err := h.Close(); err != nil {
			log.Warn().Err(err).Msg("problem closing the storage")
		}
	}()

	log.Debug().
		Str("mode", h.Meta.Mode).
		Str("backend", h.Meta.Backend).
		Msg("successfully validated the config")

	return execute(ctx, h, args, out)
}

var errUsage = errors.New("wrong arguments")

// execute runs one command against the storage of h, writing results to out
// one per line.
func execute[V storage.Value](ctx context.Context, h *userconfig.Handle[V], args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	st := h.Storage
	cmd, args := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	switch cmd {
	case "get":
		if err := parseArgs(fs, args, 1); err != nil {
			return err
		}
		v, found, err := st.Get(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		if !found {
			fmt.Fprintln(out, "(nil)")
			return nil
		}
		fmt.Fprintln(out, string(v))

	case "set":
		ttl := fs.Duration("ttl", -1, "time to live, overriding the default; 0 means no expiry")
		if err := parseArgs(fs, args, 2); err != nil {
			return err
		}
		key, value := fs.Arg(0), V(fs.Arg(1))
		if *ttl >= 0 {
			return st.SetWithTTL(ctx, key, value, *ttl)
		}
		return st.Set(ctx, key, value)

	case "ttl":
		if err := parseArgs(fs, args, 1); err != nil {
			return err
		}
		ttl, found, err := st.GetCurrentTTL(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		if !found {
			fmt.Fprintln(out, "(no expiry)")
			return nil
		}
		fmt.Fprintln(out, ttl)

	case "history":
		limit := fs.Int("limit", 0, "stop after this many values; 0 means all")
		if err := parseArgs(fs, args, 1); err != nil {
			return err
		}
		seq, err := st.GetHistory(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		n := 0
		for v, err := range seq {
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(v))
			if n++; n == *limit {
				break
			}
		}

	case "children":
		if err := fs.Parse(args); err != nil || fs.NArg() > 1 {
			return errUsage
		}
		seq, err := st.GetChildren(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		return printAll(out, seq, 0)

	case "register":
		if err := parseArgs(fs, args, 2); err != nil {
			return err
		}
		return st.RegisterChild(ctx, fs.Arg(0), fs.Arg(1))

	case "scan":
		pattern := fs.String("pattern", "", "glob the keys must match")
		limit := fs.Int("limit", 0, "stop after this many keys; 0 means all")
		if err := parseArgs(fs, args, 0); err != nil {
			return err
		}
		return printAll(out, st.RandomIterate(ctx, *pattern), *limit)

	case "clear-children":
		if err := parseArgs(fs, args, 0); err != nil {
			return err
		}
		return st.ClearAllChildrenRegistry(ctx)

	case "probe":
		if err := parseArgs(fs, args, 0); err != nil {
			return err
		}
		return probe(ctx, st, out)

	case "gc":
		every := fs.Duration("every", 0, "keep collecting at this interval until interrupted")
		if err := parseArgs(fs, args, 0); err != nil {
			return err
		}
		if *every <= 0 {
			return janitor.Run(h)
		}
		ticker := time.NewTicker(*every)
		defer ticker.Stop()
		return janitor.StartLoop(ctx, &janitor.Config{TickCh: ticker.C}, h)

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
	return nil
}

func parseArgs(fs *flag.FlagSet, args []string, want int) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != want {
		return fmt.Errorf("%w: %s takes %d arguments, got %d", errUsage, fs.Name(), want, fs.NArg())
	}
	return nil
}

func printAll(out io.Writer, seq func(func(string, error) bool), limit int) error {
	n := 0
	for item, err := range seq {
		if err != nil {
			return err
		}
		fmt.Fprintln(out, item)
		if n++; n == limit {
			break
		}
	}
	return nil
}

const probeTTL = time.Minute

// probe writes a throwaway value under a random key and reads it back, the
// way the storage mode allows.
func probe[V storage.Value](ctx context.Context, st storage.Storage[V], out io.Writer) error {
	key := "treekv-probe:" + uuid.NewString()
	want := uuid.NewString()
	if err := st.SetWithTTL(ctx, key, V(want), probeTTL); err != nil {
		return err
	}

	got, found, err := st.Get(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		seq, err := st.GetHistory(ctx, key)
		if err != nil {
			return fmt.Errorf("can't read the probe key %q back: %v", key, err)
		}
		for v, err := range seq {
			if err != nil {
				return err
			}
			got, found = v, true
			break
		}
	}
	if !found || string(got) != want {
		return fmt.Errorf("the probe key %q didn't hold the value written to it", key)
	}

	log.Info().Str("key", key).Dur("ttl", probeTTL).Msg("probe succeeded")
	fmt.Fprintln(out, key)
	return nil
}
