package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/shrek82/jpersist/middleware"
	"github.com/shrek82/jpersist/persist"
	"github.com/shrek82/jpersist/source"
)

type writeOptions struct {
	record    string
	array     bool
	path      string
	sets      []string
	redisList string
	redisKey  string
}

var writeOpts writeOptions

func init() {
	rootCmd.AddCommand(writeCmd)

	flags := writeCmd.Flags()
	flags.StringVarP(&writeOpts.record, "record", "r", "", "record type of the documents (required)")
	flags.BoolVar(&writeOpts.array, "array", false, "the documents (or --path) hold an array of records")
	flags.StringVar(&writeOpts.path, "path", "", "dotted path of object keys leading to the record(s)")
	flags.StringArrayVar(&writeOpts.sets, "set", nil, "override a value before writing, as path=value (repeatable)")
	flags.StringVar(&writeOpts.redisList, "redis-list", "", "pop documents from this Redis list until it is empty")
	flags.StringVar(&writeOpts.redisKey, "redis-key", "", "read one document from this Redis string key")
	flags.String("redis-addr", "localhost:6379", "Redis server address")
	flags.String("redis-password", "", "Redis password")
	flags.Int("redis-db", 0, "Redis database")
	flags.Bool("keep-stale-children", false, "keep one-to-many children missing from a rewritten collection")
	flags.Bool("quiet-unmapped-keys", false, "do not warn about JSON keys without a field")
	writeCmd.MarkFlagRequired("record")

	for _, name := range []string{"redis-addr", "redis-password", "redis-db", "keep-stale-children", "quiet-unmapped-keys"} {
		viper.BindPFlag(name, flags.Lookup(name))
	}
}

var writeCmd = &cobra.Command{
	Use:   "write [files...]",
	Short: "Write JSON documents from files, stdin or Redis",
	Long: `Write persists each document in its own transaction and prints the identities
of the written records, one per line. Without files or a Redis source the document
is read from standard input; "-" also names standard input.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		sources, err := writeOpts.sources(args)
		if err != nil {
			return err
		}

		a, err := newApp(cfg, logOutput)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		e := a.engine()
		for _, src := range sources {
			err := writeSource(ctx, e, src, &writeOpts, cmd.OutOrStdout())
			src.Close()
			if err != nil {
				return err
			}
		}
		return nil
	},
}

func (o *writeOptions) sources(args []string) ([]source.Source, error) {
	if o.redisList != "" && o.redisKey != "" {
		return nil, fmt.Errorf("--redis-list and --redis-key are mutually exclusive")
	}
	redisOpts := &redis.Options{
		Addr:     viper.GetString("redis-addr"),
		Password: viper.GetString("redis-password"),
		DB:       viper.GetInt("redis-db"),
	}

	var out []source.Source
	switch {
	case o.redisList != "":
		out = append(out, source.NewRedis(redisOpts, o.redisList, source.RedisList))
	case o.redisKey != "":
		out = append(out, source.NewRedis(redisOpts, o.redisKey, source.RedisString))
	case len(args) == 0:
		args = []string{"-"}
	}
	for _, path := range args {
		s, err := source.Open(path)
		if err != nil {
			for _, s := range out {
				s.Close()
			}
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// writeSource persists every document of src, one transaction each.
func writeSource(ctx context.Context, e *persist.Engine, src source.Source, o *writeOptions, out io.Writer) error {
	ctx = middleware.WithSource(ctx, src.Name())
	for n := 1; ; n++ {
		data, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		docCtx := middleware.WithRequestID(ctx, fmt.Sprintf("%s#%d", src.Name(), n))
		ids, err := writeDocument(docCtx, e, data, o)
		if err != nil {
			if rq, ok := src.(interface {
				Requeue(context.Context, []byte) error
			}); ok {
				if rqErr := rq.Requeue(ctx, data); rqErr != nil {
					e.Logger().Error("%v", rqErr)
				}
			}
			return fmt.Errorf("%s: document %d: %w", src.Name(), n, err)
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
	}
}

func writeDocument(ctx context.Context, e *persist.Engine, data []byte, o *writeOptions) ([]any, error) {
	data, err := applySets(data, o.sets)
	if err != nil {
		return nil, err
	}

	switch {
	case o.array && o.path != "":
		return e.WriteArrayAt(ctx, o.record, data, o.path)
	case o.array:
		return e.WriteArray(ctx, o.record, data)
	case o.path != "":
		id, err := e.WriteObjectAt(ctx, o.record, data, o.path)
		if err != nil {
			return nil, err
		}
		return []any{id}, nil
	}
	return e.Write(ctx, o.record, data)
}

// applySets applies path=value overrides. A value that is valid JSON is set
// as is, anything else as a string.
func applySets(data []byte, sets []string) ([]byte, error) {
	for _, set := range sets {
		path, val, ok := strings.Cut(set, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("invalid --set %q, want path=value", set)
		}
		var err error
		if gjson.Valid(val) {
			data, err = sjson.SetRawBytes(data, path, []byte(val))
		} else {
			data, err = sjson.SetBytes(data, path, val)
		}
		if err != nil {
			return nil, fmt.Errorf("--set %s: %w", path, err)
		}
	}
	return data, nil
}
