// Command heapstash inspects and edits the secondary stores of a heapstash
// cache described by a YAML config file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/heapstash"
	"github.com/unkn0wn-root/heapstash/internal/config"
	"github.com/unkn0wn-root/heapstash/plugin"
)

var (
	configPath string
	logLevel   string
	output     string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "heapstash",
		Short:         "heapstash - inspect and edit cache plugins",
		Long:          "Runs get/put/remove/clear against the plugins configured in a heapstash config file",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "json", "Value output format: json or yaml")

	rootCmd.AddCommand(
		getCmd(),
		putCmd(),
		removeCmd(),
		clearCmd(),
		pluginsCmd(),
		configCmd(),
	)
	return rootCmd
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(configPath); err != nil {
			return nil, err
		}
	}
	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, cfg.Validate()
}

// withCache opens the configured cache, runs fn and closes everything.
func withCache(cmd *cobra.Command, fn func(ctx context.Context, c *heapstash.Cache[any]) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, err := openCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := cache.Close(closeCtx); err != nil {
			log.Warn("close failed", zap.Error(err))
		}
	}()
	return fn(ctx, cache)
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print the value stored under id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, func(ctx context.Context, c *heapstash.Cache[any]) error {
				v, ok, err := c.Get(ctx, args[0], heapstash.GetSettings{})
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s: not found", args[0])
				}
				return printValue(cmd.OutOrStdout(), v)
			})
		},
	}
}

func putCmd() *cobra.Command {
	var (
		ttl       time.Duration
		pluginTTL time.Duration
		noExpiry  bool
	)

	cmd := &cobra.Command{
		Use:   "put <id> [id...] <value>",
		Short: "Store a value under one or more ids",
		Long:  "The value is parsed as YAML (so JSON works too); anything unparsable is stored as a string",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, raw := args[:len(args)-1], args[len(args)-1]
			value := parseValue(raw)
			s := heapstash.PutSettings{TTL: ttl, PluginTTL: pluginTTL}
			if noExpiry {
				s.TTL, s.PluginTTL = heapstash.NoExpiry, heapstash.NoExpiry
			}
			return withCache(cmd, func(ctx context.Context, c *heapstash.Cache[any]) error {
				if err := c.PutMany(ctx, ids, value, s); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", strings.Join(ids, ", "))
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Lifetime (default: cache.ttl)")
	cmd.Flags().DurationVar(&pluginTTL, "plugin-ttl", 0, "Lifetime in plugins only (default: same as --ttl)")
	cmd.Flags().BoolVar(&noExpiry, "no-expiry", false, "Never expire, ignoring cache.ttl")
	cmd.MarkFlagsMutuallyExclusive("ttl", "no-expiry")
	return cmd
}

func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id> [id...]",
		Short: "Remove ids from every plugin",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, func(ctx context.Context, c *heapstash.Cache[any]) error {
				var errs []error
				for _, id := range args {
					errs = append(errs, c.Remove(ctx, id, heapstash.RemoveSettings{}))
				}
				return errors.Join(errs...)
			})
		},
	}
}

func clearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry from every plugin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("clear wipes all plugins; pass --yes to confirm")
			}
			return withCache(cmd, func(ctx context.Context, c *heapstash.Cache[any]) error {
				return c.Clear(ctx, heapstash.ClearSettings{})
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm clearing")
	return cmd
}

func pluginsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List configured plugins and the tasks they implement",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, func(_ context.Context, c *heapstash.Cache[any]) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "#\tNAME\tGET\tPUT\tREMOVE\tCLEAR")
				for i, r := range c.Plugins() {
					fmt.Fprintf(w, "%d\t%s", i, r.Name())
					for _, t := range []plugin.Task{plugin.TaskGet, plugin.TaskPut, plugin.TaskRemove, plugin.TaskClear} {
						mark := "-"
						if r.Implements(t) {
							mark = "yes"
						}
						fmt.Fprintf(w, "\t%s", mark)
					}
					fmt.Fprintln(w)
				}
				return w.Flush()
			})
		},
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func parseValue(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	return v
}

// printValue writes v as indented JSON, falling back to YAML for values
// JSON cannot represent, such as maps with non-string keys.
func printValue(w io.Writer, v any) error {
	if output == "json" {
		b, err := json.MarshalIndent(v, "", "  ")
		if err == nil {
			_, err = fmt.Fprintln(w, string(b))
			return err
		}
	}
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
