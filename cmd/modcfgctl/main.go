// Command modcfgctl inspects and edits a running modcfgd over HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/micro-nova/modcfg/internal/client"
	"github.com/micro-nova/modcfg/internal/settings"
)

var baseURL string

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "modcfgctl",
		Short:        "Inspect and edit module configuration bytes",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&baseURL, "url", envOr("MODCFG_URL", "http://localhost:8080"), "daemon base URL")

	cmd.AddCommand(showCmd())
	cmd.AddCommand(getCmd())
	cmd.AddCommand(setCmd())
	cmd.AddCommand(actionCmd("save", "Write every byte to storage"))
	cmd.AddCommand(actionCmd("load", "Reload every byte from storage"))
	cmd.AddCommand(actionCmd("erase", "Reset every byte to 0xFF"))
	cmd.AddCommand(pressCmd())
	cmd.AddCommand(pendingCmd())
	cmd.AddCommand(watchCmd())
	cmd.AddCommand(validateCmd())
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print every configuration byte",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := client.New(baseURL).Config(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(v)
		},
	}
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <index>",
		Short: "Print one configuration byte",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[0])
			}
			v, err := client.New(baseURL).Get(cmd.Context(), idx)
			if err != nil {
				return err
			}
			fmt.Println(v.Value)
			return nil
		},
	}
}

func setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <index> <value>",
		Short: "Write one configuration byte",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[0])
			}
			// Base 0 accepts 0x.. and 0b.. as well as decimal.
			val, err := strconv.ParseInt(args[1], 0, 32)
			if err != nil {
				return fmt.Errorf("invalid value %q", args[1])
			}
			v, err := client.New(baseURL).Set(cmd.Context(), idx, int(val))
			if err != nil {
				return err
			}
			fmt.Printf("byte %d = %d\n", v.Index, v.Value)
			return nil
		},
	}
}

func actionCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(baseURL)
			fn := map[string]func(context.Context) (interface{}, error){
				"save":  func(ctx context.Context) (interface{}, error) { return c.Save(ctx) },
				"load":  func(ctx context.Context) (interface{}, error) { return c.Load(ctx) },
				"erase": func(ctx context.Context) (interface{}, error) { return c.Erase(ctx) },
			}[name]
			v, err := fn(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(v)
		},
	}
}

func pressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "press <long|short|poll> [value]",
		Short: "Submit an operator event as if from the panel",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := 0
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid value %q", args[1])
				}
				value = n
			}
			r, err := client.New(baseURL).Interact(cmd.Context(), args[0], value)
			if err != nil {
				return err
			}
			return printJSON(r)
		},
	}
}

func pendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Show the address staged by a long press, if any",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := client.New(baseURL).Pending(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(p)
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream change and interaction notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return client.New(baseURL).Subscribe(ctx, func(event string, data []byte) {
				fmt.Printf("%s %s\n", event, data)
			})
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <settings.yaml>",
		Short: "Check a daemon settings file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := settings.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Settings at %s are valid: %s backend, %d bytes at base %d.\n",
				args[0], s.Device.Backend, s.Store.Size, s.Store.Base)
			return nil
		},
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
