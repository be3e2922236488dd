package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"jitkit/internal/engine"
	"jitkit/internal/irstore"
	"jitkit/internal/jit"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Store and restore compiled demo images",
	}
	cmd.AddCommand(newCachePutCmd(), newCacheGetCmd(), newCacheLsCmd(), newCacheDropCmd())
	return cmd
}

func newCachePutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <demo>...",
		Short: "Compile demos and store their images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := sessionOf(cmd)
			st, err := s.store()
			if err != nil {
				return err
			}
			r, err := s.runtime(cmd)
			if err != nil {
				return err
			}
			for _, name := range args {
				d, err := lookupDemo(name)
				if err != nil {
					return err
				}
				fn, err := d.build(r)
				if err != nil {
					return err
				}
				img, err := fn.Image()
				if err != nil {
					return err
				}
				key, err := st.Put(name, img)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", key, name)
			}
			return nil
		},
	}
}

// resolveImage finds an entry by full key or by label.
func resolveImage(st *irstore.Store, ref string) (*engine.Image, error) {
	if key, err := irstore.ParseKey(ref); err == nil {
		img, ok, err := st.Get(key)
		if err != nil {
			return nil, err
		}
		if ok {
			return img, nil
		}
	}
	img, _, ok, err := st.Lookup(ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no cached image %q in %s", ref, st.Dir())
	}
	return img, nil
}

func newCacheGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key|label> [args...]",
		Short: "Restore a stored image and call it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := sessionOf(cmd)
			st, err := s.store()
			if err != nil {
				return err
			}
			img, err := resolveImage(st, args[0])
			if err != nil {
				return err
			}
			r, err := s.runtime(cmd)
			if err != nil {
				return err
			}
			var fn *jit.Function
			err = r.NewContext().Build(func(b *jit.Build) error {
				fn, err = b.LoadImage(img)
				return err
			})
			if err != nil {
				return err
			}
			words := args[1:]
			if len(words) == 0 {
				if d, ok := demos[img.Name]; ok {
					words = d.example
				}
			}
			callArgs, err := parseArgs(fn, words)
			if err != nil {
				return err
			}
			res, err := fn.Call(callArgs...)
			if err != nil {
				return err
			}
			if res != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s(%s) = %s\n", fn.Name(), strings.Join(words, ", "), resultColor.Sprint(formatResult(res)))
			}
			return nil
		},
	}
}

func newCacheLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List stored images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := sessionOf(cmd).store()
			if err != nil {
				return err
			}
			infos, err := st.List()
			if err != nil {
				return err
			}
			p := message.NewPrinter(language.English)
			rows := make([][]string, len(infos))
			for i, info := range infos {
				rows[i] = []string{info.Key.String()[:16], info.Label, info.Target, p.Sprintf("%d", info.Size)}
			}
			writeTable(cmd.OutOrStdout(), []string{"KEY", "LABEL", "TARGET", "BYTES"}, rows)
			return nil
		},
	}
}

func newCacheDropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop",
		Short: "Remove every stored image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := sessionOf(cmd).store()
			if err != nil {
				return err
			}
			return st.DropAll()
		},
	}
}
