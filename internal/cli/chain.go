package cli

import (
	"context"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/sourcechain/pkg/query"
	"github.com/mesh-intelligence/sourcechain/pkg/sqlite"
	"github.com/mesh-intelligence/sourcechain/pkg/types"
)

func newWalkCmd(a *app) *cobra.Command {
	var (
		take  int64
		until []string
	)
	cmd := &cobra.Command{
		Use:   "walk <author> <position>",
		Short: "Walk an author's chain from a position toward genesis",
		Long: "Print the record at the position and its verified ancestors, newest first.\n" +
			"--take bounds the number of records; --until stops after any of the given\n" +
			"hashes. Both may be combined; the walk ends at whichever comes first.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := parseHash(args[1])
			if err != nil {
				return err
			}
			filter := types.NewChainFilter(pos)
			if cmd.Flags().Changed("take") {
				if take < 0 || take > math.MaxUint32 {
					return userErrorf("--take must be between 0 and %d", uint32(math.MaxUint32))
				}
				filter = filter.Take(uint32(take))
			}
			for _, u := range until {
				h, err := parseHash(u)
				if err != nil {
					return err
				}
				filter = filter.Until(h)
			}

			return a.withBackend(func(b *sqlite.Backend) error {
				res, err := b.Walk(cmdContext(cmd), args[0], filter)
				if err != nil {
					return err
				}
				if res.Records == nil {
					res.Records = []types.ActivityRecord{}
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().Int64Var(&take, "take", 0, "maximum number of records")
	cmd.Flags().StringArrayVar(&until, "until", nil, "stop after this hash (repeatable)")
	return cmd
}

// baseLinks is the links output for one base address.
type baseLinks struct {
	Base  types.Hash          `json:"base"`
	Links []query.LinkDetails `json:"links"`
}

func newLinksCmd(a *app) *cobra.Command {
	var (
		typeRanges []string
		tagPrefix  string
		liveOnly   bool
	)
	cmd := &cobra.Command{
		Use:   "links <base>...",
		Short: "Report the links on one or more base addresses",
		Long: "Report every link created on each base with its deletion history, ordered by\n" +
			"creation time. Bases take a hex hash or any other string, which is hashed.\n" +
			"--type-range accepts zome:from-to, zome:type, or from-to (zome 0).",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []query.LinkOption
			if len(typeRanges) > 0 {
				ranges := make([]types.LinkTypeRange, 0, len(typeRanges))
				for _, s := range typeRanges {
					r, err := parseTypeRange(s)
					if err != nil {
						return err
					}
					ranges = append(ranges, r)
				}
				opts = append(opts, query.WithTypeRanges(ranges...))
			}
			if cmd.Flags().Changed("tag-prefix") {
				opts = append(opts, query.WithTagPrefix(types.LinkTag(tagPrefix)))
			}

			bases := make([]types.Hash, 0, len(args))
			for _, arg := range args {
				bases = append(bases, parseAddress(arg))
			}

			return a.withBackend(func(b *sqlite.Backend) error {
				byBase, err := b.LinkDetailsBatch(cmdContext(cmd), bases, opts...)
				if err != nil {
					return err
				}
				out := make([]baseLinks, 0, len(bases))
				for _, base := range bases {
					details := byBase[base]
					if liveOnly {
						details = query.Live(details)
					}
					if details == nil {
						details = []query.LinkDetails{}
					}
					out = append(out, baseLinks{Base: base, Links: details})
				}
				return writeJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().StringArrayVar(&typeRanges, "type-range", nil, "link type range (repeatable)")
	cmd.Flags().StringVar(&tagPrefix, "tag-prefix", "", "keep links whose tag starts with this text")
	cmd.Flags().BoolVar(&liveOnly, "live", false, "omit links that have been deleted")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	var withActivity bool
	cmd := &cobra.Command{
		Use:   "status <author>",
		Short: "Summarise an author's chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(func(b *sqlite.Backend) error {
				act, err := b.AgentActivity(args[0])
				if err != nil {
					return fmt.Errorf("status of %s: %w", args[0], err)
				}
				if !withActivity {
					act.Activity = nil
				}
				return writeJSON(cmd.OutOrStdout(), act)
			})
		},
	}
	cmd.Flags().BoolVar(&withActivity, "activity", false, "include every record of the chain")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count stored records by type and validation status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(func(b *sqlite.Backend) error {
				s, err := b.Stats(cmdContext(cmd))
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), s)
			})
		},
	}
}

// cmdContext returns the command's context, or Background when none is set.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
