package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/sourcechain/pkg/sqlite"
	"github.com/mesh-intelligence/sourcechain/pkg/types"
)

func newCommitLinkCmd(a *app) *cobra.Command {
	var (
		author, base, target, tag string
		zome, linkType            uint8
	)
	cmd := &cobra.Command{
		Use:   "commit-link",
		Short: "Append a link creation to an author's chain",
		Long: "Append a CreateLink action to the author's chain. --base and --target take\n" +
			"a hex hash or any other string, which is hashed to form the address.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if author == "" || base == "" || target == "" {
				return userErrorf("--author, --base, and --target are required")
			}
			tmpl := types.Action{
				Type: types.ActionCreateLink,
				CreateLink: &types.CreateLink{
					BaseAddress:   parseAddress(base),
					TargetAddress: parseAddress(target),
					ZomeIndex:     zome,
					LinkType:      types.LinkType(linkType),
					Tag:           types.LinkTag(tag),
				},
			}
			return a.withBackend(func(b *sqlite.Backend) error {
				rec, err := b.Append(author, tmpl)
				if err != nil {
					return fmt.Errorf("commit link: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), rec)
			})
		},
	}
	cmd.Flags().StringVar(&author, "author", "", "chain author")
	cmd.Flags().StringVar(&base, "base", "", "base address")
	cmd.Flags().StringVar(&target, "target", "", "target address")
	cmd.Flags().StringVar(&tag, "tag", "", "link tag")
	cmd.Flags().Uint8Var(&zome, "zome", 0, "zome index")
	cmd.Flags().Uint8Var(&linkType, "type", 0, "link type")
	return cmd
}

func newDeleteLinkCmd(a *app) *cobra.Command {
	var author string
	cmd := &cobra.Command{
		Use:   "delete-link <create-hash>",
		Short: "Append a deletion of a link to an author's chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if author == "" {
				return userErrorf("--author is required")
			}
			createHash, err := parseHash(args[0])
			if err != nil {
				return err
			}
			return a.withBackend(func(b *sqlite.Backend) error {
				create, err := b.Get(createHash)
				if err != nil {
					return fmt.Errorf("link %s: %w", createHash.Short(), err)
				}
				if create.Action.Type != types.ActionCreateLink {
					return userErrorf("%s is a %s action, not a link creation", createHash.Short(), create.Action.Type)
				}
				rec, err := b.Append(author, types.Action{
					Type: types.ActionDeleteLink,
					DeleteLink: &types.DeleteLink{
						BaseAddress:    create.Action.CreateLink.BaseAddress,
						LinkAddAddress: create.Hash,
					},
				})
				if err != nil {
					return fmt.Errorf("delete link: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), rec)
			})
		},
	}
	cmd.Flags().StringVar(&author, "author", "", "chain author")
	return cmd
}

// putResult reports the outcome of an import.
type putResult struct {
	Stored []types.Hash `json:"stored"`
}

func newPutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "put [file]",
		Short: "Import signed records from JSON",
		Long: "Read a stream of signed records as JSON (one object per record) from the\n" +
			"file, or from stdin when no file or \"-\" is given, and store them.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return userErrorf("open %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}

			recs, err := decodeRecords(in)
			if err != nil {
				return err
			}
			return a.withBackend(func(b *sqlite.Backend) error {
				res := putResult{Stored: []types.Hash{}}
				for _, rec := range recs {
					if err := b.Put(rec); err != nil {
						return fmt.Errorf("put %s: %w", rec.Hash.Short(), err)
					}
					res.Stored = append(res.Stored, rec.Hash)
				}
				logrus.WithField("records", len(recs)).Info("imported records")
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

// decodeRecords reads consecutive JSON records from r.
func decodeRecords(r io.Reader) ([]types.SignedActionHashed, error) {
	dec := json.NewDecoder(r)
	var recs []types.SignedActionHashed
	for {
		var rec types.SignedActionHashed
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return recs, nil
		}
		if err != nil {
			return nil, userErrorf("decode record %d: %w", len(recs)+1, err)
		}
		recs = append(recs, rec)
	}
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <hash>",
		Short: "Display a stored record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := parseHash(args[0])
			if err != nil {
				return err
			}
			return a.withBackend(func(b *sqlite.Backend) error {
				rec, err := b.Get(h)
				if err != nil {
					return fmt.Errorf("record %s: %w", h.Short(), err)
				}
				return writeJSON(cmd.OutOrStdout(), rec)
			})
		},
	}
}

func newSetStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <hash> <valid|rejected|abandoned>",
		Short: "Record the validation outcome of a stored record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := parseHash(args[0])
			if err != nil {
				return err
			}
			if !types.ValidStatus(args[1]) {
				return userErrorf("unknown status %q", args[1])
			}
			return a.withBackend(func(b *sqlite.Backend) error {
				if err := b.SetValidationStatus(h, args[1]); err != nil {
					return fmt.Errorf("set status of %s: %w", h.Short(), err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", h, args[1])
				return nil
			})
		},
	}
}
