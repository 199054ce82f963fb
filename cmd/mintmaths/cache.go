package main

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/mintmaths/internal/profile"
	"github.com/hrygo/mintmaths/store"
	"github.com/hrygo/mintmaths/store/cache"
)

func newCacheCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and prune the persistent document store",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show how many documents are stored",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				p, err := newProfile(v)
				if err != nil {
					return err
				}
				s, err := openPersistentStore(cmd, p)
				if err != nil {
					return err
				}
				defer s.Close()

				stats, err := s.GetDocumentStats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Documents: %d\nBytes:     %d\n", stats.Count, stats.Bytes)
				return nil
			},
		},
		&cobra.Command{
			Use:   "prune",
			Short: "Delete documents older than the cache TTL",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				p, err := newProfile(v)
				if err != nil {
					return err
				}
				s, err := openPersistentStore(cmd, p)
				if err != nil {
					return err
				}
				defer s.Close()

				docs := cache.New(cache.Config{Capacity: p.CacheCapacity, TTL: p.CacheTTL, Persister: s})
				defer docs.Close()
				res, err := docs.Prune(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d documents older than %s\n", res.Persistent, p.CacheTTL.Round(time.Second))
				return nil
			},
		},
	)
	return cmd
}

func openPersistentStore(cmd *cobra.Command, p *profile.Profile) (*store.Store, error) {
	if !p.HasPersistentCache() {
		return nil, errors.New("no persistent document store configured, set --driver")
	}
	return openStore(cmd.Context(), p)
}
