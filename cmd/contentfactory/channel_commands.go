package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"contentfactory/internal/channel"
	"contentfactory/internal/config"
	"contentfactory/internal/store"
)

func newChannelCommand(ctx *commandContext) *cobra.Command {
	channelCmd := &cobra.Command{
		Use:   "channel",
		Short: "Inspect content channels",
	}
	channelCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(c context.Context, cfg *config.Config, st *store.Store) error {
				channels, err := st.ListChannels(c)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(channels))
				for i := range channels {
					profile := channel.Resolve(&channels[i], cfg)
					rows = append(rows, []string{
						profile.Slug,
						profile.DisplayName,
						profile.Voice,
						strconv.Itoa(profile.SceneCount),
						yesNo(profile.LongForm),
					})
				}
				writeTable(cmd.OutOrStdout(),
					[]string{"Slug", "Name", "Voice", "Scenes", "Long-form"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				return nil
			})
		},
	})
	return channelCmd
}
