package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/stevedomin/termtable"
	"github.com/xaionaro-go/pcmrecorder/pkg/audio/types"
)

func (a *app) sourcesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the input sources of the capture backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v, err := newViper(cmd.Flags(), a.configFile)
			if err != nil {
				return err
			}
			backend := v.GetString("backend")
			device, err := newCaptureDevice(ctx, backend)
			if err != nil {
				return err
			}
			if closer, ok := device.(io.Closer); ok {
				defer closer.Close()
			}

			lister, ok := device.(types.SourceLister)
			if !ok {
				return fmt.Errorf("backend %T cannot list its sources", device)
			}
			sources, err := lister.ListSources(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSources(sources))
			return nil
		},
	}
}

func renderSources(sources []types.SourceInfo) string {
	t := termtable.NewTable(nil, &termtable.TableOptions{
		Padding:      2,
		UseSeparator: true,
	})
	t.SetHeader([]string{"ID", "Name", "Rate", "Channels", "Default"})
	for _, source := range sources {
		isDefault := ""
		if source.IsDefault {
			isDefault = "*"
		}
		t.AddRow([]string{
			source.ID,
			source.Name,
			strconv.FormatUint(uint64(source.SampleRate), 10),
			strconv.FormatUint(uint64(source.Channels), 10),
			isDefault,
		})
	}
	return t.Render()
}
