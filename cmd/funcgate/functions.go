package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type functionDoc struct {
	Name        string   `json:"name" yaml:"name"`
	Params      []string `json:"params" yaml:"params"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

func newFunctionsCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "functions",
		Aliases: []string{"ls"},
		Short:   "List callable functions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			rt, err := a.start(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.stop(cmd.Context())

			docs := make([]functionDoc, 0)
			for _, name := range rt.gateway.Functions() {
				desc, params, _ := rt.gateway.Describe(name)
				if params == nil {
					params = []string{}
				}
				docs = append(docs, functionDoc{Name: name, Params: params, Description: desc})
			}

			out := cmd.OutOrStdout()
			if format != formatText {
				return encode(out, format, docs)
			}
			for _, d := range docs {
				fmt.Fprintf(out, "%s(%s)\n", d.Name, strings.Join(d.Params, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", formatText, "output format (text, json, yaml)")
	return cmd
}
